package perm

import (
	"fmt"
	"strings"
)

// PermAdmin exists in both scopes: globally it administers the
// installation, on a project it administers that project.
const (
	PermAdmin        = "admin"
	PermGateAdmin    = "gateadmin"
	PermProfileAdmin = "profileadmin"
	PermProvisioning = "provisioning"
	PermScan         = "scan"
	PermCodeViewer   = "codeviewer"
	PermIssueAdmin   = "issueadmin"
	PermUser         = "user"
)

// GlobalPermissions are the kinds grantable at installation level.
var GlobalPermissions = []string{
	PermAdmin,
	PermGateAdmin,
	PermProfileAdmin,
	PermProvisioning,
	PermScan,
}

// ProjectPermissions are the kinds grantable on a single project.
var ProjectPermissions = []string{
	PermAdmin,
	PermCodeViewer,
	PermIssueAdmin,
	PermScan,
	PermUser,
}

// ValidateKind checks that kind names a permission grantable within the
// given scope. Project-only kinds are rejected under global scope and
// vice versa.
func ValidateKind(kind string, scope Scope) error {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return fmt.Errorf("%w: permission is required", ErrInvalidInput)
	}
	catalog := GlobalPermissions
	if !scope.IsGlobal() {
		catalog = ProjectPermissions
	}
	for _, known := range catalog {
		if kind == known {
			return nil
		}
	}
	return fmt.Errorf("%w: permission %q is not valid for this scope", ErrInvalidInput, kind)
}
