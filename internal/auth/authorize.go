package auth

import (
	"context"

	"permatrix.org/internal/perm"
)

// Guard enforces administrative rights on an authorization scope. The
// caller passes when they hold the global admin permission or, for a
// project scope, admin on that project. Nothing about existing users or
// grants leaks to a denied caller.
type Guard struct{}

var _ perm.Authorizer = Guard{}

func (Guard) RequireScopeAdmin(ctx context.Context, sess perm.Session, scope perm.Scope) error {
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return perm.ErrPermissionDenied
	}
	held, err := sess.UserHasPermission(ctx, userID, perm.PermAdmin, perm.GlobalScope())
	if err != nil {
		return err
	}
	if held {
		return nil
	}
	if !scope.IsGlobal() {
		held, err = sess.UserHasPermission(ctx, userID, perm.PermAdmin, scope)
		if err != nil {
			return err
		}
		if held {
			return nil
		}
	}
	return perm.ErrPermissionDenied
}

// Credentials is the stored login material of one user.
type Credentials struct {
	UserID       string
	Login        string
	PasswordHash string
}

// CredentialStore resolves stored credentials for the token endpoint.
type CredentialStore interface {
	CredentialsByLogin(ctx context.Context, login string) (Credentials, error)
}
