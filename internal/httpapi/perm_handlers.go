package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"permatrix.org/internal/audit"
	"permatrix.org/internal/obs"
	"permatrix.org/internal/perm"
	"permatrix.org/internal/stream"
)

type grantRequest struct {
	Login      string `json:"login"`
	Permission string `json:"permission"`
	Project    string `json:"project,omitempty"`
}

func (a *API) handlePermissionUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	pageIndex, err := queryInt(r, "p")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pageSize, err := queryInt(r, "ps")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	req := perm.ListRequest{
		ProjectKey: r.URL.Query().Get("project"),
		Search:     r.URL.Query().Get("q"),
		Permission: r.URL.Query().Get("permission"),
		PageIndex:  pageIndex,
		PageSize:   pageSize,
	}

	page, err := a.perms.ListUsers(r.Context(), req)
	if err != nil {
		handlePermError(w, r, err)
		return
	}

	obs.CountPermissionQuery(scopeLabel(req.ProjectKey))
	writeJSON(w, http.StatusOK, page)
}

func (a *API) handlePermissionGrant(w http.ResponseWriter, r *http.Request) {
	a.mutatePermission(w, r, "grant", a.perms.Grant)
}

func (a *API) handlePermissionRevoke(w http.ResponseWriter, r *http.Request) {
	a.mutatePermission(w, r, "revoke", a.perms.Revoke)
}

func (a *API) mutatePermission(w http.ResponseWriter, r *http.Request, action string, apply func(context.Context, perm.GrantRequest) error) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req grantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	err := apply(r.Context(), perm.GrantRequest{
		Login:      req.Login,
		Permission: req.Permission,
		ProjectKey: req.Project,
	})
	if err != nil {
		obs.CountPermissionMutation(action, "error")
		handlePermError(w, r, err)
		return
	}

	obs.CountPermissionMutation(action, "ok")
	_ = audit.LogPermissionChange(r.Context(), action, req.Login, req.Permission, strings.TrimSpace(req.Project))
	if a.stream != nil {
		a.stream.Publish(stream.ChangeEvent{
			Action:     action,
			Login:      strings.TrimSpace(req.Login),
			Permission: strings.TrimSpace(req.Permission),
			Project:    strings.TrimSpace(req.Project),
		})
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handlePermissionKinds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{
		"global":  perm.GlobalPermissions,
		"project": perm.ProjectPermissions,
	})
}

func handlePermError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, perm.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, perm.ErrPermissionDenied):
		writeError(w, r, http.StatusForbidden, "insufficient privileges")
	case errors.Is(err, perm.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func scopeLabel(projectKey string) string {
	if strings.TrimSpace(projectKey) == "" {
		return "global"
	}
	return "project"
}
