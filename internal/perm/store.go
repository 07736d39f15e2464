package perm

import "context"

// Store provides request-scoped storage sessions.
type Store interface {
	Session(ctx context.Context) (Session, error)
}

// Session is one request's storage handle. A session is acquired before
// scope resolution, carried through every query of the request and
// released unconditionally when the request finishes. Implementations
// must evaluate all queries against the same underlying connection.
type Session interface {
	// ProjectByKey resolves a project reference; ErrNotFound when the
	// key is unknown.
	ProjectByKey(ctx context.Context, key string) (Project, error)

	// UserByLogin resolves a user by login; ErrNotFound when unknown.
	UserByLogin(ctx context.Context, login string) (User, error)

	// SelectUserIDsByQuery returns the authoritative ordered identifier
	// sequence for the requested page: when a permission filter is set,
	// users holding it within the scope rank first; ties break by login
	// ascending.
	SelectUserIDsByQuery(ctx context.Context, q Query) ([]string, error)

	// SelectUsersByIDs materializes user records for the given ids in
	// arbitrary order.
	SelectUsersByIDs(ctx context.Context, ids []string) ([]User, error)

	// CountUsersByQuery counts all users matching the query's filter and
	// scope, independent of paging.
	CountUsersByQuery(ctx context.Context, q Query) (int, error)

	// SelectGrantsByUsers returns every grant held by the given users
	// within the scope. Callers must not invoke it with an empty id set.
	SelectGrantsByUsers(ctx context.Context, scope Scope, userIDs []string) ([]Grant, error)

	// UserHasPermission reports whether the user holds the permission
	// kind within the scope.
	UserHasPermission(ctx context.Context, userID, kind string, scope Scope) (bool, error)

	// InsertGrant records a grant; inserting an existing grant is a
	// no-op.
	InsertGrant(ctx context.Context, g Grant) error

	// DeleteGrant removes a grant; ErrNotFound when it does not exist.
	DeleteGrant(ctx context.Context, g Grant) error

	Close() error
}

// Authorizer gates administrative access to a scope. It runs after the
// scope has been resolved and before any data query, over the same
// session.
type Authorizer interface {
	RequireScopeAdmin(ctx context.Context, sess Session, scope Scope) error
}

// AvatarFunc derives an avatar token from a non-empty email address.
type AvatarFunc func(email string) string
