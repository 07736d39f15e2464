package perm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Service implements the permission matrix pipeline: resolve scope,
// enforce scope administration, build the query, fetch the ordered user
// page and its grants through one storage session, and assemble the
// paginated response. Services are stateless; every value they produce
// is scoped to a single request.
type Service struct {
	store  Store
	authz  Authorizer
	avatar AvatarFunc
}

func NewService(store Store, authz Authorizer, avatar AvatarFunc) (*Service, error) {
	if store == nil {
		return nil, errors.New("perm store is required")
	}
	if authz == nil {
		return nil, errors.New("authorizer is required")
	}
	return &Service{store: store, authz: authz, avatar: avatar}, nil
}

// ListRequest carries the raw inbound parameters of one listing call.
// An empty ProjectKey selects the global scope.
type ListRequest struct {
	ProjectKey string
	Search     string
	Permission string
	PageIndex  int
	PageSize   int
}

// ListUsers returns the users matching the request together with the
// permissions each holds in the resolved scope. When a permission
// filter is set, holders appear ahead of non-holders; ties break by
// login ascending. Users without any grant are listed with an empty
// permission set.
func (s *Service) ListUsers(ctx context.Context, req ListRequest) (Page, error) {
	sess, err := s.store.Session(ctx)
	if err != nil {
		return Page{}, fmt.Errorf("open storage session: %w", err)
	}
	defer func() { _ = sess.Close() }()

	scope, err := resolveScope(ctx, sess, req.ProjectKey)
	if err != nil {
		return Page{}, err
	}
	if err := s.authz.RequireScopeAdmin(ctx, sess, scope); err != nil {
		return Page{}, err
	}

	q, err := NewQuery(scope, QueryParams{
		Search:     req.Search,
		Permission: req.Permission,
		PageIndex:  req.PageIndex,
		PageSize:   req.PageSize,
	})
	if err != nil {
		return Page{}, err
	}

	users, err := fetchPage(ctx, sess, q)
	if err != nil {
		return Page{}, err
	}
	total, err := sess.CountUsersByQuery(ctx, q)
	if err != nil {
		return Page{}, fmt.Errorf("count users: %w", err)
	}
	grants, err := fetchGrants(ctx, sess, scope, users)
	if err != nil {
		return Page{}, err
	}
	paging, err := NewPaging(q.PageIndex(), q.PageSize(), total)
	if err != nil {
		return Page{}, err
	}
	return assemble(users, grants, paging, s.avatar), nil
}

// GrantRequest identifies one grant mutation. An empty ProjectKey means
// the global scope.
type GrantRequest struct {
	Login      string
	Permission string
	ProjectKey string
}

// Grant gives the user the permission kind within the resolved scope.
// Granting an already-held permission succeeds without effect.
func (s *Service) Grant(ctx context.Context, req GrantRequest) error {
	return s.mutate(ctx, req, func(ctx context.Context, sess Session, g Grant) error {
		if err := sess.InsertGrant(ctx, g); err != nil {
			return fmt.Errorf("insert grant: %w", err)
		}
		return nil
	})
}

// Revoke removes the user's permission kind within the resolved scope;
// ErrNotFound when the grant does not exist.
func (s *Service) Revoke(ctx context.Context, req GrantRequest) error {
	return s.mutate(ctx, req, func(ctx context.Context, sess Session, g Grant) error {
		return sess.DeleteGrant(ctx, g)
	})
}

func (s *Service) mutate(ctx context.Context, req GrantRequest, apply func(context.Context, Session, Grant) error) error {
	login := strings.TrimSpace(req.Login)
	if login == "" {
		return fmt.Errorf("%w: login is required", ErrInvalidInput)
	}

	sess, err := s.store.Session(ctx)
	if err != nil {
		return fmt.Errorf("open storage session: %w", err)
	}
	defer func() { _ = sess.Close() }()

	scope, err := resolveScope(ctx, sess, req.ProjectKey)
	if err != nil {
		return err
	}
	if err := s.authz.RequireScopeAdmin(ctx, sess, scope); err != nil {
		return err
	}
	kind := strings.TrimSpace(req.Permission)
	if err := ValidateKind(kind, scope); err != nil {
		return err
	}
	user, err := sess.UserByLogin(ctx, login)
	if err != nil {
		return err
	}
	return apply(ctx, sess, Grant{
		UserID:     user.ID,
		Permission: kind,
		ProjectID:  scope.ProjectID,
	})
}

// resolveScope turns an optional project key into an immutable Scope.
func resolveScope(ctx context.Context, sess Session, projectKey string) (Scope, error) {
	projectKey = strings.TrimSpace(projectKey)
	if projectKey == "" {
		return GlobalScope(), nil
	}
	project, err := sess.ProjectByKey(ctx, projectKey)
	if err != nil {
		return Scope{}, err
	}
	return ProjectScope(project.ID, project.Key), nil
}

// fetchPage obtains the authoritative ordered identifier sequence and
// materializes the user records in exactly that order. The second fetch
// may return rows in any order; the sequence is rebuilt by looking up
// each identifier, never trusting storage order.
func fetchPage(ctx context.Context, sess Session, q Query) ([]User, error) {
	ids, err := sess.SelectUserIDsByQuery(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("select user ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	records, err := sess.SelectUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	byID := make(map[string]User, len(records))
	for _, u := range records {
		byID[u.ID] = u
	}
	ordered := make([]User, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			ordered = append(ordered, u)
		}
	}
	return ordered, nil
}

// fetchGrants loads and groups the grants of exactly the page's users
// within the scope. An empty page never touches storage.
func fetchGrants(ctx context.Context, sess Session, scope Scope, users []User) (map[string][]string, error) {
	if len(users) == 0 {
		return map[string][]string{}, nil
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	grants, err := sess.SelectGrantsByUsers(ctx, scope, ids)
	if err != nil {
		return nil, fmt.Errorf("select grants: %w", err)
	}
	return groupGrants(grants), nil
}
