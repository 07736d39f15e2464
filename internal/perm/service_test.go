package perm

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type stubSession struct {
	projectByKeyFn  func(context.Context, string) (Project, error)
	userByLoginFn   func(context.Context, string) (User, error)
	selectIDsFn     func(context.Context, Query) ([]string, error)
	selectUsersFn   func(context.Context, []string) ([]User, error)
	countFn         func(context.Context, Query) (int, error)
	selectGrantsFn  func(context.Context, Scope, []string) ([]Grant, error)
	hasPermissionFn func(context.Context, string, string, Scope) (bool, error)
	insertGrantFn   func(context.Context, Grant) error
	deleteGrantFn   func(context.Context, Grant) error
	grantQueries    int
	dataQueries     int
	closed          bool
}

func (s *stubSession) ProjectByKey(ctx context.Context, key string) (Project, error) {
	if s.projectByKeyFn != nil {
		return s.projectByKeyFn(ctx, key)
	}
	return Project{}, ErrNotFound
}

func (s *stubSession) UserByLogin(ctx context.Context, login string) (User, error) {
	if s.userByLoginFn != nil {
		return s.userByLoginFn(ctx, login)
	}
	return User{}, ErrNotFound
}

func (s *stubSession) SelectUserIDsByQuery(ctx context.Context, q Query) ([]string, error) {
	s.dataQueries++
	if s.selectIDsFn != nil {
		return s.selectIDsFn(ctx, q)
	}
	return nil, nil
}

func (s *stubSession) SelectUsersByIDs(ctx context.Context, ids []string) ([]User, error) {
	s.dataQueries++
	if s.selectUsersFn != nil {
		return s.selectUsersFn(ctx, ids)
	}
	return nil, nil
}

func (s *stubSession) CountUsersByQuery(ctx context.Context, q Query) (int, error) {
	s.dataQueries++
	if s.countFn != nil {
		return s.countFn(ctx, q)
	}
	return 0, nil
}

func (s *stubSession) SelectGrantsByUsers(ctx context.Context, scope Scope, ids []string) ([]Grant, error) {
	s.grantQueries++
	s.dataQueries++
	if s.selectGrantsFn != nil {
		return s.selectGrantsFn(ctx, scope, ids)
	}
	return nil, nil
}

func (s *stubSession) UserHasPermission(ctx context.Context, userID, kind string, scope Scope) (bool, error) {
	if s.hasPermissionFn != nil {
		return s.hasPermissionFn(ctx, userID, kind, scope)
	}
	return false, nil
}

func (s *stubSession) InsertGrant(ctx context.Context, g Grant) error {
	if s.insertGrantFn != nil {
		return s.insertGrantFn(ctx, g)
	}
	return nil
}

func (s *stubSession) DeleteGrant(ctx context.Context, g Grant) error {
	if s.deleteGrantFn != nil {
		return s.deleteGrantFn(ctx, g)
	}
	return nil
}

func (s *stubSession) Close() error {
	s.closed = true
	return nil
}

type stubStore struct{ sess *stubSession }

func (s *stubStore) Session(ctx context.Context) (Session, error) { return s.sess, nil }

type allowAll struct{}

func (allowAll) RequireScopeAdmin(context.Context, Session, Scope) error { return nil }

type denyAll struct{}

func (denyAll) RequireScopeAdmin(context.Context, Session, Scope) error {
	return ErrPermissionDenied
}

func newTestService(t *testing.T, sess *stubSession, authz Authorizer) *Service {
	t.Helper()
	svc, err := NewService(&stubStore{sess: sess}, authz, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestListUsersEmptyMatchSkipsGrantFetch(t *testing.T) {
	sess := &stubSession{
		selectIDsFn: func(_ context.Context, _ Query) ([]string, error) {
			return nil, nil
		},
		countFn: func(_ context.Context, _ Query) (int, error) {
			return 0, nil
		},
	}
	svc := newTestService(t, sess, allowAll{})

	page, err := svc.ListUsers(context.Background(), ListRequest{Search: "eri"})
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(page.Users) != 0 {
		t.Fatalf("expected empty user list, got %d", len(page.Users))
	}
	if page.Paging.Total != 0 {
		t.Fatalf("expected total 0, got %d", page.Paging.Total)
	}
	if sess.grantQueries != 0 {
		t.Fatalf("grant fetch must be skipped for an empty page")
	}
	if !sess.closed {
		t.Fatalf("session must be released")
	}
}

func TestListUsersRestoresAuthoritativeOrder(t *testing.T) {
	sess := &stubSession{
		selectIDsFn: func(_ context.Context, _ Query) ([]string, error) {
			return []string{"u3", "u1", "u2"}, nil
		},
		selectUsersFn: func(_ context.Context, ids []string) ([]User, error) {
			// Storage returns records in its own order.
			return []User{
				{ID: "u1", Login: "alice"},
				{ID: "u2", Login: "bob"},
				{ID: "u3", Login: "carol"},
			}, nil
		},
		countFn: func(_ context.Context, _ Query) (int, error) { return 3, nil },
		selectGrantsFn: func(_ context.Context, _ Scope, ids []string) ([]Grant, error) {
			if want := []string{"u3", "u1", "u2"}; !reflect.DeepEqual(ids, want) {
				t.Fatalf("grant fetch ids = %v, want page ids %v", ids, want)
			}
			return nil, nil
		},
	}
	svc := newTestService(t, sess, allowAll{})

	page, err := svc.ListUsers(context.Background(), ListRequest{})
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	got := []string{page.Users[0].Login, page.Users[1].Login, page.Users[2].Login}
	if want := []string{"carol", "alice", "bob"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("response order %v, want authoritative id order %v", got, want)
	}
}

func TestListUsersAdminHoldersFirstScenario(t *testing.T) {
	// 3 admins on project P, 50 users without permissions, page size 20.
	ids := make([]string, 0, 20)
	users := make([]User, 0, 20)
	admins := []string{"adm1", "adm2", "adm3"}
	for _, id := range admins {
		ids = append(ids, id)
		users = append(users, User{ID: id, Login: id})
	}
	for i := 0; len(ids) < 20; i++ {
		id := string(rune('a'+i)) + "-user"
		ids = append(ids, id)
		users = append(users, User{ID: id, Login: id})
	}

	sess := &stubSession{
		projectByKeyFn: func(_ context.Context, key string) (Project, error) {
			if key != "proj-p" {
				return Project{}, ErrNotFound
			}
			return Project{ID: "p1", Key: key, Name: "P"}, nil
		},
		selectIDsFn: func(_ context.Context, q Query) ([]string, error) {
			if q.Permission() != PermAdmin {
				t.Fatalf("unexpected permission filter %q", q.Permission())
			}
			if q.Scope().ProjectID != "p1" {
				t.Fatalf("query scope lost: %+v", q.Scope())
			}
			return ids, nil
		},
		selectUsersFn: func(_ context.Context, got []string) ([]User, error) {
			return users, nil
		},
		countFn: func(_ context.Context, _ Query) (int, error) { return 53, nil },
		selectGrantsFn: func(_ context.Context, scope Scope, _ []string) ([]Grant, error) {
			if scope.ProjectID != "p1" {
				t.Fatalf("grant fetch scope %+v, want project p1", scope)
			}
			var grants []Grant
			for _, id := range admins {
				grants = append(grants, Grant{UserID: id, Permission: PermAdmin, ProjectID: "p1"})
			}
			return grants, nil
		},
	}
	svc := newTestService(t, sess, allowAll{})

	page, err := svc.ListUsers(context.Background(), ListRequest{
		ProjectKey: "proj-p",
		Permission: PermAdmin,
		PageIndex:  1,
		PageSize:   20,
	})
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if page.Paging.Total != 53 {
		t.Fatalf("expected total 53, got %d", page.Paging.Total)
	}
	if len(page.Users) != 20 {
		t.Fatalf("expected 20 users on the page, got %d", len(page.Users))
	}
	for i := 0; i < 3; i++ {
		if !reflect.DeepEqual(page.Users[i].Permissions, []string{PermAdmin}) {
			t.Fatalf("user %d should hold admin, got %v", i, page.Users[i].Permissions)
		}
	}
	for i := 3; i < 20; i++ {
		if len(page.Users[i].Permissions) != 0 {
			t.Fatalf("user %d should hold nothing, got %v", i, page.Users[i].Permissions)
		}
	}
}

func TestListUsersValidationStopsBeforeDataQueries(t *testing.T) {
	sess := &stubSession{}
	svc := newTestService(t, sess, allowAll{})

	_, err := svc.ListUsers(context.Background(), ListRequest{Search: "er"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if sess.dataQueries != 0 {
		t.Fatalf("no data query may run for an invalid request, saw %d", sess.dataQueries)
	}
	if !sess.closed {
		t.Fatalf("session must be released on validation failure")
	}
}

func TestListUsersPermissionDeniedBeforeQueryBuild(t *testing.T) {
	sess := &stubSession{}
	svc := newTestService(t, sess, denyAll{})

	_, err := svc.ListUsers(context.Background(), ListRequest{Search: "x"})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if sess.dataQueries != 0 {
		t.Fatalf("denied caller must not trigger data queries")
	}
}

func TestListUsersUnknownProject(t *testing.T) {
	sess := &stubSession{}
	svc := newTestService(t, sess, allowAll{})

	_, err := svc.ListUsers(context.Background(), ListRequest{ProjectKey: "ghost"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGrantValidatesKindForScope(t *testing.T) {
	sess := &stubSession{
		userByLoginFn: func(_ context.Context, login string) (User, error) {
			return User{ID: "u1", Login: login}, nil
		},
	}
	svc := newTestService(t, sess, allowAll{})

	err := svc.Grant(context.Background(), GrantRequest{Login: "alice", Permission: PermCodeViewer})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("project-only kind must be rejected globally, got %v", err)
	}
}

func TestGrantInsertsResolvedGrant(t *testing.T) {
	var inserted Grant
	sess := &stubSession{
		projectByKeyFn: func(_ context.Context, key string) (Project, error) {
			return Project{ID: "p1", Key: key}, nil
		},
		userByLoginFn: func(_ context.Context, login string) (User, error) {
			return User{ID: "u1", Login: login}, nil
		},
		insertGrantFn: func(_ context.Context, g Grant) error {
			inserted = g
			return nil
		},
	}
	svc := newTestService(t, sess, allowAll{})

	if err := svc.Grant(context.Background(), GrantRequest{
		Login:      "alice",
		Permission: PermIssueAdmin,
		ProjectKey: "demo",
	}); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	want := Grant{UserID: "u1", Permission: PermIssueAdmin, ProjectID: "p1"}
	if inserted != want {
		t.Fatalf("inserted %+v, want %+v", inserted, want)
	}
	if !sess.closed {
		t.Fatalf("session must be released after mutation")
	}
}

func TestRevokeMissingGrant(t *testing.T) {
	sess := &stubSession{
		userByLoginFn: func(_ context.Context, login string) (User, error) {
			return User{ID: "u1", Login: login}, nil
		},
		deleteGrantFn: func(_ context.Context, _ Grant) error {
			return ErrNotFound
		},
	}
	svc := newTestService(t, sess, allowAll{})

	err := svc.Revoke(context.Background(), GrantRequest{Login: "alice", Permission: PermScan})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
