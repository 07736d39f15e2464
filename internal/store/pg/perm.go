package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"permatrix.org/internal/auth"
	"permatrix.org/internal/ids"
	"permatrix.org/internal/perm"
)

var _ auth.CredentialStore = (*Store)(nil)

// CredentialsByLogin resolves stored login material for token issuing.
func (s *Store) CredentialsByLogin(ctx context.Context, login string) (auth.Credentials, error) {
	var creds auth.Credentials
	err := s.db.QueryRowContext(ctx, `
		select id, login, password_hash
		from users
		where login = $1 and password_hash is not null
	`, login).Scan(&creds.UserID, &creds.Login, &creds.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Credentials{}, perm.ErrNotFound
	}
	if err != nil {
		return auth.Credentials{}, err
	}
	return creds, nil
}

// session runs every query of one request on a single pinned connection.
type session struct {
	conn *sql.Conn
}

var _ perm.Session = (*session)(nil)

func (s *session) Close() error { return s.conn.Close() }

func (s *session) ProjectByKey(ctx context.Context, key string) (perm.Project, error) {
	var p perm.Project
	err := s.conn.QueryRowContext(ctx, `
		select id, key, name from projects where key = $1
	`, key).Scan(&p.ID, &p.Key, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return perm.Project{}, fmt.Errorf("%w: project %q", perm.ErrNotFound, key)
	}
	if err != nil {
		return perm.Project{}, err
	}
	return p, nil
}

func (s *session) UserByLogin(ctx context.Context, login string) (perm.User, error) {
	var u perm.User
	err := s.conn.QueryRowContext(ctx, `
		select id, login, coalesce(name, ''), coalesce(email, '')
		from users where login = $1
	`, login).Scan(&u.ID, &u.Login, &u.Name, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return perm.User{}, fmt.Errorf("%w: user %q", perm.ErrNotFound, login)
	}
	if err != nil {
		return perm.User{}, err
	}
	return u, nil
}

// userFilter renders the shared text-search predicate. The page query
// and the count query must stay filter-identical.
func userFilter(q perm.Query) (string, []any) {
	if q.Search() == "" {
		return "", nil
	}
	pattern := "%" + strings.ToLower(q.Search()) + "%"
	where := `where (lower(u.login) like $1 or lower(coalesce(u.name, '')) like $1 or lower(coalesce(u.email, '')) like $1)`
	return where, []any{pattern}
}

func (s *session) SelectUserIDsByQuery(ctx context.Context, q perm.Query) ([]string, error) {
	where, args := userFilter(q)

	order := `order by lower(u.login) asc`
	if q.Permission() != "" {
		args = append(args, q.Permission(), q.Scope().ProjectID)
		order = fmt.Sprintf(`order by (case when exists (
			select 1 from user_permissions p
			where p.user_id = u.id and p.permission = $%d and coalesce(p.project_id, '') = $%d
		) then 0 else 1 end) asc, lower(u.login) asc`, len(args)-1, len(args))
	}

	args = append(args, q.PageSize(), q.Offset())
	stmt := fmt.Sprintf(`select u.id from users u %s %s limit $%d offset $%d`,
		where, order, len(args)-1, len(args))

	rows, err := s.conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	return result, rows.Err()
}

func (s *session) SelectUsersByIDs(ctx context.Context, userIDs []string) ([]perm.User, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(userIDs))
	args := make([]any, len(userIDs))
	for i, id := range userIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	stmt := fmt.Sprintf(`
		select id, login, coalesce(name, ''), coalesce(email, '')
		from users where id in (%s)
	`, strings.Join(placeholders, ", "))

	rows, err := s.conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []perm.User
	for rows.Next() {
		var u perm.User
		if err := rows.Scan(&u.ID, &u.Login, &u.Name, &u.Email); err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

func (s *session) CountUsersByQuery(ctx context.Context, q perm.Query) (int, error) {
	where, args := userFilter(q)
	stmt := fmt.Sprintf(`select count(1) from users u %s`, where)

	var total int
	if err := s.conn.QueryRowContext(ctx, stmt, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *session) SelectGrantsByUsers(ctx context.Context, scope perm.Scope, userIDs []string) ([]perm.Grant, error) {
	if len(userIDs) == 0 {
		return nil, errors.New("user id set is empty")
	}
	args := make([]any, 0, len(userIDs)+1)
	args = append(args, scope.ProjectID)
	placeholders := make([]string, len(userIDs))
	for i, id := range userIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}
	stmt := fmt.Sprintf(`
		select user_id, permission, coalesce(project_id, '')
		from user_permissions
		where coalesce(project_id, '') = $1 and user_id in (%s)
	`, strings.Join(placeholders, ", "))

	rows, err := s.conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []perm.Grant
	for rows.Next() {
		var g perm.Grant
		if err := rows.Scan(&g.UserID, &g.Permission, &g.ProjectID); err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

func (s *session) UserHasPermission(ctx context.Context, userID, kind string, scope perm.Scope) (bool, error) {
	var held bool
	err := s.conn.QueryRowContext(ctx, `
		select exists (
			select 1 from user_permissions
			where user_id = $1 and permission = $2 and coalesce(project_id, '') = $3
		)
	`, userID, kind, scope.ProjectID).Scan(&held)
	if err != nil {
		return false, err
	}
	return held, nil
}

func (s *session) InsertGrant(ctx context.Context, g perm.Grant) error {
	_, err := s.conn.ExecContext(ctx, `
		insert into user_permissions (id, user_id, permission, project_id)
		values ($1, $2, $3, nullif($4, ''))
		on conflict (user_id, permission, coalesce(project_id, '')) do nothing
	`, ids.New(), g.UserID, g.Permission, g.ProjectID)
	return err
}

func (s *session) DeleteGrant(ctx context.Context, g perm.Grant) error {
	res, err := s.conn.ExecContext(ctx, `
		delete from user_permissions
		where user_id = $1 and permission = $2 and coalesce(project_id, '') = $3
	`, g.UserID, g.Permission, g.ProjectID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: grant does not exist", perm.ErrNotFound)
	}
	return nil
}
