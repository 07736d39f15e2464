package perm

import (
	"fmt"
	"strings"
)

const (
	// DefaultPageSize applies when the caller does not request a size.
	DefaultPageSize = 20
	// MaxPageSize bounds a single page.
	MaxPageSize = 100
	// MinSearchLength is the shortest accepted text filter.
	MinSearchLength = 3
)

// QueryParams carries the raw filter inputs of one listing request.
// Zero page index and page size select the defaults.
type QueryParams struct {
	Search     string
	Permission string
	PageIndex  int
	PageSize   int
}

// Query is the validated, immutable specification of one listing
// request. It is constructed exactly once per request; every storage
// query of that request (page, count, grants) evaluates against the
// same Query or its Scope.
type Query struct {
	scope      Scope
	search     string
	permission string
	pageIndex  int
	pageSize   int
}

// NewQuery validates the raw parameters against the resolved scope and
// builds a Query. It has no side effects.
func NewQuery(scope Scope, p QueryParams) (Query, error) {
	search := strings.TrimSpace(p.Search)
	if search != "" && len(search) < MinSearchLength {
		return Query{}, fmt.Errorf("%w: search text must be at least %d characters", ErrInvalidInput, MinSearchLength)
	}

	permission := strings.TrimSpace(p.Permission)
	if permission != "" {
		if err := ValidateKind(permission, scope); err != nil {
			return Query{}, err
		}
	}

	pageIndex := p.PageIndex
	if pageIndex == 0 {
		pageIndex = 1
	}
	if pageIndex < 0 {
		return Query{}, fmt.Errorf("%w: page index must be positive", ErrInvalidInput)
	}

	pageSize := p.PageSize
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	if pageSize < 0 {
		return Query{}, fmt.Errorf("%w: page size must be positive", ErrInvalidInput)
	}
	if pageSize > MaxPageSize {
		return Query{}, fmt.Errorf("%w: page size must not exceed %d", ErrInvalidInput, MaxPageSize)
	}

	return Query{
		scope:      scope,
		search:     search,
		permission: permission,
		pageIndex:  pageIndex,
		pageSize:   pageSize,
	}, nil
}

func (q Query) Scope() Scope       { return q.scope }
func (q Query) Search() string     { return q.search }
func (q Query) Permission() string { return q.permission }
func (q Query) PageIndex() int     { return q.pageIndex }
func (q Query) PageSize() int      { return q.pageSize }

// Offset returns the number of rows preceding the requested page.
func (q Query) Offset() int { return (q.pageIndex - 1) * q.pageSize }
