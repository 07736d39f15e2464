package perm

import "fmt"

// NewPaging builds paging metadata for a page. Total comes from a count
// query executed separately from the page fetch; no attempt is made to
// reconcile it with the fetched page length, concurrent writes between
// the two round-trips may leave them slightly apart.
func NewPaging(pageIndex, pageSize, total int) (Paging, error) {
	if pageIndex <= 0 {
		return Paging{}, fmt.Errorf("%w: page index must be positive", ErrInvalidInput)
	}
	if pageSize <= 0 {
		return Paging{}, fmt.Errorf("%w: page size must be positive", ErrInvalidInput)
	}
	if total < 0 {
		return Paging{}, fmt.Errorf("%w: total must not be negative", ErrInvalidInput)
	}
	return Paging{PageIndex: pageIndex, PageSize: pageSize, Total: total}, nil
}
