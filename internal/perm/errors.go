package perm

import "errors"

var (
	ErrInvalidInput     = errors.New("perm: invalid input")
	ErrNotFound         = errors.New("perm: not found")
	ErrPermissionDenied = errors.New("perm: permission denied")
)
