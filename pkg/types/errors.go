package types

import "errors"

// Lifecycle errors.
var (
	ErrDetached        = errors.New("tracker is detached")
	ErrAlreadyAttached = errors.New("tracker is already attached")
)

// Validation errors. Requests failing with these are rejected before any
// store is touched.
var (
	ErrInvalidID        = errors.New("invalid entity id")
	ErrInvalidKind      = errors.New("invalid entity kind")
	ErrMissingTitle     = errors.New("title must not be empty")
	ErrMissingParent    = errors.New("missing parent")
	ErrInvalidParent    = errors.New("invalid parent")
	ErrParentNotFound   = errors.New("parent not found")
	ErrParentMismatch   = errors.New("parent belongs to a different project")
	ErrInvalidDirection = errors.New("invalid dependency direction")
	ErrSelfDependency   = errors.New("entity cannot depend on itself")
	ErrHasChildren      = errors.New("entity has children")
	ErrEmptyContent     = errors.New("content must not be empty")
	ErrEmptyName        = errors.New("name must not be empty")
)

// Lookup errors.
var (
	ErrNotFound = errors.New("entity not found")
)

// ErrIndexDrift reports that the search index or dependency graph disagrees
// with the entity store. It is returned by commands that verify without fixing.
var ErrIndexDrift = errors.New("index drift detected")

var validationErrors = []error{
	ErrInvalidID,
	ErrInvalidKind,
	ErrMissingTitle,
	ErrMissingParent,
	ErrInvalidParent,
	ErrParentNotFound,
	ErrParentMismatch,
	ErrInvalidDirection,
	ErrSelfDependency,
	ErrHasChildren,
	ErrEmptyContent,
	ErrEmptyName,
	ErrNotFound,
}

// IsValidation reports whether err is a rejected-request error rather than a
// storage failure.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
