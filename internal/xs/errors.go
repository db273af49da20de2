package xs

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the services wraps exactly one of
// these (NotAuthenticated may additionally be wrapped in ErrCollaborator).
var (
	ErrValidation       = errors.New("validation error")
	ErrContentTooLong   = errors.New("content too long")
	ErrInvalidState     = errors.New("invalid state")
	ErrInvalidTime      = errors.New("invalid time")
	ErrNotFound         = errors.New("not found")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrCollaborator     = errors.New("collaborator error")
	ErrBudgetExceeded   = errors.New("budget exceeded")
	ErrStore            = errors.New("store error")
)

var errorKinds = []struct {
	err  error
	name string
	code int
}{
	{ErrValidation, "ValidationError", 2},
	{ErrContentTooLong, "ContentTooLong", 3},
	{ErrInvalidState, "InvalidState", 4},
	{ErrInvalidTime, "InvalidTime", 5},
	{ErrNotFound, "NotFound", 6},
	// checked before ErrCollaborator: an auth failure reported by a collaborator wraps both
	{ErrNotAuthenticated, "NotAuthenticated", 7},
	{ErrCollaborator, "CollaboratorError", 8},
	{ErrBudgetExceeded, "BudgetExceeded", 9},
	{ErrStore, "StoreError", 10},
}

// Kind names the error kind of err, or "Error" for anything unclassified.
func Kind(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Error"
}

// ExitCode maps err to the process exit status. nil maps to 0.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return 1
}

func kindError(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

func collaboratorError(name string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrCollaborator, name, err)
}
