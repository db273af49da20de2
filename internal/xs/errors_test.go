package xs_test

import (
	"errors"
	"fmt"
	"testing"

	"xsched/internal/xs"
)

func TestKindAndExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind string
		wantCode int
	}{
		{"nil", nil, "Error", 0},
		{"unclassified", errors.New("boom"), "Error", 1},
		{"validation", fmt.Errorf("%w: bad id", xs.ErrValidation), "ValidationError", 2},
		{"too long", xs.ErrContentTooLong, "ContentTooLong", 3},
		{"invalid state", fmt.Errorf("wrapped: %w", xs.ErrInvalidState), "InvalidState", 4},
		{"invalid time", xs.ErrInvalidTime, "InvalidTime", 5},
		{"not found", xs.ErrNotFound, "NotFound", 6},
		{"not authenticated", xs.ErrNotAuthenticated, "NotAuthenticated", 7},
		{"auth failure from collaborator", fmt.Errorf("%w: %w", xs.ErrCollaborator, xs.ErrNotAuthenticated), "NotAuthenticated", 7},
		{"collaborator", xs.ErrCollaborator, "CollaboratorError", 8},
		{"budget", xs.ErrBudgetExceeded, "BudgetExceeded", 9},
		{"store", xs.ErrStore, "StoreError", 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err != nil {
				if got := xs.Kind(tt.err); got != tt.wantKind {
					t.Errorf("Kind() = %q, want %q", got, tt.wantKind)
				}
			}
			if got := xs.ExitCode(tt.err); got != tt.wantCode {
				t.Errorf("ExitCode() = %d, want %d", got, tt.wantCode)
			}
		})
	}
}
