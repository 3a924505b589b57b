// Package ledger keeps per-user balances and per-goal progress correct and
// atomic: every public operation runs as one unit of work against the store
// and returns either a success payload or exactly one typed failure.
package ledger

import (
	"errors"
	"fmt"
)

// Failure taxonomy. Callers classify results with errors.Is; nothing else
// crosses the package boundary.
var (
	// ErrValidation marks malformed or out-of-range input, rejected before
	// any mutation.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a referenced user, transaction or goal that is
	// absent or inactive.
	ErrNotFound = errors.New("not found")
	// ErrNoOp marks a state toggle that is already in the requested state.
	ErrNoOp = errors.New("already in requested state")
	// ErrConflict marks a unit of work that kept losing optimistic retries.
	ErrConflict = errors.New("concurrent update conflict")
	// ErrGoalOverflow marks a progress event that would push a goal past
	// its overshoot cap.
	ErrGoalOverflow = errors.New("goal amount would exceed overshoot cap")
	// ErrTimeout marks a unit of work aborted by the caller's deadline;
	// nothing was persisted and the call is safe to retry.
	ErrTimeout = errors.New("operation timed out")
	// ErrStorage marks an unavailable store after bounded retries.
	ErrStorage = errors.New("storage unavailable")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
