package cli

import (
	"errors"

	"github.com/diillson/leasing-bi-pipeline/internal/shared/types"
)

// Process exit codes for terminal run statuses.
const (
	ExitOK                = 0
	ExitFailure           = 1
	ExitStructural        = 2
	ExitQualityViolation  = 3
	ExitAmbiguousDeletion = 4
	ExitLockHeld          = 5
)

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, types.ErrStructural):
		return ExitStructural
	case errors.Is(err, types.ErrQualityViolation):
		return ExitQualityViolation
	case errors.Is(err, types.ErrAmbiguousDeletion):
		return ExitAmbiguousDeletion
	case errors.Is(err, types.ErrLockHeld):
		return ExitLockHeld
	}
	return ExitFailure
}
