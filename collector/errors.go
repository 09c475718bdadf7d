package collector

import (
	"context"
	"errors"
	"fmt"

	"fareflow/models"
)

// ErrAborted is returned when the transaction was cancelled cooperatively.
// It is never recorded as a fare market fail code.
var ErrAborted = errors.New("transaction aborted")

// IsAborted reports whether err carries ErrAborted.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}

// checkAborted is the cooperative cancellation checkpoint.
func checkAborted(ctx context.Context, a Aborter) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrAborted, err)
	}
	if a.IsAborted() {
		return ErrAborted
	}
	return nil
}

var _ Aborter = (*models.Transaction)(nil)
