package advisor

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrUpstream marks an exchange aborted by a collaborator failure: the
	// model, the retrieval engine or persistence.
	ErrUpstream = errors.New("upstream failure")
	// ErrTimeout marks an exchange aborted because its deadline expired.
	ErrTimeout = errors.New("deadline exceeded")
)

// Classify tags err with ErrTimeout or ErrUpstream. Cancellation by the
// caller is passed through untouched.
func Classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrUpstream):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
}
