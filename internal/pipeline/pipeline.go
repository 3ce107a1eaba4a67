// Package pipeline implements C3: the four-stage Ingest → Clean → Normalize
// → Publish pipeline every orchestrator run drives. Every stage is
// polymorphic over model.PipelineResult[T] and never mutates its input
// slice.
package pipeline

import (
	"context"
	"errors"

	"github.com/gwicho38/polidisc/internal/model"
)

// Sentinel errors a stage wraps into its PipelineResult.CollectedErrors,
// giving the orchestrator and CLI a stable taxonomy to branch on (§7).
var (
	ErrMissingRequiredField   = errors.New("pipeline: required field missing")
	ErrUnparseableDate        = errors.New("pipeline: could not parse date against any known format")
	ErrInvalidTransactionType = errors.New("pipeline: transaction type not in valid set")
	ErrCancelled              = errors.New("pipeline: stage cancelled")
)

// Options carries the per-run configuration flags the Clean/Publish stages
// branch on.
type Options struct {
	RemoveDuplicates bool
	StrictValidation bool
	SkipDuplicates   bool
	UpdateExisting   bool
}

// checkCancelled returns ErrCancelled if ctx has been cancelled, nil
// otherwise. Every stage calls this once per record so cancellation takes
// effect between records rather than only between stages.
func checkCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ErrCancelled
	default:
		return nil
	}
}

// statusFor applies the uniform status rule every stage in this package
// follows (§4.3.2): output with no failures is success, output with some
// failures is partial_success, zero output is failed.
func statusFor(output, failed int) model.PipelineStatus {
	switch {
	case output > 0 && failed == 0:
		return model.StatusSuccess
	case output > 0 && failed > 0:
		return model.StatusPartialSuccess
	default:
		return model.StatusFailed
	}
}
