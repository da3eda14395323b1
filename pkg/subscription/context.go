package subscription

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/logger"
)

type runIDCtxKey struct{}

// SetRunIDToContext tags ctx with the identifier of the lifecycle run it belongs to.
func SetRunIDToContext(ctx context.Context, runID uuid.UUID) context.Context {
	return context.WithValue(ctx, runIDCtxKey{}, runID)
}

func GetRunIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	runID, ok := ctx.Value(runIDCtxKey{}).(uuid.UUID)
	return runID, ok
}

// RunIDExtractor is a logger.ContextExtractor that adds the current run ID to every
// record logged with a run context, including records from stores and sinks.
func RunIDExtractor(ctx context.Context) (slog.Attr, bool) {
	runID, ok := GetRunIDFromContext(ctx)
	if !ok {
		return slog.Attr{}, false
	}
	return logger.RunID(runID), true
}
