package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/guidemcp/gateway/internal/eventbus"
)

// Dispatcher is the subset of taskmanager.Manager the pipeline wrapper
// needs, kept as an interface here to avoid an import cycle back into
// taskmanager (which already imports pipeline for the Result type).
type Dispatcher interface {
	OnTool(ctx context.Context)
	ProcessResult(ctx context.Context, result *Result, eventType eventbus.EventType) *Result
}

// Body is a tool or prompt implementation: it receives validated arguments
// and returns the Result the pipeline will serialise back to the agent.
type Body func(ctx context.Context, args map[string]any) *Result

// Wrap implements the Tool/Prompt Pipeline's decorator contract: log the
// call, run the task manager's pre-hook, execute body, repackage a body
// panic as an unexpected-error Result, then run the post-hook so any
// pending instruction or response-value override is folded in.
func Wrap(name string, dispatcher Dispatcher, body Body) Body {
	return func(ctx context.Context, args map[string]any) (result *Result) {
		invocationID := uuid.NewString()
		slog.Debug("pipeline.invoke", "tool", name, "invocation_id", invocationID)
		dispatcher.OnTool(ctx)

		defer func() {
			if r := recover(); r != nil {
				slog.Error("pipeline.body_panic", "tool", name, "invocation_id", invocationID, "panic", r)
				result = Failure(ErrUnexpected, "internal error", "")
			}
			result = dispatcher.ProcessResult(ctx, result, eventbus.EventType(0))
		}()

		result = body(ctx, args)
		if result == nil {
			result = Ok(nil)
		}
		return result
	}
}
