package eventbus

import "context"

// ResultOverride lets a Task's handler request that the pipeline replace
// the response value of whatever tool invocation is currently in flight,
// rather than merely signalling that the event was handled.
type ResultOverride struct {
	Value any
}

// Task is the subscriber interface. Implementations register themselves
// with the task manager on construction (the Go analogue of the source's
// "register on construction" class decorator is simply calling Subscribe
// from the constructor).
type Task interface {
	// Name returns a readable identifier used in logs and statistics.
	Name() string

	// OnTool is invoked once before every tool/prompt body runs.
	OnTool(ctx context.Context) error

	// OnInit is invoked once after server start.
	OnInit(ctx context.Context)

	// HandleEvent is invoked for every dispatched event whose type
	// intersects this task's subscription mask. The bool return reports
	// whether the event was handled; a non-nil ResultOverride additionally
	// asks the pipeline to replace the in-flight response value.
	HandleEvent(ctx context.Context, eventType EventType, data map[string]any) (bool, *ResultOverride, error)
}
