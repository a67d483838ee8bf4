package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/guidemcp/gateway/internal/eventbus"
	"github.com/guidemcp/gateway/internal/render"
	"github.com/guidemcp/gateway/internal/taskmanager"
)

// ClientInfoTask caches the agent-reported host OS and working-directory
// context used by the "client" branch of the template context chain.
// Reconstructed from the cache-key contract (client_os_info,
// client_context_info) documented alongside the other Task Manager
// blackboard keys — the original Python module providing this Task was
// filtered from the retrieval pack, so its body is kept deliberately
// small and grounded purely in that contract, in the same subscribe/
// handle_event shape as OpenSpecTask and WorkflowMonitorTask.
type ClientInfoTask struct {
	tm       *taskmanager.Manager
	renderer *render.Renderer

	mu       sync.Mutex
	requested bool
}

// NewClientInfoTask subscribes to a startup TIMER_ONCE and to FS_CWD,
// the only event carrying the agent's working directory.
func NewClientInfoTask(tm *taskmanager.Manager, renderer *render.Renderer) *ClientInfoTask {
	t := &ClientInfoTask{tm: tm, renderer: renderer}

	startup := 2 * time.Second
	if err := tm.Subscribe(t, eventbus.TimerOnce|eventbus.FSCwd, &startup); err != nil {
		slog.Warn("client_info_task.subscribe_failed", "error", err)
	}
	return t
}

func (t *ClientInfoTask) Name() string { return "ClientInfoTask" }

func (t *ClientInfoTask) OnInit(ctx context.Context) {}

func (t *ClientInfoTask) OnTool(ctx context.Context) error { return nil }

// HandleEvent implements eventbus.Task.
func (t *ClientInfoTask) HandleEvent(ctx context.Context, eventType eventbus.EventType, data map[string]any) (bool, *eventbus.ResultOverride, error) {
	if eventType.Has(eventbus.TimerOnce) {
		t.mu.Lock()
		already := t.requested
		t.requested = true
		t.mu.Unlock()

		if !already {
			t.requestWorkingDirectory()
		}
		return true, nil, nil
	}

	if eventType.Has(eventbus.FSCwd) {
		t.handleCwd(data)
		return true, nil, nil
	}

	return false, nil, nil
}

func (t *ClientInfoTask) requestWorkingDirectory() {
	content, err := t.renderer.RenderCommon("client/working-directory-request", nil, nil)
	if err != nil {
		slog.Debug("client_info_task.render_failed", "error", err)
		return
	}
	t.tm.QueueInstruction(content)
}

func (t *ClientInfoTask) handleCwd(data map[string]any) {
	cwd, _ := data["cwd"].(string)
	osName, _ := data["os"].(string)

	t.tm.SetCachedData("client_os_info", map[string]any{"os": osName})
	t.tm.SetCachedData("client_context_info", map[string]any{"cwd": cwd})
	slog.Debug("client_info_task.cwd_cached", "cwd", cwd, "os", osName)
}
