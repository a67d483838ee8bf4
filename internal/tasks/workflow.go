package tasks

import (
	"context"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/guidemcp/gateway/internal/eventbus"
	"github.com/guidemcp/gateway/internal/render"
	"github.com/guidemcp/gateway/internal/taskmanager"
	"github.com/guidemcp/gateway/internal/workflow"
)

// DefaultWorkflowFile is the project-relative path WorkflowMonitorTask
// watches when the caller doesn't override it.
const DefaultWorkflowFile = "WORKFLOW.md"

const (
	workflowInterval = 10 * time.Minute
	openspecInterval = time.Hour
	openspecCacheTTL = 24 * time.Hour

	openspecDir        = "openspec"
	openspecChangesDir = "changes"
)

// WorkflowMonitorTask watches a project's workflow-tracking markdown file
// for phase/issue/tracking/description/queue changes and turns them into
// rendered instructions and response overrides. Ported from
// workflow/tasks.py's WorkflowMonitorTask.
type WorkflowMonitorTask struct {
	workflowFilePath string
	tm               *taskmanager.Manager
	renderer         *render.Renderer

	mu         sync.Mutex
	setupDone  bool
}

// NewWorkflowMonitorTask constructs a WorkflowMonitorTask watching
// workflowFilePath (DefaultWorkflowFile if empty) and subscribes it to the
// task manager's three interest groups: workflow file/reminder, openspec
// reminder, and openspec/changes directory listings.
func NewWorkflowMonitorTask(tm *taskmanager.Manager, renderer *render.Renderer, workflowFilePath string) *WorkflowMonitorTask {
	if workflowFilePath == "" {
		workflowFilePath = DefaultWorkflowFile
	}
	t := &WorkflowMonitorTask{workflowFilePath: workflowFilePath, tm: tm, renderer: renderer}

	wfInterval := workflowInterval
	if err := tm.Subscribe(t, eventbus.Timer|eventbus.FSFileContent, &wfInterval); err != nil {
		slog.Warn("workflow_task.subscribe_failed", "error", err)
	}
	osInterval := openspecInterval
	if err := tm.Subscribe(t, eventbus.Timer, &osInterval); err != nil {
		slog.Warn("workflow_task.subscribe_failed", "error", err)
	}
	if err := tm.Subscribe(t, eventbus.FSDirectory, nil); err != nil {
		slog.Warn("workflow_task.subscribe_failed", "error", err)
	}

	return t
}

func (t *WorkflowMonitorTask) Name() string { return "WorkflowMonitorTask" }

func (t *WorkflowMonitorTask) OnInit(ctx context.Context) {}

// OnTool queues a one-time "monitoring setup" instruction the first time
// any tool runs after construction.
func (t *WorkflowMonitorTask) OnTool(ctx context.Context) error {
	t.mu.Lock()
	if t.setupDone {
		t.mu.Unlock()
		return nil
	}
	t.setupDone = true
	t.mu.Unlock()

	content, err := t.renderer.RenderCommon("workflow/monitoring-setup", nil, nil)
	if err != nil {
		slog.Warn("workflow_task.setup_render_failed", "error", err)
		return nil
	}
	t.tm.QueueInstruction(content)
	return nil
}

// HandleEvent implements eventbus.Task.
func (t *WorkflowMonitorTask) HandleEvent(ctx context.Context, eventType eventbus.EventType, data map[string]any) (bool, *eventbus.ResultOverride, error) {
	if eventType.Has(eventbus.Timer) {
		if interval, ok := data["timer_interval"].(*time.Duration); ok && interval != nil {
			switch *interval {
			case openspecInterval:
				t.handleOpenspecReminder()
				return true, nil, nil
			case workflowInterval:
				t.handleMonitoringReminder()
				return true, nil, nil
			}
		}
	}

	if eventType.Has(eventbus.FSDirectory) {
		if p, _ := data["path"].(string); p == path.Join(openspecDir, openspecChangesDir) {
			entries, _ := data["files"].([]map[string]any)
			t.handleOpenspecChangesListing(entries)
			return true, nil, nil
		}
	}

	if eventType.Has(eventbus.FSFileContent) {
		filePath, _ := data["path"].(string)
		if filePath != "" && path.Base(filePath) == path.Base(t.workflowFilePath) {
			content, _ := data["content"].(string)
			t.processWorkflowContent(content)
			return true, nil, nil
		}
	}

	return false, nil, nil
}

func (t *WorkflowMonitorTask) handleMonitoringReminder() {
	content, err := t.renderer.RenderCommon("workflow/monitoring-reminder", nil, nil)
	if err != nil {
		slog.Warn("workflow_task.reminder_render_failed", "error", err)
		return
	}
	t.tm.QueueInstruction(content)
}

func (t *WorkflowMonitorTask) handleOpenspecReminder() {
	content, err := t.renderer.RenderCommon("workflow/openspec-changes-check", nil, nil)
	if err != nil {
		slog.Warn("workflow_task.openspec_reminder_render_failed", "error", err)
		return
	}
	t.tm.QueueInstruction(content)
}

func (t *WorkflowMonitorTask) requestOpenspecChangesListing() {
	content, err := t.renderer.RenderCommon("workflow/openspec-changes-check", nil, nil)
	if err != nil {
		slog.Warn("workflow_task.openspec_request_render_failed", "error", err)
		return
	}
	t.tm.QueueInstruction(content)
}

func (t *WorkflowMonitorTask) handleOpenspecChangesListing(entries []map[string]any) {
	var names []string
	for _, e := range entries {
		if kind, _ := e["type"].(string); kind == "directory" {
			if name, _ := e["name"].(string); name != "" {
				names = append(names, name)
			}
		}
	}
	t.tm.SetCachedData("openspec_changes_list", names)
	t.tm.SetCachedData("openspec_changes_timestamp", time.Now())
	slog.Debug("workflow_task.openspec_changes_cached", "count", len(names))
}

func (t *WorkflowMonitorTask) processWorkflowContent(content string) {
	newState := workflow.ParseState(content)
	if newState == nil {
		slog.Warn("workflow_task.parse_failed")
		return
	}

	oldState, _ := t.tm.GetCachedData("workflow_state").(*workflow.State)
	changes := workflow.DetectChanges(oldState, newState)

	if len(changes) > 0 {
		if changeContent := t.renderChanges(changes); changeContent != "" {
			t.tm.SetCachedData("workflow_change_content", changeContent)
		}
	}

	if content, err := t.renderer.RenderCommon("workflow/monitoring-result", nil, nil); err == nil {
		t.tm.QueueInstruction(content)
	} else {
		slog.Warn("workflow_task.monitoring_result_render_failed", "error", err)
	}

	t.tm.SetCachedData("workflow_state", newState)

	if oldState != nil && oldState.Issue != newState.Issue {
		t.requestOpenspecChangesListing()
	}

	isOpenspecChange := t.detectOpenspecChange(newState.Issue)
	t.tm.SetCachedData("openspec_current_change", isOpenspecChange)
}

func (t *WorkflowMonitorTask) renderChanges(changes []workflow.ChangeEvent) string {
	var rendered []string
	for _, c := range changes {
		tmpl := workflow.TemplateForChange(c)
		content, err := t.renderer.RenderCommon(tmpl, nil, map[string]any{
			"old_value": c.OldValue,
			"new_value": c.NewValue,
		})
		if err != nil {
			slog.Warn("workflow_task.change_render_failed", "template", tmpl, "error", err)
			continue
		}
		rendered = append(rendered, content)
	}
	return strings.Join(rendered, "\n")
}

func (t *WorkflowMonitorTask) detectOpenspecChange(issueName string) bool {
	if issueName == "" {
		return false
	}

	names, _ := t.tm.GetCachedData("openspec_changes_list").([]string)
	ts, _ := t.tm.GetCachedData("openspec_changes_timestamp").(time.Time)

	expired := !ts.IsZero() && time.Since(ts) > openspecCacheTTL
	if names == nil || expired {
		t.requestOpenspecChangesListing()
		return false
	}

	for _, n := range names {
		if n == issueName {
			return true
		}
	}
	return false
}
