package templatectx

import (
	"runtime"
	"time"

	"github.com/guidemcp/gateway/internal/session"
	"github.com/guidemcp/gateway/internal/tasks"
	"github.com/guidemcp/gateway/internal/taskmanager"
	"github.com/guidemcp/gateway/internal/workflow"
)

// SystemContext returns the static os/platform/runtime-version values.
func SystemContext() map[string]any {
	return map[string]any{
		"os":              runtime.GOOS,
		"platform":        runtime.GOOS + "/" + runtime.GOARCH,
		"runtime_version": runtime.Version(),
	}
}

// ClientContext reads whatever ClientInfoTask cached under
// client_os_info/client_context_info.
func ClientContext(tm *taskmanager.Manager) map[string]any {
	out := map[string]any{}
	if v := tm.GetCachedData("client_os_info"); v != nil {
		out["os_info"] = v
	}
	if v := tm.GetCachedData("client_context_info"); v != nil {
		out["context_info"] = v
	}
	return out
}

// AgentContext composes the tool-prefix/content-style/openspec/tasks
// sub-context described in the spec's agent branch. It sets no @-prefix
// value.
func AgentContext(tm *taskmanager.Manager, toolPrefix string, openspecTask *tasks.OpenSpecTask, contentStyle string) map[string]any {
	out := map[string]any{
		"tool_prefix":  toolPrefix,
		"content_style": contentStyle,
	}

	if openspecTask != nil {
		openspec := map[string]any{
			"available":        deref(openspecTask.IsAvailable()),
			"project_enabled":  deref(openspecTask.IsProjectEnabled()),
			"version":          derefStr(openspecTask.Version()),
			"has_version": func(min string) bool {
				return openspecTask.HasVersion(min)
			},
			"changes": openspecTask.Changes(),
		}
		out["openspec"] = openspec
	}

	stats := tm.GetTaskStatistics()
	out["tasks"] = map[string]any{
		"count":            stats.Count,
		"peak_count":       stats.PeakCount,
		"total_timer_runs": stats.TotalTimerRuns,
	}

	return out
}

func deref(b *bool) bool {
	if b == nil {
		return false
	}
	return *b
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ProjectContext normalises the project's categories/collections/flags for
// template consumption; categories get a pre-formatted patterns_str and
// collections a categories_str, matching the teacher's habit of
// pre-formatting list fields for direct template interpolation. When the
// project's "workflow" flag is enabled, a resolved workflow sub-context
// (phases, file, consent, current/next phase) is added from the task
// manager's cached WorkflowMonitorTask state.
func ProjectContext(project *session.Project, cwd string, tm *taskmanager.Manager) map[string]any {
	if project == nil {
		return map[string]any{}
	}

	categories := make([]map[string]any, 0, len(project.CategoryOrder))
	for _, name := range project.CategoryOrder {
		cat := project.Categories[name]
		categories = append(categories, map[string]any{
			"name":         cat.Name,
			"description":  cat.Description,
			"patterns":     cat.Patterns,
			"patterns_str": joinComma(cat.Patterns),
		})
	}

	collections := make([]map[string]any, 0, len(project.CollectionOrder))
	for _, name := range project.CollectionOrder {
		col := project.Collections[name]
		collections = append(collections, map[string]any{
			"name":           col.Name,
			"description":    col.Description,
			"categories":     col.Categories,
			"categories_str": joinComma(col.Categories),
		})
	}

	out := map[string]any{
		"name":        project.Name,
		"categories":  categories,
		"collections": collections,
		"flags":       project.Flags,
		"cwd":         cwd,
	}

	if enabled, _ := project.Flags["workflow"].(bool); enabled && tm != nil {
		out["workflow"] = workflowContext(tm)
	}

	return out
}

// phaseSequence mirrors the ordered phase labels WORKFLOW.md files are
// expected to progress through; used to derive "next phase" for the
// workflow sub-context.
var phaseSequence = []string{"design", "implementation", "review", "done"}

func workflowContext(tm *taskmanager.Manager) map[string]any {
	state, _ := tm.GetCachedData("workflow_state").(*workflow.State)
	out := map[string]any{
		"file":    tasksWorkflowFile(tm),
		"consent": false,
	}
	if state == nil {
		return out
	}

	out["phase"] = state.Phase
	out["issue"] = state.Issue
	out["tracking"] = state.Tracking
	out["description"] = state.Description
	out["queue"] = state.Queue
	out["consent"] = state.Issue != ""

	for i, phase := range phaseSequence {
		if phase == state.Phase {
			out["phases"] = phaseSequence
			if i+1 < len(phaseSequence) {
				out["next_phase"] = phaseSequence[i+1]
			}
			break
		}
	}
	return out
}

func tasksWorkflowFile(tm *taskmanager.Manager) string {
	if v, ok := tm.GetCachedData("workflow_file").(string); ok && v != "" {
		return v
	}
	return "WORKFLOW.md"
}

func joinComma(items []string) string {
	out := ""
	for i, item := range items {
		if i > 0 {
			out += ", "
		}
		out += item
	}
	return out
}

// TransientContext returns the always-fresh timestamp family rebuilt on
// every render — never passed through the core memo.
func TransientContext(now time.Time) map[string]any {
	utc := now.UTC()
	return map[string]any{
		"timestamp":    now.Unix(),
		"timestamp_ms": now.UnixMilli(),
		"timestamp_ns": now.UnixNano(),
		"now": map[string]any{
			"date":     now.Format("2006-01-02"),
			"day":      now.Format("Monday"),
			"time":     now.Format("15:04:05"),
			"tz":       now.Format("-0700"),
			"datetime": now.Format(time.RFC3339),
		},
		"now_utc": map[string]any{
			"date":     utc.Format("2006-01-02"),
			"day":      utc.Format("Monday"),
			"time":     utc.Format("15:04:05"),
			"tz":       "UTC",
			"datetime": utc.Format(time.RFC3339),
		},
	}
}
