package tasks

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/guidemcp/gateway/internal/eventbus"
	"github.com/guidemcp/gateway/internal/render"
	"github.com/guidemcp/gateway/internal/session"
	"github.com/guidemcp/gateway/internal/taskmanager"
)

func writeTemplate(t *testing.T, root, relName, body string) {
	t.Helper()
	full := filepath.Join(root, relName+".md")
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(body), 0o644))
}

func newTestOpenSpecTask(t *testing.T, enabled bool) (*OpenSpecTask, *taskmanager.Manager, *session.Session) {
	t.Helper()
	templateRoot := t.TempDir()
	for _, name := range []string{
		"openspec-cli-check", "openspec-project-check", "openspec-version-check",
		"_commands/openspec/list", "_commands/openspec/_status-format",
		"_commands/openspec/_changes-format", "_commands/openspec/_show-format",
		"_commands/openspec/_error-format",
	} {
		writeTemplate(t, templateRoot, name, "rendered:"+name)
	}
	renderer := render.New(templateRoot)

	configDir := t.TempDir()
	cm, err := session.NewConfigManager(t.TempDir(), "/docroot")
	require.NoError(t, err)
	mgr := session.NewManager(cm)
	sess, err := mgr.GetOrCreateSession("scope", "proj", nil)
	require.NoError(t, err)

	if enabled {
		require.NoError(t, sess.ProjectFlags().Set(FlagOpenSpec, true))
	}

	tm := taskmanager.New()
	task := NewOpenSpecTask(tm, renderer, func() (*session.Session, error) { return sess, nil }, configDir)
	return task, tm, sess
}

func TestOpenSpecTask_OnTool_UnsubscribesWhenFlagDisabled(t *testing.T) {
	task, tm, _ := newTestOpenSpecTask(t, false)
	require.NoError(t, task.OnTool(context.Background()))

	stats := tm.GetTaskStatistics()
	require.Empty(t, stats.Running)
}

func TestOpenSpecTask_OnTool_StaysSubscribedWhenFlagEnabled(t *testing.T) {
	task, tm, _ := newTestOpenSpecTask(t, true)
	require.NoError(t, task.OnTool(context.Background()))

	stats := tm.GetTaskStatistics()
	require.NotEmpty(t, stats.Running)
}

func TestOpenSpecTask_HandleEvent_RequeuesTimerOnceBeforeOnTool(t *testing.T) {
	task, _, _ := newTestOpenSpecTask(t, true)
	handled, override, err := task.HandleEvent(context.Background(), eventbus.TimerOnce, nil)
	require.NoError(t, err)
	require.Nil(t, override)
	require.False(t, handled, "TIMER_ONCE must be requeued until on_tool has run")
}

func TestOpenSpecTask_HandleEvent_CommandDetection(t *testing.T) {
	task, tm, _ := newTestOpenSpecTask(t, true)
	require.NoError(t, task.OnTool(context.Background()))

	handled, _, err := task.HandleEvent(context.Background(), eventbus.FSCommand, map[string]any{
		"command": "openspec", "path": "/usr/local/bin/openspec", "found": true,
	})
	require.NoError(t, err)
	require.True(t, handled)
	require.NotNil(t, task.IsAvailable())
	require.True(t, *task.IsAvailable())
	require.Equal(t, true, tm.GetCachedData("openspec_available"))
}

func TestOpenSpecTask_HandleEvent_CommandNotFound(t *testing.T) {
	task, _, _ := newTestOpenSpecTask(t, true)
	require.NoError(t, task.OnTool(context.Background()))

	handled, _, _ := task.HandleEvent(context.Background(), eventbus.FSCommand, map[string]any{
		"command": "openspec", "path": "", "found": false,
	})
	require.True(t, handled)
	require.False(t, *task.IsAvailable())
}

func TestOpenSpecTask_HandleEvent_ProjectDetection(t *testing.T) {
	task, tm, _ := newTestOpenSpecTask(t, true)
	require.NoError(t, task.OnTool(context.Background()))

	handled, _, err := task.HandleEvent(context.Background(), eventbus.FSFileContent, map[string]any{
		"path": "openspec/project.md", "content": "# Project",
	})
	require.NoError(t, err)
	require.True(t, handled)
	require.True(t, *task.IsProjectEnabled())
	require.Equal(t, true, tm.GetCachedData("openspec_project_enabled"))
}

func TestOpenSpecTask_HandleEvent_VersionParsing(t *testing.T) {
	task, _, _ := newTestOpenSpecTask(t, true)
	handled, _, err := task.HandleEvent(context.Background(), eventbus.FSFileContent, map[string]any{
		"path": ".openspec-version.txt", "content": "openspec version v1.4.2\n",
	})
	require.NoError(t, err)
	require.True(t, handled)
	require.Equal(t, "1.4.2", *task.Version())
	require.True(t, task.HasVersion("1.0.0"))
	require.False(t, task.HasVersion("2.0.0"))
}

func TestOpenSpecTask_HandleEvent_ChangesCachedWithFlags(t *testing.T) {
	task, tm, _ := newTestOpenSpecTask(t, true)

	payload := map[string]any{
		"changes": []any{
			map[string]any{"name": "add-feature", "completedTasks": float64(0), "totalTasks": float64(0)},
			map[string]any{"name": "in-progress-item", "completedTasks": float64(2), "totalTasks": float64(5)},
			map[string]any{"name": "done-item", "completedTasks": float64(3), "totalTasks": float64(3)},
		},
	}
	content, err := json.Marshal(payload)
	require.NoError(t, err)

	handled, _, err := task.HandleEvent(context.Background(), eventbus.FSFileContent, map[string]any{
		"path": ".openspec-changes.json", "content": string(content),
	})
	require.NoError(t, err)
	require.True(t, handled)

	changes := task.Changes()
	require.Len(t, changes, 3)
	require.True(t, changes[0].IsDraft)
	require.True(t, changes[1].IsInProgress)
	require.True(t, changes[2].IsDone)
	require.NotNil(t, tm.GetCachedData("openspec_changes"))
}

func TestOpenSpecTask_HandleEvent_ErrorResponseQueuesInstruction(t *testing.T) {
	task, tm, _ := newTestOpenSpecTask(t, true)
	content := `{"error": "not found"}`

	handled, _, err := task.HandleEvent(context.Background(), eventbus.FSFileContent, map[string]any{
		"path": ".openspec-status.json", "content": content,
	})
	require.NoError(t, err)
	require.True(t, handled)

	_ = tm // instruction content asserted indirectly via ProcessResult in taskmanager tests
}

func TestOpenSpecTask_HandleEvent_NonJSONContentNotHandled(t *testing.T) {
	task, _, _ := newTestOpenSpecTask(t, true)
	handled, _, err := task.HandleEvent(context.Background(), eventbus.FSFileContent, map[string]any{
		"path": "some-other-file.txt", "content": "not json",
	})
	require.NoError(t, err)
	require.False(t, handled)
}

func TestFormatChangesListResponse_SortsInProgressFirstThenNewest(t *testing.T) {
	task, _, _ := newTestOpenSpecTask(t, true)

	changes := []OpenSpecChange{
		{Name: "old-done", Status: "done", CompletedTasks: 1, TotalTasks: 1, LastModified: "2024-01-01T00:00:00Z"},
		{Name: "new-in-progress", Status: "in-progress", CompletedTasks: 1, TotalTasks: 4, LastModified: "2024-06-01T00:00:00Z"},
		{Name: "newest-done", Status: "done", CompletedTasks: 2, TotalTasks: 2, LastModified: "2024-12-01T00:00:00Z"},
	}

	out, err := task.FormatChangesListResponse(changes)
	require.NoError(t, err)
	require.Contains(t, out, "rendered:_commands/openspec/_changes-format")
}

func TestHandleChangesReminder_SkipsWhenCacheFresh(t *testing.T) {
	task, _, _ := newTestOpenSpecTask(t, true)
	now := time.Now()
	task.mu.Lock()
	enabled := true
	task.projectEnabled = &enabled
	task.changesCache = []OpenSpecChange{{Name: "x"}}
	task.changesTimestamp = &now
	task.mu.Unlock()

	task.handleChangesReminder() // should not panic and should no-op silently
	require.True(t, task.cacheValidLocked())
}
