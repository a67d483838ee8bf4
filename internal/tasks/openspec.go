// Package tasks implements the concrete Task subscribers that observe
// agent-reported filesystem events and drive context-sensitive guidance:
// OpenSpec CLI/project detection and the workflow-state monitor. Ported
// from client_context/openspec_task.py and workflow/tasks.py.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/guidemcp/gateway/internal/eventbus"
	"github.com/guidemcp/gateway/internal/render"
	"github.com/guidemcp/gateway/internal/session"
	"github.com/guidemcp/gateway/internal/taskmanager"
)

// FlagOpenSpec is the feature-flag name gating OpenSpec integration.
const FlagOpenSpec = "openspec"

const (
	changesCacheTTL      = time.Hour
	changesCheckInterval = time.Hour
)

var semverRegex = regexp.MustCompile(`v?(\d+\.\d+\.\d+)`)

// SessionResolver returns the session relevant to the current invocation,
// the Go analogue of calling get_or_create_session() with no arguments.
type SessionResolver func() (*session.Session, error)

// OpenSpecChange is one entry from .openspec-changes.json, annotated with
// the boolean filter flags templates key off of.
type OpenSpecChange struct {
	Name            string `json:"name"`
	Status          string `json:"status,omitempty"`
	CompletedTasks  int    `json:"completedTasks"`
	TotalTasks      int    `json:"totalTasks"`
	LastModified    string `json:"lastModified,omitempty"`
	IsDraft         bool   `json:"is_draft"`
	IsDone          bool   `json:"is_done"`
	IsInProgress    bool   `json:"is_in_progress"`
	Progress        string `json:"progress,omitempty"`
}

// OpenSpecTask detects whether the `openspec` CLI is installed, whether
// the current project has OpenSpec initialised, and keeps a periodically
// refreshed cache of its change list.
type OpenSpecTask struct {
	tm         *taskmanager.Manager
	renderer   *render.Renderer
	resolveSession SessionResolver
	configDir  string

	mu               sync.Mutex
	flagChecked      bool
	cliRequested     bool
	available        *bool
	projectRequested bool
	projectEnabled   *bool
	versionRequested bool
	version          *string
	changesRequested bool
	changesCache     []OpenSpecChange
	changesTimestamp *time.Time
}

// NewOpenSpecTask constructs an OpenSpecTask and subscribes it to the
// task manager: a startup TIMER_ONCE (plus the FS event types it reacts
// to) at a 5s interval, and a recurring TIMER at changesCheckInterval for
// periodic changes-cache refresh.
func NewOpenSpecTask(tm *taskmanager.Manager, renderer *render.Renderer, resolveSession SessionResolver, configDir string) *OpenSpecTask {
	t := &OpenSpecTask{tm: tm, renderer: renderer, resolveSession: resolveSession, configDir: configDir}

	startupInterval := 5 * time.Second
	if err := tm.Subscribe(t, eventbus.TimerOnce|eventbus.FSCommand|eventbus.FSDirectory|eventbus.FSFileContent, &startupInterval); err != nil {
		slog.Warn("openspec_task.subscribe_failed", "error", err)
	}

	changesInterval := changesCheckInterval
	if err := tm.Subscribe(t, eventbus.Timer, &changesInterval); err != nil {
		slog.Warn("openspec_task.subscribe_failed", "error", err)
	}

	return t
}

func (t *OpenSpecTask) Name() string { return "OpenSpecTask" }

func (t *OpenSpecTask) OnInit(ctx context.Context) {}

// OnTool checks the openspec feature flag exactly once per task lifetime;
// if disabled, the task unsubscribes itself entirely.
func (t *OpenSpecTask) OnTool(ctx context.Context) error {
	t.mu.Lock()
	if t.flagChecked {
		t.mu.Unlock()
		return nil
	}
	t.flagChecked = true
	t.mu.Unlock()

	enabled, err := t.flagEnabled()
	if err != nil || !enabled {
		t.tm.Unsubscribe(t)
	}
	return nil
}

func (t *OpenSpecTask) flagEnabled() (bool, error) {
	sess, err := t.resolveSession()
	if err != nil {
		return false, err
	}
	v, ok, err := session.ResolvedFlag(sess, t.configDir, FlagOpenSpec)
	if err != nil || !ok {
		return false, err
	}
	b, _ := v.(bool)
	return b, nil
}

// IsAvailable reports whether the CLI was found (nil until checked).
func (t *OpenSpecTask) IsAvailable() *bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.available
}

// IsProjectEnabled reports whether the current project has OpenSpec
// initialised (nil until checked).
func (t *OpenSpecTask) IsProjectEnabled() *bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.projectEnabled
}

// Version returns the detected CLI version, or nil.
func (t *OpenSpecTask) Version() *string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.version
}

// HasVersion reports whether the detected version is >= min (simple
// dotted-integer comparison; sufficient for "x.y.z" semver strings).
func (t *OpenSpecTask) HasVersion(min string) bool {
	t.mu.Lock()
	v := t.version
	t.mu.Unlock()
	if v == nil {
		return false
	}
	return compareVersions(*v, min) >= 0
}

func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var an, bn int
		if i < len(as) {
			an, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bn, _ = strconv.Atoi(bs[i])
		}
		if an != bn {
			if an < bn {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Changes returns the cached changes list if it is still within TTL.
func (t *OpenSpecTask) Changes() []OpenSpecChange {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.cacheValidLocked() {
		return nil
	}
	return t.changesCache
}

func (t *OpenSpecTask) cacheValidLocked() bool {
	if t.changesCache == nil || t.changesTimestamp == nil {
		return false
	}
	return time.Since(*t.changesTimestamp) < changesCacheTTL
}

func (t *OpenSpecTask) requestCLICheck() {
	content, err := t.renderer.RenderCommon("openspec-cli-check", nil, nil)
	if err != nil {
		slog.Debug("openspec_task.render_failed", "template", "openspec-cli-check", "error", err)
		return
	}
	t.tm.QueueInstruction(content)
}

func (t *OpenSpecTask) requestProjectCheck() {
	content, err := t.renderer.RenderCommon("openspec-project-check", nil, nil)
	if err != nil {
		slog.Debug("openspec_task.render_failed", "template", "openspec-project-check", "error", err)
		return
	}
	t.tm.QueueInstruction(content)
}

func (t *OpenSpecTask) requestVersionCheck() {
	content, err := t.renderer.RenderCommon("openspec-version-check", nil, nil)
	if err != nil {
		slog.Debug("openspec_task.render_failed", "template", "openspec-version-check", "error", err)
		return
	}
	t.tm.QueueInstruction(content)
}

func (t *OpenSpecTask) requestChangesJSON() {
	content, err := t.renderer.RenderCommon("_commands/openspec/list", nil, nil)
	if err != nil {
		slog.Debug("openspec_task.render_failed", "template", "_commands/openspec/list", "error", err)
		return
	}
	t.tm.QueueInstruction(content)
}

// HandleEvent implements eventbus.Task.
func (t *OpenSpecTask) HandleEvent(ctx context.Context, eventType eventbus.EventType, data map[string]any) (bool, *eventbus.ResultOverride, error) {
	if eventType.Has(eventbus.TimerOnce) {
		return t.handleStartup(), nil, nil
	}

	if eventType.Has(eventbus.Timer) {
		if interval, ok := data["timer_interval"].(*time.Duration); ok && interval != nil && *interval == changesCheckInterval {
			t.handleChangesReminder()
			return true, nil, nil
		}
	}

	if eventType.Has(eventbus.FSCommand) {
		if handled := t.handleCommand(data); handled {
			return true, nil, nil
		}
	}

	if eventType.Has(eventbus.FSFileContent) {
		return t.handleFileContent(data), nil, nil
	}

	return false, nil, nil
}

func (t *OpenSpecTask) handleStartup() bool {
	t.mu.Lock()
	checked := t.flagChecked
	t.mu.Unlock()
	if !checked {
		return false // requeue until on_tool runs
	}

	enabled, err := t.flagEnabled()
	if err != nil || !enabled {
		return true // stop TIMER_ONCE without requesting CLI
	}

	t.mu.Lock()
	already := t.cliRequested
	if !already {
		t.cliRequested = true
	}
	t.mu.Unlock()

	if !already {
		t.requestCLICheck()
	}
	return true
}

func (t *OpenSpecTask) handleChangesReminder() {
	t.mu.Lock()
	enabled := t.projectEnabled != nil && *t.projectEnabled
	valid := t.cacheValidLocked()
	t.mu.Unlock()

	if !enabled || valid {
		return
	}
	t.requestChangesJSON()
}

func (t *OpenSpecTask) handleCommand(data map[string]any) bool {
	command, _ := data["command"].(string)
	if command != "openspec" {
		return false
	}

	p, _ := data["path"].(string)
	found, _ := data["found"].(bool)
	available := found && p != ""

	t.mu.Lock()
	t.available = &available
	shouldRequestProject := available && !t.projectRequested
	if shouldRequestProject {
		t.projectRequested = true
	}
	t.mu.Unlock()

	t.tm.SetCachedData("openspec_available", available)
	slog.Info("openspec_task.cli_detected", "available", available)

	if shouldRequestProject {
		t.requestProjectCheck()
	}
	return true
}

func (t *OpenSpecTask) handleFileContent(data map[string]any) bool {
	filePath, _ := data["path"].(string)
	baseName := path.Base(filePath)

	if baseName == "project.md" && strings.HasPrefix(filePath, "openspec/") {
		t.mu.Lock()
		enabled := true
		t.projectEnabled = &enabled
		shouldRequestVersion := !t.versionRequested
		if shouldRequestVersion {
			t.versionRequested = true
		}
		shouldRequestChanges := !t.changesRequested
		if shouldRequestChanges {
			t.changesRequested = true
		}
		t.mu.Unlock()

		t.tm.SetCachedData("openspec_project_enabled", true)
		slog.Info("openspec_task.project_enabled")

		if shouldRequestVersion {
			t.requestVersionCheck()
		}
		if shouldRequestChanges {
			t.requestChangesJSON()
		}
		return true
	}

	if baseName == ".openspec-version.txt" {
		content, _ := data["content"].(string)
		t.parseVersion(content)
		return true
	}

	content, _ := data["content"].(string)
	var parsed map[string]any
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		slog.Debug("openspec_task.non_json_content", "file", baseName)
		return false
	}

	if errVal, ok := parsed["error"]; ok {
		formatted, err := t.renderer.RenderCommon("_commands/openspec/_error-format", nil, map[string]any{"error": errVal})
		if err == nil {
			t.tm.QueueInstruction(formatted)
		}
		return true
	}

	switch baseName {
	case ".openspec-status.json":
		if formatted, err := t.renderer.RenderCommon("_commands/openspec/_status-format", nil, parsed); err == nil {
			t.tm.QueueInstruction(formatted)
		}
		return true

	case ".openspec-changes.json":
		t.cacheChanges(parsed)
		return true

	case ".openspec-show.json":
		if formatted, err := t.renderer.RenderCommon("_commands/openspec/_show-format", nil, parsed); err == nil {
			t.tm.QueueInstruction(formatted)
		}
		return true
	}

	return false
}

func (t *OpenSpecTask) cacheChanges(parsed map[string]any) {
	raw, _ := parsed["changes"].([]any)
	changes := make([]OpenSpecChange, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		c := decodeChange(m)
		changes = append(changes, c)
	}

	now := time.Now()
	t.mu.Lock()
	t.changesCache = changes
	t.changesTimestamp = &now
	t.mu.Unlock()

	t.tm.SetCachedData("openspec_changes", changes)
	slog.Debug("openspec_task.changes_cached", "count", len(changes))
}

func decodeChange(m map[string]any) OpenSpecChange {
	c := OpenSpecChange{}
	c.Name, _ = m["name"].(string)
	c.Status, _ = m["status"].(string)
	c.CompletedTasks = intFrom(m["completedTasks"])
	c.TotalTasks = intFrom(m["totalTasks"])
	c.LastModified, _ = m["lastModified"].(string)
	c.IsDraft = c.TotalTasks == 0
	c.IsDone = c.TotalTasks > 0 && c.CompletedTasks == c.TotalTasks
	c.IsInProgress = c.TotalTasks > 0 && c.CompletedTasks < c.TotalTasks
	return c
}

func intFrom(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}

func (t *OpenSpecTask) parseVersion(content string) {
	match := semverRegex.FindStringSubmatch(content)
	t.mu.Lock()
	defer t.mu.Unlock()
	if match != nil {
		v := match[1]
		t.version = &v
		t.tm.SetCachedData("openspec_version", v)
		slog.Info("openspec_task.version_detected", "version", v)
	} else {
		slog.Warn("openspec_task.version_parse_failed", "content", content)
		t.version = nil
		t.tm.SetCachedData("openspec_version", nil)
	}
}

// FormatChangesListResponse renders the changes list using the exact
// sort (in-progress first, then newest lastModified first) and per-entry
// formatting (progress as "N/M" or "N/A", lastModified truncated to 10
// characters) observed in the original implementation's command
// formatter.
func (t *OpenSpecTask) FormatChangesListResponse(changes []OpenSpecChange) (string, error) {
	sorted := make([]OpenSpecChange, len(changes))
	copy(sorted, changes)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LastModified > sorted[j].LastModified
	})
	sort.SliceStable(sorted, func(i, j int) bool {
		iInProgress := sorted[i].Status == "in-progress"
		jInProgress := sorted[j].Status == "in-progress"
		return iInProgress && !jInProgress
	})

	for i := range sorted {
		if sorted[i].TotalTasks > 0 {
			sorted[i].Progress = fmt.Sprintf("%d/%d", sorted[i].CompletedTasks, sorted[i].TotalTasks)
		} else {
			sorted[i].Progress = "N/A"
		}
		if len(sorted[i].LastModified) > 10 {
			sorted[i].LastModified = sorted[i].LastModified[:10]
		} else if sorted[i].LastModified == "" {
			sorted[i].LastModified = "N/A"
		}
	}

	ctx := map[string]any{
		"has_changes":    len(sorted) > 0,
		"sorted_changes": sorted,
	}
	return t.renderer.RenderCommon("_commands/openspec/_changes-format", nil, ctx)
}
