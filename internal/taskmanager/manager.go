// Package taskmanager implements the pub/sub dispatcher coordinating
// filesystem events, timers, and the Tool/Prompt pipeline's pre/post
// hooks. Ported from task_manager/manager.py; in Go the process-wide
// Python singleton becomes a value owned by the server and passed into
// tools and tests alike, guarded by a mutex since dispatch may be called
// from concurrent tool invocations.
package taskmanager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/guidemcp/gateway/internal/eventbus"
	"github.com/guidemcp/gateway/internal/pipeline"
)

// TaskStats mirrors the per-task statistics record kept for template
// context and the doctor CLI.
type TaskStats struct {
	Name      string
	Type      string // "regular" or "timer"
	Started   time.Time
	LastData  *time.Time
	Interval  *time.Duration
	LastRun   *time.Time
	NextRun   *time.Time
	RunCount  int
}

// Statistics is the snapshot returned by GetTaskStatistics.
type Statistics struct {
	Running        []TaskStats
	Timers         []TaskStats
	Count          int
	PeakCount      int
	TotalTimerRuns int
}

// Manager is the task coordinator: subscription list, pending instruction
// FIFO, a keyed cache for cross-task communication, and per-task
// statistics. Zero value is not usable; construct with New.
type Manager struct {
	mu sync.Mutex

	subscriptions []*eventbus.Subscription
	nextTimerID   uint64

	pendingInstructions []string
	cache               map[string]any
	stats               map[string]*TaskStats

	peakTaskCount   int
	totalTimerRuns  int

	timerStop chan struct{}
	timerDone chan struct{}
}

// New constructs an empty Manager.
func New() *Manager {
	return &Manager{
		nextTimerID: 1,
		cache:       make(map[string]any),
		stats:       make(map[string]*TaskStats),
	}
}

func taskID(t eventbus.Task) string {
	return fmt.Sprintf("%s_%p", t.Name(), t)
}

// Subscribe registers a Task against an event mask, optionally as a timer
// firing every interval. A nil interval is a regular (non-timer)
// subscription.
func (m *Manager) Subscribe(t eventbus.Task, eventTypes eventbus.EventType, interval *time.Duration) error {
	if interval != nil && *interval <= 0 {
		return fmt.Errorf("taskmanager: timer interval must be positive")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	sub := &eventbus.Subscription{Task: t, EventTypes: eventTypes}

	if interval != nil {
		uniqueBit := eventbus.UniqueTimerBit(m.nextTimerID)
		m.nextTimerID++
		timerFlag := eventbus.Timer
		if eventTypes.Has(eventbus.TimerOnce) {
			timerFlag = 0
		}
		sub.EventTypes = eventTypes | timerFlag | uniqueBit
		sub.Interval = interval
		sub.UniqueTimerBit = uniqueBit
		next := now.Add(*interval)
		sub.NextFireTime = &next

		m.stats[taskID(t)] = &TaskStats{
			Name:     t.Name(),
			Type:     "timer",
			Started:  now,
			LastData: &now,
			Interval: interval,
			NextRun:  &next,
		}
	} else {
		m.stats[taskID(t)] = &TaskStats{
			Name:    t.Name(),
			Type:    "regular",
			Started: now,
		}
	}

	m.subscriptions = append(m.subscriptions, sub)
	if len(m.subscriptions) > m.peakTaskCount {
		m.peakTaskCount = len(m.subscriptions)
	}

	slog.Debug("taskmanager.subscribe", "task", t.Name(), "events", sub.EventTypes.String(), "timer", interval != nil)
	return nil
}

// Unsubscribe removes every subscription owned by t and stops the timer
// loop if no timer subscriptions remain.
func (m *Manager) Unsubscribe(t eventbus.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.stats, taskID(t))

	kept := m.subscriptions[:0:0]
	for _, sub := range m.subscriptions {
		if sub.Task != t {
			kept = append(kept, sub)
		}
	}
	m.subscriptions = kept

	hasTimers := false
	for _, sub := range m.subscriptions {
		if sub.IsTimer() {
			hasTimers = true
			break
		}
	}
	if !hasTimers {
		m.stopTimerLoopLocked()
	}
}

// OnTool starts the timer loop if it is not running, then fans out the
// pre-hook to every subscribed task in subscription order. Errors from
// individual tasks are logged, not propagated — one misbehaving task must
// not block the tool invocation.
func (m *Manager) OnTool(ctx context.Context) {
	m.mu.Lock()
	m.startTimerLoopLocked(context.WithoutCancel(ctx))
	subs := make([]*eventbus.Subscription, len(m.subscriptions))
	copy(subs, m.subscriptions)
	m.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Task.OnTool(ctx); err != nil {
			slog.Warn("taskmanager.on_tool_error", "task", sub.Task.Name(), "error", err)
		}
	}
}

// DispatchEvent fans data out to every subscription whose mask intersects
// eventType, clearing TIMER_ONCE flags on handled once-subscriptions and
// updating per-task last_data timestamps for every matching subscription
// (handled or not — this mirrors an observed quirk of the original
// implementation's statistics bookkeeping).
func (m *Manager) DispatchEvent(ctx context.Context, eventType eventbus.EventType, data map[string]any) string {
	// Handlers run without m.mu held, since they call back into the manager.
	m.mu.Lock()
	var matching []*eventbus.Subscription
	for _, sub := range m.subscriptions {
		if sub.EventTypes.Intersects(eventType) {
			matching = append(matching, sub)
		}
	}
	m.mu.Unlock()

	now := time.Now()
	processedCount := 0

	for _, sub := range matching {
		handled := false
		var override *eventbus.ResultOverride
		var err error
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			handled, override, err = sub.Task.HandleEvent(ctx, eventType, data)
		}()
		if err != nil {
			slog.Warn("taskmanager.handle_event_error", "task", sub.Task.Name(), "error", err)
		} else if handled {
			processedCount++
		}

		m.mu.Lock()
		if override != nil {
			m.cache["workflow_change_content"] = override.Value
		}

		if eventType.Has(eventbus.TimerOnce) && sub.EventTypes.Has(eventbus.TimerOnce) && handled {
			sub.EventTypes &^= eventbus.TimerOnce
			sub.Interval = nil
			sub.NextFireTime = nil

			if stats, ok := m.stats[taskID(sub.Task)]; ok {
				if !sub.EventTypes.Intersects(eventbus.Timer | eventbus.TimerOnce) {
					stats.Type = "regular"
					stats.Interval = nil
					stats.LastRun = nil
					stats.NextRun = nil
					stats.RunCount = 0
				}
			}
		}
		m.mu.Unlock()
	}

	// last_data is updated for every subscription whose mask intersected
	// the event, whether or not that subscription's handler reported it
	// handled — this matches task_manager/manager.py's dispatch_event.
	m.mu.Lock()
	for _, sub := range matching {
		if stats, ok := m.stats[taskID(sub.Task)]; ok {
			stats.LastData = &now
		}
	}
	m.mu.Unlock()

	if processedCount == 0 {
		return "acknowledged"
	}
	return "processed"
}

// QueueInstruction appends instruction to the pending FIFO unless it is
// already present (dedup by equality).
func (m *Manager) QueueInstruction(instruction string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.pendingInstructions {
		if existing == instruction {
			return
		}
	}
	m.pendingInstructions = append(m.pendingInstructions, instruction)
}

// ProcessResult is the pipeline's post-hook. If eventType is non-zero the
// result is first dispatched as an event. A workflow_change_content cache
// override takes precedence over any pending instruction and is cleared
// after use; otherwise the head of the instruction FIFO, if any, is
// folded into additional_agent_instructions.
func (m *Manager) ProcessResult(ctx context.Context, result *pipeline.Result, eventType eventbus.EventType) *pipeline.Result {
	if eventType != 0 {
		data, _ := result.Value.(map[string]any)
		m.DispatchEvent(ctx, eventType, data)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if override, ok := m.cache["workflow_change_content"]; ok && override != nil {
		delete(m.cache, "workflow_change_content")
		return result.WithValue(override)
	}

	if len(m.pendingInstructions) > 0 {
		instruction := m.pendingInstructions[0]
		m.pendingInstructions = m.pendingInstructions[1:]
		return result.WithAdditionalInstructions(instruction)
	}

	return result
}

// GetCachedData returns the value stored under key, or nil.
func (m *Manager) GetCachedData(key string) any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache[key]
}

// SetCachedData stores value under key.
func (m *Manager) SetCachedData(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = value
}

// ClearCachedData removes key from the cache.
func (m *Manager) ClearCachedData(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
}

// GetTaskStatistics returns a snapshot for template context and the
// doctor CLI.
func (m *Manager) GetTaskStatistics() Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()

	var running, timers []TaskStats
	for _, s := range m.stats {
		running = append(running, *s)
		if s.Type == "timer" {
			timers = append(timers, *s)
		}
	}

	unique := map[eventbus.Task]struct{}{}
	for _, sub := range m.subscriptions {
		unique[sub.Task] = struct{}{}
	}

	return Statistics{
		Running:        running,
		Timers:         timers,
		Count:          len(unique),
		PeakCount:      m.peakTaskCount,
		TotalTimerRuns: m.totalTimerRuns,
	}
}

// StartTimerLoop starts the cooperative timer goroutine if any timer
// subscription exists and it is not already running. Safe to call
// repeatedly; OnTool makes the same check before every tool invocation.
func (m *Manager) StartTimerLoop(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startTimerLoopLocked(ctx)
}

func (m *Manager) startTimerLoopLocked(ctx context.Context) {
	if m.timerStop != nil {
		return
	}
	hasTimer := false
	for _, sub := range m.subscriptions {
		if sub.IsTimer() {
			hasTimer = true
			break
		}
	}
	if !hasTimer {
		return
	}

	m.timerStop = make(chan struct{})
	m.timerDone = make(chan struct{})
	go m.timerLoop(ctx, m.timerStop, m.timerDone)
}

func (m *Manager) stopTimerLoopLocked() {
	if m.timerStop == nil {
		return
	}
	close(m.timerStop)
	m.timerStop = nil
	m.timerDone = nil
}

// Stop halts the timer loop, if running. Intended for test cleanup and
// server shutdown.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimerLoopLocked()
}

// timerLoop is the single cooperative timer: it sleeps until the soonest
// NextFireTime across all timer subscriptions, dispatches that timer's
// event, recomputes its next fire time, and repeats. It exits once no
// timer subscriptions remain.
func (m *Manager) timerLoop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		m.mu.Lock()
		var soonest *eventbus.Subscription
		for _, sub := range m.subscriptions {
			if !sub.IsTimer() || sub.NextFireTime == nil {
				continue
			}
			if soonest == nil || sub.NextFireTime.Before(*soonest.NextFireTime) {
				soonest = sub
			}
		}
		if soonest == nil {
			m.timerStop = nil
			m.timerDone = nil
			m.mu.Unlock()
			return
		}
		wait := time.Until(*soonest.NextFireTime)
		if wait < time.Millisecond {
			wait = time.Millisecond
		}
		m.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		m.fireDueTimers(ctx)
	}
}

func (m *Manager) fireDueTimers(ctx context.Context) {
	m.mu.Lock()
	now := time.Now()
	var due []*eventbus.Subscription
	for _, sub := range m.subscriptions {
		if sub.IsTimer() && sub.NextFireTime != nil && !sub.NextFireTime.After(now) {
			due = append(due, sub)
		}
	}
	m.mu.Unlock()

	for _, sub := range due {
		payload := map[string]any{"timer_interval": sub.Interval, "timestamp": now}

		m.mu.Lock()
		if stats, ok := m.stats[taskID(sub.Task)]; ok {
			stats.LastRun = &now
			stats.RunCount++
			m.totalTimerRuns++
		}
		m.mu.Unlock()

		m.DispatchEvent(ctx, sub.EventTypes, payload)

		m.mu.Lock()
		sub.UpdateNextFireTime(now)
		if stats, ok := m.stats[taskID(sub.Task)]; ok {
			stats.NextRun = sub.NextFireTime
		}
		m.mu.Unlock()
	}
}
