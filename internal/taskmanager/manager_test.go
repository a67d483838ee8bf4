package taskmanager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/guidemcp/gateway/internal/eventbus"
	"github.com/guidemcp/gateway/internal/pipeline"
)

// fakeTask is a hand-rolled stand-in for a Task implementation, in the
// teacher's table-driven/fake style rather than a mocking library.
type fakeTask struct {
	name string

	mu          sync.Mutex
	onToolCalls int
	onToolErr   error

	handleResult  bool
	handleErr     error
	handleCalls   []eventbus.EventType
	override      *eventbus.ResultOverride
	onHandleEvent func(eventType eventbus.EventType, data map[string]any) (bool, *eventbus.ResultOverride, error)
}

func (f *fakeTask) Name() string { return f.name }

func (f *fakeTask) OnTool(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onToolCalls++
	return f.onToolErr
}

func (f *fakeTask) OnInit(ctx context.Context) {}

func (f *fakeTask) HandleEvent(ctx context.Context, eventType eventbus.EventType, data map[string]any) (bool, *eventbus.ResultOverride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handleCalls = append(f.handleCalls, eventType)
	if f.onHandleEvent != nil {
		return f.onHandleEvent(eventType, data)
	}
	return f.handleResult, f.override, f.handleErr
}

func TestSubscribe_RejectsNonPositiveInterval(t *testing.T) {
	m := New()
	zero := time.Duration(0)
	err := m.Subscribe(&fakeTask{name: "t"}, eventbus.FSFileContent, &zero)
	require.Error(t, err)
}

func TestOnTool_FansOutToAllSubscribers(t *testing.T) {
	m := New()
	a := &fakeTask{name: "a"}
	b := &fakeTask{name: "b"}
	require.NoError(t, m.Subscribe(a, eventbus.FSFileContent, nil))
	require.NoError(t, m.Subscribe(b, eventbus.FSDirectory, nil))

	m.OnTool(context.Background())

	require.Equal(t, 1, a.onToolCalls)
	require.Equal(t, 1, b.onToolCalls)
}

func TestDispatchEvent_OnlyMatchingSubscriptionsHandled(t *testing.T) {
	m := New()
	a := &fakeTask{name: "a", handleResult: true}
	b := &fakeTask{name: "b", handleResult: true}
	require.NoError(t, m.Subscribe(a, eventbus.FSFileContent, nil))
	require.NoError(t, m.Subscribe(b, eventbus.FSDirectory, nil))

	status := m.DispatchEvent(context.Background(), eventbus.FSFileContent, map[string]any{"k": "v"})

	require.Equal(t, "processed", status)
	require.Len(t, a.handleCalls, 1)
	require.Empty(t, b.handleCalls)
}

func TestDispatchEvent_AcknowledgedWhenNobodyHandles(t *testing.T) {
	m := New()
	a := &fakeTask{name: "a", handleResult: false}
	require.NoError(t, m.Subscribe(a, eventbus.FSFileContent, nil))

	status := m.DispatchEvent(context.Background(), eventbus.FSFileContent, nil)
	require.Equal(t, "acknowledged", status)
}

func TestDispatchEvent_LastDataUpdatedEvenWhenNotHandled(t *testing.T) {
	// Scenario 1 from spec §8: last_data is touched for every matching
	// subscription regardless of whether its handler reported handled.
	m := New()
	a := &fakeTask{name: "a", handleResult: false}
	require.NoError(t, m.Subscribe(a, eventbus.FSFileContent, nil))

	m.DispatchEvent(context.Background(), eventbus.FSFileContent, nil)

	stats := m.GetTaskStatistics()
	require.Len(t, stats.Running, 1)
	require.NotNil(t, stats.Running[0].LastData)
}

func TestDispatchEvent_TimerOnceClearedAfterHandled(t *testing.T) {
	m := New()
	interval := 10 * time.Millisecond
	task := &fakeTask{name: "once", handleResult: true}
	require.NoError(t, m.Subscribe(task, eventbus.TimerOnce, &interval))

	var subEventTypes eventbus.EventType
	m.mu.Lock()
	subEventTypes = m.subscriptions[0].EventTypes
	m.mu.Unlock()
	require.True(t, subEventTypes.Has(eventbus.TimerOnce))

	m.DispatchEvent(context.Background(), subEventTypes, nil)

	m.mu.Lock()
	after := m.subscriptions[0]
	m.mu.Unlock()
	require.False(t, after.EventTypes.Has(eventbus.TimerOnce))
	require.Nil(t, after.Interval)
	require.Nil(t, after.NextFireTime)

	stats := m.GetTaskStatistics()
	require.Equal(t, "regular", stats.Running[0].Type)
}

func TestProcessResult_InstructionFolding(t *testing.T) {
	// Scenario 2 from spec §8.
	m := New()
	m.QueueInstruction("READ X")

	result := pipeline.Ok("done")
	out := m.ProcessResult(context.Background(), result, 0)

	require.Equal(t, "READ X", out.AdditionalAgentInstructions)
	require.Empty(t, m.pendingInstructions)
}

func TestProcessResult_ResponseOverrideTakesPrecedence(t *testing.T) {
	// Scenario 3 from spec §8.
	m := New()
	m.SetCachedData("workflow_change_content", "PHASE CHANGED")
	m.QueueInstruction("should not apply")

	result := pipeline.Ok("done")
	out := m.ProcessResult(context.Background(), result, 0)

	require.Equal(t, "PHASE CHANGED", out.Value)
	require.Empty(t, out.AdditionalAgentInstructions)
	require.Nil(t, m.GetCachedData("workflow_change_content"))
	// The instruction queued alongside the override must still be pending;
	// it was not consumed for this response.
	require.Len(t, m.pendingInstructions, 1)
}

func TestProcessResult_NoOpWhenNothingPending(t *testing.T) {
	m := New()
	result := pipeline.Ok("v")
	out := m.ProcessResult(context.Background(), result, 0)
	require.Equal(t, result, out)
}

func TestQueueInstruction_DedupsByEquality(t *testing.T) {
	m := New()
	m.QueueInstruction("same")
	m.QueueInstruction("same")
	require.Len(t, m.pendingInstructions, 1)
}

func TestUnsubscribe_RemovesStatsAndSubscriptions(t *testing.T) {
	m := New()
	task := &fakeTask{name: "gone"}
	require.NoError(t, m.Subscribe(task, eventbus.FSFileContent, nil))
	m.Unsubscribe(task)

	stats := m.GetTaskStatistics()
	require.Empty(t, stats.Running)
}

func TestGetTaskStatistics_PeakCountTracksMaxSubscriptions(t *testing.T) {
	m := New()
	a := &fakeTask{name: "a"}
	b := &fakeTask{name: "b"}
	require.NoError(t, m.Subscribe(a, eventbus.FSFileContent, nil))
	require.NoError(t, m.Subscribe(b, eventbus.FSDirectory, nil))
	m.Unsubscribe(a)

	stats := m.GetTaskStatistics()
	require.Equal(t, 2, stats.PeakCount)
	require.Equal(t, 1, stats.Count)
}

func TestTimerLoop_FiresAndRecomputesNextRun(t *testing.T) {
	m := New()
	interval := 15 * time.Millisecond

	fired := make(chan struct{}, 5)
	task := &fakeTask{name: "ticker"}
	task.onHandleEvent = func(eventType eventbus.EventType, data map[string]any) (bool, *eventbus.ResultOverride, error) {
		select {
		case fired <- struct{}{}:
		default:
		}
		return true, nil, nil
	}
	require.NoError(t, m.Subscribe(task, eventbus.Timer, &interval))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartTimerLoop(ctx)
	defer m.Stop()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}

	stats := m.GetTaskStatistics()
	require.Len(t, stats.Timers, 1)
	require.GreaterOrEqual(t, stats.Timers[0].RunCount, 1)
}
