package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/guidemcp/gateway/internal/eventbus"
)

type fakeDispatcher struct {
	onToolCalls  int
	processCalls int
	lastResult   *Result
}

func (f *fakeDispatcher) OnTool(ctx context.Context) { f.onToolCalls++ }

func (f *fakeDispatcher) ProcessResult(ctx context.Context, result *Result, eventType eventbus.EventType) *Result {
	f.processCalls++
	f.lastResult = result
	return result
}

func TestWrap_RunsOnToolThenBodyThenProcessResult(t *testing.T) {
	fd := &fakeDispatcher{}
	wrapped := Wrap("test_tool", fd, func(ctx context.Context, args map[string]any) *Result {
		return Ok("done")
	})

	result := wrapped(context.Background(), nil)
	require.Equal(t, 1, fd.onToolCalls)
	require.Equal(t, 1, fd.processCalls)
	require.True(t, result.Success)
	require.Equal(t, "done", result.Value)
}

func TestWrap_RecoversBodyPanicAsUnexpectedError(t *testing.T) {
	fd := &fakeDispatcher{}
	wrapped := Wrap("test_tool", fd, func(ctx context.Context, args map[string]any) *Result {
		panic("boom")
	})

	result := wrapped(context.Background(), nil)
	require.False(t, result.Success)
	require.Equal(t, ErrUnexpected, result.ErrorType)
}

func TestWrap_NilBodyResultBecomesOk(t *testing.T) {
	fd := &fakeDispatcher{}
	wrapped := Wrap("test_tool", fd, func(ctx context.Context, args map[string]any) *Result {
		return nil
	})

	result := wrapped(context.Background(), nil)
	require.True(t, result.Success)
}
