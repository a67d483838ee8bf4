package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/guidemcp/gateway/internal/filecache"
	"github.com/guidemcp/gateway/internal/security"
	"github.com/guidemcp/gateway/internal/taskmanager"
)

func newTestBridge(t *testing.T, projectRoot string) (*Bridge, *taskmanager.Manager) {
	t.Helper()
	policy := security.New(nil, nil, projectRoot)
	cache := filecache.New(filecache.DefaultMaxSize, filecache.DefaultMaxEntries)
	tm := taskmanager.New()
	return New(policy, cache, tm), tm
}

func TestSendFileContent_CachesAndDispatches(t *testing.T) {
	root := t.TempDir()
	b, _ := newTestBridge(t, root)

	result := b.SendFileContent(context.Background(), "notes.md", "hello", nil, "utf-8")
	require.True(t, result.Success)
}

func TestSendFileContent_RejectsBlacklistedPath(t *testing.T) {
	b, _ := newTestBridge(t, t.TempDir())

	result := b.SendFileContent(context.Background(), "/etc/passwd", "x", nil, "")
	require.False(t, result.Success)
}

func TestSendDirectoryListing_Dispatches(t *testing.T) {
	b, tm := newTestBridge(t, t.TempDir())
	_ = tm

	result := b.SendDirectoryListing(context.Background(), "openspec/changes", []map[string]any{
		{"name": "add-thing", "type": "directory"},
	}, "", false)
	require.True(t, result.Success)
}

func TestSendCommandLocation_Dispatches(t *testing.T) {
	b, _ := newTestBridge(t, t.TempDir())
	result := b.SendCommandLocation(context.Background(), "openspec", "/usr/local/bin/openspec", true)
	require.True(t, result.Success)
}

func TestSendWorkingDirectory_Dispatches(t *testing.T) {
	b, _ := newTestBridge(t, t.TempDir())
	result := b.SendWorkingDirectory(context.Background(), "/home/user/project")
	require.True(t, result.Success)
}

func TestSendFoundFiles_Dispatches(t *testing.T) {
	b, _ := newTestBridge(t, t.TempDir())
	result := b.SendFoundFiles(context.Background(), "*.md", []string{"README.md", "SPEC.md"}, "")
	require.True(t, result.Success)
	require.Equal(t, 2, result.Value.(map[string]any)["count"])
}

func TestSendFileContent_WithExplicitMtime(t *testing.T) {
	root := t.TempDir()
	b, _ := newTestBridge(t, root)
	mtime := time.Now().Add(-time.Hour)
	result := b.SendFileContent(context.Background(), "a.md", "content", &mtime, "")
	require.True(t, result.Success)
}
