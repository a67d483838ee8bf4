// Package bridge implements the Agent-Filesystem Bridge: the inbound
// callback tool bodies the agent invokes to hand back filesystem
// observations the server asked for, each validated against the security
// policy, cached where relevant, and turned into a dispatched event.
// Grounded on the spec's §4.D contract; the outbound half is simply
// TaskManager.QueueInstruction, already implemented in the task manager
// and the tasks package.
package bridge

import (
	"context"
	"time"

	"github.com/guidemcp/gateway/internal/eventbus"
	"github.com/guidemcp/gateway/internal/filecache"
	"github.com/guidemcp/gateway/internal/pipeline"
	"github.com/guidemcp/gateway/internal/ratelimit"
	"github.com/guidemcp/gateway/internal/security"
	"github.com/guidemcp/gateway/internal/taskmanager"
)

// Bridge wires the agent-reported callback payloads into the FileCache
// and the TaskManager's event dispatch.
type Bridge struct {
	policy  *security.Policy
	cache   *filecache.Cache
	tm      *taskmanager.Manager
	limiter *ratelimit.Limiter
}

// New constructs a Bridge over the given policy, cache, and task manager.
// No rate limiting is applied until SetRateLimiter is called.
func New(policy *security.Policy, cache *filecache.Cache, tm *taskmanager.Manager) *Bridge {
	return &Bridge{policy: policy, cache: cache, tm: tm}
}

// SetRateLimiter installs a token-bucket guard against FS event storms —
// a misbehaving or runaway agent flooding callback tools. Callbacks over
// the limit are dropped with a security-flavoured failure rather than
// queued, matching the policy-violation shape the agent already expects
// from this bridge.
func (b *Bridge) SetRateLimiter(l *ratelimit.Limiter) {
	b.limiter = l
}

func (b *Bridge) allow(key string) bool {
	if b.limiter == nil {
		return true
	}
	return b.limiter.Allow(key)
}

// SendFileContent validates path for reading, caches content, and
// dispatches FS_FILE_CONTENT.
func (b *Bridge) SendFileContent(ctx context.Context, path, content string, mtime *time.Time, encoding string) *pipeline.Result {
	if !b.allow("send_file_content") {
		return pipeline.Failure(pipeline.ErrSecurity, "rate limit exceeded", "")
	}

	normalized, err := b.policy.ValidateReadPath(path)
	if err != nil {
		return pipeline.Failure(pipeline.ErrSecurity, err.Error(), "")
	}

	cacheMtime := time.Now()
	if mtime != nil {
		cacheMtime = *mtime
	}
	b.cache.Put(normalized, content, cacheMtime)

	b.tm.DispatchEvent(ctx, eventbus.FSFileContent, map[string]any{
		"path": normalized, "content": content, "mtime": cacheMtime, "encoding": encoding,
	})

	return pipeline.Ok(map[string]any{
		"path": normalized, "cached": true, "size": len(content),
	})
}

// SendDirectoryListing validates path for reading and dispatches
// FS_DIRECTORY.
func (b *Bridge) SendDirectoryListing(ctx context.Context, path string, files []map[string]any, pattern string, recursive bool) *pipeline.Result {
	if !b.allow("send_directory_listing") {
		return pipeline.Failure(pipeline.ErrSecurity, "rate limit exceeded", "")
	}

	normalized, err := b.policy.ValidateReadPath(path)
	if err != nil {
		return pipeline.Failure(pipeline.ErrSecurity, err.Error(), "")
	}

	b.tm.DispatchEvent(ctx, eventbus.FSDirectory, map[string]any{
		"path": normalized, "files": files, "pattern": pattern, "recursive": recursive,
	})

	return pipeline.Ok(map[string]any{"path": normalized, "count": len(files)})
}

// SendCommandLocation dispatches FS_COMMAND — no path validation is
// required since "not found" is itself a valid, informative answer.
func (b *Bridge) SendCommandLocation(ctx context.Context, command, path string, found bool) *pipeline.Result {
	if !b.allow("send_command_location") {
		return pipeline.Failure(pipeline.ErrSecurity, "rate limit exceeded", "")
	}

	b.tm.DispatchEvent(ctx, eventbus.FSCommand, map[string]any{
		"command": command, "path": path, "found": found,
	})
	return pipeline.Ok(map[string]any{"command": command, "found": found})
}

// SendWorkingDirectory dispatches FS_CWD.
func (b *Bridge) SendWorkingDirectory(ctx context.Context, workingDirectory string) *pipeline.Result {
	b.tm.DispatchEvent(ctx, eventbus.FSCwd, map[string]any{"cwd": workingDirectory})
	return pipeline.Ok(map[string]any{"cwd": workingDirectory})
}

// SendFoundFiles is purely informational — dispatched as an FS_DIRECTORY
// event so interested Tasks can observe a search result the same way they
// observe a plain listing, with the originating pattern attached.
func (b *Bridge) SendFoundFiles(ctx context.Context, pattern string, files []string, startPath string) *pipeline.Result {
	entries := make([]map[string]any, 0, len(files))
	for _, f := range files {
		entries = append(entries, map[string]any{"name": f, "type": "file"})
	}

	b.tm.DispatchEvent(ctx, eventbus.FSDirectory, map[string]any{
		"path": startPath, "files": entries, "pattern": pattern,
	})

	return pipeline.Ok(map[string]any{"pattern": pattern, "count": len(files)})
}
