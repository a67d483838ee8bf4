package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/guidemcp/gateway/internal/appconfig"
	"github.com/guidemcp/gateway/internal/bridge"
	"github.com/guidemcp/gateway/internal/filecache"
	"github.com/guidemcp/gateway/internal/ratelimit"
	"github.com/guidemcp/gateway/internal/registry"
	"github.com/guidemcp/gateway/internal/render"
	"github.com/guidemcp/gateway/internal/security"
	"github.com/guidemcp/gateway/internal/session"
	"github.com/guidemcp/gateway/internal/statsstore"
	"github.com/guidemcp/gateway/internal/taskmanager"
	"github.com/guidemcp/gateway/internal/tasks"
	"github.com/guidemcp/gateway/internal/telemetry"
	"github.com/guidemcp/gateway/internal/templatectx"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP gateway server over stdio",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func runServe() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	cfgPath := resolveConfigPath()
	cfg, err := appconfig.Load(cfgPath)
	if err != nil {
		slog.Error("serve.config_load_failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tracer, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		Protocol:    cfg.Telemetry.Protocol,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		slog.Warn("serve.telemetry_init_failed", "error", err)
	}
	defer tracer.Shutdown(ctx)

	configDir := cfg.ConfigDir
	if configDir == "" {
		configDir = appconfig.DefaultConfigDir("guidemcp-gateway")
	}

	configManager, err := session.NewConfigManager(configDir, cfg.Docroot)
	if err != nil {
		slog.Error("serve.config_manager_init_failed", "error", err)
		os.Exit(1)
	}
	sessionManager := session.NewManager(configManager)

	tm := taskmanager.New()
	tm.StartTimerLoop(ctx)
	defer tm.Stop()

	renderer := render.New(filepath.Join(cfg.Docroot, "common"))
	if cfg.Dev.Watch {
		if watcher, werr := render.WatchDev(renderer); werr != nil {
			slog.Warn("serve.dev_watch_failed", "error", werr)
		} else {
			defer watcher.Close()
			slog.Info("serve.dev_watch_enabled", "root", filepath.Join(cfg.Docroot, "common"))
		}
	}

	if cfg.Storage.Enabled && cfg.Storage.Path != "" {
		if store, serr := statsstore.Open(ctx, cfg.Storage.Path); serr != nil {
			slog.Warn("serve.stats_store_init_failed", "error", serr)
		} else {
			defer store.Close()
			go runStatsSnapshotLoop(ctx, store, tm)
		}
	}

	policy := security.New(nil, nil, cfg.Docroot)
	cache := filecache.New(cfg.FileCache.MaxSizeBytes, cfg.FileCache.MaxEntries)

	agentBridge := bridge.New(policy, cache, tm)
	agentBridge.SetRateLimiter(ratelimit.New(ratelimit.DefaultRate, ratelimit.DefaultBurst, ratelimit.DefaultMaxKeys))

	resolveSession := func() (*session.Session, error) {
		sess := sessionManager.GetCurrentSession("default", "")
		if sess == nil {
			return nil, session.ErrNoCurrentProject
		}
		return sess, nil
	}

	tasks.NewClientInfoTask(tm, renderer)
	openspecTask := tasks.NewOpenSpecTask(tm, renderer, resolveSession, configDir)
	tasks.NewWorkflowMonitorTask(tm, renderer, tasks.DefaultWorkflowFile)

	coreCtxBuilder := func() *templatectx.Chain {
		return templatectx.CachedCore(func() *templatectx.Chain {
			system := templatectx.SystemContext()
			client := templatectx.ClientContext(tm)
			agent := templatectx.AgentContext(tm, cfg.ToolPrefix, openspecTask, cfg.ContentStyle)
			return templatectx.New(system).NewChild(client).NewChild(agent)
		})
	}

	resolveForPrompt := func(ctx context.Context) (*session.Project, string, error) {
		sess, err := resolveSession()
		if err != nil {
			if createErr := ensureDefaultProject(sessionManager); createErr != nil {
				return nil, "", err
			}
			sess, err = resolveSession()
			if err != nil {
				return nil, "", err
			}
		}
		project, err := sess.GetProject()
		if err != nil {
			return nil, "", err
		}
		return project, sess.Docroot(), nil
	}

	reg := registry.New()
	for _, spec := range registry.BridgeTools(agentBridge, cfg.ToolPrefix) {
		reg.RegisterTool(spec)
	}
	reg.RegisterPrompt(registry.GuidePrompt(resolveForPrompt, tm, coreCtxBuilder))

	mcpServer := server.NewMCPServer(
		"guidemcp-gateway",
		Version,
		server.WithToolCapabilities(true),
		server.WithPromptCapabilities(true),
	)
	reg.Build(mcpServer, tm, tracer)

	slog.Info("serve.starting", "docroot", cfg.Docroot, "tool_prefix", cfg.ToolPrefix)
	if err := server.ServeStdio(mcpServer); err != nil {
		slog.Error("serve.exited", "error", err)
		os.Exit(1)
	}
}

// runStatsSnapshotLoop periodically persists the task manager's statistics
// snapshot to the optional durable store, until ctx is cancelled.
func runStatsSnapshotLoop(ctx context.Context, store *statsstore.Store, tm *taskmanager.Manager) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := store.Snapshot(ctx, now, tm.GetTaskStatistics()); err != nil {
				slog.Warn("serve.stats_snapshot_failed", "error", err)
			}
		}
	}
}

// ensureDefaultProject creates a "default" project session the first time
// the guide prompt is invoked against a docroot with no prior project
// selection, mirroring the spec's "resolve from ctx-derived roots/cwd,
// else fall back" session-creation note.
func ensureDefaultProject(mgr *session.Manager) error {
	_, err := mgr.GetOrCreateSession("default", "default", nil)
	return err
}
