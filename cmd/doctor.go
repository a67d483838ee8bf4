package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/guidemcp/gateway/internal/appconfig"
	"github.com/guidemcp/gateway/internal/cronutil"
	"github.com/guidemcp/gateway/internal/filecache"
)

// healthCheckSchedule is the cadence doctor reports as its own
// self-recommended recheck cadence (not user-configurable yet — see
// DESIGN.md on gronx wiring).
const healthCheckSchedule = "*/30 * * * *"

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check system environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("guidemcp-gateway doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, defaults will be used)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := appconfig.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Docroot:")
	fmt.Printf("    %-14s %s", "Path:", cfg.Docroot)
	if info, statErr := os.Stat(cfg.Docroot); statErr != nil {
		fmt.Println(" (NOT FOUND)")
	} else if !info.IsDir() {
		fmt.Println(" (NOT A DIRECTORY)")
	} else {
		fmt.Println(" (OK)")
	}
	commandsDir := cfg.Docroot + "/commands"
	if _, statErr := os.Stat(commandsDir); statErr != nil {
		fmt.Printf("    %-14s not found (guide command requests will fail)\n", "Commands:")
	} else {
		fmt.Printf("    %-14s %s\n", "Commands:", commandsDir)
	}

	fmt.Println()
	fmt.Println("  File cache:")
	cache := filecache.New(cfg.FileCache.MaxSizeBytes, cfg.FileCache.MaxEntries)
	stats := cache.Stats()
	fmt.Printf("    %-14s %d bytes\n", "Max size:", stats.MaxSize)
	fmt.Printf("    %-14s %d entries\n", "Max entries:", stats.MaxEntries)

	fmt.Println()
	fmt.Println("  CLI tools:")
	checkCommand("openspec")

	fmt.Println()
	fmt.Println("  Telemetry:")
	if cfg.Telemetry.Enabled {
		fmt.Printf("    %-14s %s (%s)\n", "Endpoint:", cfg.Telemetry.Endpoint, cfg.Telemetry.Protocol)
	} else {
		fmt.Println("    disabled")
	}

	fmt.Println()
	fmt.Println("  Scheduled health checks:")
	if next, err := cronutil.NextTick(healthCheckSchedule, time.Now()); err != nil {
		fmt.Printf("    %-14s invalid schedule %q: %s\n", "Next check:", healthCheckSchedule, err)
	} else {
		fmt.Printf("    %-14s %s (%s)\n", "Next check:", next.Format(time.RFC3339), healthCheckSchedule)
	}

	if cfg.Storage.Enabled {
		fmt.Println()
		fmt.Println("  Stats store:")
		fmt.Printf("    %-14s %s\n", "Path:", cfg.Storage.Path)
	}
}

func checkCommand(name string) {
	path, err := exec.LookPath(name)
	if err != nil {
		fmt.Printf("    %-14s not found on PATH\n", name+":")
		return
	}
	fmt.Printf("    %-14s %s\n", name+":", path)
}
