package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/guidemcp/gateway/internal/appconfig"
)

// Version is set at build time via -ldflags "-X github.com/guidemcp/gateway/cmd.Version=v1.0.0"
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "guidemcp-gateway",
	Short: "guidemcp-gateway — MCP server bridging an agent to a project's documentation store",
	Long:  "guidemcp-gateway mediates between a conversational agent and a project's documentation/configuration store over MCP: a task-manager-driven event bus feeds templated instructions to the agent, which reports filesystem observations back through a small set of callback tools.",
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $GUIDEMCP_CONFIG, else ./config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(doctorCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("guidemcp-gateway " + Version)
		},
	}
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Load and print the merged configuration as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(resolveConfigPath())
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(cfg, "", "  ")
			cmd.Println(string(data))
			return nil
		},
	}
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("GUIDEMCP_CONFIG"); v != "" {
		return v
	}
	return "config.json"
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
