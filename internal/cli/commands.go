package cli

import (
	"os"

	"github.com/rileyhilliard/crmon/internal/errors"
	"github.com/spf13/cobra"
)

// Command-specific flags
var (
	watchFlags       ClusterFlags
	watchMetricsAddr string
	statusFlags      ClusterFlags
	statusJSON       bool
	statusYAML       bool
)

// watchCmd starts the live dashboard
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live dashboard of a cluster",
	Long: `Connect to every host of a cluster and show a live view of hosts,
cluster resources and replicated volumes. The view updates as soon as the
model changes.

Logs go to a rotated file while the dashboard is up (log.file, or
~/.config/crmon/watch.log when unset).

Keyboard shortcuts:
  tab / 1 2 3  Switch between hosts, services and replication
  up/k         Select previous row
  down/j       Select next row
  ?            Show help
  q / Ctrl+C   Quit

Examples:
  crmon watch
  crmon watch --cluster prod
  crmon watch --metrics-addr :9464`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return watchCommand(watchFlags, watchMetricsAddr)
	},
}

// statusCmd prints one snapshot of a cluster
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print a snapshot of a cluster",
	Long: `Connect to a cluster, wait for the first full cluster status and print
one snapshot of hosts, services and replicated volumes.

Examples:
  crmon status
  crmon status --cluster prod --timeout 1m
  crmon status --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if statusJSON && statusYAML {
			return errors.New(errors.ErrConfig,
				"--json and --yaml cannot be used together",
				"Pick one output format")
		}
		format := formatText
		switch {
		case statusJSON:
			format = formatJSON
		case statusYAML:
			format = formatYAML
		}
		return statusCommand(cmd.Context(), statusFlags, format)
	},
}

// completionCmd generates shell completion scripts
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion scripts for crmon.

Examples:
  # Bash
  crmon completion bash > /etc/bash_completion.d/crmon

  # Zsh
  crmon completion zsh > "${fpath[1]}/_crmon"

  # Fish
  crmon completion fish > ~/.config/fish/completions/crmon.fish`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(os.Stdout)
		default:
			return errors.New(errors.ErrConfig,
				"Unknown shell: "+args[0],
				"Supported shells: bash, zsh, fish, powershell")
		}
	},
}

func init() {
	// watch command flags
	AddClusterFlags(watchCmd, &watchFlags)
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g., :9464)")

	// status command flags
	AddClusterFlags(statusCmd, &statusFlags)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
	statusCmd.Flags().BoolVar(&statusYAML, "yaml", false, "output as YAML")

	// Register all commands
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(completionCmd)
}
