package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/rileyhilliard/crmon/internal/config"
	"github.com/rileyhilliard/crmon/internal/logger"
	"github.com/rileyhilliard/crmon/internal/ui"
	"github.com/spf13/cobra"
)

// Global flags
var (
	cfgFile      string
	logLevelFlag string
	logFileFlag  string
	noColor      bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "crmon",
	Short: "Live model of Pacemaker/DRBD clusters over SSH",
	Long: `crmon polls every host of a high-availability cluster over SSH and keeps a
live model of the cluster manager's resources and the replicated volumes.

Examples:
  crmon cluster add prod node-a node-b
  crmon status --cluster prod
  crmon watch --cluster prod`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor || os.Getenv("NO_COLOR") != "" {
			ui.DisableColors()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./crmon.yaml or ~/.config/crmon/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFileFlag, "log-file", "", "write logs to a rotated file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err == nil {
		return nil
	}
	if isUnknownCommandError(err) {
		if name := extractUnknownCommand(err); name != "" {
			fmt.Fprintf(os.Stderr, "%s Unknown command %q\n\n  Run 'crmon --help' to see what's available.\n",
				ui.SymbolOffline, name)
			return err
		}
	}
	fmt.Fprintln(os.Stderr, err)
	return err
}

// loadConfig finds, loads and validates the config, then configures the
// logger from it. Flags override the file.
func loadConfig() (*config.Config, string, error) {
	cfg, path, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, "", err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, "", err
	}
	initLogger(cfg.Log)
	return cfg, path, nil
}

func initLogger(lc config.LogConfig) {
	if logLevelFlag != "" {
		lc.Level = logLevelFlag
	}
	if logFileFlag != "" {
		lc.File = config.ExpandTilde(logFileFlag)
	}
	logger.Init(logger.Config{Level: lc.Level, JSON: lc.JSON, File: lc.File})
}

func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") || strings.HasPrefix(msg, "unknown flag")
}

// extractUnknownCommand pulls the name out of cobra's
// `unknown command "foo" for "crmon"` message.
func extractUnknownCommand(err error) string {
	msg := err.Error()
	start := strings.Index(msg, `"`)
	if start < 0 {
		return ""
	}
	end := strings.Index(msg[start+1:], `"`)
	if end < 0 {
		return ""
	}
	return msg[start+1 : start+1+end]
}
