package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rileyhilliard/crmon/internal/config"
	"github.com/rileyhilliard/crmon/internal/errors"
	"github.com/rileyhilliard/crmon/internal/ui"
	"github.com/rileyhilliard/crmon/internal/util"
	"github.com/rileyhilliard/crmon/pkg/sshutil"
	"github.com/spf13/cobra"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Manage configured clusters",
}

// clusterAddCmd writes a cluster's host list to the config
var clusterAddCmd = &cobra.Command{
	Use:   "add <name> [host...]",
	Short: "Add or replace a cluster in the config",
	Long: `Write clusters.<name>.hosts to the config file. Hosts are SSH aliases and
their order is the cluster order used for DC failover.

Without hosts, and on a terminal, crmon offers the usable entries of
~/.ssh/config to pick from.

Examples:
  crmon cluster add prod node-a node-b
  crmon cluster add staging`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return clusterAddCommand(os.Stdout, args[0], args[1:])
	},
}

var clusterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured clusters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		return listClusters(os.Stdout, cfg)
	},
}

func init() {
	clusterCmd.AddCommand(clusterAddCmd)
	clusterCmd.AddCommand(clusterListCmd)
	rootCmd.AddCommand(clusterCmd)
}

func clusterAddCommand(w io.Writer, name string, hosts []string) error {
	if len(hosts) == 0 {
		picked, err := pickHosts()
		if err != nil {
			return err
		}
		hosts = picked
	}

	path, err := configWritePath()
	if err != nil {
		return err
	}
	if err := config.AddCluster(path, name, hosts); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s Saved cluster %s (%s) to %s\n",
		ui.SuccessStyle().Render(ui.SymbolOnline), name, strings.Join(hosts, ", "), path)
	return nil
}

// pickHosts prompts for hosts from ~/.ssh/config.
func pickHosts() ([]string, error) {
	if !ui.IsTerminal(os.Stdin) {
		return nil, errors.New(errors.ErrConfig,
			"No hosts given",
			"Pass host aliases after the cluster name, e.g. 'crmon cluster add prod node-a node-b'")
	}
	entries, err := sshutil.ParseSSHConfig()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't read ~/.ssh/config",
			"Pass host aliases as arguments instead")
	}
	return ui.PickHosts(sshutil.UsableHosts(entries))
}

// configWritePath is the file `cluster add` edits: --config, an existing
// config, or the global path.
func configWritePath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	path, err := config.Find("")
	if err != nil {
		return "", err
	}
	if path != "" {
		return path, nil
	}
	if global := config.GlobalPath(); global != "" {
		return global, nil
	}
	return config.ConfigFileName, nil
}

func listClusters(w io.Writer, cfg *config.Config) error {
	if len(cfg.Clusters) == 0 {
		fmt.Fprintln(w, ui.MutedStyle().Render("No clusters configured. Add one with 'crmon cluster add'."))
		return nil
	}
	names := util.SortedKeys(cfg.Clusters)
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, strings.Join(cfg.Clusters[name].Hosts, ", ")})
	}
	_, err := fmt.Fprintln(w, ui.RenderSimpleTable([]ui.TableColumn{
		{Title: "CLUSTER", Width: 10},
		{Title: "HOSTS", Width: 20},
	}, rows))
	return err
}
