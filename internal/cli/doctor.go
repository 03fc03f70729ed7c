package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rileyhilliard/crmon/internal/config"
	"github.com/rileyhilliard/crmon/internal/doctor"
	"github.com/rileyhilliard/crmon/internal/poll"
	"github.com/rileyhilliard/crmon/internal/ui"
	"github.com/rileyhilliard/crmon/internal/util"
	"github.com/spf13/cobra"
)

var (
	doctorCluster string
	doctorJSON    bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check config, SSH access and the remote helpers",
	Long: `Run diagnostics: the config file, the SSH agent, a connection to every
cluster host, the programs behind the poll commands on each host, and the
layout file. Hosts are checked in parallel.

Examples:
  crmon doctor
  crmon doctor --cluster prod
  crmon doctor --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return doctorCommand(ctx, os.Stdout, doctorCluster, doctorJSON)
	},
}

func init() {
	doctorCmd.Flags().StringVarP(&doctorCluster, "cluster", "c", "", "only check the hosts of this cluster")
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(doctorCmd)
}

func doctorCommand(ctx context.Context, w io.Writer, clusterName string, asJSON bool) error {
	// A broken config is a finding, not a reason to stop.
	cfg, _, err := config.LoadOrDefault(cfgFile)
	if err != nil || cfg == nil {
		cfg = config.DefaultConfig()
	}
	initLogger(cfg.Log)

	results := runDoctor(ctx, cfg, clusterName, poll.SSHDialer(cfg.Poll.DialTimeout))

	if asJSON {
		if err := WriteJSONSuccess(w, results); err != nil {
			return err
		}
	} else {
		writeDoctor(w, results)
	}

	if doctor.HasFailures(results) {
		return fmt.Errorf("doctor: %s", doctor.Summary(results))
	}
	return nil
}

// runDoctor builds and runs every check. Each host's checks run in order on
// their own goroutine.
func runDoctor(ctx context.Context, cfg *config.Config, clusterName string, dial poll.DialFunc) []doctor.CheckResult {
	results := doctor.RunAll(ctx, []doctor.Check{
		&doctor.ConfigFileCheck{ConfigPath: cfgFile},
		&doctor.ClustersCheck{Config: cfg},
		&doctor.SSHAgentCheck{},
	})

	commands := []string{cfg.Poll.ClusterStatusCommand, cfg.Poll.ReplicationCommand}
	var groups [][]doctor.Check
	var conns []*doctor.ConnectCheck
	for _, name := range doctorClusters(cfg, clusterName) {
		for _, host := range cfg.Clusters[name].Hosts {
			conn, checks := doctor.HostChecks(name, host, dial, commands)
			conns = append(conns, conn)
			groups = append(groups, checks)
		}
	}
	results = append(results, doctor.RunGroupsParallel(ctx, groups)...)
	for _, c := range conns {
		c.Close()
	}

	results = append(results, doctor.RunAll(ctx, []doctor.Check{
		&doctor.LayoutCheck{Path: config.ExpandTilde(cfg.Layout.Path)},
	})...)
	return results
}

func doctorClusters(cfg *config.Config, only string) []string {
	if only != "" {
		if _, ok := cfg.Clusters[only]; ok {
			return []string{only}
		}
		return nil
	}
	return util.SortedKeys(cfg.Clusters)
}

func writeDoctor(w io.Writer, results []doctor.CheckResult) {
	grouped := doctor.GroupByCategory(results)
	for _, category := range doctor.Categories {
		rs := grouped[category]
		if len(rs) == 0 {
			continue
		}
		fmt.Fprintln(w, ui.HeaderStyle().Render(category))
		for _, r := range rs {
			fmt.Fprintf(w, "  %s %s\n", doctorSymbol(r.Status), r.Message)
			if r.Suggestion != "" && r.Status != doctor.StatusPass {
				fmt.Fprintf(w, "    %s\n", ui.MutedStyle().Render(r.Suggestion))
			}
		}
		fmt.Fprintln(w)
	}

	summary := doctor.Summary(results)
	switch {
	case doctor.HasFailures(results):
		fmt.Fprintln(w, ui.ErrorStyle().Render(summary))
	case summary != "Everything looks good":
		fmt.Fprintln(w, ui.WarningStyle().Render(summary))
	default:
		fmt.Fprintln(w, ui.SuccessStyle().Render(summary))
	}
}

func doctorSymbol(s doctor.CheckStatus) string {
	switch s {
	case doctor.StatusPass:
		return ui.SuccessStyle().Render(ui.SymbolOnline)
	case doctor.StatusWarn:
		return ui.WarningStyle().Render(ui.SymbolDegraded)
	default:
		return ui.ErrorStyle().Render(ui.SymbolOffline)
	}
}
