package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/crmon/internal/config"
	"github.com/rileyhilliard/crmon/internal/errors"
	"github.com/rileyhilliard/crmon/internal/store"
	"github.com/rileyhilliard/crmon/internal/util"
	"github.com/spf13/cobra"
)

// ClusterFlags holds the cluster selection flags shared by commands that
// connect to a cluster.
type ClusterFlags struct {
	Cluster string
	Timeout string
}

// AddClusterFlags registers --cluster and --timeout on a command.
func AddClusterFlags(cmd *cobra.Command, flags *ClusterFlags) {
	cmd.Flags().StringVarP(&flags.Cluster, "cluster", "c", "", "cluster name from the config (default: the only one configured)")
	cmd.Flags().StringVar(&flags.Timeout, "timeout", "30s", "how long to wait for the first cluster status (e.g., 10s, 1m)")
}

// ParseTimeout parses a timeout flag. Returns zero duration if the flag is empty.
func ParseTimeout(flag string) (time.Duration, error) {
	if flag == "" {
		return 0, nil
	}

	duration, err := time.ParseDuration(flag)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' doesn't look like a valid timeout", flag),
			"Try something like 5s, 2m, or 500ms.")
	}
	if duration < 0 {
		return 0, errors.New(errors.ErrConfig,
			fmt.Sprintf("Timeout can't be negative: %s", flag),
			"Use a positive duration like 30s.")
	}
	return duration, nil
}

// resolveCluster picks the cluster named by flag, or the only configured
// cluster when flag is empty.
func resolveCluster(cfg *config.Config, flag string) (string, config.ClusterConfig, error) {
	if flag != "" {
		cc, ok := cfg.Clusters[flag]
		if !ok {
			return "", config.ClusterConfig{}, errors.New(errors.ErrConfig,
				fmt.Sprintf("Cluster '%s' not found in config", flag),
				"Known clusters: "+knownClusters(cfg))
		}
		return flag, cc, nil
	}

	switch len(cfg.Clusters) {
	case 0:
		return "", config.ClusterConfig{}, errors.New(errors.ErrConfig,
			"No clusters configured",
			"Add one with 'crmon cluster add <name> <host>...'")
	case 1:
		for name, cc := range cfg.Clusters {
			return name, cc, nil
		}
	}
	return "", config.ClusterConfig{}, errors.New(errors.ErrConfig,
		"More than one cluster configured",
		"Pick one with --cluster: "+knownClusters(cfg))
}

func knownClusters(cfg *config.Config) string {
	return util.JoinOrNone(util.SortedKeys(cfg.Clusters))
}

// parseKind maps a --kind flag to a resource kind.
func parseKind(s string) (store.Kind, error) {
	switch strings.ToLower(s) {
	case "", "primitive":
		return store.Primitive, nil
	case "group":
		return store.Group, nil
	case "clone":
		return store.Clone, nil
	case "master", "master-slave", "ms":
		return store.MasterSlave, nil
	}
	return 0, errors.New(errors.ErrConfig,
		fmt.Sprintf("Unknown resource kind '%s'", s),
		"Use one of: primitive, group, clone, master")
}

// parseParams turns repeated key=value flags into a map.
func parseParams(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, errors.New(errors.ErrConfig,
				fmt.Sprintf("Parameter '%s' isn't key=value", p),
				"Pass parameters like --param ip=10.0.0.10")
		}
		params[strings.TrimSpace(k)] = v
	}
	return params, nil
}
