package doctor

import (
	"context"
	"fmt"
	"sort"

	"github.com/rileyhilliard/crmon/internal/config"
	"github.com/rileyhilliard/crmon/internal/util"
)

// ConfigFileCheck verifies that a config file exists and is valid.
type ConfigFileCheck struct {
	ConfigPath string // Explicit path, or empty to search
}

func (c *ConfigFileCheck) Name() string     { return "config_file" }
func (c *ConfigFileCheck) Category() string { return CategoryConfig }

func (c *ConfigFileCheck) Run(context.Context) CheckResult {
	path, err := config.Find(c.ConfigPath)
	if err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    fmt.Sprintf("Error finding config: %v", err),
			Suggestion: "Check the path passed to --config",
		}
	}
	if path == "" {
		return CheckResult{
			Status:     StatusFail,
			Message:    "No config file found",
			Suggestion: "Run 'crmon cluster add <name> <host>...' to create one",
		}
	}

	cfg, err := config.Load(path)
	if err == nil {
		err = config.Validate(cfg)
	}
	if err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    fmt.Sprintf("Config %s is invalid", path),
			Suggestion: err.Error(),
		}
	}

	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("Config file: %s", path),
	}
}

// ClustersCheck verifies at least one cluster is configured and that no
// host is shared between clusters.
type ClustersCheck struct {
	Config *config.Config
}

func (c *ClustersCheck) Name() string     { return "clusters" }
func (c *ClustersCheck) Category() string { return CategoryConfig }

func (c *ClustersCheck) Run(context.Context) CheckResult {
	if c.Config == nil || len(c.Config.Clusters) == 0 {
		return CheckResult{
			Status:     StatusFail,
			Message:    "No clusters configured",
			Suggestion: "Run 'crmon cluster add <name> <host>...'",
		}
	}

	owner := make(map[string]string)
	var shared []string
	hosts := 0
	for name, cc := range c.Config.Clusters {
		for _, h := range cc.Hosts {
			hosts++
			if other, ok := owner[h]; ok && other != name {
				shared = append(shared, h)
			}
			owner[h] = name
		}
	}
	if len(shared) > 0 {
		sort.Strings(shared)
		return CheckResult{
			Status:     StatusWarn,
			Message:    fmt.Sprintf("Hosts listed in more than one cluster: %s", util.JoinOrNone(shared)),
			Suggestion: "A host belongs to one cluster; check the clusters section",
		}
	}

	n := len(c.Config.Clusters)
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%d cluster%s, %d host%s", n, pluralize(n), hosts, pluralize(hosts)),
	}
}
