package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rileyhilliard/crmon/internal/errors"
)

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.ErrConfig,
			"Config is nil",
			"This is unexpected - try reloading the configuration.")
	}

	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but crmon only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade crmon")
	}

	names := make([]string, 0, len(cfg.Clusters))
	for name := range cfg.Clusters {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ValidateCluster(name, cfg.Clusters[name]); err != nil {
			return err
		}
	}

	if err := validatePoll(cfg.Poll); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'poll' section in your crmon.yaml.")
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown log level '%s'", cfg.Log.Level),
			"Use one of: debug, info, warn, error")
	}

	return nil
}

// ValidateCluster checks one cluster entry.
func ValidateCluster(name string, c ClusterConfig) error {
	if strings.TrimSpace(name) == "" {
		return errors.New(errors.ErrConfig,
			"Cluster name is empty",
			"Give every cluster under 'clusters' a name")
	}
	if len(c.Hosts) == 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Cluster '%s' has no hosts", name),
			fmt.Sprintf("Add at least one SSH alias under clusters.%s.hosts", name))
	}

	seen := make(map[string]bool, len(c.Hosts))
	for _, h := range c.Hosts {
		if strings.TrimSpace(h) == "" {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Cluster '%s' has an empty host entry", name),
				"Remove the blank line from the hosts list")
		}
		if seen[h] {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Host '%s' is listed twice in cluster '%s'", h, name),
				"Each host may appear once per cluster")
		}
		seen[h] = true
	}
	return nil
}

func validatePoll(p PollConfig) error {
	if strings.TrimSpace(p.ClusterStatusCommand) == "" {
		return fmt.Errorf("poll.cluster_status_command is empty")
	}
	if strings.TrimSpace(p.ReplicationCommand) == "" {
		return fmt.Errorf("poll.replication_command is empty")
	}
	if p.RetryDelay <= 0 {
		return fmt.Errorf("poll.retry_delay must be positive, got %s", p.RetryDelay)
	}
	if p.DialTimeout <= 0 {
		return fmt.Errorf("poll.dial_timeout must be positive, got %s", p.DialTimeout)
	}
	for _, code := range p.SelfInflictedExitCodes {
		if code <= 0 || code > 255 {
			return fmt.Errorf("poll.self_inflicted_exit_codes: %d is not a valid exit code", code)
		}
	}
	return nil
}
