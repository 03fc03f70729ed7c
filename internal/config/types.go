package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Config represents the complete crmon.yaml configuration file.
type Config struct {
	Version  int                      `yaml:"version" mapstructure:"version"`
	Clusters map[string]ClusterConfig `yaml:"clusters" mapstructure:"clusters"`
	Poll     PollConfig               `yaml:"poll" mapstructure:"poll"`
	Layout   LayoutConfig             `yaml:"layout" mapstructure:"layout"`
	Log      LogConfig                `yaml:"log" mapstructure:"log"`
	Metrics  MetricsConfig            `yaml:"metrics" mapstructure:"metrics"`
}

// ClusterConfig names the hosts of one cluster.
type ClusterConfig struct {
	// Hosts are SSH aliases (or user@host strings). List order is cluster
	// order: DC failover walks it and bulk locks are taken in it.
	Hosts []string `yaml:"hosts" mapstructure:"hosts"`
}

// PollConfig controls the per-host poll loops.
type PollConfig struct {
	// ClusterStatusCommand streams framed cluster manager status.
	ClusterStatusCommand string `yaml:"cluster_status_command" mapstructure:"cluster_status_command"`

	// ReplicationCommand streams framed replication config and events.
	ReplicationCommand string `yaml:"replication_command" mapstructure:"replication_command"`

	// RetryDelay is the fixed wait before re-running a command that ended.
	RetryDelay time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`

	// DialTimeout bounds each SSH connection attempt.
	DialTimeout time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`

	// SelfInflictedExitCodes are exit codes caused by crmon stopping the
	// command itself. They do not mark the host offline.
	SelfInflictedExitCodes []int `yaml:"self_inflicted_exit_codes" mapstructure:"self_inflicted_exit_codes"`
}

// LayoutConfig points at the layout hint database.
type LayoutConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig controls the logger backend.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	JSON  bool   `yaml:"json" mapstructure:"json"`
	// File sends logs to a rotated file. The watch dashboard needs this to
	// keep log lines off the terminal.
	File string `yaml:"file" mapstructure:"file"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address (e.g. ":9464"). Empty disables the endpoint.
	Addr string `yaml:"addr" mapstructure:"addr"`
}

const (
	DefaultClusterStatusCommand = "/usr/local/bin/crmon-helper get-cluster-events"
	DefaultReplicationCommand   = "/usr/local/bin/crmon-helper get-drbd-events"
)

// DefaultSelfInflictedExitCodes are the exit codes of a remote command
// killed by SIGINT, SIGKILL, or SIGTERM.
var DefaultSelfInflictedExitCodes = []int{130, 137, 143}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	codes := make([]int, len(DefaultSelfInflictedExitCodes))
	copy(codes, DefaultSelfInflictedExitCodes)

	return &Config{
		Version:  CurrentConfigVersion,
		Clusters: make(map[string]ClusterConfig),
		Poll: PollConfig{
			ClusterStatusCommand:   DefaultClusterStatusCommand,
			ReplicationCommand:     DefaultReplicationCommand,
			RetryDelay:             5 * time.Second,
			DialTimeout:            10 * time.Second,
			SelfInflictedExitCodes: codes,
		},
		Layout: LayoutConfig{
			Path: "~/.config/crmon/layout.db",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
