// Package cli implements the crmon command-line interface.
//
// Commands are Cobra commands registered from init functions. Each RunE
// parses its flags and hands off to a small function that takes an
// io.Writer, so output can be tested without a terminal.
//
// # Command Structure
//
//	crmon watch                    - Live dashboard of one cluster
//	crmon status                   - One snapshot as text, JSON or YAML
//	crmon resource define          - Allocate ids for a new resource
//	crmon layout [set|get|delete]  - Saved positions per host
//	crmon cluster [add|list]       - Manage configured clusters
//	crmon doctor                   - Check config, SSH and remote helpers
//	crmon version
//	crmon completion
//
// Commands that talk to a cluster share one path: load and validate the
// config, build cluster.Options with an SSH connection pool, start polling
// through a cluster.Registry, and wait for the first full cluster status
// before reading the model.
//
// # Flag Handling
//
// Global flags (--config, --log-level, --log-file, --no-color) are defined
// on the root command. ClusterFlags adds --cluster and --timeout to the
// commands that connect.
package cli
