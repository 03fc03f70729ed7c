// Package ui renders crmon's terminal output: the shared color palette and
// status symbols, plain tables for hosts, services and replication objects,
// and the interactive host picker used by `crmon cluster add`.
//
// Call DisableColors for --no-color or when stdout is not a terminal.
package ui
