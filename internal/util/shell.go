// Package util holds small helpers shared by the CLI and the doctor checks.
package util

import "strings"

// ShellQuote wraps s in single quotes for a POSIX shell, escaping any
// single quotes it contains.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Program returns the program a shell command line runs: its first field.
func Program(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// LookupCommand returns a command line that exits 0 when prog is found on
// the remote PATH or is an executable path.
func LookupCommand(prog string) string {
	return "command -v " + ShellQuote(prog)
}
