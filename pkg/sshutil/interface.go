package sshutil

import (
	"context"
	"io"
)

// StreamExecutor runs a long-lived command and streams its output.
type StreamExecutor interface {
	// ExecStreamContext writes stdout chunks to stdout as they arrive, on
	// the calling goroutine. Cancelling ctx closes the session; the call
	// then returns ExitTerminated and a nil error.
	ExecStreamContext(ctx context.Context, cmd string, stdout, stderr io.Writer) (exitCode int, err error)
}

// SSHClient defines the interface for remote command execution.
// Both the real Client and the mock in sshutil/testing satisfy it.
type SSHClient interface {
	StreamExecutor

	// Exec runs a command and returns stdout, stderr, and exit code.
	// Exit code is -1 if the command couldn't be executed at all.
	// A non-zero exit code with nil error means the command ran but failed.
	Exec(cmd string) (stdout, stderr []byte, exitCode int, err error)

	// Close closes the SSH connection.
	Close() error

	// GetHost returns the original host/alias used to connect.
	GetHost() string

	// GetAddress returns the resolved host:port address.
	GetAddress() string

	// NewSession creates a new SSH session for liveness checks.
	// The returned session should be closed after use.
	NewSession() (Session, error)
}

// Session represents an SSH session that can be closed.
type Session interface {
	io.Closer
}

// Exit codes of a remote command killed by a signal (128 + signal number).
const (
	ExitInterrupted = 130 // SIGINT
	ExitKilled      = 137 // SIGKILL
	ExitTerminated  = 143 // SIGTERM
)
