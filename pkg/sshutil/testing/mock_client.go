// Package testing provides an in-memory sshutil.SSHClient for exercising
// poll loops and CLI commands without a real SSH server.
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sync"
	"time"

	"github.com/rileyhilliard/crmon/pkg/sshutil"
)

// ErrClosed is returned by every call made after Close.
var ErrClosed = errors.New("connection closed")

// CommandResponse defines a canned response for Exec.
type CommandResponse struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Error    error
}

// StreamScript describes one run of a streaming command.
type StreamScript struct {
	// Chunks are written to stdout in order, one Write per chunk.
	Chunks [][]byte
	// ChunkDelay is slept between chunks.
	ChunkDelay time.Duration
	// HoldOpen keeps the command running after the last chunk until ctx
	// is cancelled, then reports sshutil.ExitTerminated.
	HoldOpen bool
	ExitCode int
	Err      error
}

// MockClient simulates an SSH connection for testing.
type MockClient struct {
	mu       sync.Mutex
	host     string
	address  string
	closed   bool
	commands map[string]CommandResponse
	streams  map[string][]StreamScript
	calls    map[string]int
}

// NewMockClient creates a mock connected to host.
func NewMockClient(host string) *MockClient {
	return &MockClient{
		host:     host,
		address:  host + ":22",
		commands: make(map[string]CommandResponse),
		streams:  make(map[string][]StreamScript),
		calls:    make(map[string]int),
	}
}

// SetCommandResponse registers a response for Exec. The pattern is tried as
// an exact match first, then as a regular expression.
func (m *MockClient) SetCommandResponse(pattern string, resp CommandResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands[pattern] = resp
}

// SetStreamScripts registers the runs ExecStreamContext plays for commands
// matching pattern. Each call consumes the next script; the last one repeats.
func (m *MockClient) SetStreamScripts(pattern string, scripts ...StreamScript) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams[pattern] = scripts
}

// Calls returns how many times cmd was run through Exec or ExecStreamContext.
func (m *MockClient) Calls(cmd string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[cmd]
}

// Closed reports whether Close was called.
func (m *MockClient) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Exec returns the registered response for cmd. Unknown commands exit 127.
func (m *MockClient) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, nil, -1, ErrClosed
	}
	m.calls[cmd]++

	if resp, ok := lookup(m.commands, cmd); ok {
		return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
	}
	return nil, []byte(fmt.Sprintf("sh: %s: command not found\n", cmd)), 127, nil
}

// ExecStreamContext plays the next script registered for cmd.
func (m *MockClient) ExecStreamContext(ctx context.Context, cmd string, stdout, stderr io.Writer) (int, error) {
	script, err := m.nextScript(cmd)
	if err != nil {
		return -1, err
	}

	for i, chunk := range script.Chunks {
		if i > 0 && script.ChunkDelay > 0 {
			select {
			case <-ctx.Done():
				return sshutil.ExitTerminated, nil
			case <-time.After(script.ChunkDelay):
			}
		}
		if ctx.Err() != nil {
			return sshutil.ExitTerminated, nil
		}
		if stdout != nil {
			if _, werr := stdout.Write(chunk); werr != nil {
				return -1, werr
			}
		}
	}

	if script.HoldOpen {
		<-ctx.Done()
		return sshutil.ExitTerminated, nil
	}
	if script.Err != nil {
		return -1, script.Err
	}
	return script.ExitCode, nil
}

func (m *MockClient) nextScript(cmd string) (StreamScript, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return StreamScript{}, ErrClosed
	}
	n := m.calls[cmd]
	m.calls[cmd]++

	scripts, ok := lookup(m.streams, cmd)
	if !ok || len(scripts) == 0 {
		return StreamScript{ExitCode: 127}, nil
	}
	if n >= len(scripts) {
		n = len(scripts) - 1
	}
	return scripts[n], nil
}

func lookup[T any](table map[string]T, cmd string) (T, bool) {
	if v, ok := table[cmd]; ok {
		return v, true
	}
	for pattern, v := range table {
		if matched, _ := regexp.MatchString(pattern, cmd); matched {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Close marks the connection as closed.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// GetHost returns the host name.
func (m *MockClient) GetHost() string {
	return m.host
}

// GetAddress returns the host:port address.
func (m *MockClient) GetAddress() string {
	return m.address
}

type mockSession struct{}

func (s *mockSession) Close() error { return nil }

// NewSession returns a no-op session while the connection is open.
func (m *MockClient) NewSession() (sshutil.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	return &mockSession{}, nil
}

var _ sshutil.SSHClient = (*MockClient)(nil)
