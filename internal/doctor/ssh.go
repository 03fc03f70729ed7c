package doctor

import (
	"context"
	"net"
	"os"
)

// SSHAgentCheck verifies the SSH agent is reachable. crmon falls back to
// key files, so a missing agent is only a warning.
type SSHAgentCheck struct{}

func (c *SSHAgentCheck) Name() string     { return "ssh_agent" }
func (c *SSHAgentCheck) Category() string { return CategorySSH }

func (c *SSHAgentCheck) Run(context.Context) CheckResult {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return CheckResult{
			Status:     StatusWarn,
			Message:    "SSH agent not running",
			Suggestion: "Start one with: eval $(ssh-agent) && ssh-add",
		}
	}

	conn, err := net.Dial("unix", socket)
	if err != nil {
		return CheckResult{
			Status:     StatusWarn,
			Message:    "SSH agent socket not accessible",
			Suggestion: "Check SSH_AUTH_SOCK points at a live agent",
		}
	}
	conn.Close() //nolint:errcheck // Best-effort close, error not actionable

	return CheckResult{
		Status:  StatusPass,
		Message: "SSH agent running",
	}
}
