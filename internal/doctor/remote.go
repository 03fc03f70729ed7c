package doctor

import (
	"context"
	"fmt"

	"github.com/rileyhilliard/crmon/internal/poll"
	"github.com/rileyhilliard/crmon/internal/util"
	"github.com/rileyhilliard/crmon/pkg/sshutil"
)

// ConnectCheck dials a host. On success the connection stays open for the
// checks that follow it; Close releases it.
type ConnectCheck struct {
	Cluster  string
	HostName string
	Dial     poll.DialFunc

	Client sshutil.SSHClient
}

func (c *ConnectCheck) Name() string     { return "connect_" + c.HostName }
func (c *ConnectCheck) Category() string { return CategoryHosts }

func (c *ConnectCheck) Run(ctx context.Context) CheckResult {
	client, err := c.Dial(ctx, c.HostName)
	if err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    fmt.Sprintf("%s/%s: can't connect: %v", c.Cluster, c.HostName, err),
			Suggestion: fmt.Sprintf("Try 'ssh %s' by hand", c.HostName),
		}
	}
	c.Client = client
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s/%s: connected (%s)", c.Cluster, c.HostName, client.GetAddress()),
	}
}

// Close closes the connection opened by Run.
func (c *ConnectCheck) Close() {
	if c.Client != nil {
		c.Client.Close() //nolint:errcheck // Best-effort close
		c.Client = nil
	}
}

// HelperCheck verifies the program behind a poll command is installed and
// executable on a host.
type HelperCheck struct {
	Command string
	Conn    *ConnectCheck
}

func (c *HelperCheck) Name() string     { return "helper_" + c.Conn.HostName + "_" + c.program() }
func (c *HelperCheck) Category() string { return CategoryHosts }

func (c *HelperCheck) program() string { return util.Program(c.Command) }

func (c *HelperCheck) Run(context.Context) CheckResult {
	host := c.Conn.HostName
	prog := c.program()
	if prog == "" {
		return CheckResult{
			Status:     StatusFail,
			Message:    "Poll command is empty",
			Suggestion: "Set poll.cluster_status_command and poll.replication_command",
		}
	}
	if c.Conn.Client == nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("%s: %s not checked, no connection", host, prog),
		}
	}

	_, _, exitCode, err := c.Conn.Client.Exec(util.LookupCommand(prog))
	if err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    fmt.Sprintf("%s: cannot check %s: %v", host, prog, err),
			Suggestion: "Check SSH connection",
		}
	}
	if exitCode != 0 {
		return CheckResult{
			Status:     StatusFail,
			Message:    fmt.Sprintf("%s: %s not found", host, prog),
			Suggestion: fmt.Sprintf("Install it on %s or point the poll commands at the right path", host),
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s: %s installed", host, prog),
	}
}

// HostChecks returns the checks for one host: connect, then one helper
// check per distinct command. Close the returned ConnectCheck when done.
func HostChecks(cluster, host string, dial poll.DialFunc, commands []string) (*ConnectCheck, []Check) {
	conn := &ConnectCheck{Cluster: cluster, HostName: host, Dial: dial}
	checks := []Check{conn}
	seen := make(map[string]bool)
	for _, cmd := range commands {
		h := &HelperCheck{Command: cmd, Conn: conn}
		if seen[h.program()] {
			continue
		}
		seen[h.program()] = true
		checks = append(checks, h)
	}
	return conn, checks
}
