package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kevinburke/ssh_config"
	"github.com/rileyhilliard/crmon/internal/errors"
	"github.com/rileyhilliard/crmon/internal/logger"
	"golang.org/x/crypto/ssh"
)

// Client wraps an SSH connection to one cluster host.
type Client struct {
	*ssh.Client
	Host    string // Alias from the cluster config
	Address string // Resolved host:port
}

var (
	log = logger.New("ssh")

	// Warn about a Match block in ssh_config once per process.
	matchWarning sync.Once
)

// DialContext connects to host, which is an ssh_config alias or any of
// host, user@host, host:port and user@host:port. ctx bounds the TCP connect
// and the handshake only; the returned connection has no deadline.
func DialContext(ctx context.Context, host string) (*Client, error) {
	s := resolveSSHSettings(host)

	config, err := clientConfig(s)
	if err != nil {
		return nil, err
	}

	address := s.address()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Can't reach %s at %s", host, address),
			suggestionForDialError(err))
	}
	if deadline, ok := ctx.Deadline(); ok {
		config.Timeout = time.Until(deadline)
		_ = conn.SetDeadline(deadline)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()
		var mismatch *HostKeyMismatchError
		if stderrors.As(err, &mismatch) {
			return nil, errors.New(errors.ErrSSH, mismatch.Error(), mismatch.Suggestion())
		}
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("SSH handshake with %s failed", host),
			suggestionForHandshakeError(err, s.encryptedKeys))
	}
	_ = conn.SetDeadline(time.Time{})

	log.Debug("connected to %s (%s as %s)", host, address, s.user)
	return &Client{
		Client:  ssh.NewClient(sshConn, chans, reqs),
		Host:    host,
		Address: address,
	}, nil
}

// Close closes the connection and every session on it.
func (c *Client) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// GetHost returns the alias used to connect.
func (c *Client) GetHost() string { return c.Host }

// GetAddress returns the resolved host:port.
func (c *Client) GetAddress() string { return c.Address }

// NewSession opens a session. The pool uses it as a liveness check.
func (c *Client) NewSession() (Session, error) {
	return c.Client.NewSession()
}

func (c *Client) newSSHSession() (*ssh.Session, error) {
	return c.Client.NewSession()
}

// sshSettings are the connection parameters for one host.
type sshSettings struct {
	hostname      string
	port          string
	user          string
	identityFile  string
	encryptedKeys []string // keys found on disk that need a passphrase
}

func (s *sshSettings) address() string {
	return net.JoinHostPort(s.hostname, s.port)
}

// resolveSSHSettings applies, in increasing precedence: defaults
// (port 22, $USER), CRMON_SSH_USER, the ssh_config entry for the alias, and
// an explicit user@ or :port in host.
func resolveSSHSettings(host string) *sshSettings {
	s := &sshSettings{port: "22", user: currentUser()}
	if u := os.Getenv("CRMON_SSH_USER"); u != "" {
		s.user = u
	}

	user, name, port := splitTarget(host)
	s.hostname = name
	applySSHConfig(s, name)

	if user != "" {
		s.user = user
	}
	if port != "" {
		s.port = port
	}
	return s
}

// splitTarget splits user@host:port. A suffix that isn't all digits stays
// part of the host name.
func splitTarget(target string) (user, host, port string) {
	host = target
	if at := strings.Index(host, "@"); at >= 0 {
		user, host = host[:at], host[at+1:]
	}
	if i := strings.LastIndex(host, ":"); i >= 0 && isDigits(host[i+1:]) {
		host, port = host[:i], host[i+1:]
	}
	return user, host, port
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// applySSHConfig overlays HostName, Port, User and IdentityFile from
// ~/.ssh/config. A missing or unparsable file leaves s untouched.
func applySSHConfig(s *sshSettings, alias string) {
	content, matchLine, err := preprocessSSHConfig(filepath.Join(homeDir(), ".ssh", "config"))
	if err != nil {
		return
	}
	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		log.Debug("ignoring ssh config: %v", err)
		return
	}

	found := false
	for key, dst := range map[string]*string{
		"HostName":     &s.hostname,
		"Port":         &s.port,
		"User":         &s.user,
		"IdentityFile": &s.identityFile,
	} {
		if v, _ := cfg.Get(alias, key); v != "" {
			*dst = v
			found = true
		}
	}
	if s.identityFile != "" {
		s.identityFile = expandPath(s.identityFile)
	}

	if matchLine > 0 && !found {
		matchWarning.Do(func() {
			log.Warn("host %s not found in ssh config; entries after the Match block at line %d are not read", alias, matchLine)
		})
	}
}

// preprocessSSHConfig returns the file's content up to the first Match
// directive, which ssh_config cannot parse, and that directive's 1-based
// line number (0 when there is none).
func preprocessSSHConfig(path string) ([]byte, int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "match ") {
			return []byte(strings.Join(lines[:i], "\n")), i + 1, nil
		}
	}
	return content, 0, nil
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return os.Getenv("HOME")
}

func currentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "root"
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}
