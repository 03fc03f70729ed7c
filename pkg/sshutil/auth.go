package sshutil

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/rileyhilliard/crmon/internal/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Key files tried after the agent, CRMON_SSH_KEY and the ssh_config
// IdentityFile.
var defaultKeyNames = []string{"id_ed25519", "id_rsa", "id_ecdsa"}

// clientConfig builds the auth chain and host key check for s. Host keys
// are always verified against ~/.ssh/known_hosts.
func clientConfig(s *sshSettings) (*ssh.ClientConfig, error) {
	var methods []ssh.AuthMethod
	if a := agentAuth(); a != nil {
		methods = append(methods, a)
	}

	tried := make(map[string]bool)
	candidates := []string{os.Getenv("CRMON_SSH_KEY"), s.identityFile}
	for _, name := range defaultKeyNames {
		candidates = append(candidates, filepath.Join(homeDir(), ".ssh", name))
	}
	for _, path := range candidates {
		if path == "" || tried[path] {
			continue
		}
		tried[path] = true

		m, err := keyFileAuth(path)
		var enc *EncryptedKeyError
		switch {
		case stderrors.As(err, &enc):
			s.encryptedKeys = append(s.encryptedKeys, path)
		case err == nil:
			methods = append(methods, m)
		}
	}

	if len(methods) == 0 {
		if len(s.encryptedKeys) > 0 {
			return nil, errors.New(errors.ErrSSH,
				"Every SSH key found needs a passphrase: "+strings.Join(s.encryptedKeys, ", "),
				addKeysHint(s.encryptedKeys))
		}
		return nil, errors.New(errors.ErrSSH,
			"No SSH keys or agent available",
			"Check your keys are loaded: ssh-add -l")
	}

	knownHostsPath := filepath.Join(homeDir(), ".ssh", "known_hosts")
	hostKeys, err := hostKeyCallback(knownHostsPath)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			"Can't read "+knownHostsPath,
			"Check the file's permissions")
	}

	return &ssh.ClientConfig{
		User:            s.user,
		Auth:            methods,
		HostKeyCallback: hostKeys,
	}, nil
}

var (
	agentOnce   sync.Once
	agentClient agent.ExtendedAgent
)

// agentAuth returns agent auth when SSH_AUTH_SOCK points at an agent that
// holds at least one key. An empty agent first in the chain fails auth
// before key files get a chance. The agent connection lives for the process.
func agentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}
	agentOnce.Do(func() {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			log.Debug("ssh agent unavailable: %v", err)
			return
		}
		agentClient = agent.NewClient(conn)
	})
	if agentClient == nil {
		return nil
	}
	if signers, err := agentClient.Signers(); err != nil || len(signers) == 0 {
		return nil
	}
	return ssh.PublicKeysCallback(agentClient.Signers)
}

// keyFileAuth loads an unencrypted private key.
func keyFileAuth(path string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if stderrors.As(err, &missing) || isEncryptedPEM(key) {
			return nil, &EncryptedKeyError{Path: path}
		}
		return nil, err
	}
	return ssh.PublicKeys(signer), nil
}

func isEncryptedPEM(data []byte) bool {
	return bytes.Contains(data, []byte("ENCRYPTED"))
}

// hostKeyCallback verifies against known_hosts, creating an empty file when
// there is none, and turns key mismatches into HostKeyMismatchError.
func hostKeyCallback(path string) (ssh.HostKeyCallback, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, nil, 0600); err != nil {
			return nil, err
		}
	}

	verify, err := knownhosts.New(path)
	if err != nil {
		return nil, err
	}
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := verify(hostname, remote, key)
		var keyErr *knownhosts.KeyError
		if stderrors.As(err, &keyErr) && len(keyErr.Want) > 0 {
			return &HostKeyMismatchError{
				Hostname:     hostname,
				ReceivedType: key.Type(),
				KnownHosts:   path,
				Want:         keyErr.Want,
			}
		}
		return err
	}, nil
}

// EncryptedKeyError is returned for a key that needs a passphrase.
type EncryptedKeyError struct {
	Path string
}

func (e *EncryptedKeyError) Error() string {
	return fmt.Sprintf("SSH key %s is passphrase protected", e.Path)
}

// HostKeyMismatchError reports a host key that differs from known_hosts.
type HostKeyMismatchError struct {
	Hostname     string
	ReceivedType string
	KnownHosts   string
	Want         []knownhosts.KnownKey
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.ReceivedType)
}

// Suggestion tells the user how to refresh the known_hosts entry.
func (e *HostKeyMismatchError) Suggestion() string {
	host := e.Hostname
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	known := make([]string, 0, len(e.Want))
	for _, k := range e.Want {
		known = append(known, k.Key.Type())
	}
	return fmt.Sprintf("known_hosts has %s, the server sent %s. If the host was rebuilt:\n"+
		"  ssh-keygen -R %s\n"+
		"  ssh-keyscan %s >> %s",
		strings.Join(known, ", "), e.ReceivedType, host, host, e.KnownHosts)
}

var dialHints = []struct{ match, hint string }{
	{"connection refused", "Is SSH running on that host? Try: ssh <host>"},
	{"no route to host", "Can't route to the host. Check the network."},
	{"network is unreachable", "Can't route to the host. Check the network."},
	{"timeout", "Connection timed out. The host may be down or firewalled."},
}

func suggestionForDialError(err error) string {
	msg := err.Error()
	for _, h := range dialHints {
		if strings.Contains(msg, h.match) {
			return h.hint
		}
	}
	return "Make sure the host is reachable: ping <host>"
}

func suggestionForHandshakeError(err error, encryptedKeys []string) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "unable to authenticate"), strings.Contains(msg, "no supported methods"):
		if len(encryptedKeys) > 0 {
			return addKeysHint(encryptedKeys)
		}
		return "Authentication failed. Check your keys are loaded: ssh-add -l"
	case strings.Contains(msg, "host key"):
		return "Host key issue. Connect once by hand first: ssh <host>"
	default:
		return "Something went wrong during the SSH handshake. Try: ssh -v <host>"
	}
}

func addKeysHint(keys []string) string {
	var b strings.Builder
	b.WriteString("Add the key(s) to your agent:\n")
	for _, k := range keys {
		if runtime.GOOS == "darwin" {
			fmt.Fprintf(&b, "  ssh-add --apple-use-keychain %s\n", k)
		} else {
			fmt.Fprintf(&b, "  ssh-add %s\n", k)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
