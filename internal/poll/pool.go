package poll

import (
	"context"
	"sync"
	"time"

	"github.com/rileyhilliard/crmon/pkg/sshutil"
)

// DialFunc opens a connection to host.
type DialFunc func(ctx context.Context, host string) (sshutil.SSHClient, error)

// SSHDialer returns a DialFunc backed by sshutil.DialContext with a
// per-attempt timeout.
func SSHDialer(timeout time.Duration) DialFunc {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return func(ctx context.Context, host string) (sshutil.SSHClient, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		client, err := sshutil.DialContext(ctx, host)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// Pool keeps one SSH connection per host so the cluster-status and
// replication loops of a host share a transport.
type Pool struct {
	mu          sync.Mutex
	connections map[string]*poolEntry
	dial        DialFunc
}

type poolEntry struct {
	client   sshutil.SSHClient
	lastUsed time.Time
}

// NewPool creates an empty pool that opens connections with dial.
func NewPool(dial DialFunc) *Pool {
	return &Pool{
		connections: make(map[string]*poolEntry),
		dial:        dial,
	}
}

// Get returns the cached connection for host, or dials a new one. A cached
// connection that can no longer open a session is closed and replaced.
func (p *Pool) Get(ctx context.Context, host string) (sshutil.SSHClient, error) {
	p.mu.Lock()
	entry, exists := p.connections[host]
	p.mu.Unlock()

	if exists {
		if isAlive(entry.client) {
			p.touch(host, entry.client)
			return entry.client, nil
		}
		p.Discard(host, entry.client)
	}

	client, err := p.dial(ctx, host)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// The other loop of this host may have dialed at the same time.
	if cur, ok := p.connections[host]; ok && cur.client != nil {
		_ = client.Close()
		cur.lastUsed = time.Now()
		return cur.client, nil
	}
	p.connections[host] = &poolEntry{client: client, lastUsed: time.Now()}
	return client, nil
}

// Discard closes client and forgets it, provided it is still the cached
// connection for host. A loop calls this after its session failed.
func (p *Pool) Discard(host string, client sshutil.SSHClient) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.connections[host]
	if !ok || entry.client != client {
		return
	}
	_ = entry.client.Close()
	delete(p.connections, host)
}

// CloseOne closes and removes the connection for host.
func (p *Pool) CloseOne(host string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if entry, ok := p.connections[host]; ok {
		_ = entry.client.Close()
		delete(p.connections, host)
	}
}

// Close closes every connection in the pool.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for host, entry := range p.connections {
		_ = entry.client.Close()
		delete(p.connections, host)
	}
}

// Size returns the number of cached connections.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.connections)
}

func (p *Pool) touch(host string, client sshutil.SSHClient) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if entry, ok := p.connections[host]; ok && entry.client == client {
		entry.lastUsed = time.Now()
	}
}

// isAlive opens and closes a session to check the connection still works.
func isAlive(client sshutil.SSHClient) bool {
	if client == nil {
		return false
	}
	session, err := client.NewSession()
	if err != nil {
		return false
	}
	_ = session.Close()
	return true
}
