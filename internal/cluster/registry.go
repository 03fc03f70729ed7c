package cluster

import (
	"context"
	"fmt"
	"sort"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rileyhilliard/crmon/internal/errors"
)

// Registry holds the clusters crmon is connected to.
type Registry struct {
	clusters cmap.ConcurrentMap[string, *Cluster]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{clusters: cmap.New[*Cluster]()}
}

// Add creates a cluster from opts, registers it and starts polling.
// Adding a name that is already connected fails.
func (r *Registry) Add(ctx context.Context, opts Options) (*Cluster, error) {
	c, err := New(opts)
	if err != nil {
		return nil, err
	}
	if !r.clusters.SetIfAbsent(opts.Name, c) {
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("cluster %s is already connected", opts.Name),
			"Disconnect it first")
	}
	if err := c.Start(ctx); err != nil {
		r.clusters.Remove(opts.Name)
		return nil, err
	}
	return c, nil
}

// Get returns a connected cluster.
func (r *Registry) Get(name string) (*Cluster, bool) {
	return r.clusters.Get(name)
}

// Names lists connected clusters, sorted.
func (r *Registry) Names() []string {
	names := r.clusters.Keys()
	sort.Strings(names)
	return names
}

// Len returns the number of connected clusters.
func (r *Registry) Len() int {
	return r.clusters.Count()
}

// Disconnect stops and forgets a cluster. It reports whether the cluster
// was connected.
func (r *Registry) Disconnect(name string) bool {
	c, ok := r.clusters.Pop(name)
	if !ok {
		return false
	}
	c.Disconnect()
	return true
}

// DisconnectAll disconnects every cluster.
func (r *Registry) DisconnectAll() {
	for _, name := range r.Names() {
		r.Disconnect(name)
	}
}
