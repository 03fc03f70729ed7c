package cluster

import (
	"github.com/rileyhilliard/crmon/internal/store"
)

// Fixed categories a Ref may point at.
const (
	CategoryCluster     = "cluster"
	CategoryHosts       = "hosts"
	CategoryServices    = "services"
	CategoryReplication = "replication"
)

var categories = map[string]bool{
	CategoryCluster:     true,
	CategoryHosts:       true,
	CategoryServices:    true,
	CategoryReplication: true,
}

// Resolved is the current state behind a Ref.
type Resolved struct {
	store.Resolved
	Host     *HostState
	Category string
}

// Resolve looks up any Ref kind. Store-backed kinds go through the store;
// hosts and categories are answered by the cluster.
func (c *Cluster) Resolve(ref store.Ref) (Resolved, bool) {
	switch ref.Kind {
	case store.RefHost:
		h, ok := c.byName[ref.ID]
		if !ok {
			return Resolved{}, false
		}
		st := h.State()
		return Resolved{Host: &st}, true
	case store.RefCategory:
		if !categories[ref.ID] {
			return Resolved{}, false
		}
		return Resolved{Category: ref.ID}, true
	default:
		r, ok := c.store.Resolve(ref)
		return Resolved{Resolved: r}, ok
	}
}

// Snapshot is a point-in-time copy of a cluster's whole model.
type Snapshot struct {
	Cluster         string         `json:"cluster" yaml:"cluster"`
	Ready           bool           `json:"ready" yaml:"ready"`
	DC              string         `json:"dc,omitempty" yaml:"dc,omitempty"`
	DCAuthoritative bool           `json:"dc_authoritative" yaml:"dc_authoritative"`
	Hosts           []HostState    `json:"hosts" yaml:"hosts"`
	Model           store.Snapshot `json:"model" yaml:"model"`
}

// Snapshot copies the cluster's state. Host flags and the store are read
// separately; each part is consistent on its own.
func (c *Cluster) Snapshot() Snapshot {
	dc, auth := c.DC()
	snap := Snapshot{
		Cluster:         c.name,
		Ready:           c.gate.Released(),
		DC:              dc,
		DCAuthoritative: auth,
		Model:           c.store.Snapshot(),
	}
	for _, h := range c.hosts {
		snap.Hosts = append(snap.Hosts, h.State())
	}
	return snap
}
