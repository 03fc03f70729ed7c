package cluster

import "sync"

// Host is one cluster member as seen through its poll loops. Every setter
// reports whether the value changed so callers only notify on real changes.
type Host struct {
	name string

	mu              sync.RWMutex
	connected       bool
	clusterStatusOK bool
	crmRunning      bool
	storageOK       bool
	inTransition    bool
	dc              bool

	// replMu guards replConfig. Cluster.LockReplication takes it on every
	// host in cluster order.
	replMu     sync.Mutex
	replConfig *ReplicationConfig
}

// HostState is a copy of a host's flags.
type HostState struct {
	Name            string `json:"name" yaml:"name"`
	Connected       bool   `json:"connected" yaml:"connected"`
	ClusterStatusOK bool   `json:"cluster_status_ok" yaml:"cluster_status_ok"`
	CRMRunning      bool   `json:"crm_running" yaml:"crm_running"`
	StorageStatusOK bool   `json:"storage_status_ok" yaml:"storage_status_ok"`
	InTransition    bool   `json:"in_transition" yaml:"in_transition"`
	IsDC            bool   `json:"is_dc" yaml:"is_dc"`
}

// NewHost returns a host with every flag cleared.
func NewHost(name string) *Host {
	return &Host{name: name}
}

// Name is the SSH alias of the host.
func (h *Host) Name() string { return h.name }

// State copies the flags.
func (h *Host) State() HostState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HostState{
		Name:            h.name,
		Connected:       h.connected,
		ClusterStatusOK: h.clusterStatusOK,
		CRMRunning:      h.crmRunning,
		StorageStatusOK: h.storageOK,
		InTransition:    h.inTransition,
		IsDC:            h.dc,
	}
}

// Eligible reports whether the host may act as DC: connected, running the
// cluster manager and not in the middle of a start or stop.
func (h *Host) Eligible() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.connected && h.crmRunning && !h.inTransition
}

func (h *Host) set(field *bool, v bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if *field == v {
		return false
	}
	*field = v
	return true
}

func (h *Host) get(field *bool) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return *field
}

// Connected reports whether the cluster-status session is up.
func (h *Host) Connected() bool { return h.get(&h.connected) }

// ClusterStatusOK reports whether the last cluster-status frame was a full
// status rather than an error frame.
func (h *Host) ClusterStatusOK() bool { return h.get(&h.clusterStatusOK) }

// StorageStatusOK reports whether the replication stream is online.
func (h *Host) StorageStatusOK() bool { return h.get(&h.storageOK) }

func (h *Host) InTransition() bool { return h.get(&h.inTransition) }

// IsDC reports whether this host is the cluster's DC.
func (h *Host) IsDC() bool { return h.get(&h.dc) }

func (h *Host) SetConnected(v bool) bool { return h.set(&h.connected, v) }

func (h *Host) SetClusterStatusOK(v bool) bool { return h.set(&h.clusterStatusOK, v) }

func (h *Host) SetCRMRunning(v bool) bool { return h.set(&h.crmRunning, v) }

func (h *Host) SetStorageStatusOK(v bool) bool { return h.set(&h.storageOK, v) }

// SetInTransition marks the cluster stack as starting or stopping. Callers
// that drive the stack set it; a host in transition is never picked as DC.
func (h *Host) SetInTransition(v bool) bool { return h.set(&h.inTransition, v) }

func (h *Host) setDC(v bool) bool { return h.set(&h.dc, v) }

// ReplicationConfig returns the last replication config this host reported.
func (h *Host) ReplicationConfig() *ReplicationConfig {
	h.replMu.Lock()
	defer h.replMu.Unlock()
	return h.replConfig
}
