package store

// Snapshot is a point-in-time copy of the whole store. It shares no memory
// with the store and may be read without locks.
type Snapshot struct {
	Services  []ServiceInfo             `json:"services" yaml:"services"`
	Resources []ReplicationResourceInfo `json:"replication_resources" yaml:"replication_resources"`
	Volumes   []ReplicationVolumeInfo   `json:"replication_volumes" yaml:"replication_volumes"`
}

// Snapshot copies the store while holding both read locks, services first.
func (s *Store) Snapshot() Snapshot {
	s.svcMu.RLock()
	defer s.svcMu.RUnlock()
	s.replMu.RLock()
	defer s.replMu.RUnlock()

	rtx := &ReplicationTx{s: s}
	return Snapshot{
		Services:  (&ServiceTx{s: s}).All(),
		Resources: rtx.Resources(),
		Volumes:   rtx.Volumes(),
	}
}

// Service finds a service in the snapshot by CRM id.
func (sn Snapshot) Service(crmID string) (ServiceInfo, bool) {
	for _, svc := range sn.Services {
		if svc.CRMID == crmID {
			return svc, true
		}
	}
	return ServiceInfo{}, false
}

// Members returns the services whose parent is crmID.
func (sn Snapshot) Members(crmID string) []ServiceInfo {
	var out []ServiceInfo
	for _, svc := range sn.Services {
		if svc.Parent == crmID {
			out = append(out, svc)
		}
	}
	return out
}
