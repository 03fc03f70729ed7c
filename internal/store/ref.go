package store

import (
	"fmt"
	"strconv"
	"strings"
)

// RefKind tags what a Ref points at.
type RefKind int

const (
	RefService RefKind = iota
	RefReplicationResource
	RefReplicationVolume
	RefHost
	RefCategory
)

func (k RefKind) String() string {
	switch k {
	case RefService:
		return "service"
	case RefReplicationResource:
		return "replication-resource"
	case RefReplicationVolume:
		return "replication-volume"
	case RefHost:
		return "host"
	case RefCategory:
		return "category"
	default:
		return "unknown"
	}
}

// Ref identifies a model object by stable id. It stays valid across
// snapshots and is what presentation code keeps instead of pointers.
type Ref struct {
	Kind RefKind
	// ID is a CRM id, a replication resource name, a volume key
	// ("res/vnr"), a host name, or a category name.
	ID string
}

// ServiceRef refers to a service by CRM id.
func ServiceRef(crmID string) Ref { return Ref{Kind: RefService, ID: crmID} }

// ResourceRef refers to a replication resource by name.
func ResourceRef(name string) Ref { return Ref{Kind: RefReplicationResource, ID: name} }

// VolumeRef refers to a replication volume.
func VolumeRef(resource string, volume int) Ref {
	return Ref{Kind: RefReplicationVolume, ID: VolumeKey(resource, volume)}
}

// HostRef refers to a host by name.
func HostRef(name string) Ref { return Ref{Kind: RefHost, ID: name} }

// CategoryRef refers to a fixed grouping such as "services".
func CategoryRef(name string) Ref { return Ref{Kind: RefCategory, ID: name} }

// String renders the ref as kind:id. It is the key used for layout hints.
func (r Ref) String() string {
	return r.Kind.String() + ":" + r.ID
}

// ParseRef is the inverse of Ref.String.
func ParseRef(s string) (Ref, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return Ref{}, fmt.Errorf("invalid ref %q", s)
	}
	for k := RefService; k <= RefCategory; k++ {
		if k.String() == kind {
			return Ref{Kind: k, ID: id}, nil
		}
	}
	return Ref{}, fmt.Errorf("invalid ref kind %q", kind)
}

// Resolved holds the current copy of whatever a Ref points at. Exactly one
// field is set for store-backed kinds.
type Resolved struct {
	Service  *ServiceInfo
	Resource *ReplicationResourceInfo
	Volume   *ReplicationVolumeInfo
}

// Resolve looks up a service or replication ref. Host and category refs are
// not held by the store and resolve to false.
func (s *Store) Resolve(ref Ref) (Resolved, bool) {
	switch ref.Kind {
	case RefService:
		svc, ok := s.Service(ref.ID)
		if !ok {
			return Resolved{}, false
		}
		return Resolved{Service: &svc}, true
	case RefReplicationResource:
		var r ReplicationResourceInfo
		var ok bool
		s.ViewReplication(func(tx *ReplicationTx) error {
			r, ok = tx.Resource(ref.ID)
			return nil
		})
		if !ok {
			return Resolved{}, false
		}
		return Resolved{Resource: &r}, true
	case RefReplicationVolume:
		res, vnr, ok := splitVolumeKey(ref.ID)
		if !ok {
			return Resolved{}, false
		}
		var v ReplicationVolumeInfo
		s.ViewReplication(func(tx *ReplicationTx) error {
			v, ok = tx.Volume(res, vnr)
			return nil
		})
		if !ok {
			return Resolved{}, false
		}
		return Resolved{Volume: &v}, true
	default:
		return Resolved{}, false
	}
}

func splitVolumeKey(key string) (string, int, bool) {
	i := strings.LastIndex(key, "/")
	if i <= 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(key[i+1:])
	if err != nil {
		return "", 0, false
	}
	return key[:i], n, true
}
