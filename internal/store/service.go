package store

import (
	"fmt"
	"sort"
)

// Kind is the shape of a cluster resource.
type Kind int

const (
	Primitive Kind = iota
	Group
	Clone
	MasterSlave
)

func (k Kind) String() string {
	switch k {
	case Primitive:
		return "primitive"
	case Group:
		return "group"
	case Clone:
		return "clone"
	case MasterSlave:
		return "master"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind by name in JSON and YAML output.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name written by MarshalText.
func (k *Kind) UnmarshalText(b []byte) error {
	for c := Primitive; c <= MasterSlave; c++ {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown resource kind %q", b)
}

// Container reports whether resources of this kind hold other resources.
func (k Kind) Container() bool {
	return k != Primitive
}

// Prefix is the CRM id prefix for containers, empty for primitives.
func (k Kind) Prefix() string {
	switch k {
	case Group:
		return GroupPrefix
	case Clone:
		return ClonePrefix
	case MasterSlave:
		return MasterSlavePrefix
	default:
		return ""
	}
}

// BucketName is the id namespace of containers of this kind.
func (k Kind) BucketName() string {
	switch k {
	case Group:
		return "Group"
	case Clone:
		return "Clone"
	case MasterSlave:
		return "MasterSlave"
	default:
		return ""
	}
}

// ServiceInfo is one cluster resource definition.
type ServiceInfo struct {
	// Name is the id bucket: the resource agent type for primitives
	// (e.g. "IPaddr2") or the container kind name.
	Name string `json:"name" yaml:"name"`
	// ID is unique within Name.
	ID string `json:"id" yaml:"id"`
	// CRMID is the resource's id in the cluster manager, unique cluster wide.
	CRMID    string `json:"crm_id" yaml:"crm_id"`
	Kind     Kind   `json:"kind" yaml:"kind"`
	Class    string `json:"class,omitempty" yaml:"class,omitempty"`
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`
	// Parent is the CRM id of the enclosing container.
	Parent string            `json:"parent,omitempty" yaml:"parent,omitempty"`
	Params map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
	// Orphaned is set for resources the status section reports but the
	// configuration no longer defines.
	Orphaned bool `json:"orphaned" yaml:"orphaned"`
	// PendingEdit marks a locally defined resource the cluster has not
	// reported yet. Such resources survive status frames that omit them.
	PendingEdit bool     `json:"pending_edit" yaml:"pending_edit"`
	RunningOn   []string `json:"running_on,omitempty" yaml:"running_on,omitempty"`
	Failed      bool     `json:"failed" yaml:"failed"`
}

func (s ServiceInfo) clone() ServiceInfo {
	out := s
	if s.Params != nil {
		out.Params = make(map[string]string, len(s.Params))
		for k, v := range s.Params {
			out.Params[k] = v
		}
	}
	if s.RunningOn != nil {
		out.RunningOn = append([]string(nil), s.RunningOn...)
	}
	return out
}

func sortServices(svcs []ServiceInfo) {
	sort.Slice(svcs, func(i, j int) bool { return svcs[i].CRMID < svcs[j].CRMID })
}
