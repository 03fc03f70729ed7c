// Package store holds the live model of one cluster: resource definitions
// and replication objects, indexed several ways and safe for concurrent
// writers and readers.
//
// Lock order is services before replication. Every index of a kind is
// guarded by that kind's single lock, so a removal clears all of them at
// once and a scan followed by an insert is never interleaved with another
// writer.
package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rileyhilliard/crmon/internal/errors"
	"github.com/rileyhilliard/crmon/internal/metrics"
)

// Store is the concurrent status store of one cluster.
type Store struct {
	svcMu    sync.RWMutex
	byBucket map[string]map[string]*ServiceInfo // name -> id -> service
	byCRMID  map[string]*ServiceInfo
	children map[string][]string // parent CRM id -> child CRM ids

	replMu    sync.RWMutex
	resources map[string]*ReplicationResourceInfo
	volumes   map[string]*ReplicationVolumeInfo // "res/vnr"
	byDevice  map[string]string                 // "host:device" -> volume key
}

// New returns an empty store.
func New() *Store {
	return &Store{
		byBucket:  make(map[string]map[string]*ServiceInfo),
		byCRMID:   make(map[string]*ServiceInfo),
		children:  make(map[string][]string),
		resources: make(map[string]*ReplicationResourceInfo),
		volumes:   make(map[string]*ReplicationVolumeInfo),
		byDevice:  make(map[string]string),
	}
}

// ServiceTx gives a closure access to the service indexes while the store
// holds the services lock.
type ServiceTx struct {
	s        *Store
	writable bool
}

// Update runs fn with the services write lock held.
func (s *Store) Update(fn func(tx *ServiceTx) error) error {
	s.svcMu.Lock()
	defer s.svcMu.Unlock()
	return fn(&ServiceTx{s: s, writable: true})
}

// View runs fn with the services read lock held.
func (s *Store) View(fn func(tx *ServiceTx) error) error {
	s.svcMu.RLock()
	defer s.svcMu.RUnlock()
	return fn(&ServiceTx{s: s})
}

// Service returns a copy of the service with the given CRM id.
func (s *Store) Service(crmID string) (ServiceInfo, bool) {
	s.svcMu.RLock()
	defer s.svcMu.RUnlock()
	svc, ok := s.byCRMID[crmID]
	if !ok {
		return ServiceInfo{}, false
	}
	return svc.clone(), true
}

// Services returns copies of every service, sorted by CRM id.
func (s *Store) Services() []ServiceInfo {
	s.svcMu.RLock()
	defer s.svcMu.RUnlock()
	return (&ServiceTx{s: s}).All()
}

// AllocateAndInsert allocates an id for def and inserts the new service as
// a pending local edit. The scan and the insert share one lock hold.
func (s *Store) AllocateAndInsert(def Definition) (ServiceInfo, error) {
	var out ServiceInfo
	err := s.Update(func(tx *ServiceTx) error {
		var err error
		out, err = tx.Allocate(def)
		return err
	})
	return out, err
}

// Get returns a copy of the service with the given CRM id.
func (tx *ServiceTx) Get(crmID string) (ServiceInfo, bool) {
	svc, ok := tx.s.byCRMID[crmID]
	if !ok {
		return ServiceInfo{}, false
	}
	return svc.clone(), true
}

// Lookup finds a service by bucket name and id.
func (tx *ServiceTx) Lookup(name, id string) (ServiceInfo, bool) {
	svc, ok := tx.s.byBucket[name][id]
	if !ok {
		return ServiceInfo{}, false
	}
	return svc.clone(), true
}

// IDs returns the ids in one bucket, sorted.
func (tx *ServiceTx) IDs(name string) []string {
	bucket := tx.s.byBucket[name]
	out := make([]string, 0, len(bucket))
	for id := range bucket {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// CRMIDs returns every CRM id, sorted.
func (tx *ServiceTx) CRMIDs() []string {
	out := make([]string, 0, len(tx.s.byCRMID))
	for id := range tx.s.byCRMID {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Children returns the CRM ids of a container's members in insertion order.
func (tx *ServiceTx) Children(parent string) []string {
	return append([]string(nil), tx.s.children[parent]...)
}

// All returns copies of every service, sorted by CRM id.
func (tx *ServiceTx) All() []ServiceInfo {
	out := make([]ServiceInfo, 0, len(tx.s.byCRMID))
	for _, svc := range tx.s.byCRMID {
		out = append(out, svc.clone())
	}
	sortServices(out)
	return out
}

// Put inserts or replaces a service, keeping every index in step.
func (tx *ServiceTx) Put(svc ServiceInfo) error {
	if !tx.writable {
		return errors.New(errors.ErrStore, "write in a read-only transaction", "")
	}
	if svc.CRMID == "" || svc.Name == "" || svc.ID == "" {
		return errors.New(errors.ErrStore,
			fmt.Sprintf("service %q is missing name, id, or CRM id", svc.CRMID), "")
	}
	if other, ok := tx.s.byBucket[svc.Name][svc.ID]; ok && other.CRMID != svc.CRMID {
		return errors.New(errors.ErrStore,
			fmt.Sprintf("id %s/%s already belongs to %s", svc.Name, svc.ID, other.CRMID), "")
	}
	if svc.Parent == svc.CRMID {
		return errors.New(errors.ErrStore,
			fmt.Sprintf("service %s cannot contain itself", svc.CRMID), "")
	}

	if old, ok := tx.s.byCRMID[svc.CRMID]; ok {
		tx.unindex(old)
	}
	stored := svc.clone()
	tx.index(&stored)
	return nil
}

// Remove deletes a service, and every member if it is a container, from
// all indexes. It returns the removed services.
func (tx *ServiceTx) Remove(crmID string) ([]ServiceInfo, error) {
	if !tx.writable {
		return nil, errors.New(errors.ErrStore, "write in a read-only transaction", "")
	}
	svc, ok := tx.s.byCRMID[crmID]
	if !ok {
		return nil, nil
	}
	var removed []ServiceInfo
	for _, child := range tx.Children(crmID) {
		r, err := tx.Remove(child)
		if err != nil {
			return removed, err
		}
		removed = append(removed, r...)
	}
	tx.unindex(svc)
	delete(tx.s.children, crmID)
	return append(removed, svc.clone()), nil
}

// Allocate assigns an id to def and inserts it as a pending edit.
func (tx *ServiceTx) Allocate(def Definition) (ServiceInfo, error) {
	if !tx.writable {
		return ServiceInfo{}, errors.New(errors.ErrStore, "write in a read-only transaction", "")
	}
	if err := def.validate(); err != nil {
		return ServiceInfo{}, err
	}
	if def.Parent != "" {
		if _, ok := tx.s.byCRMID[def.Parent]; !ok {
			return ServiceInfo{}, errors.New(errors.ErrAlloc,
				fmt.Sprintf("parent %s does not exist", def.Parent),
				"Define the container first")
		}
	}

	svc := ServiceInfo{
		Kind:        def.Kind,
		Class:       def.Class,
		Provider:    def.Provider,
		Parent:      def.Parent,
		Params:      def.Params,
		PendingEdit: true,
	}

	crmTaken := func(id string) bool {
		_, ok := tx.s.byCRMID[id]
		return ok
	}

	switch {
	case def.Kind == Primitive && def.ExplicitID != "":
		svc.Name = def.Name
		svc.CRMID = UniqueExplicitID(def.ExplicitID, func(id string) bool {
			_, inBucket := tx.s.byBucket[def.Name][id]
			return inBucket || crmTaken(id)
		})
		svc.ID = svc.CRMID
	case def.Kind == Primitive:
		svc.Name = def.Name
		svc.ID = NextPlainID(tx.IDs(def.Name))
		svc.CRMID = PrimitiveCRMID(def.Name, svc.ID)
	case def.ExplicitID != "":
		svc.Name = def.Kind.BucketName()
		svc.CRMID = UniqueExplicitID(def.ExplicitID, crmTaken)
		svc.ID = svc.CRMID
	default:
		svc.Name = def.Kind.BucketName()
		svc.CRMID = NextGroupedID(def.Kind.Prefix()+def.Contains, tx.CRMIDs())
		svc.ID = svc.CRMID
	}

	if crmTaken(svc.CRMID) {
		return ServiceInfo{}, errors.New(errors.ErrAlloc,
			fmt.Sprintf("allocated CRM id %s is already in use", svc.CRMID),
			"The id index is inconsistent; reconnect the cluster")
	}

	var member *ServiceInfo
	if def.Kind.Container() && def.Contains != "" {
		m, ok := tx.s.byCRMID[def.Contains]
		if !ok {
			return ServiceInfo{}, errors.New(errors.ErrAlloc,
				fmt.Sprintf("resource %s to wrap does not exist", def.Contains), "")
		}
		member = m
	}

	if err := tx.Put(svc); err != nil {
		return ServiceInfo{}, errors.WrapWithCode(err, errors.ErrAlloc, "insert after allocation failed", "")
	}
	if member != nil {
		moved := member.clone()
		moved.Parent = svc.CRMID
		if err := tx.Put(moved); err != nil {
			return ServiceInfo{}, err
		}
	}

	metrics.IDsAllocated.WithLabelValues(svc.Name).Inc()
	return svc.clone(), nil
}

func (tx *ServiceTx) index(svc *ServiceInfo) {
	bucket, ok := tx.s.byBucket[svc.Name]
	if !ok {
		bucket = make(map[string]*ServiceInfo)
		tx.s.byBucket[svc.Name] = bucket
	}
	bucket[svc.ID] = svc
	tx.s.byCRMID[svc.CRMID] = svc
	if svc.Parent != "" {
		tx.s.children[svc.Parent] = append(tx.s.children[svc.Parent], svc.CRMID)
	}
}

func (tx *ServiceTx) unindex(svc *ServiceInfo) {
	if bucket, ok := tx.s.byBucket[svc.Name]; ok {
		delete(bucket, svc.ID)
		if len(bucket) == 0 {
			delete(tx.s.byBucket, svc.Name)
		}
	}
	delete(tx.s.byCRMID, svc.CRMID)
	if svc.Parent != "" {
		kids := tx.s.children[svc.Parent]
		for i, id := range kids {
			if id == svc.CRMID {
				kids = append(kids[:i:i], kids[i+1:]...)
				break
			}
		}
		if len(kids) == 0 {
			delete(tx.s.children, svc.Parent)
		} else {
			tx.s.children[svc.Parent] = kids
		}
	}
}

// Definition describes a resource a user wants to create.
type Definition struct {
	// Name is the resource agent type. Ignored for containers.
	Name     string
	Kind     Kind
	Class    string
	Provider string
	// ExplicitID is a user supplied id. It is renamed on collision.
	ExplicitID string
	// Parent is the CRM id of the container to put the new resource in.
	Parent string
	// Contains is the CRM id of the resource a new container wraps.
	Contains string
	Params   map[string]string
}

func (d Definition) validate() error {
	if d.Kind == Primitive && d.Name == "" {
		return errors.New(errors.ErrAlloc, "resource type is required", "Pass the agent type, e.g. IPaddr2")
	}
	if d.Kind.Container() && d.ExplicitID == "" && d.Contains == "" {
		return errors.New(errors.ErrAlloc,
			fmt.Sprintf("a %s needs a resource to contain or an explicit id", d.Kind),
			"Pass the CRM id of the resource to wrap")
	}
	return nil
}
