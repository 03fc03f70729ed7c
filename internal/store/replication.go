package store

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/rileyhilliard/crmon/internal/errors"
)

var devicePattern = regexp.MustCompile(`^/dev/drbd(\d+)$`)

// ValidDevice reports whether dev names a replicated block device.
func ValidDevice(dev string) bool {
	return devicePattern.MatchString(dev)
}

// Endpoint is one host's side of a replicated volume.
type Endpoint struct {
	Host   string `json:"host" yaml:"host"`
	Device string `json:"device" yaml:"device"`
	Disk   string `json:"disk" yaml:"disk"`
	// DiskState is the local disk state reported by this host's events
	// (e.g. "UpToDate", "Inconsistent").
	DiskState string `json:"disk_state,omitempty" yaml:"disk_state,omitempty"`
	Role      string `json:"role,omitempty" yaml:"role,omitempty"`
}

// ReplicationResourceInfo is a resource replicated between two hosts.
type ReplicationResourceInfo struct {
	Name       string    `json:"name" yaml:"name"`
	Hosts      [2]string `json:"hosts" yaml:"hosts"`
	Volumes    []int     `json:"volumes" yaml:"volumes"`
	Connected  bool      `json:"connected" yaml:"connected"`
	SplitBrain bool      `json:"split_brain" yaml:"split_brain"`
}

func (r ReplicationResourceInfo) clone() ReplicationResourceInfo {
	out := r
	out.Volumes = append([]int(nil), r.Volumes...)
	return out
}

// ReplicationVolumeInfo is one volume of a replicated resource.
type ReplicationVolumeInfo struct {
	Resource   string      `json:"resource" yaml:"resource"`
	Volume     int         `json:"volume" yaml:"volume"`
	Endpoints  [2]Endpoint `json:"endpoints" yaml:"endpoints"`
	Synced     bool        `json:"synced" yaml:"synced"`
	Connected  bool        `json:"connected" yaml:"connected"`
	SplitBrain bool        `json:"split_brain" yaml:"split_brain"`
}

// Key is the volume's index key.
func (v ReplicationVolumeInfo) Key() string {
	return VolumeKey(v.Resource, v.Volume)
}

// Endpoint returns this volume's endpoint on host.
func (v ReplicationVolumeInfo) Endpoint(host string) (Endpoint, bool) {
	for _, ep := range v.Endpoints {
		if ep.Host == host {
			return ep, true
		}
	}
	return Endpoint{}, false
}

// VolumeKey builds the key a volume is indexed under.
func VolumeKey(resource string, volume int) string {
	return fmt.Sprintf("%s/%d", resource, volume)
}

func deviceKey(host, device string) string {
	return host + ":" + device
}

// checkEndpoints enforces the two live endpoint rule.
func checkEndpoints(eps [2]Endpoint) error {
	for _, ep := range eps {
		if ep.Host == "" || !ValidDevice(ep.Device) || ep.Disk == "" {
			return errors.New(errors.ErrStore,
				fmt.Sprintf("endpoint %+v is incomplete", ep),
				"A replicated volume needs two complete endpoints")
		}
	}
	if eps[0].Host == eps[1].Host {
		return errors.New(errors.ErrStore,
			fmt.Sprintf("both endpoints are on host %s", eps[0].Host), "")
	}
	return nil
}

// ReplicationTx gives a closure access to the replication indexes while the
// store holds the replication lock.
type ReplicationTx struct {
	s        *Store
	writable bool
}

// UpdateReplication runs fn with the replication write lock held.
func (s *Store) UpdateReplication(fn func(tx *ReplicationTx) error) error {
	s.replMu.Lock()
	defer s.replMu.Unlock()
	return fn(&ReplicationTx{s: s, writable: true})
}

// ViewReplication runs fn with the replication read lock held.
func (s *Store) ViewReplication(fn func(tx *ReplicationTx) error) error {
	s.replMu.RLock()
	defer s.replMu.RUnlock()
	return fn(&ReplicationTx{s: s})
}

// Resource returns a copy of the named resource.
func (tx *ReplicationTx) Resource(name string) (ReplicationResourceInfo, bool) {
	r, ok := tx.s.resources[name]
	if !ok {
		return ReplicationResourceInfo{}, false
	}
	return r.clone(), true
}

// Volume returns a copy of one volume.
func (tx *ReplicationTx) Volume(resource string, volume int) (ReplicationVolumeInfo, bool) {
	v, ok := tx.s.volumes[VolumeKey(resource, volume)]
	if !ok {
		return ReplicationVolumeInfo{}, false
	}
	return *v, true
}

// VolumeByDevice finds the volume backed by device on host.
func (tx *ReplicationTx) VolumeByDevice(host, device string) (ReplicationVolumeInfo, bool) {
	key, ok := tx.s.byDevice[deviceKey(host, device)]
	if !ok {
		return ReplicationVolumeInfo{}, false
	}
	return *tx.s.volumes[key], true
}

// Resources returns copies of every resource, sorted by name.
func (tx *ReplicationTx) Resources() []ReplicationResourceInfo {
	out := make([]ReplicationResourceInfo, 0, len(tx.s.resources))
	for _, r := range tx.s.resources {
		out = append(out, r.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Volumes returns copies of every volume, sorted by resource then number.
func (tx *ReplicationTx) Volumes() []ReplicationVolumeInfo {
	out := make([]ReplicationVolumeInfo, 0, len(tx.s.volumes))
	for _, v := range tx.s.volumes {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Resource != out[j].Resource {
			return out[i].Resource < out[j].Resource
		}
		return out[i].Volume < out[j].Volume
	})
	return out
}

// PutResource inserts or replaces a resource. Its volume list is managed by
// PutVolume and RemoveVolume and is ignored here.
func (tx *ReplicationTx) PutResource(r ReplicationResourceInfo) error {
	if !tx.writable {
		return errors.New(errors.ErrStore, "write in a read-only transaction", "")
	}
	if r.Name == "" || r.Hosts[0] == "" || r.Hosts[1] == "" || r.Hosts[0] == r.Hosts[1] {
		return errors.New(errors.ErrStore,
			fmt.Sprintf("replication resource %q needs two distinct hosts", r.Name), "")
	}
	stored := r.clone()
	stored.Volumes = nil
	if old, ok := tx.s.resources[r.Name]; ok {
		stored.Volumes = old.Volumes
	}
	tx.s.resources[r.Name] = &stored
	return nil
}

// PutVolume inserts or replaces a volume of an existing resource.
func (tx *ReplicationTx) PutVolume(v ReplicationVolumeInfo) error {
	if !tx.writable {
		return errors.New(errors.ErrStore, "write in a read-only transaction", "")
	}
	res, ok := tx.s.resources[v.Resource]
	if !ok {
		return errors.New(errors.ErrStore,
			fmt.Sprintf("volume %s belongs to unknown resource", v.Key()), "")
	}
	if err := checkEndpoints(v.Endpoints); err != nil {
		return err
	}
	for _, ep := range v.Endpoints {
		if ep.Host != res.Hosts[0] && ep.Host != res.Hosts[1] {
			return errors.New(errors.ErrStore,
				fmt.Sprintf("volume %s endpoint host %s is not a host of %s", v.Key(), ep.Host, res.Name), "")
		}
		if other, ok := tx.s.byDevice[deviceKey(ep.Host, ep.Device)]; ok && other != v.Key() {
			return errors.New(errors.ErrStore,
				fmt.Sprintf("device %s on %s already backs %s", ep.Device, ep.Host, other), "")
		}
	}

	key := v.Key()
	if old, ok := tx.s.volumes[key]; ok {
		for _, ep := range old.Endpoints {
			delete(tx.s.byDevice, deviceKey(ep.Host, ep.Device))
		}
	} else {
		res.Volumes = append(res.Volumes, v.Volume)
		sort.Ints(res.Volumes)
	}
	stored := v
	tx.s.volumes[key] = &stored
	for _, ep := range v.Endpoints {
		tx.s.byDevice[deviceKey(ep.Host, ep.Device)] = key
	}
	return nil
}

// RemoveVolume deletes one volume from every index.
func (tx *ReplicationTx) RemoveVolume(resource string, volume int) (bool, error) {
	if !tx.writable {
		return false, errors.New(errors.ErrStore, "write in a read-only transaction", "")
	}
	key := VolumeKey(resource, volume)
	v, ok := tx.s.volumes[key]
	if !ok {
		return false, nil
	}
	for _, ep := range v.Endpoints {
		delete(tx.s.byDevice, deviceKey(ep.Host, ep.Device))
	}
	delete(tx.s.volumes, key)
	if res, ok := tx.s.resources[resource]; ok {
		for i, n := range res.Volumes {
			if n == volume {
				res.Volumes = append(res.Volumes[:i:i], res.Volumes[i+1:]...)
				break
			}
		}
	}
	return true, nil
}

// RemoveResource deletes a resource and all of its volumes.
func (tx *ReplicationTx) RemoveResource(name string) (bool, error) {
	if !tx.writable {
		return false, errors.New(errors.ErrStore, "write in a read-only transaction", "")
	}
	res, ok := tx.s.resources[name]
	if !ok {
		return false, nil
	}
	for _, n := range append([]int(nil), res.Volumes...) {
		if _, err := tx.RemoveVolume(name, n); err != nil {
			return false, err
		}
	}
	delete(tx.s.resources, name)
	return true, nil
}

// SetResourceState updates the connection flags of a resource.
func (tx *ReplicationTx) SetResourceState(name string, fn func(r *ReplicationResourceInfo)) bool {
	r, ok := tx.s.resources[name]
	if !ok || !tx.writable {
		return false
	}
	before := r.clone()
	fn(r)
	r.Name, r.Hosts, r.Volumes = before.Name, before.Hosts, before.Volumes
	return r.Connected != before.Connected || r.SplitBrain != before.SplitBrain
}

// SetVolumeState updates the flags of a volume. Identity and endpoint
// devices cannot change through it.
func (tx *ReplicationTx) SetVolumeState(resource string, volume int, fn func(v *ReplicationVolumeInfo)) bool {
	v, ok := tx.s.volumes[VolumeKey(resource, volume)]
	if !ok || !tx.writable {
		return false
	}
	before := *v
	fn(v)
	v.Resource, v.Volume = before.Resource, before.Volume
	for i := range v.Endpoints {
		v.Endpoints[i].Host = before.Endpoints[i].Host
		v.Endpoints[i].Device = before.Endpoints[i].Device
		v.Endpoints[i].Disk = before.Endpoints[i].Disk
	}
	return *v != before
}
