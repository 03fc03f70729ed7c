package cluster

import (
	"github.com/rileyhilliard/crmon/internal/store"
	"github.com/rileyhilliard/crmon/internal/util"
)

// Disk state of a fully synchronized endpoint.
const diskUpToDate = "UpToDate"

// reconcileReplication rebuilds the set of replication objects from every
// host's last config. The caller holds LockReplication.
//
// A volume is materialized only when a config names exactly two distinct
// hosts of this cluster and both have a valid device and a backing disk for
// it. The first host in cluster order whose config yields a pairing wins.
func (c *Cluster) reconcileReplication() []Diff {
	resources := make(map[string]store.ReplicationResourceInfo)
	volumes := make(map[string]store.ReplicationVolumeInfo)

	for _, h := range c.hosts {
		if h.replConfig == nil {
			continue
		}
		for _, r := range h.replConfig.Resources {
			if _, done := resources[r.Name]; done {
				continue
			}
			res, vols, ok := c.pairing(r)
			if !ok {
				continue
			}
			resources[r.Name] = res
			for _, v := range vols {
				volumes[v.Key()] = v
			}
		}
	}

	var diffs []Diff
	err := c.store.UpdateReplication(func(tx *store.ReplicationTx) error {
		for _, old := range tx.Resources() {
			want, keep := resources[old.Name]
			if keep && want.Hosts == old.Hosts {
				continue
			}
			for _, vnr := range old.Volumes {
				diffs = append(diffs, Diff{Op: OpRemoved, Ref: store.VolumeRef(old.Name, vnr)})
			}
			if _, err := tx.RemoveResource(old.Name); err != nil {
				return err
			}
			diffs = append(diffs, Diff{Op: OpRemoved, Ref: store.ResourceRef(old.Name)})
		}
		for _, old := range tx.Volumes() {
			if _, keep := volumes[old.Key()]; keep {
				continue
			}
			if _, err := tx.RemoveVolume(old.Resource, old.Volume); err != nil {
				return err
			}
			diffs = append(diffs, Diff{Op: OpRemoved, Ref: store.VolumeRef(old.Resource, old.Volume)})
		}

		for _, name := range util.SortedKeys(resources) {
			want := resources[name]
			if old, ok := tx.Resource(name); ok {
				want.Connected, want.SplitBrain = old.Connected, old.SplitBrain
				if err := tx.PutResource(want); err != nil {
					return err
				}
				continue
			}
			if err := tx.PutResource(want); err != nil {
				c.log.Warn("skipping replication resource %s: %v", name, err)
				continue
			}
			diffs = append(diffs, Diff{Op: OpAdded, Ref: store.ResourceRef(name)})
		}

		for _, key := range util.SortedKeys(volumes) {
			want := volumes[key]
			old, exists := tx.Volume(want.Resource, want.Volume)
			if exists && sameEndpoints(old, want) {
				continue
			}
			if exists {
				want.Synced, want.Connected, want.SplitBrain = old.Synced, old.Connected, old.SplitBrain
				for i := range want.Endpoints {
					if ep, ok := old.Endpoint(want.Endpoints[i].Host); ok {
						want.Endpoints[i].DiskState = ep.DiskState
						want.Endpoints[i].Role = ep.Role
					}
				}
			}
			if err := tx.PutVolume(want); err != nil {
				c.log.Warn("skipping replication volume %s: %v", key, err)
				continue
			}
			op := OpAdded
			if exists {
				op = OpUpdated
			}
			diffs = append(diffs, Diff{Op: op, Ref: store.VolumeRef(want.Resource, want.Volume)})
		}
		return nil
	})
	if err != nil {
		c.log.Error("replication reconcile: %v", err)
	}
	return diffs
}

// pairing validates one config resource against this cluster.
func (c *Cluster) pairing(r ConfigResource) (store.ReplicationResourceInfo, []store.ReplicationVolumeInfo, bool) {
	if len(r.Hosts) != 2 {
		return store.ReplicationResourceInfo{}, nil, false
	}
	// Endpoints are kept in host name order, whatever order a config lists
	// them in, so configs from different hosts describe the same pairing.
	a, b := r.Hosts[0], r.Hosts[1]
	if b.Name < a.Name {
		a, b = b, a
	}
	if a.Name == b.Name {
		return store.ReplicationResourceInfo{}, nil, false
	}
	if _, ok := c.byName[a.Name]; !ok {
		return store.ReplicationResourceInfo{}, nil, false
	}
	if _, ok := c.byName[b.Name]; !ok {
		return store.ReplicationResourceInfo{}, nil, false
	}

	var vols []store.ReplicationVolumeInfo
	for _, va := range a.Volumes {
		vb, ok := b.Volume(va.Number)
		if !ok || !validEndpoint(va) || !validEndpoint(vb) {
			continue
		}
		vols = append(vols, store.ReplicationVolumeInfo{
			Resource: r.Name,
			Volume:   va.Number,
			Endpoints: [2]store.Endpoint{
				{Host: a.Name, Device: va.Device, Disk: va.Disk},
				{Host: b.Name, Device: vb.Device, Disk: vb.Disk},
			},
		})
	}
	if len(vols) == 0 {
		return store.ReplicationResourceInfo{}, nil, false
	}
	res := store.ReplicationResourceInfo{Name: r.Name, Hosts: [2]string{a.Name, b.Name}}
	return res, vols, true
}

func validEndpoint(v ConfigVolume) bool {
	return store.ValidDevice(v.Device) && v.Disk != ""
}

func sameEndpoints(a, b store.ReplicationVolumeInfo) bool {
	for i := range a.Endpoints {
		x, y := a.Endpoints[i], b.Endpoints[i]
		if x.Host != y.Host || x.Device != y.Device || x.Disk != y.Disk {
			return false
		}
	}
	return true
}

// applyEvent applies one events2 line reported by host.
func applyEvent(tx *store.ReplicationTx, host string, ev Event) []Diff {
	name := ev.Get("name")
	res, ok := tx.Resource(name)
	if !ok || (res.Hosts[0] != host && res.Hosts[1] != host) {
		return nil
	}

	var diffs []Diff
	resourceDiff := func(field string) {
		diffs = append(diffs, Diff{Op: OpUpdated, Ref: store.ResourceRef(name), Field: field})
	}
	volumeDiff := func(vnr int, field string) {
		diffs = append(diffs, Diff{Op: OpUpdated, Ref: store.VolumeRef(name, vnr), Field: field})
	}
	// volumesOf lists the event's volume, or every volume when it names none.
	volumesOf := func() []int {
		if vnr, ok := ev.Volume(); ok {
			return []int{vnr}
		}
		return res.Volumes
	}

	switch ev.Object {
	case "resource":
		role := ev.Get("role")
		if role == "" {
			break
		}
		for _, vnr := range res.Volumes {
			if tx.SetVolumeState(name, vnr, func(v *store.ReplicationVolumeInfo) {
				if i := endpointIndex(v, host); i >= 0 {
					v.Endpoints[i].Role = role
				}
			}) {
				volumeDiff(vnr, "role")
			}
		}

	case "connection":
		state := ev.Get("connection")
		if ev.Verb == "destroy" {
			state = "StandAlone"
		}
		if state == "" {
			break
		}
		connected := state == "Connected"
		if tx.SetResourceState(name, func(r *store.ReplicationResourceInfo) {
			r.Connected = connected
			if connected {
				r.SplitBrain = false
			}
		}) {
			resourceDiff("connected")
		}
		if connected {
			for _, vnr := range res.Volumes {
				if tx.SetVolumeState(name, vnr, func(v *store.ReplicationVolumeInfo) { v.SplitBrain = false }) {
					volumeDiff(vnr, "split_brain")
				}
			}
		}

	case "device":
		disk := ev.Get("disk")
		vnr, ok := ev.Volume()
		if disk == "" || !ok {
			break
		}
		if tx.SetVolumeState(name, vnr, func(v *store.ReplicationVolumeInfo) {
			if i := endpointIndex(v, host); i >= 0 {
				v.Endpoints[i].DiskState = disk
			}
			v.Synced = synced(v)
		}) {
			volumeDiff(vnr, "disk_state")
		}

	case "peer-device":
		vnr, ok := ev.Volume()
		if !ok {
			break
		}
		replication, peerDisk := ev.Get("replication"), ev.Get("peer-disk")
		if tx.SetVolumeState(name, vnr, func(v *store.ReplicationVolumeInfo) {
			if replication != "" {
				v.Connected = replication != "Off"
			}
			if i := endpointIndex(v, host); i >= 0 && peerDisk != "" {
				v.Endpoints[1-i].DiskState = peerDisk
			}
			v.Synced = synced(v)
		}) {
			volumeDiff(vnr, "replication")
		}

	case "helper":
		if ev.Get("helper") != "split-brain" {
			break
		}
		if tx.SetResourceState(name, func(r *store.ReplicationResourceInfo) { r.SplitBrain = true }) {
			resourceDiff("split_brain")
		}
		for _, vnr := range volumesOf() {
			if tx.SetVolumeState(name, vnr, func(v *store.ReplicationVolumeInfo) { v.SplitBrain = true }) {
				volumeDiff(vnr, "split_brain")
			}
		}
	}
	return diffs
}

func endpointIndex(v *store.ReplicationVolumeInfo, host string) int {
	for i, ep := range v.Endpoints {
		if ep.Host == host {
			return i
		}
	}
	return -1
}

func synced(v *store.ReplicationVolumeInfo) bool {
	return v.Endpoints[0].DiskState == diskUpToDate && v.Endpoints[1].DiskState == diskUpToDate
}
