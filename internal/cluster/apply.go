package cluster

import (
	stderrors "errors"
	"maps"
	"slices"
	"time"

	"github.com/rileyhilliard/crmon/internal/metrics"
	"github.com/rileyhilliard/crmon/internal/store"
)

var errUnexpectedFrame = stderrors.New("frame type does not belong to this stream")

// statusHandler receives the cluster-status stream of one host.
type statusHandler struct {
	c *Cluster
	h *Host
}

func (s *statusHandler) OnFullStatusFrame(text string) error {
	return s.c.applyClusterStatus(s.h, text)
}

func (s *statusHandler) OnErrorFrame() {
	if s.h.SetClusterStatusOK(false) {
		s.c.log.Warn("%s reported a cluster status error", s.h.Name())
		s.c.notifier.Publish(hostDiff(s.h, "cluster_status_ok"))
	}
}

func (s *statusHandler) OnReplicationConfigFrame(string) error { return errUnexpectedFrame }
func (s *statusHandler) OnReplicationEventFrame(string) error  { return errUnexpectedFrame }

func (s *statusHandler) OnOnline(online bool) {
	var diffs []Diff
	if s.h.SetConnected(online) {
		diffs = append(diffs, hostDiff(s.h, "connected"))
	}
	if !online && s.h.SetClusterStatusOK(false) {
		diffs = append(diffs, hostDiff(s.h, "cluster_status_ok"))
	}
	s.c.mu.Lock()
	diffs = append(diffs, s.c.selectDCLocked()...)
	s.c.mu.Unlock()
	s.c.notifier.Publish(diffs...)
}

// replicationHandler receives the replication stream of one host.
type replicationHandler struct {
	c *Cluster
	h *Host
}

func (r *replicationHandler) OnFullStatusFrame(string) error { return errUnexpectedFrame }

func (r *replicationHandler) OnErrorFrame() {
	if r.h.SetStorageStatusOK(false) {
		r.c.log.Warn("%s reported a replication status error", r.h.Name())
		r.c.notifier.Publish(hostDiff(r.h, "storage_status_ok"))
	}
}

func (r *replicationHandler) OnReplicationConfigFrame(text string) error {
	return r.c.applyReplicationConfig(r.h, text)
}

func (r *replicationHandler) OnReplicationEventFrame(text string) error {
	return r.c.applyReplicationEvents(r.h, text)
}

func (r *replicationHandler) OnOnline(online bool) {
	if r.h.SetStorageStatusOK(online) {
		r.c.notifier.Publish(hostDiff(r.h, "storage_status_ok"))
	}
}

// applyClusterStatus reconciles one CIB document into the model.
func (c *Cluster) applyClusterStatus(from *Host, text string) error {
	start := time.Now()
	st, err := ParseClusterStatus(text)
	if err != nil {
		return err
	}

	var diffs []Diff
	if from.SetClusterStatusOK(true) {
		diffs = append(diffs, hostDiff(from, "cluster_status_ok"))
	}

	c.mu.Lock()
	c.status = st
	for _, h := range c.hosts {
		if h.SetCRMRunning(st.Online[h.Name()]) {
			diffs = append(diffs, hostDiff(h, "crm_running"))
		}
	}

	diffs = append(diffs, c.applyServices(st)...)
	if !c.firstApplied {
		// The first document is applied twice so that references to
		// resources defined later in the document resolve.
		diffs = append(diffs, c.applyServices(st)...)
		c.firstApplied = true
	}
	diffs = append(diffs, c.selectDCLocked()...)
	c.mu.Unlock()

	metrics.ApplyDuration.WithLabelValues("full-status").Observe(time.Since(start).Seconds())
	c.notifier.Publish(diffs...)
	return nil
}

// applyServices upserts every reported service and removes the ones the
// document no longer mentions, unless a local edit is pending.
func (c *Cluster) applyServices(st *ClusterStatus) []Diff {
	var diffs []Diff
	reported := make(map[string]bool, len(st.Services)+len(st.Orphans))

	_ = c.store.Update(func(tx *store.ServiceTx) error {
		for _, svc := range slices.Concat(st.Services, st.Orphans) {
			reported[svc.CRMID] = true
			svc.PendingEdit = false

			old, exists := tx.Get(svc.CRMID)
			if exists && svc.Parent == "" && old.Parent != "" {
				// Keep a member inside a container defined locally and not
				// yet pushed to the cluster.
				if p, ok := tx.Get(old.Parent); ok && p.PendingEdit {
					svc.Parent = old.Parent
				}
			}
			if exists && old.ID == old.CRMID {
				svc.ID = old.ID
			}
			if exists && sameService(old, svc) {
				continue
			}
			if err := tx.Put(svc); err != nil {
				// The derived per-type id clashes with another resource;
				// fall back to the CRM id, which is unique.
				svc.ID = svc.CRMID
				if err := tx.Put(svc); err != nil {
					c.log.Warn("skipping service %s: %v", svc.CRMID, err)
					continue
				}
			}
			op := OpAdded
			if exists {
				op = OpUpdated
			}
			diffs = append(diffs, Diff{Op: op, Ref: store.ServiceRef(svc.CRMID)})
		}

		for _, old := range tx.All() {
			if reported[old.CRMID] || old.PendingEdit {
				continue
			}
			if _, ok := tx.Get(old.CRMID); !ok {
				continue
			}
			detached, err := detachPending(tx, old.CRMID)
			if err != nil {
				return err
			}
			for _, id := range detached {
				diffs = append(diffs, Diff{Op: OpUpdated, Ref: store.ServiceRef(id)})
			}
			removed, err := tx.Remove(old.CRMID)
			if err != nil {
				return err
			}
			for _, r := range removed {
				diffs = append(diffs, Diff{Op: OpRemoved, Ref: store.ServiceRef(r.CRMID)})
			}
		}
		return nil
	})
	return diffs
}

// detachPending moves every locally defined member out of a container that
// is about to be removed, so the edit outlives the container. It returns the
// CRM ids it moved.
func detachPending(tx *store.ServiceTx, container string) ([]string, error) {
	var moved []string
	for _, id := range tx.Children(container) {
		child, ok := tx.Get(id)
		if !ok {
			continue
		}
		if !child.PendingEdit {
			sub, err := detachPending(tx, id)
			if err != nil {
				return moved, err
			}
			moved = append(moved, sub...)
			continue
		}
		child.Parent = ""
		if err := tx.Put(child); err != nil {
			return moved, err
		}
		moved = append(moved, id)
	}
	return moved, nil
}

func sameService(a, b store.ServiceInfo) bool {
	return a.Name == b.Name &&
		a.ID == b.ID &&
		a.Kind == b.Kind &&
		a.Class == b.Class &&
		a.Provider == b.Provider &&
		a.Parent == b.Parent &&
		a.Orphaned == b.Orphaned &&
		a.PendingEdit == b.PendingEdit &&
		a.Failed == b.Failed &&
		slices.Equal(a.RunningOn, b.RunningOn) &&
		maps.Equal(a.Params, b.Params)
}

// applyReplicationConfig stores a host's replication config and
// reconciles replication objects across all hosts.
func (c *Cluster) applyReplicationConfig(from *Host, text string) error {
	start := time.Now()
	cfg, err := ParseReplicationConfig(text)
	if err != nil {
		return err
	}

	unlock := c.LockReplication()
	from.replConfig = cfg
	diffs := c.reconcileReplication()
	unlock()

	metrics.ApplyDuration.WithLabelValues("replication-config").Observe(time.Since(start).Seconds())
	c.notifier.Publish(diffs...)
	return nil
}

// applyReplicationEvents updates state flags of replication objects that
// already exist. Events about unknown objects are ignored.
func (c *Cluster) applyReplicationEvents(from *Host, text string) error {
	start := time.Now()
	events, err := ParseEvents(text)
	if err != nil {
		return err
	}

	var diffs []Diff
	_ = c.store.UpdateReplication(func(tx *store.ReplicationTx) error {
		for _, ev := range events {
			diffs = append(diffs, applyEvent(tx, from.Name(), ev)...)
		}
		return nil
	})

	metrics.ApplyDuration.WithLabelValues("replication-event").Observe(time.Since(start).Seconds())
	c.notifier.Publish(diffs...)
	return nil
}
