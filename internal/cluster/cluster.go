// Package cluster turns decoded status frames into the live model of one
// cluster: host flags, the DC choice, and the services and replication
// objects held in a store.Store. Every change is published as a Diff on the
// cluster's Notifier.
package cluster

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rileyhilliard/crmon/internal/errors"
	"github.com/rileyhilliard/crmon/internal/logger"
	"github.com/rileyhilliard/crmon/internal/metrics"
	"github.com/rileyhilliard/crmon/internal/poll"
	"github.com/rileyhilliard/crmon/internal/store"
)

// Options describe a cluster to connect to.
type Options struct {
	Name string
	// Hosts in cluster order. DC failover and bulk locks follow this order.
	Hosts []string

	ClusterStatusCommand string
	ReplicationCommand   string
	RetryDelay           time.Duration
	SelfInflicted        []int

	Connector poll.Connector
	Logger    logger.Logger
}

// Cluster is the per-cluster context every component works through.
type Cluster struct {
	name     string
	opts     Options
	hosts    []*Host
	byName   map[string]*Host
	store    *store.Store
	notifier *Notifier
	selector Selector
	log      logger.Logger
	gate     *poll.Gate

	// mu serializes full-status applies and DC selection.
	mu            sync.Mutex
	status        *ClusterStatus
	dc            string
	authoritative bool
	firstApplied  bool

	runMu   sync.Mutex
	loops   []*poll.Loop
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New validates opts and builds an idle cluster. Start begins polling.
func New(opts Options) (*Cluster, error) {
	if opts.Name == "" {
		return nil, errors.New(errors.ErrConfig, "cluster name is empty", "")
	}
	if len(opts.Hosts) == 0 {
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("cluster %s has no hosts", opts.Name),
			"List at least one host under clusters."+opts.Name+".hosts")
	}

	log := opts.Logger
	if log == nil {
		log = logger.New("cluster")
	}

	c := &Cluster{
		name:     opts.Name,
		opts:     opts,
		byName:   make(map[string]*Host, len(opts.Hosts)),
		store:    store.New(),
		notifier: NewNotifier(),
		log:      logger.With(log, "cluster", opts.Name),
		gate:     poll.NewGate(),
	}
	for _, name := range opts.Hosts {
		if _, dup := c.byName[name]; dup {
			return nil, errors.New(errors.ErrConfig,
				fmt.Sprintf("host %s listed twice in cluster %s", name, opts.Name), "")
		}
		h := NewHost(name)
		c.hosts = append(c.hosts, h)
		c.byName[name] = h
	}
	return c, nil
}

// Name returns the cluster name.
func (c *Cluster) Name() string { return c.name }

// Hosts returns the hosts in cluster order.
func (c *Cluster) Hosts() []*Host {
	return append([]*Host(nil), c.hosts...)
}

// Host looks a host up by name.
func (c *Cluster) Host(name string) (*Host, bool) {
	h, ok := c.byName[name]
	return h, ok
}

// Store returns the cluster's status store.
func (c *Cluster) Store() *store.Store { return c.store }

// Notifier returns the queue model changes are published to.
func (c *Cluster) Notifier() *Notifier { return c.notifier }

// Ready is closed once the first full-status frame has been applied.
func (c *Cluster) Ready() <-chan struct{} { return c.gate.Done() }

// WaitReady blocks until Ready is closed or ctx is done.
func (c *Cluster) WaitReady(ctx context.Context) error { return c.gate.Wait(ctx) }

// DC returns the current DC host name, empty when no host qualifies, and
// whether the choice came from the cluster manager's own report.
func (c *Cluster) DC() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dc, c.authoritative
}

// Start launches both poll loops of every host and a goroutine that
// announces readiness once the start gate opens.
func (c *Cluster) Start(ctx context.Context) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.started {
		return errors.New(errors.ErrConfig, fmt.Sprintf("cluster %s already started", c.name), "")
	}
	if c.opts.Connector == nil {
		return errors.New(errors.ErrConfig, "no connector configured", "")
	}
	c.started = true

	ctx, c.cancel = context.WithCancel(ctx)

	for _, h := range c.hosts {
		c.loops = append(c.loops,
			poll.New(poll.Options{
				Cluster:       c.name,
				Host:          h.Name(),
				Kind:          poll.ClusterStatus,
				Command:       c.opts.ClusterStatusCommand,
				Connector:     c.opts.Connector,
				Handler:       &statusHandler{c: c, h: h},
				Gate:          c.gate,
				RetryDelay:    c.opts.RetryDelay,
				SelfInflicted: c.opts.SelfInflicted,
				Logger:        c.opts.Logger,
			}),
			poll.New(poll.Options{
				Cluster:       c.name,
				Host:          h.Name(),
				Kind:          poll.Replication,
				Command:       c.opts.ReplicationCommand,
				Connector:     c.opts.Connector,
				Handler:       &replicationHandler{c: c, h: h},
				RetryDelay:    c.opts.RetryDelay,
				SelfInflicted: c.opts.SelfInflicted,
				Logger:        c.opts.Logger,
			}),
		)
	}

	for _, l := range c.loops {
		c.wg.Add(1)
		go func(l *poll.Loop) {
			defer c.wg.Done()
			l.Run(ctx)
		}(l)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.gate.Wait(ctx); err != nil {
			return
		}
		c.log.Info("first cluster status applied")
		c.notifier.Publish(Diff{Op: OpUpdated, Ref: store.CategoryRef(CategoryCluster), Field: "ready"})
	}()

	c.log.Info("polling %d hosts", len(c.hosts))
	return nil
}

// Disconnect stops every loop, closes their sessions and waits for all
// goroutines to finish. It is safe to call more than once.
func (c *Cluster) Disconnect() {
	c.runMu.Lock()
	loops := c.loops
	cancel := c.cancel
	c.loops = nil
	c.cancel = nil
	c.runMu.Unlock()

	for _, l := range loops {
		l.Stop()
	}
	if cancel != nil {
		cancel()
	}
	c.wg.Wait()

	if len(loops) > 0 {
		c.log.Info("disconnected")
	}
}

// LockReplication locks the replication status of every host in cluster
// order. The returned func unlocks in reverse order.
func (c *Cluster) LockReplication() (unlock func()) {
	for _, h := range c.hosts {
		h.replMu.Lock()
	}
	return func() {
		for i := len(c.hosts) - 1; i >= 0; i-- {
			c.hosts[i].replMu.Unlock()
		}
	}
}

// Define allocates an id for a user defined resource and inserts it as a
// pending edit.
func (c *Cluster) Define(def store.Definition) (store.ServiceInfo, error) {
	svc, err := c.store.AllocateAndInsert(def)
	if err != nil {
		return store.ServiceInfo{}, err
	}
	diffs := []Diff{{Op: OpAdded, Ref: store.ServiceRef(svc.CRMID)}}
	if def.Contains != "" {
		diffs = append(diffs, Diff{Op: OpUpdated, Ref: store.ServiceRef(def.Contains), Field: "parent"})
	}
	c.notifier.Publish(diffs...)
	c.log.Debug("defined %s (%s/%s)", svc.CRMID, svc.Name, svc.ID)
	return svc, nil
}

// SetInTransition marks a host's cluster stack as starting or stopping and
// re-runs DC selection.
func (c *Cluster) SetInTransition(host string, v bool) bool {
	h, ok := c.byName[host]
	if !ok || !h.SetInTransition(v) {
		return false
	}
	diffs := []Diff{hostDiff(h, "in_transition")}
	c.mu.Lock()
	diffs = append(diffs, c.selectDCLocked()...)
	c.mu.Unlock()
	c.notifier.Publish(diffs...)
	return true
}

// selectDCLocked re-runs the selector and moves the DC flag. c.mu is held.
func (c *Cluster) selectDCLocked() []Diff {
	reported := ""
	if c.status != nil {
		reported = c.status.DC
	}
	picked, auth := c.selector.Select(c.hosts, reported)
	dc := ""
	if picked != nil && picked.Eligible() {
		dc = picked.Name()
	}
	c.authoritative = auth && dc != ""

	var diffs []Diff
	// Clear before set so no reader sees two DCs.
	for _, h := range c.hosts {
		if h.Name() != dc && h.setDC(false) {
			diffs = append(diffs, hostDiff(h, "dc"))
		}
	}
	if h, ok := c.byName[dc]; ok && h.setDC(true) {
		diffs = append(diffs, hostDiff(h, "dc"))
	}

	if dc != c.dc {
		c.log.Info("DC changed from %q to %q (authoritative=%t)", c.dc, dc, c.authoritative)
		c.dc = dc
		metrics.DCChanges.WithLabelValues(c.name).Inc()
	}
	return diffs
}

func hostDiff(h *Host, field string) Diff {
	return Diff{Op: OpUpdated, Ref: store.HostRef(h.Name()), Field: field}
}
