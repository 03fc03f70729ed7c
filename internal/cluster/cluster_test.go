package cluster

import (
	"context"
	"testing"
	"time"

	"github.com/rileyhilliard/crmon/internal/errors"
	"github.com/rileyhilliard/crmon/internal/logger"
	"github.com/rileyhilliard/crmon/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCluster(t *testing.T, hosts ...string) *Cluster {
	t.Helper()
	c, err := New(Options{Name: "test", Hosts: hosts, Logger: logger.Noop()})
	require.NoError(t, err)
	return c
}

// testCIB builds a CIB in which node-a (id 1) and node-b (id 2) run the
// cluster manager.
func testCIB(dcID, resources string) string {
	return `<cib dc-uuid="` + dcID + `"><configuration><nodes>` +
		`<node id="1" uname="node-a"/><node id="2" uname="node-b"/>` +
		`</nodes><resources>` + resources + `</resources></configuration><status>` +
		`<node_state id="1" uname="node-a" crmd="online"/>` +
		`<node_state id="2" uname="node-b" crmd="online"/>` +
		`</status></cib>`
}

const (
	ipResource  = `<primitive id="res_IPaddr2_1" class="ocf" provider="heartbeat" type="IPaddr2"/>`
	webResource = `<group id="grp_web">` +
		`<primitive id="res_apache_1" class="ocf" provider="heartbeat" type="apache"/>` +
		`</group>`
)

func statusOf(c *Cluster, host string) *statusHandler {
	h, _ := c.Host(host)
	return &statusHandler{c: c, h: h}
}

func replicationOf(c *Cluster, host string) *replicationHandler {
	h, _ := c.Host(host)
	return &replicationHandler{c: c, h: h}
}

func dcHosts(c *Cluster) []string {
	var out []string
	for _, h := range c.Hosts() {
		if h.IsDC() {
			out = append(out, h.Name())
		}
	}
	return out
}

func hasDiff(diffs []Diff, ref store.Ref, field string) bool {
	for _, d := range diffs {
		if d.Ref == ref && d.Field == field {
			return true
		}
	}
	return false
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"no name", Options{Hosts: []string{"a"}}},
		{"no hosts", Options{Name: "c"}},
		{"duplicate host", Options{Name: "c", Hosts: []string{"a", "b", "a"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrConfig))
		})
	}
}

func TestNew_HostOrder(t *testing.T) {
	c := newTestCluster(t, "node-b", "node-a", "node-c")
	var names []string
	for _, h := range c.Hosts() {
		names = append(names, h.Name())
	}
	assert.Equal(t, []string{"node-b", "node-a", "node-c"}, names)
	assert.Equal(t, "test", c.Name())

	_, ok := c.Host("node-x")
	assert.False(t, ok)
}

func TestApplyClusterStatus_Services(t *testing.T) {
	c := newTestCluster(t, "node-a", "node-b", "node-c")

	require.NoError(t, statusOf(c, "node-a").OnFullStatusFrame(testCIB("2", ipResource+webResource)))

	svcs := c.Store().Services()
	require.Len(t, svcs, 3)
	web, ok := c.Store().Service("res_apache_1")
	require.True(t, ok)
	assert.Equal(t, "grp_web", web.Parent)
	assert.False(t, web.PendingEdit)

	a, _ := c.Host("node-a")
	b, _ := c.Host("node-b")
	nc, _ := c.Host("node-c")
	assert.True(t, a.ClusterStatusOK())
	assert.False(t, b.ClusterStatusOK(), "only the reporting host is marked")
	assert.True(t, a.State().CRMRunning)
	assert.True(t, b.State().CRMRunning)
	assert.False(t, nc.State().CRMRunning)

	// The group disappears and takes its member with it.
	c.Notifier().Drain()
	require.NoError(t, statusOf(c, "node-a").OnFullStatusFrame(testCIB("2", ipResource)))

	_, ok = c.Store().Service("grp_web")
	assert.False(t, ok)
	_, ok = c.Store().Service("res_apache_1")
	assert.False(t, ok)

	diffs := c.Notifier().Drain()
	assert.True(t, hasDiff(diffs, store.ServiceRef("grp_web"), ""))
	assert.True(t, hasDiff(diffs, store.ServiceRef("res_apache_1"), ""))
}

func TestApplyClusterStatus_NoChangeNoNotification(t *testing.T) {
	c := newTestCluster(t, "node-a", "node-b")
	doc := testCIB("2", ipResource+webResource)

	require.NoError(t, statusOf(c, "node-a").OnFullStatusFrame(doc))
	assert.NotEmpty(t, c.Notifier().Drain())

	require.NoError(t, statusOf(c, "node-a").OnFullStatusFrame(doc))
	assert.Empty(t, c.Notifier().Drain())
}

func TestApplyClusterStatus_PendingEdit(t *testing.T) {
	c := newTestCluster(t, "node-a", "node-b")
	sh := statusOf(c, "node-a")
	require.NoError(t, sh.OnFullStatusFrame(testCIB("2", ipResource)))

	svc, err := c.Define(store.Definition{Name: "IPaddr2", Class: "ocf", Provider: "heartbeat"})
	require.NoError(t, err)
	assert.Equal(t, "res_IPaddr2_2", svc.CRMID)
	assert.True(t, svc.PendingEdit)

	// Not reported yet: the local definition survives.
	require.NoError(t, sh.OnFullStatusFrame(testCIB("2", ipResource)))
	got, ok := c.Store().Service("res_IPaddr2_2")
	require.True(t, ok)
	assert.True(t, got.PendingEdit)

	// Reported: it becomes a regular service.
	second := `<primitive id="res_IPaddr2_2" class="ocf" provider="heartbeat" type="IPaddr2"/>`
	require.NoError(t, sh.OnFullStatusFrame(testCIB("2", ipResource+second)))
	got, ok = c.Store().Service("res_IPaddr2_2")
	require.True(t, ok)
	assert.False(t, got.PendingEdit)
	assert.Equal(t, "2", got.ID)

	// And is removed like any other once the cluster drops it.
	require.NoError(t, sh.OnFullStatusFrame(testCIB("2", ipResource)))
	_, ok = c.Store().Service("res_IPaddr2_2")
	assert.False(t, ok)
}

func TestApplyClusterStatus_PendingContainerKeepsMember(t *testing.T) {
	c := newTestCluster(t, "node-a", "node-b")
	sh := statusOf(c, "node-a")
	require.NoError(t, sh.OnFullStatusFrame(testCIB("2", ipResource)))

	grp, err := c.Define(store.Definition{Kind: store.Group, Contains: "res_IPaddr2_1"})
	require.NoError(t, err)
	assert.Equal(t, "grp_res_IPaddr2_1", grp.CRMID)

	diffs := c.Notifier().Drain()
	assert.True(t, hasDiff(diffs, store.ServiceRef("res_IPaddr2_1"), "parent"))

	require.NoError(t, sh.OnFullStatusFrame(testCIB("2", ipResource)))
	member, ok := c.Store().Service("res_IPaddr2_1")
	require.True(t, ok)
	assert.Equal(t, grp.CRMID, member.Parent)
}

func TestApplyClusterStatus_VanishedContainerKeepsPendingMember(t *testing.T) {
	c := newTestCluster(t, "node-a", "node-b")
	sh := statusOf(c, "node-a")
	require.NoError(t, sh.OnFullStatusFrame(testCIB("2", ipResource+webResource)))

	svc, err := c.Define(store.Definition{Name: "Dummy", Class: "ocf", Provider: "heartbeat", Parent: "grp_web"})
	require.NoError(t, err)
	assert.Equal(t, "res_Dummy_1", svc.CRMID)
	require.True(t, svc.PendingEdit)
	c.Notifier().Drain()

	require.NoError(t, sh.OnFullStatusFrame(testCIB("2", ipResource)))

	_, ok := c.Store().Service("grp_web")
	assert.False(t, ok)
	_, ok = c.Store().Service("res_apache_1")
	assert.False(t, ok)

	got, ok := c.Store().Service("res_Dummy_1")
	require.True(t, ok, "pending member must outlive its container")
	assert.True(t, got.PendingEdit)
	assert.Empty(t, got.Parent)

	diffs := c.Notifier().Drain()
	assert.True(t, hasDiff(diffs, store.ServiceRef("grp_web"), ""))
	assert.True(t, hasDiff(diffs, store.ServiceRef("res_Dummy_1"), ""))
}

func TestApplyClusterStatus_IDClashFallsBackToCRMID(t *testing.T) {
	c := newTestCluster(t, "node-a")
	resources := `<primitive id="vip" type="IPaddr2"/><primitive id="res_IPaddr2_vip" type="IPaddr2"/>`

	require.NoError(t, statusOf(c, "node-a").OnFullStatusFrame(testCIB("1", resources)))

	plain, ok := c.Store().Service("vip")
	require.True(t, ok)
	assert.Equal(t, "vip", plain.ID)

	derived, ok := c.Store().Service("res_IPaddr2_vip")
	require.True(t, ok)
	assert.Equal(t, "res_IPaddr2_vip", derived.ID)

	c.Notifier().Drain()
	require.NoError(t, statusOf(c, "node-a").OnFullStatusFrame(testCIB("1", resources)))
	assert.Empty(t, c.Notifier().Drain(), "the fallback id is stable across frames")
}

func TestApplyClusterStatus_Malformed(t *testing.T) {
	c := newTestCluster(t, "node-a")
	sh := statusOf(c, "node-a")
	require.NoError(t, sh.OnFullStatusFrame(testCIB("1", ipResource)))

	err := sh.OnFullStatusFrame("<cib><configuration>")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrStream))
	_, ok := c.Store().Service("res_IPaddr2_1")
	assert.True(t, ok, "a bad frame leaves the model alone")
}

func TestStatusHandler_RejectsReplicationFrames(t *testing.T) {
	c := newTestCluster(t, "node-a")
	assert.ErrorIs(t, statusOf(c, "node-a").OnReplicationConfigFrame("<config/>"), errUnexpectedFrame)
	assert.ErrorIs(t, statusOf(c, "node-a").OnReplicationEventFrame("exists -"), errUnexpectedFrame)
	assert.ErrorIs(t, replicationOf(c, "node-a").OnFullStatusFrame("<cib/>"), errUnexpectedFrame)
}

func TestStatusHandler_ErrorFrame(t *testing.T) {
	c := newTestCluster(t, "node-a", "node-b")
	sh := statusOf(c, "node-a")
	require.NoError(t, sh.OnFullStatusFrame(testCIB("1", "")))
	c.Notifier().Drain()

	sh.OnErrorFrame()
	a, _ := c.Host("node-a")
	assert.False(t, a.ClusterStatusOK())
	assert.True(t, hasDiff(c.Notifier().Drain(), store.HostRef("node-a"), "cluster_status_ok"))

	sh.OnErrorFrame()
	assert.Empty(t, c.Notifier().Drain(), "no change, no diff")
}

func TestDCSelection(t *testing.T) {
	c := newTestCluster(t, "node-a", "node-b", "node-c")
	sa, sb := statusOf(c, "node-a"), statusOf(c, "node-b")

	require.NoError(t, sa.OnFullStatusFrame(testCIB("2", "")))
	dc, _ := c.DC()
	assert.Empty(t, dc, "no host is connected yet")
	assert.Empty(t, dcHosts(c))

	sa.OnOnline(true)
	dc, auth := c.DC()
	assert.Equal(t, "node-a", dc)
	assert.False(t, auth, "the reported DC is not connected")
	assert.Equal(t, []string{"node-a"}, dcHosts(c))

	sb.OnOnline(true)
	dc, auth = c.DC()
	assert.Equal(t, "node-b", dc)
	assert.True(t, auth)
	assert.Equal(t, []string{"node-b"}, dcHosts(c))

	sb.OnOnline(false)
	b, _ := c.Host("node-b")
	assert.False(t, b.Connected())
	assert.False(t, b.ClusterStatusOK())
	dc, auth = c.DC()
	assert.Equal(t, "node-a", dc)
	assert.False(t, auth)
	assert.Equal(t, []string{"node-a"}, dcHosts(c))

	sa.OnOnline(false)
	dc, _ = c.DC()
	assert.Empty(t, dc)
	assert.Empty(t, dcHosts(c))
}

func TestSetInTransition(t *testing.T) {
	c := newTestCluster(t, "node-a", "node-b")
	require.NoError(t, statusOf(c, "node-a").OnFullStatusFrame(testCIB("1", "")))
	statusOf(c, "node-a").OnOnline(true)
	statusOf(c, "node-b").OnOnline(true)

	dc, auth := c.DC()
	require.Equal(t, "node-a", dc)
	require.True(t, auth)

	assert.True(t, c.SetInTransition("node-a", true))
	dc, auth = c.DC()
	assert.Equal(t, "node-b", dc)
	assert.False(t, auth)
	assert.Equal(t, []string{"node-b"}, dcHosts(c))

	assert.False(t, c.SetInTransition("node-a", true), "unchanged")
	assert.False(t, c.SetInTransition("node-x", true))

	assert.True(t, c.SetInTransition("node-a", false))
	dc, auth = c.DC()
	assert.Equal(t, "node-a", dc)
	assert.True(t, auth)
}

func drbdConfig(resources ...string) string {
	out := "<config>"
	for _, r := range resources {
		out += r
	}
	return out + "</config>"
}

func drbdResource(name, hostA, hostB string, minor string) string {
	host := func(h string) string {
		return `<host name="` + h + `"><volume vnr="0"><device minor="` + minor + `">/dev/drbd` + minor +
			`</device><disk>/dev/vg/` + name + `</disk></volume></host>`
	}
	return `<resource name="` + name + `">` + host(hostA) + host(hostB) + `</resource>`
}

func TestReplicationConfig_Reconcile(t *testing.T) {
	c := newTestCluster(t, "node-a", "node-b", "node-c")
	ra, rb := replicationOf(c, "node-a"), replicationOf(c, "node-b")

	cfg := drbdConfig(
		drbdResource("r0", "node-a", "node-b", "0"),
		drbdResource("elsewhere", "node-a", "node-x", "1"),
		drbdResource("loop", "node-a", "node-a", "2"),
		`<resource name="single"><host name="node-a"><volume vnr="0"><device minor="3"/><disk>/dev/sdb</disk></volume></host></resource>`,
		`<resource name="nodisk"><host name="node-a"><volume vnr="0"><device minor="4"/></volume></host>`+
			`<host name="node-b"><volume vnr="0"><device minor="4"/><disk>/dev/sdb</disk></volume></host></resource>`,
	)
	require.NoError(t, ra.OnReplicationConfigFrame(cfg))
	require.NoError(t, rb.OnReplicationConfigFrame(drbdConfig(drbdResource("r0", "node-a", "node-b", "0"))))

	snap := c.Store().Snapshot()
	require.Len(t, snap.Resources, 1, "only complete two-host pairings are materialized")
	assert.Equal(t, "r0", snap.Resources[0].Name)
	assert.Equal(t, [2]string{"node-a", "node-b"}, snap.Resources[0].Hosts)
	require.Len(t, snap.Volumes, 1)
	assert.Equal(t, "/dev/drbd0", snap.Volumes[0].Endpoints[1].Device)

	a, _ := c.Host("node-a")
	require.NotNil(t, a.ReplicationConfig())
	assert.Len(t, a.ReplicationConfig().Resources, 5)

	// node-b still reports r0, so it stays.
	require.NoError(t, ra.OnReplicationConfigFrame(drbdConfig()))
	_, ok := c.Resolve(store.ResourceRef("r0"))
	assert.True(t, ok)

	c.Notifier().Drain()
	require.NoError(t, rb.OnReplicationConfigFrame(drbdConfig()))
	_, ok = c.Resolve(store.ResourceRef("r0"))
	assert.False(t, ok)
	_, ok = c.Resolve(store.VolumeRef("r0", 0))
	assert.False(t, ok)

	diffs := c.Notifier().Drain()
	assert.True(t, hasDiff(diffs, store.ResourceRef("r0"), ""))
	assert.True(t, hasDiff(diffs, store.VolumeRef("r0", 0), ""))
}

func TestReplicationConfig_DeviceChange(t *testing.T) {
	c := newTestCluster(t, "node-a", "node-b")
	ra := replicationOf(c, "node-a")
	require.NoError(t, ra.OnReplicationConfigFrame(drbdConfig(drbdResource("r0", "node-a", "node-b", "0"))))
	require.NoError(t, ra.OnReplicationEventFrame("change device name:r0 volume:0 disk:UpToDate"))

	c.Notifier().Drain()
	require.NoError(t, ra.OnReplicationConfigFrame(drbdConfig(drbdResource("r0", "node-a", "node-b", "5"))))

	r, ok := c.Resolve(store.VolumeRef("r0", 0))
	require.True(t, ok)
	assert.Equal(t, "/dev/drbd5", r.Volume.Endpoints[0].Device)
	assert.Equal(t, "UpToDate", r.Volume.Endpoints[0].DiskState, "state survives a device change")

	diffs := c.Notifier().Drain()
	require.Len(t, diffs, 1)
	assert.Equal(t, OpUpdated, diffs[0].Op)
}

func TestReplicationConfig_HostOrderIgnored(t *testing.T) {
	c := newTestCluster(t, "node-a", "node-b")
	ra, rb := replicationOf(c, "node-a"), replicationOf(c, "node-b")
	require.NoError(t, ra.OnReplicationConfigFrame(drbdConfig(drbdResource("r0", "node-b", "node-a", "0"))))

	r, ok := c.Resolve(store.ResourceRef("r0"))
	require.True(t, ok)
	assert.Equal(t, [2]string{"node-a", "node-b"}, r.Resource.Hosts)

	require.NoError(t, ra.OnReplicationEventFrame(
		"exists connection name:r0 conn-name:node-b connection:Connected\n"+
			"call helper name:r0 helper:split-brain"))
	c.Notifier().Drain()

	// node-a drops r0 while node-b lists the same pair in the other order.
	require.NoError(t, rb.OnReplicationConfigFrame(drbdConfig(drbdResource("r0", "node-a", "node-b", "0"))))
	require.NoError(t, ra.OnReplicationConfigFrame(drbdConfig()))

	r, ok = c.Resolve(store.ResourceRef("r0"))
	require.True(t, ok)
	assert.True(t, r.Resource.Connected)
	assert.True(t, r.Resource.SplitBrain)

	v, ok := c.Resolve(store.VolumeRef("r0", 0))
	require.True(t, ok)
	assert.Equal(t, "node-a", v.Volume.Endpoints[0].Host)
	assert.Equal(t, "node-b", v.Volume.Endpoints[1].Host)

	assert.Empty(t, c.Notifier().Drain(), "reordered hosts are the same pairing")
}

func TestReplicationConfig_Malformed(t *testing.T) {
	c := newTestCluster(t, "node-a", "node-b")
	ra := replicationOf(c, "node-a")
	require.NoError(t, ra.OnReplicationConfigFrame(drbdConfig(drbdResource("r0", "node-a", "node-b", "0"))))

	err := ra.OnReplicationConfigFrame("<config><resource")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrStream))
	_, ok := c.Resolve(store.ResourceRef("r0"))
	assert.True(t, ok)
}

func TestReplicationEvents(t *testing.T) {
	c := newTestCluster(t, "node-a", "node-b", "node-c")
	ra, rb := replicationOf(c, "node-a"), replicationOf(c, "node-b")
	require.NoError(t, ra.OnReplicationConfigFrame(drbdConfig(drbdResource("r0", "node-a", "node-b", "0"))))

	volume := func() store.ReplicationVolumeInfo {
		r, ok := c.Resolve(store.VolumeRef("r0", 0))
		require.True(t, ok)
		return *r.Volume
	}
	resource := func() store.ReplicationResourceInfo {
		r, ok := c.Resolve(store.ResourceRef("r0"))
		require.True(t, ok)
		return *r.Resource
	}

	require.NoError(t, ra.OnReplicationEventFrame(
		"exists resource name:r0 role:Primary\n"+
			"exists connection name:r0 peer-node-id:1 conn-name:node-b connection:Connected\n"+
			"exists device name:r0 volume:0 minor:0 disk:UpToDate\n"+
			"exists -\n"))
	assert.True(t, resource().Connected)
	assert.Equal(t, "Primary", volume().Endpoints[0].Role)
	assert.Equal(t, "UpToDate", volume().Endpoints[0].DiskState)
	assert.False(t, volume().Synced)

	require.NoError(t, ra.OnReplicationEventFrame(
		"change peer-device name:r0 conn-name:node-b volume:0 replication:Established peer-disk:UpToDate"))
	assert.True(t, volume().Connected)
	assert.Equal(t, "UpToDate", volume().Endpoints[1].DiskState)
	assert.True(t, volume().Synced)

	require.NoError(t, rb.OnReplicationEventFrame("change device name:r0 volume:0 disk:Inconsistent"))
	assert.Equal(t, "Inconsistent", volume().Endpoints[1].DiskState)
	assert.False(t, volume().Synced)

	require.NoError(t, ra.OnReplicationEventFrame("call helper name:r0 helper:split-brain"))
	assert.True(t, resource().SplitBrain)
	assert.True(t, volume().SplitBrain)

	require.NoError(t, ra.OnReplicationEventFrame("destroy connection name:r0 conn-name:node-b"))
	assert.False(t, resource().Connected)
	assert.True(t, resource().SplitBrain)

	require.NoError(t, ra.OnReplicationEventFrame("change connection name:r0 conn-name:node-b connection:Connected"))
	assert.True(t, resource().Connected)
	assert.False(t, resource().SplitBrain)
	assert.False(t, volume().SplitBrain)

	require.NoError(t, ra.OnReplicationEventFrame(
		"change peer-device name:r0 conn-name:node-b volume:0 replication:Off"))
	assert.False(t, volume().Connected)
}

func TestReplicationEvents_Ignored(t *testing.T) {
	c := newTestCluster(t, "node-a", "node-b", "node-c")
	require.NoError(t, replicationOf(c, "node-a").OnReplicationConfigFrame(
		drbdConfig(drbdResource("r0", "node-a", "node-b", "0"))))
	before := c.Store().Snapshot()
	c.Notifier().Drain()

	require.NoError(t, replicationOf(c, "node-a").OnReplicationEventFrame(
		"change device name:unknown volume:0 disk:Diskless\n"+
			"change device name:r0 volume:9 disk:Diskless\n"+
			"change widget name:r0 color:blue"))
	require.NoError(t, replicationOf(c, "node-c").OnReplicationEventFrame(
		"change device name:r0 volume:0 disk:Diskless"))

	assert.Equal(t, before, c.Store().Snapshot())
	assert.Empty(t, c.Notifier().Drain())
}

func TestReplicationEvents_Malformed(t *testing.T) {
	c := newTestCluster(t, "node-a")
	err := replicationOf(c, "node-a").OnReplicationEventFrame("change device name:r0 junk")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrStream))
}

func TestReplicationHandler_Online(t *testing.T) {
	c := newTestCluster(t, "node-a")
	rh := replicationOf(c, "node-a")
	a, _ := c.Host("node-a")

	rh.OnOnline(true)
	assert.True(t, a.StorageStatusOK())
	rh.OnErrorFrame()
	assert.False(t, a.StorageStatusOK())
	rh.OnOnline(false)
	assert.False(t, a.StorageStatusOK())
	assert.False(t, a.Connected(), "the replication stream does not drive the connected flag")
}

func TestLockReplication(t *testing.T) {
	c := newTestCluster(t, "node-a", "node-b", "node-c")

	unlock := c.LockReplication()
	for _, h := range c.Hosts() {
		assert.False(t, h.replMu.TryLock(), h.Name())
	}
	unlock()
	for _, h := range c.Hosts() {
		require.True(t, h.replMu.TryLock(), h.Name())
		h.replMu.Unlock()
	}
}

func TestResolve(t *testing.T) {
	c := newTestCluster(t, "node-a", "node-b")
	require.NoError(t, statusOf(c, "node-a").OnFullStatusFrame(testCIB("1", ipResource)))

	r, ok := c.Resolve(store.HostRef("node-a"))
	require.True(t, ok)
	require.NotNil(t, r.Host)
	assert.True(t, r.Host.CRMRunning)

	r, ok = c.Resolve(store.CategoryRef(CategoryServices))
	require.True(t, ok)
	assert.Equal(t, CategoryServices, r.Category)

	r, ok = c.Resolve(store.ServiceRef("res_IPaddr2_1"))
	require.True(t, ok)
	assert.Equal(t, "IPaddr2", r.Service.Name)

	for _, ref := range []store.Ref{
		store.HostRef("node-x"),
		store.CategoryRef("bogus"),
		store.ServiceRef("res_gone_1"),
		store.ResourceRef("r9"),
	} {
		_, ok := c.Resolve(ref)
		assert.False(t, ok, ref.String())
	}
}

func TestSnapshot(t *testing.T) {
	c := newTestCluster(t, "node-a", "node-b")
	snap := c.Snapshot()
	assert.Equal(t, "test", snap.Cluster)
	assert.False(t, snap.Ready)
	assert.Len(t, snap.Hosts, 2)
	assert.Empty(t, snap.Model.Services)

	require.NoError(t, statusOf(c, "node-a").OnFullStatusFrame(testCIB("1", ipResource)))
	statusOf(c, "node-a").OnOnline(true)
	c.gate.Release()

	snap = c.Snapshot()
	assert.True(t, snap.Ready)
	assert.Equal(t, "node-a", snap.DC)
	assert.True(t, snap.DCAuthoritative)
	assert.True(t, snap.Hosts[0].IsDC)
	assert.Len(t, snap.Model.Services, 1)
}

func TestWaitReady_Timeout(t *testing.T) {
	c := newTestCluster(t, "node-a")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.WaitReady(ctx), context.DeadlineExceeded)
}
