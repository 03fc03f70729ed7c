package cluster

import (
	"testing"

	"github.com/rileyhilliard/crmon/internal/errors"
	"github.com/rileyhilliard/crmon/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCIB = `<cib dc-uuid="2" epoch="12" num_updates="4">
  <configuration>
    <nodes>
      <node id="1" uname="node-a"/>
      <node id="2" uname="node-b"/>
      <node id="3" uname="node-c"/>
    </nodes>
    <resources>
      <primitive id="res_IPaddr2_1" class="ocf" provider="heartbeat" type="IPaddr2">
        <instance_attributes id="res_IPaddr2_1-ia">
          <nvpair id="res_IPaddr2_1-ip" name="ip" value="10.0.0.50"/>
        </instance_attributes>
      </primitive>
      <group id="grp_web">
        <primitive id="res_apache_1" class="ocf" provider="heartbeat" type="apache"/>
        <primitive id="res_Filesystem_1" class="ocf" provider="heartbeat" type="Filesystem"/>
      </group>
      <master id="ms_res_drbd_1">
        <primitive id="res_drbd_1" class="ocf" provider="linbit" type="drbd"/>
      </master>
    </resources>
  </configuration>
  <status>
    <node_state id="1" uname="node-a" crmd="online">
      <lrm id="1">
        <lrm_resources>
          <lrm_resource id="res_IPaddr2_1" type="IPaddr2" class="ocf" provider="heartbeat">
            <lrm_rsc_op id="op1" operation="start" call-id="4" rc-code="0"/>
            <lrm_rsc_op id="op2" operation="monitor" call-id="5" rc-code="0"/>
          </lrm_resource>
          <lrm_resource id="res_drbd_1:0" type="drbd" class="ocf" provider="linbit">
            <lrm_rsc_op id="op3" operation="promote" call-id="7" rc-code="0"/>
          </lrm_resource>
          <lrm_resource id="res_Dummy_9" type="Dummy" class="ocf" provider="pacemaker">
            <lrm_rsc_op id="op4" operation="start" call-id="2" rc-code="0"/>
          </lrm_resource>
        </lrm_resources>
      </lrm>
    </node_state>
    <node_state id="2" uname="node-b" crmd="online">
      <lrm id="2">
        <lrm_resources>
          <lrm_resource id="res_apache_1" type="apache" class="ocf" provider="heartbeat">
            <lrm_rsc_op id="op5" operation="start" call-id="3" rc-code="1"/>
          </lrm_resource>
          <lrm_resource id="res_drbd_1:1" type="drbd" class="ocf" provider="linbit">
            <lrm_rsc_op id="op6" operation="start" call-id="6" rc-code="0"/>
          </lrm_resource>
          <lrm_resource id="res_IPaddr2_1" type="IPaddr2" class="ocf" provider="heartbeat">
            <lrm_rsc_op id="op7" operation="start" call-id="2" rc-code="0"/>
            <lrm_rsc_op id="op8" operation="stop" call-id="3" rc-code="0"/>
          </lrm_resource>
        </lrm_resources>
      </lrm>
    </node_state>
    <node_state id="3" uname="node-c" crmd="offline"/>
  </status>
</cib>`

func TestParseClusterStatus(t *testing.T) {
	st, err := ParseClusterStatus(sampleCIB)
	require.NoError(t, err)

	assert.Equal(t, "node-b", st.DC)
	assert.Equal(t, map[string]bool{"node-a": true, "node-b": true}, st.Online)

	byID := make(map[string]store.ServiceInfo)
	var order []string
	for _, s := range st.Services {
		byID[s.CRMID] = s
		order = append(order, s.CRMID)
	}
	assert.Equal(t, []string{
		"res_IPaddr2_1", "grp_web", "res_apache_1", "res_Filesystem_1", "ms_res_drbd_1", "res_drbd_1",
	}, order, "containers come before their members")

	ip := byID["res_IPaddr2_1"]
	assert.Equal(t, "IPaddr2", ip.Name)
	assert.Equal(t, "1", ip.ID)
	assert.Equal(t, store.Primitive, ip.Kind)
	assert.Equal(t, "10.0.0.50", ip.Params["ip"])
	assert.Equal(t, []string{"node-a"}, ip.RunningOn, "stopped on node-b by the later op")

	grp := byID["grp_web"]
	assert.Equal(t, store.Group, grp.Kind)
	assert.Equal(t, "Group", grp.Name)
	assert.Equal(t, "grp_web", byID["res_apache_1"].Parent)

	assert.True(t, byID["res_apache_1"].Failed)
	assert.Empty(t, byID["res_apache_1"].RunningOn)

	ms := byID["ms_res_drbd_1"]
	assert.Equal(t, store.MasterSlave, ms.Kind)
	assert.Equal(t, "ms_res_drbd_1", byID["res_drbd_1"].Parent)
	assert.Equal(t, []string{"node-a", "node-b"}, byID["res_drbd_1"].RunningOn, "clone instances fold into one resource")

	require.Len(t, st.Orphans, 1)
	orphan := st.Orphans[0]
	assert.Equal(t, "res_Dummy_9", orphan.CRMID)
	assert.Equal(t, "Dummy", orphan.Name)
	assert.Equal(t, "9", orphan.ID)
	assert.True(t, orphan.Orphaned)
	assert.Equal(t, []string{"node-a"}, orphan.RunningOn)
}

func TestParseClusterStatus_NoDC(t *testing.T) {
	st, err := ParseClusterStatus(`<cib><configuration><nodes/><resources/></configuration><status/></cib>`)
	require.NoError(t, err)
	assert.Empty(t, st.DC)
	assert.Empty(t, st.Services)
	assert.Empty(t, st.Online)
}

func TestParseClusterStatus_Malformed(t *testing.T) {
	for _, text := range []string{"", "<cib>", "not xml", "<other/>"} {
		_, err := ParseClusterStatus(text)
		require.Error(t, err, text)
		assert.True(t, errors.IsCode(err, errors.ErrStream), text)
	}
}

func TestLastOpState(t *testing.T) {
	tests := []struct {
		name string
		ops  []xmlRscOp
		want opState
	}{
		{"no ops", nil, opState{}},
		{"started", []xmlRscOp{{Operation: "start", CallID: "1", RCCode: "0"}}, opState{running: true}},
		{"promoted", []xmlRscOp{{Operation: "monitor", CallID: "1", RCCode: "8"}}, opState{running: true}},
		{"monitor reports not running", []xmlRscOp{{Operation: "monitor", CallID: "1", RCCode: "7"}}, opState{}},
		{"stopped", []xmlRscOp{
			{Operation: "start", CallID: "1", RCCode: "0"},
			{Operation: "stop", CallID: "2", RCCode: "0"},
		}, opState{}},
		{"failed start", []xmlRscOp{{Operation: "start", CallID: "3", RCCode: "1"}}, opState{failed: true}},
		{"pending call id ignored", []xmlRscOp{
			{Operation: "start", CallID: "2", RCCode: "0"},
			{Operation: "stop", CallID: "-1", RCCode: "0"},
		}, opState{running: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lastOpState(tt.ops))
		})
	}
}

func TestInstanceBase(t *testing.T) {
	assert.Equal(t, "res_drbd_1", instanceBase("res_drbd_1:0"))
	assert.Equal(t, "res_drbd_1", instanceBase("res_drbd_1"))
	assert.Equal(t, "odd:name", instanceBase("odd:name"))
}
