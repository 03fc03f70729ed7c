package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextPlainID(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		want     string
	}{
		{name: "empty bucket", existing: nil, want: "1"},
		{name: "gap is not reused", existing: []string{"1", "2", "4"}, want: "5"},
		{name: "unordered", existing: []string{"10", "3", "7"}, want: "11"},
		{name: "non numeric ignored", existing: []string{"web", "2", "db_3", "04x"}, want: "3"},
		{name: "only non numeric", existing: []string{"web"}, want: "1"},
		{name: "leading zeros count by value", existing: []string{"007"}, want: "8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextPlainID(tt.existing))
		})
	}
}

func TestNextGroupedID(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		existing []string
		want     string
	}{
		{name: "free", base: "grp_res_IPaddr2_1", existing: []string{"res_IPaddr2_1"}, want: "grp_res_IPaddr2_1"},
		{name: "first collision", base: "cl_web", existing: []string{"cl_web"}, want: "cl_web_2"},
		{name: "max plus one", base: "cl_web", existing: []string{"cl_web", "cl_web_2", "cl_web_5"}, want: "cl_web_6"},
		{name: "suffix only counts when base taken", base: "cl_web", existing: []string{"cl_web_4"}, want: "cl_web"},
		{name: "regex metacharacters in base", base: "ms_a.b", existing: []string{"ms_a.b", "ms_aXb_9"}, want: "ms_a.b_2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextGroupedID(tt.base, tt.existing))
		})
	}
}

func TestUniqueExplicitID(t *testing.T) {
	taken := map[string]bool{"web": true, "web_2": true, "db": true}
	isTaken := func(id string) bool { return taken[id] }

	assert.Equal(t, "api", UniqueExplicitID("api", isTaken))
	assert.Equal(t, "web_3", UniqueExplicitID("web", isTaken))
	assert.Equal(t, "db_2", UniqueExplicitID("db", isTaken))
}

func TestIDFromCRMID(t *testing.T) {
	assert.Equal(t, "3", IDFromCRMID(Primitive, "IPaddr2", "res_IPaddr2_3"))
	assert.Equal(t, "webip", IDFromCRMID(Primitive, "IPaddr2", "webip"))
	assert.Equal(t, "res_IPaddr2_", IDFromCRMID(Primitive, "IPaddr2", "res_IPaddr2_"))
	assert.Equal(t, "grp_web", IDFromCRMID(Group, "Group", "grp_web"))
	assert.Equal(t, "res_Dummy_1", PrimitiveCRMID("Dummy", "1"))
}

func TestKind(t *testing.T) {
	tests := []struct {
		kind      Kind
		name      string
		prefix    string
		bucket    string
		container bool
	}{
		{Primitive, "primitive", "", "", false},
		{Group, "group", GroupPrefix, "Group", true},
		{Clone, "clone", ClonePrefix, "Clone", true},
		{MasterSlave, "master", MasterSlavePrefix, "MasterSlave", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.kind.String())
			assert.Equal(t, tt.prefix, tt.kind.Prefix())
			assert.Equal(t, tt.bucket, tt.kind.BucketName())
			assert.Equal(t, tt.container, tt.kind.Container())
		})
	}
	assert.Equal(t, "unknown", Kind(42).String())
}
