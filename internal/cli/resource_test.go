package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rileyhilliard/crmon/internal/cluster"
	"github.com/rileyhilliard/crmon/internal/errors"
	"github.com/rileyhilliard/crmon/internal/logger"
	"github.com/rileyhilliard/crmon/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdleCluster(t *testing.T) *cluster.Cluster {
	t.Helper()
	c, err := cluster.New(cluster.Options{Name: "prod", Hosts: []string{"node-a", "node-b"}, Logger: logger.Noop()})
	require.NoError(t, err)
	return c
}

func TestResourceDefineOptions_Definition(t *testing.T) {
	opts := resourceDefineOptions{
		Name:     "IPaddr2",
		Kind:     "primitive",
		Class:    "ocf",
		Provider: "heartbeat",
		Parent:   "grp_web",
		Params:   []string{"ip=10.0.0.10"},
	}
	def, err := opts.definition()
	require.NoError(t, err)
	assert.Equal(t, store.Definition{
		Name:     "IPaddr2",
		Kind:     store.Primitive,
		Class:    "ocf",
		Provider: "heartbeat",
		Parent:   "grp_web",
		Params:   map[string]string{"ip": "10.0.0.10"},
	}, def)

	opts.Kind = "bundle"
	_, err = opts.definition()
	assert.Error(t, err)

	opts.Kind = "group"
	opts.Params = []string{"bad"}
	_, err = opts.definition()
	assert.Error(t, err)
}

func TestDefineResource_Text(t *testing.T) {
	c := newIdleCluster(t)

	var buf bytes.Buffer
	err := defineResource(&buf, c, store.Definition{Name: "IPaddr2", Kind: store.Primitive}, false)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "res_IPaddr2_1")
	assert.Contains(t, out, "kind: primitive")
	assert.Contains(t, out, "id:   1")

	buf.Reset()
	require.NoError(t, defineResource(&buf, c, store.Definition{Name: "IPaddr2", Kind: store.Primitive}, false))
	assert.Contains(t, buf.String(), "res_IPaddr2_2", "second definition gets the next id")
}

func TestDefineResource_JSON(t *testing.T) {
	c := newIdleCluster(t)

	var buf bytes.Buffer
	require.NoError(t, defineResource(&buf, c, store.Definition{Name: "Dummy", Kind: store.Primitive}, true))

	var env struct {
		Success bool              `json:"success"`
		Data    store.ServiceInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Equal(t, "res_Dummy_1", env.Data.CRMID)
	assert.Equal(t, store.Primitive, env.Data.Kind)
	assert.True(t, env.Data.PendingEdit)
}

func TestDefineResource_Error(t *testing.T) {
	c := newIdleCluster(t)

	var buf bytes.Buffer
	err := defineResource(&buf, c, store.Definition{Kind: store.Primitive}, false)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrAlloc))
	assert.Empty(t, buf.String())
}
