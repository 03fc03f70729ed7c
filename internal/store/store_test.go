package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/rileyhilliard/crmon/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func primitive(name, id string) ServiceInfo {
	return ServiceInfo{Name: name, ID: id, CRMID: PrimitiveCRMID(name, id), Kind: Primitive}
}

func TestPut_IndexesAndCopies(t *testing.T) {
	s := New()
	svc := primitive("IPaddr2", "1")
	svc.Params = map[string]string{"ip": "10.0.0.10"}

	require.NoError(t, s.Update(func(tx *ServiceTx) error { return tx.Put(svc) }))

	// Mutating the caller's value must not reach the store.
	svc.Params["ip"] = "changed"

	got, ok := s.Service("res_IPaddr2_1")
	require.True(t, ok)
	assert.Equal(t, "10.0.0.10", got.Params["ip"])

	got.Params["ip"] = "changed again"
	again, _ := s.Service("res_IPaddr2_1")
	assert.Equal(t, "10.0.0.10", again.Params["ip"], "reads return copies")

	s.View(func(tx *ServiceTx) error {
		byName, ok := tx.Lookup("IPaddr2", "1")
		assert.True(t, ok)
		assert.Equal(t, "res_IPaddr2_1", byName.CRMID)
		assert.Equal(t, []string{"1"}, tx.IDs("IPaddr2"))
		return nil
	})
}

func TestPut_Validation(t *testing.T) {
	s := New()
	require.NoError(t, s.Update(func(tx *ServiceTx) error { return tx.Put(primitive("Dummy", "1")) }))

	tests := []struct {
		name string
		svc  ServiceInfo
	}{
		{name: "missing crm id", svc: ServiceInfo{Name: "Dummy", ID: "2"}},
		{name: "bucket id owned by another crm id", svc: ServiceInfo{Name: "Dummy", ID: "1", CRMID: "other"}},
		{name: "self parent", svc: ServiceInfo{Name: "Dummy", ID: "3", CRMID: "x", Parent: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Update(func(tx *ServiceTx) error { return tx.Put(tt.svc) })
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrStore))
		})
	}
}

func TestView_IsReadOnly(t *testing.T) {
	s := New()
	err := s.View(func(tx *ServiceTx) error { return tx.Put(primitive("Dummy", "1")) })
	assert.True(t, errors.IsCode(err, errors.ErrStore))

	err = s.View(func(tx *ServiceTx) error {
		_, err := tx.Allocate(Definition{Name: "Dummy"})
		return err
	})
	assert.Error(t, err)
	assert.Empty(t, s.Services())
}

func TestPut_ReparentMovesChildIndex(t *testing.T) {
	s := New()
	require.NoError(t, s.Update(func(tx *ServiceTx) error {
		require.NoError(t, tx.Put(ServiceInfo{Name: "Group", ID: "grp_a", CRMID: "grp_a", Kind: Group}))
		require.NoError(t, tx.Put(ServiceInfo{Name: "Group", ID: "grp_b", CRMID: "grp_b", Kind: Group}))
		child := primitive("Dummy", "1")
		child.Parent = "grp_a"
		require.NoError(t, tx.Put(child))
		child.Parent = "grp_b"
		return tx.Put(child)
	}))

	s.View(func(tx *ServiceTx) error {
		assert.Empty(t, tx.Children("grp_a"))
		assert.Equal(t, []string{"res_Dummy_1"}, tx.Children("grp_b"))
		return nil
	})
}

func TestRemove_ClearsEveryIndex(t *testing.T) {
	s := New()
	require.NoError(t, s.Update(func(tx *ServiceTx) error {
		require.NoError(t, tx.Put(ServiceInfo{Name: "Group", ID: "grp_web", CRMID: "grp_web", Kind: Group}))
		for _, id := range []string{"1", "2"} {
			child := primitive("IPaddr2", id)
			child.Parent = "grp_web"
			require.NoError(t, tx.Put(child))
		}
		return tx.Put(primitive("Dummy", "1"))
	}))

	var removed []ServiceInfo
	require.NoError(t, s.Update(func(tx *ServiceTx) error {
		var err error
		removed, err = tx.Remove("grp_web")
		return err
	}))
	assert.Len(t, removed, 3, "container and both members")

	s.View(func(tx *ServiceTx) error {
		assert.Equal(t, []string{"res_Dummy_1"}, tx.CRMIDs())
		assert.Empty(t, tx.IDs("IPaddr2"))
		assert.Empty(t, tx.IDs("Group"))
		assert.Empty(t, tx.Children("grp_web"))
		_, ok := tx.Lookup("IPaddr2", "1")
		assert.False(t, ok)
		return nil
	})
	assert.Empty(t, s.byBucket["IPaddr2"])
	assert.NotContains(t, s.children, "grp_web")

	// Removing something absent is a no-op.
	require.NoError(t, s.Update(func(tx *ServiceTx) error {
		r, err := tx.Remove("nope")
		assert.Nil(t, r)
		return err
	}))
}

func TestAllocateAndInsert(t *testing.T) {
	tests := []struct {
		name      string
		seed      []ServiceInfo
		def       Definition
		wantID    string
		wantCRMID string
		wantName  string
	}{
		{
			name:      "first plain id",
			def:       Definition{Name: "IPaddr2", Class: "ocf", Provider: "heartbeat"},
			wantID:    "1",
			wantCRMID: "res_IPaddr2_1",
			wantName:  "IPaddr2",
		},
		{
			name:      "plain id skips gaps",
			seed:      []ServiceInfo{primitive("IPaddr2", "1"), primitive("IPaddr2", "2"), primitive("IPaddr2", "4")},
			def:       Definition{Name: "IPaddr2"},
			wantID:    "5",
			wantCRMID: "res_IPaddr2_5",
			wantName:  "IPaddr2",
		},
		{
			name:      "plain ids are per type",
			seed:      []ServiceInfo{primitive("Dummy", "7")},
			def:       Definition{Name: "IPaddr2"},
			wantID:    "1",
			wantCRMID: "res_IPaddr2_1",
			wantName:  "IPaddr2",
		},
		{
			name:      "explicit id kept",
			def:       Definition{Name: "IPaddr2", ExplicitID: "webip"},
			wantID:    "webip",
			wantCRMID: "webip",
			wantName:  "IPaddr2",
		},
		{
			name:      "explicit id renamed",
			seed:      []ServiceInfo{{Name: "Dummy", ID: "webip", CRMID: "webip"}},
			def:       Definition{Name: "IPaddr2", ExplicitID: "webip"},
			wantID:    "webip_2",
			wantCRMID: "webip_2",
			wantName:  "IPaddr2",
		},
		{
			name:      "clone of a primitive",
			seed:      []ServiceInfo{primitive("Dummy", "1")},
			def:       Definition{Kind: Clone, Contains: "res_Dummy_1"},
			wantID:    "cl_res_Dummy_1",
			wantCRMID: "cl_res_Dummy_1",
			wantName:  "Clone",
		},
		{
			name: "grouped id collision",
			seed: []ServiceInfo{
				primitive("Dummy", "1"),
				{Name: "Group", ID: "grp_res_Dummy_1", CRMID: "grp_res_Dummy_1", Kind: Group},
			},
			def:       Definition{Kind: Group, Contains: "res_Dummy_1"},
			wantID:    "grp_res_Dummy_1_2",
			wantCRMID: "grp_res_Dummy_1_2",
			wantName:  "Group",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			require.NoError(t, s.Update(func(tx *ServiceTx) error {
				for _, svc := range tt.seed {
					if err := tx.Put(svc); err != nil {
						return err
					}
				}
				return nil
			}))

			got, err := s.AllocateAndInsert(tt.def)
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got.ID)
			assert.Equal(t, tt.wantCRMID, got.CRMID)
			assert.Equal(t, tt.wantName, got.Name)
			assert.True(t, got.PendingEdit)

			stored, ok := s.Service(tt.wantCRMID)
			require.True(t, ok)
			assert.Equal(t, got, stored)

			if tt.def.Contains != "" {
				member, ok := s.Service(tt.def.Contains)
				require.True(t, ok)
				assert.Equal(t, got.CRMID, member.Parent)
			}
		})
	}
}

func TestAllocateAndInsert_Errors(t *testing.T) {
	tests := []struct {
		name string
		def  Definition
	}{
		{name: "primitive without type", def: Definition{}},
		{name: "container without member or id", def: Definition{Kind: Group}},
		{name: "unknown parent", def: Definition{Name: "Dummy", Parent: "grp_missing"}},
		{name: "unknown member", def: Definition{Kind: Clone, Contains: "res_missing_1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			_, err := s.AllocateAndInsert(tt.def)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrAlloc))
			assert.Empty(t, s.Services())
		})
	}
}

func TestAllocateAndInsert_BrokenIndexIsReported(t *testing.T) {
	s := New()
	// A CRM id in the allocator's form but filed under another bucket id.
	require.NoError(t, s.Update(func(tx *ServiceTx) error {
		return tx.Put(ServiceInfo{Name: "IPaddr2", ID: "legacy", CRMID: "res_IPaddr2_1"})
	}))

	_, err := s.AllocateAndInsert(Definition{Name: "IPaddr2"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrAlloc))
}

func TestAllocateAndInsert_Concurrent(t *testing.T) {
	s := New()
	const n = 100

	var wg sync.WaitGroup
	ids := make(chan string, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc, err := s.AllocateAndInsert(Definition{Name: "Filesystem"})
			if err != nil {
				errs <- err
				return
			}
			ids <- svc.ID
		}()
	}
	wg.Wait()
	close(ids)
	close(errs)

	for err := range errs {
		t.Fatalf("allocation failed: %v", err)
	}

	seen := make(map[string]bool, n)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
	for i := 1; i <= n; i++ {
		assert.True(t, seen[fmt.Sprint(i)], "id %d missing", i)
	}
}

func TestAllocateAndInsert_ConcurrentExplicit(t *testing.T) {
	s := New()
	const n = 20

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AllocateAndInsert(Definition{Name: "Dummy", ExplicitID: "marker"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var ids []string
	s.View(func(tx *ServiceTx) error {
		ids = tx.IDs("Dummy")
		return nil
	})
	assert.Len(t, ids, n)
	assert.Contains(t, ids, "marker")
	assert.Contains(t, ids, fmt.Sprintf("marker_%d", n))
}
