package cluster

import (
	"encoding/xml"
	"sort"
	"strconv"
	"strings"

	"github.com/rileyhilliard/crmon/internal/errors"
	"github.com/rileyhilliard/crmon/internal/store"
)

// The subset of the CIB document crmon reads.
type xmlCIB struct {
	XMLName    xml.Name       `xml:"cib"`
	DCUUID     string         `xml:"dc-uuid,attr"`
	Nodes      []xmlNode      `xml:"configuration>nodes>node"`
	Resources  xmlResources   `xml:"configuration>resources"`
	NodeStates []xmlNodeState `xml:"status>node_state"`
}

type xmlNode struct {
	ID    string `xml:"id,attr"`
	Uname string `xml:"uname,attr"`
}

type xmlResources struct {
	Primitives []xmlPrimitive `xml:"primitive"`
	Groups     []xmlGroup     `xml:"group"`
	Clones     []xmlClone     `xml:"clone"`
	Masters    []xmlClone     `xml:"master"`
}

type xmlNVPair struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type xmlPrimitive struct {
	ID       string      `xml:"id,attr"`
	Class    string      `xml:"class,attr"`
	Provider string      `xml:"provider,attr"`
	Type     string      `xml:"type,attr"`
	Params   []xmlNVPair `xml:"instance_attributes>nvpair"`
}

type xmlGroup struct {
	ID         string         `xml:"id,attr"`
	Primitives []xmlPrimitive `xml:"primitive"`
}

type xmlClone struct {
	ID        string        `xml:"id,attr"`
	Primitive *xmlPrimitive `xml:"primitive"`
	Group     *xmlGroup     `xml:"group"`
}

type xmlNodeState struct {
	ID        string           `xml:"id,attr"`
	Uname     string           `xml:"uname,attr"`
	Crmd      string           `xml:"crmd,attr"`
	Resources []xmlLRMResource `xml:"lrm>lrm_resources>lrm_resource"`
}

type xmlLRMResource struct {
	ID       string     `xml:"id,attr"`
	Type     string     `xml:"type,attr"`
	Class    string     `xml:"class,attr"`
	Provider string     `xml:"provider,attr"`
	Ops      []xmlRscOp `xml:"lrm_rsc_op"`
}

type xmlRscOp struct {
	Operation string `xml:"operation,attr"`
	CallID    string `xml:"call-id,attr"`
	RCCode    string `xml:"rc-code,attr"`
}

// Exit codes of resource agent operations.
const (
	rcOK         = 0
	rcNotRunning = 7
	rcMaster     = 8
)

// ClusterStatus is the parsed content of one full-status frame.
type ClusterStatus struct {
	// DC is the host name of the DC the cluster manager reports, if any.
	DC string
	// Online lists hosts whose cluster manager is running.
	Online map[string]bool
	// Services are the configured resources with their runtime state.
	Services []store.ServiceInfo
	// Orphans are resources the status section reports but the
	// configuration does not define.
	Orphans []store.ServiceInfo
}

// ParseClusterStatus parses a CIB document.
func ParseClusterStatus(text string) (*ClusterStatus, error) {
	var doc xmlCIB
	if err := xml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, errors.Malformed("cluster status", err)
	}

	unames := make(map[string]string, len(doc.Nodes))
	for _, n := range doc.Nodes {
		unames[n.ID] = n.Uname
	}

	st := &ClusterStatus{Online: make(map[string]bool)}
	if doc.DCUUID != "" {
		st.DC = unames[doc.DCUUID]
	}

	configured := make(map[string]*store.ServiceInfo)
	var order []string
	add := func(svc store.ServiceInfo) {
		if _, dup := configured[svc.CRMID]; dup {
			return
		}
		s := svc
		configured[s.CRMID] = &s
		order = append(order, s.CRMID)
	}
	collectResources(doc.Resources, add)

	running := make(map[string][]string)
	failed := make(map[string]bool)
	orphans := make(map[string]*store.ServiceInfo)

	for _, ns := range doc.NodeStates {
		name := ns.Uname
		if name == "" {
			name = unames[ns.ID]
		}
		if name == "" {
			continue
		}
		if ns.Crmd == "online" {
			st.Online[name] = true
		}
		for _, lrm := range ns.Resources {
			id := instanceBase(lrm.ID)
			state := lastOpState(lrm.Ops)
			if state.running {
				running[id] = appendUnique(running[id], name)
			}
			if state.failed {
				failed[id] = true
			}
			if _, ok := configured[id]; ok {
				continue
			}
			if _, ok := orphans[id]; !ok {
				orphans[id] = &store.ServiceInfo{
					Name:     orphanName(lrm),
					CRMID:    id,
					Kind:     store.Primitive,
					Class:    lrm.Class,
					Provider: lrm.Provider,
					Orphaned: true,
				}
			}
		}
	}

	for _, id := range order {
		svc := configured[id]
		svc.RunningOn = sorted(running[id])
		svc.Failed = failed[id]
		st.Services = append(st.Services, *svc)
	}
	for id, svc := range orphans {
		svc.ID = store.IDFromCRMID(store.Primitive, svc.Name, id)
		svc.RunningOn = sorted(running[id])
		svc.Failed = failed[id]
		st.Orphans = append(st.Orphans, *svc)
	}
	sort.Slice(st.Orphans, func(i, j int) bool { return st.Orphans[i].CRMID < st.Orphans[j].CRMID })

	return st, nil
}

// collectResources flattens the resources section. Containers come before
// their members.
func collectResources(r xmlResources, add func(store.ServiceInfo)) {
	for _, p := range r.Primitives {
		add(primitiveInfo(p, ""))
	}
	for _, g := range r.Groups {
		collectGroup(g, "", add)
	}
	for _, c := range r.Clones {
		collectClone(c, store.Clone, add)
	}
	for _, m := range r.Masters {
		collectClone(m, store.MasterSlave, add)
	}
}

func collectGroup(g xmlGroup, parent string, add func(store.ServiceInfo)) {
	add(containerInfo(store.Group, g.ID, parent))
	for _, p := range g.Primitives {
		add(primitiveInfo(p, g.ID))
	}
}

func collectClone(c xmlClone, kind store.Kind, add func(store.ServiceInfo)) {
	add(containerInfo(kind, c.ID, ""))
	if c.Primitive != nil {
		add(primitiveInfo(*c.Primitive, c.ID))
	}
	if c.Group != nil {
		collectGroup(*c.Group, c.ID, add)
	}
}

func primitiveInfo(p xmlPrimitive, parent string) store.ServiceInfo {
	svc := store.ServiceInfo{
		Name:     p.Type,
		ID:       store.IDFromCRMID(store.Primitive, p.Type, p.ID),
		CRMID:    p.ID,
		Kind:     store.Primitive,
		Class:    p.Class,
		Provider: p.Provider,
		Parent:   parent,
	}
	if len(p.Params) > 0 {
		svc.Params = make(map[string]string, len(p.Params))
		for _, nv := range p.Params {
			svc.Params[nv.Name] = nv.Value
		}
	}
	return svc
}

func containerInfo(kind store.Kind, id, parent string) store.ServiceInfo {
	return store.ServiceInfo{
		Name:   kind.BucketName(),
		ID:     id,
		CRMID:  id,
		Kind:   kind,
		Parent: parent,
	}
}

func orphanName(lrm xmlLRMResource) string {
	if lrm.Type != "" {
		return lrm.Type
	}
	return "unknown"
}

type opState struct {
	running bool
	failed  bool
}

// lastOpState derives a resource's state on one node from the operation
// with the highest call id.
func lastOpState(ops []xmlRscOp) opState {
	best := -1
	var last xmlRscOp
	for _, op := range ops {
		n, err := strconv.Atoi(op.CallID)
		if err != nil {
			continue
		}
		if n > best {
			best, last = n, op
		}
	}
	if best < 0 {
		return opState{}
	}
	rc, err := strconv.Atoi(last.RCCode)
	if err != nil {
		return opState{}
	}

	switch rc {
	case rcOK, rcMaster:
		return opState{running: last.Operation != "stop"}
	case rcNotRunning:
		return opState{}
	default:
		return opState{failed: true}
	}
}

// instanceBase strips the ":N" instance suffix of clone members.
func instanceBase(id string) string {
	if i := strings.LastIndexByte(id, ':'); i > 0 {
		if _, err := strconv.Atoi(id[i+1:]); err == nil {
			return id[:i]
		}
	}
	return id
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}

func sorted(list []string) []string {
	if len(list) == 0 {
		return nil
	}
	out := append([]string(nil), list...)
	sort.Strings(out)
	return out
}
