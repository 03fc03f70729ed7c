package ui

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/crmon/internal/cluster"
	"github.com/rileyhilliard/crmon/internal/store"
)

// HostSymbol picks the status symbol for a host.
func HostSymbol(h cluster.HostState) string {
	switch {
	case !h.Connected:
		return ErrorStyle().Render(SymbolOffline)
	case h.IsDC:
		return InfoStyle().Render(SymbolDC)
	case !h.ClusterStatusOK || !h.StorageStatusOK:
		return WarningStyle().Render(SymbolDegraded)
	default:
		return SuccessStyle().Render(SymbolOnline)
	}
}

// HostLabel summarizes a host's flags in a few words.
func HostLabel(h cluster.HostState) string {
	if !h.Connected {
		return "offline"
	}
	var parts []string
	if h.IsDC {
		parts = append(parts, "dc")
	}
	if h.CRMRunning {
		parts = append(parts, "crm")
	} else {
		parts = append(parts, "crm stopped")
	}
	if !h.ClusterStatusOK {
		parts = append(parts, "status error")
	}
	if !h.StorageStatusOK {
		parts = append(parts, "no storage")
	}
	if h.InTransition {
		parts = append(parts, "in transition")
	}
	return strings.Join(parts, ", ")
}

// HostColumns and HostRows lay out hosts as a table.
var HostColumns = []TableColumn{
	{Title: " ", Width: 2},
	{Title: "HOST", Width: 16},
	{Title: "STATE", Width: 36},
}

func HostRows(hosts []cluster.HostState) [][]string {
	rows := make([][]string, 0, len(hosts))
	for _, h := range hosts {
		rows = append(rows, []string{HostSymbol(h), h.Name, HostLabel(h)})
	}
	return rows
}

// ServiceColumns and ServiceRows lay out services as a table. Members are
// indented under their container.
var ServiceColumns = []TableColumn{
	{Title: "RESOURCE", Width: 24},
	{Title: "TYPE", Width: 14},
	{Title: "ID", Width: 8},
	{Title: "RUNNING ON", Width: 20},
	{Title: "STATE", Width: 12},
}

func ServiceRows(snap store.Snapshot) [][]string {
	var roots []store.ServiceInfo
	for _, s := range snap.Services {
		if s.Parent != "" {
			if _, ok := snap.Service(s.Parent); ok {
				continue
			}
		}
		roots = append(roots, s)
	}

	var rows [][]string
	var walk func(s store.ServiceInfo, depth int)
	walk = func(s store.ServiceInfo, depth int) {
		rows = append(rows, []string{
			strings.Repeat("  ", depth) + s.CRMID,
			s.Name,
			s.ID,
			strings.Join(s.RunningOn, ","),
			ServiceState(s),
		})
		for _, child := range snap.Members(s.CRMID) {
			walk(child, depth+1)
		}
	}
	for _, s := range roots {
		walk(s, 0)
	}
	return rows
}

// ServiceState is a one-word state for a service.
func ServiceState(s store.ServiceInfo) string {
	switch {
	case s.PendingEdit:
		return "pending"
	case s.Failed:
		return "failed"
	case s.Orphaned:
		return "orphaned"
	case s.Kind.Container():
		return s.Kind.String()
	case len(s.RunningOn) > 0:
		return "started"
	default:
		return "stopped"
	}
}

// VolumeColumns and VolumeRows lay out replicated volumes as a table.
var VolumeColumns = []TableColumn{
	{Title: "VOLUME", Width: 12},
	{Title: "ENDPOINT A", Width: 30},
	{Title: "ENDPOINT B", Width: 30},
	{Title: "STATE", Width: 16},
}

func VolumeRows(snap store.Snapshot) [][]string {
	splitRes := make(map[string]bool)
	for _, r := range snap.Resources {
		splitRes[r.Name] = r.SplitBrain
	}
	rows := make([][]string, 0, len(snap.Volumes))
	for _, v := range snap.Volumes {
		rows = append(rows, []string{
			v.Key(),
			endpoint(v.Endpoints[0]),
			endpoint(v.Endpoints[1]),
			VolumeState(v, splitRes[v.Resource]),
		})
	}
	return rows
}

func endpoint(ep store.Endpoint) string {
	s := fmt.Sprintf("%s:%s", ep.Host, ep.Device)
	if ep.Role != "" || ep.DiskState != "" {
		s += fmt.Sprintf(" (%s)", strings.Trim(ep.Role+"/"+ep.DiskState, "/"))
	}
	return s
}

// VolumeState is a short state for a volume.
func VolumeState(v store.ReplicationVolumeInfo, resourceSplit bool) string {
	switch {
	case v.SplitBrain || resourceSplit:
		return SymbolSplit + " split-brain"
	case !v.Connected:
		return "disconnected"
	case v.Synced:
		return SymbolSync + " synced"
	default:
		return "syncing"
	}
}

// RenderSnapshot renders a whole cluster snapshot as plain tables.
func RenderSnapshot(snap cluster.Snapshot) string {
	var b strings.Builder

	dc := snap.DC
	if dc == "" {
		dc = "none"
	} else if !snap.DCAuthoritative {
		dc += " (fallback)"
	}
	b.WriteString(HeaderStyle().Render(snap.Cluster))
	b.WriteString(MutedStyle().Render(fmt.Sprintf("  dc: %s", dc)))
	if !snap.Ready {
		b.WriteString(WarningStyle().Render("  waiting for first status"))
	}
	b.WriteString("\n\n")

	b.WriteString(RenderSimpleTable(HostColumns, HostRows(snap.Hosts)))
	b.WriteString("\n")

	if rows := ServiceRows(snap.Model); len(rows) > 0 {
		b.WriteString("\n")
		b.WriteString(RenderSimpleTable(ServiceColumns, rows))
		b.WriteString("\n")
	}
	if rows := VolumeRows(snap.Model); len(rows) > 0 {
		b.WriteString("\n")
		b.WriteString(RenderSimpleTable(VolumeColumns, rows))
		b.WriteString("\n")
	}
	return b.String()
}
