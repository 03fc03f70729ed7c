package cluster

import (
	"encoding/xml"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rileyhilliard/crmon/internal/errors"
)

// ReplicationConfig is one host's view of the replication configuration,
// as printed by `drbdadm dump-xml`.
type ReplicationConfig struct {
	Resources []ConfigResource
}

// ConfigResource is one replicated resource and the hosts it names.
type ConfigResource struct {
	Name  string
	Hosts []ConfigHost
}

// ConfigHost is one host section of a resource.
type ConfigHost struct {
	Name    string
	Volumes []ConfigVolume
}

// ConfigVolume is one volume of a host section.
type ConfigVolume struct {
	Number int
	Device string
	Disk   string
}

// Resource returns the named resource.
func (c *ReplicationConfig) Resource(name string) (ConfigResource, bool) {
	if c == nil {
		return ConfigResource{}, false
	}
	for _, r := range c.Resources {
		if r.Name == name {
			return r, true
		}
	}
	return ConfigResource{}, false
}

// Volume returns the volume with number vnr.
func (h ConfigHost) Volume(vnr int) (ConfigVolume, bool) {
	for _, v := range h.Volumes {
		if v.Number == vnr {
			return v, true
		}
	}
	return ConfigVolume{}, false
}

type xmlReplConfig struct {
	XMLName   xml.Name          `xml:"config"`
	Resources []xmlReplResource `xml:"resource"`
}

type xmlReplResource struct {
	Name  string        `xml:"name,attr"`
	Hosts []xmlReplHost `xml:"host"`
}

type xmlReplHost struct {
	Name    string          `xml:"name,attr"`
	Volumes []xmlReplVolume `xml:"volume"`
	// Single-volume configurations put device and disk on the host.
	Device *xmlReplDevice `xml:"device"`
	Disk   string         `xml:"disk"`
}

type xmlReplVolume struct {
	Number string         `xml:"vnr,attr"`
	Device *xmlReplDevice `xml:"device"`
	Disk   string         `xml:"disk"`
}

type xmlReplDevice struct {
	Minor string `xml:"minor,attr"`
	Path  string `xml:",chardata"`
}

func (d *xmlReplDevice) path() string {
	if d == nil {
		return ""
	}
	if p := strings.TrimSpace(d.Path); p != "" {
		return p
	}
	if d.Minor != "" {
		return "/dev/drbd" + d.Minor
	}
	return ""
}

// ParseReplicationConfig parses the payload of a replication config frame.
func ParseReplicationConfig(text string) (*ReplicationConfig, error) {
	var doc xmlReplConfig
	if err := xml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, errors.Malformed("replication config", err)
	}

	cfg := &ReplicationConfig{}
	for _, r := range doc.Resources {
		if r.Name == "" {
			return nil, errors.Malformed("replication config", stderrors.New("resource without a name"))
		}
		res := ConfigResource{Name: r.Name}
		for _, h := range r.Hosts {
			host := ConfigHost{Name: h.Name}
			if len(h.Volumes) == 0 && h.Device != nil {
				host.Volumes = append(host.Volumes, ConfigVolume{
					Device: h.Device.path(),
					Disk:   strings.TrimSpace(h.Disk),
				})
			}
			for _, v := range h.Volumes {
				n, err := strconv.Atoi(v.Number)
				if err != nil {
					return nil, errors.Malformed("replication config",
						fmt.Errorf("resource %s host %s: bad volume number %q", r.Name, h.Name, v.Number))
				}
				host.Volumes = append(host.Volumes, ConfigVolume{
					Number: n,
					Device: v.Device.path(),
					Disk:   strings.TrimSpace(v.Disk),
				})
			}
			res.Hosts = append(res.Hosts, host)
		}
		cfg.Resources = append(cfg.Resources, res)
	}
	return cfg, nil
}

// Event is one line of `drbdsetup events2` output, e.g.
//
//	change peer-device name:r0 peer-node-id:1 conn-name:b volume:0 replication:Established
type Event struct {
	// Verb is exists, create, change, destroy or call.
	Verb   string
	Object string
	Fields map[string]string
}

// Get returns a field value.
func (e Event) Get(key string) string { return e.Fields[key] }

// Volume returns the volume field.
func (e Event) Volume() (int, bool) {
	v, ok := e.Fields["volume"]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

// ParseEvents parses the payload of a replication event frame. Blank lines
// and the "exists -" end-of-initial-state marker are skipped.
func ParseEvents(text string) ([]Event, error) {
	var out []Event
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		tokens := strings.Fields(line)
		// An optional leading timestamp as printed with --timestamps.
		if len(tokens) > 0 && tokens[0][0] >= '0' && tokens[0][0] <= '9' {
			tokens = tokens[1:]
		}
		if len(tokens) == 2 && tokens[1] == "-" {
			continue
		}
		if len(tokens) < 2 {
			return nil, errors.Malformed("replication event", fmt.Errorf("line %d: %q", i+1, line))
		}

		ev := Event{Verb: tokens[0], Object: tokens[1], Fields: make(map[string]string, len(tokens)-2)}
		for _, kv := range tokens[2:] {
			k, v, ok := strings.Cut(kv, ":")
			if !ok || k == "" {
				return nil, errors.Malformed("replication event", fmt.Errorf("line %d: field %q", i+1, kv))
			}
			ev.Fields[k] = v
		}
		out = append(out, ev)
	}
	return out, nil
}
