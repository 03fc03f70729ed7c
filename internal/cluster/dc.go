package cluster

import "sync"

// Selector picks the host used for cluster-wide queries.
//
// The DC reported by the cluster manager wins when it is eligible. Otherwise
// hosts are scanned round-robin starting just past the previous pick and the
// first eligible one is taken. With no eligible host the previous pick is
// kept, or the first host when there was none. Only the previous pick is
// remembered between calls.
type Selector struct {
	mu   sync.Mutex
	last string
}

// Select returns the chosen host and whether it came from the cluster
// manager's own report. It returns nil only when hosts is empty.
func (s *Selector) Select(hosts []*Host, reportedDC string) (*Host, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(hosts) == 0 {
		return nil, false
	}

	if reportedDC != "" {
		for _, h := range hosts {
			if h.Name() == reportedDC && h.Eligible() {
				s.last = h.Name()
				return h, true
			}
		}
	}

	lastIdx := -1
	for i, h := range hosts {
		if h.Name() == s.last {
			lastIdx = i
			break
		}
	}

	for i := 1; i <= len(hosts); i++ {
		h := hosts[(lastIdx+i)%len(hosts)]
		if h.Eligible() {
			s.last = h.Name()
			return h, false
		}
	}

	if lastIdx >= 0 {
		return hosts[lastIdx], false
	}
	return hosts[0], false
}

// lastPick returns the name of the previous pick.
func (s *Selector) lastPick() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
