// Package peer maintains the set of known peers and the broadhash
// consensus ratio computed over them.
//
// Generalized from a bare host-set into one that also carries each peer's
// last-known broadhash/height, so CalculateConsensus/IsPoorConsensus can be
// computed locally against cached status instead of a fresh network
// round-trip per call.
package peer

import (
	"sync"
)

// MaxPeers clamps the population CalculateConsensus considers.
const MaxPeers = 100

// Peer represents one other node in the network.
type Peer struct {
	Host string `json:"host" validate:"required"`
}

// New constructs a new Peer value.
func New(host string) Peer {
	return Peer{Host: host}
}

// Match reports whether host names this peer.
func (p Peer) Match(host string) bool {
	return p.Host == host
}

// Status is the last-known status advertised by a peer: its chain's
// module alias (so unrelated chains sharing a transport never get counted
// in each other's consensus), broadhash, and height.
type Status struct {
	ModuleAlias string `json:"moduleAlias"`
	Broadhash   string `json:"broadhash"`
	Height      uint64 `json:"height"`
	KnownPeers  []Peer `json:"knownPeers"`
}

// Set maintains the known-peer population and their last-reported Status,
// guarded by one mutex.
type Set struct {
	mu      sync.RWMutex
	entries map[Peer]Status
}

// NewSet constructs an empty peer Set.
func NewSet() *Set {
	return &Set{entries: make(map[Peer]Status)}
}

// Add registers p if it is not already known. Returns true if it was new.
func (s *Set) Add(p Peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[p]; exists {
		return false
	}
	s.entries[p] = Status{}
	return true
}

// Remove drops p from the known-peer set.
func (s *Set) Remove(p Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, p)
}

// UpdateStatus records the last status p reported; CalculateConsensus
// reads the recorded statuses.
func (s *Set) UpdateStatus(p Peer, status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[p]; !exists {
		return
	}
	s.entries[p] = status
}

// Copy returns the known peers other than host.
func (s *Set) Copy(host string) []Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var peers []Peer
	for p := range s.entries {
		if !p.Match(host) {
			peers = append(peers, p)
		}
	}
	return peers
}

// CalculateConsensus returns the percentage (rounded to two decimals) of
// known peers, clamped to MaxPeers, whose last-reported status both
// advertises moduleAlias and reports broadhash.
func (s *Set) CalculateConsensus(moduleAlias, broadhash string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.entries)
	if total == 0 {
		return 0
	}
	if total > MaxPeers {
		total = MaxPeers
	}

	matched := 0
	checked := 0
	for _, status := range s.entries {
		if checked >= MaxPeers {
			break
		}
		checked++

		if status.ModuleAlias == moduleAlias && status.Broadhash == broadhash {
			matched++
		}
	}

	pct := float64(matched) / float64(total) * 100
	return roundTwoDecimals(pct)
}

func roundTwoDecimals(v float64) float64 {
	const scale = 100
	return float64(int64(v*scale+0.5)) / scale
}

// IsPoorConsensus reports whether consensus is below minBroadhashConsensus.
// Consensus is advisory; forging refuses when poor unless forgingForce
// overrides the check entirely.
func IsPoorConsensus(consensus, minBroadhashConsensus float64, forgingForce bool) bool {
	if forgingForce {
		return false
	}
	return consensus < minBroadhashConsensus
}
