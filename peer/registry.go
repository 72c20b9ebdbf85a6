// Package peer implements the peer registry: the set of known peer
// addresses, a per-peer consecutive-failure counter, and peer discovery.
// The eviction-on-three-failures bookkeeping mirrors the peerSet pattern
// in klaytn's node/cn/peer.go (register/unregister guarded by a single
// mutex). Already-registered and unknown addresses are reported through
// boolean results, not sentinel errors.
package peer

import (
	"strings"
	"sync"

	"github.com/meshchain/meshchain/log"
	"github.com/meshchain/meshchain/p2pwire"
)

var logger = log.NewModuleLogger(log.Peer)

// MaxConsecutiveFailures is the consecutive-failure count at which a peer
// is evicted.
const MaxConsecutiveFailures = 3

// Registry tracks this node's known peers and their liveness.
type Registry struct {
	mu   sync.Mutex
	self string
	// failures maps peer address to its consecutive-failure count.
	failures map[string]int
	// order preserves registration order for deterministic snapshots.
	order []string
}

// NewRegistry builds an empty registry for the given node's own address;
// self is never admitted as one of its own peers.
func NewRegistry(self string) *Registry {
	return &Registry{
		self:     self,
		failures: make(map[string]int),
	}
}

// SetSelf updates the address this registry treats as its own, used when
// a listener bound to an ephemeral port resolves its real address after
// construction.
func (r *Registry) SetSelf(self string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.self = self
}

// Register adds address to the peer set. It silently drops addresses
// missing ":" and the node's own address.
func (r *Registry) Register(address string) bool {
	if !strings.Contains(address, ":") {
		return false
	}
	if address == r.self {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.failures[address]; exists {
		return false
	}
	r.failures[address] = 0
	r.order = append(r.order, address)
	return true
}

// Peers returns a snapshot of known peer addresses in registration order.
func (r *Registry) Peers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len reports the number of known peers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Stats is a point-in-time summary of registry health, the way
// node/cn/peer.go's peerSet exposes Len()/peerWithHighestTD for an
// external dashboard to read; meshchain does not ship that dashboard
// itself (out of scope), only the counters it would read.
type Stats struct {
	PeerCount    int
	FailingCount int
}

// Stats reports how many peers are known and how many currently carry a
// nonzero consecutive-failure count.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := Stats{PeerCount: len(r.order)}
	for _, count := range r.failures {
		if count > 0 {
			stats.FailingCount++
		}
	}
	return stats
}

// RecordFailure increments address's consecutive-failure counter,
// evicting it once it reaches MaxConsecutiveFailures. It reports whether
// the peer was evicted as a result.
func (r *Registry) RecordFailure(address string) (evicted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, known := r.failures[address]; !known {
		return false
	}
	r.failures[address]++
	if r.failures[address] >= MaxConsecutiveFailures {
		r.removeLocked(address)
		logger.Warn("evicted peer after consecutive failures", "peer", address)
		return true
	}
	return false
}

// RecordSuccess resets address's consecutive-failure counter to 0. A
// successful contact never implicitly re-adds a peer that was already
// evicted.
func (r *Registry) RecordSuccess(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, known := r.failures[address]; known {
		r.failures[address] = 0
	}
}

// Remove evicts address unconditionally, used when a liveness probe
// explicitly fails.
func (r *Registry) Remove(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(address)
}

func (r *Registry) removeLocked(address string) {
	delete(r.failures, address)
	for i, a := range r.order {
		if a == address {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Send wraps p2pwire.Send, incrementing address's failure counter on
// transport error and resetting it to 0 on any reply, successful or
// not.
func (r *Registry) Send(address string, req p2pwire.Request) (*p2pwire.Response, error) {
	resp, err := p2pwire.Send(address, req)
	if err != nil {
		r.RecordFailure(address)
		return nil, err
	}
	r.RecordSuccess(address)
	return resp, nil
}

// Ping reports whether address answers PING successfully.
func (r *Registry) Ping(address string) bool {
	resp, err := r.Send(address, p2pwire.Request{Type: p2pwire.TypePing})
	return err == nil && resp != nil && resp.Status == p2pwire.StatusOK
}

// ReachablePeers pings every known peer concurrently, evicting any that
// does not answer, and returns the addresses that did.
func (r *Registry) ReachablePeers() []string {
	peers := r.Peers()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		reachable []string
	)
	for _, addr := range peers {
		addr := addr
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Ping(addr) {
				mu.Lock()
				reachable = append(reachable, addr)
				mu.Unlock()
			} else {
				r.Remove(addr)
			}
		}()
	}
	wg.Wait()
	return reachable
}

// DiscoverPeers asks every known peer for its own peer list via
// DISCOVER_PEERS, admits any previously-unknown candidate that answers
// PING, and evicts any peer whose DISCOVER_PEERS call fails outright.
func (r *Registry) DiscoverPeers() {
	for _, addr := range r.Peers() {
		resp, err := r.Send(addr, p2pwire.Request{Type: p2pwire.TypeDiscoverPeers})
		if err != nil {
			r.Remove(addr)
			continue
		}
		for _, candidate := range resp.Nodes {
			if candidate == r.self {
				continue
			}
			if !strings.Contains(candidate, ":") {
				continue
			}
			if r.Ping(candidate) {
				r.Register(candidate)
			}
		}
	}
}
