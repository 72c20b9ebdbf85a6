// Package node assembles the ledger, peer registry, election engine,
// proposer, and wire dispatcher into one running instance and exposes
// an operator-facing surface: the read-only accessors
// chain/pending/nodes/current_leader plus the background schedulers that
// keep a node converging with its peers.
//
// The dependency graph is acyclic by construction: p2pwire depends only
// on core/types and log in this tree, ledger/peer/forkchoice/election/
// proposer depend on the lower packages and each other one-directionally,
// and node is the only package that depends on all of them.
package node

import (
	"context"
	"sync"
	"time"

	"github.com/meshchain/meshchain/core/types"
	"github.com/meshchain/meshchain/crypto"
	"github.com/meshchain/meshchain/election"
	"github.com/meshchain/meshchain/forkchoice"
	"github.com/meshchain/meshchain/ledger"
	"github.com/meshchain/meshchain/log"
	"github.com/meshchain/meshchain/p2pwire"
	"github.com/meshchain/meshchain/peer"
	"github.com/meshchain/meshchain/proposer"
)

var logger = log.NewModuleLogger(log.Node)

// Node is one running participant of the replicated ledger.
type Node struct {
	selfAddress string
	privKey     *crypto.PrivateKey

	store    *ledger.Store
	registry *peer.Registry
	election *election.Engine
	proposer *proposer.Engine
	server   *p2pwire.Server

	mu                sync.Mutex
	electionStartTime float64
}

// New builds a Node bound to cfg; it does not start listening or any
// background scheduler until Run is called.
func New(cfg Config) (*Node, error) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}

	self := cfg.Address()
	store := ledger.NewStore()
	registry := peer.NewRegistry(self)

	n := &Node{
		selfAddress:       self,
		privKey:           priv,
		store:             store,
		registry:          registry,
		electionStartTime: nowSeconds(),
	}
	n.election = election.New(self, priv, store, registry)
	n.proposer = proposer.New(self, store, registry, n.election)
	n.server = p2pwire.NewServer(n)

	store.SetGossiper(n)

	for _, seed := range cfg.SeedPeers {
		registry.Register(seed)
	}

	return n, nil
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// Run starts the wire server, registers with every seed peer, runs
// bootstrap, and then blocks, running the background schedulers, until
// ctx is cancelled.
func (n *Node) Run(ctx context.Context) error {
	if err := n.server.Start(n.selfAddress); err != nil {
		return err
	}
	defer n.server.Stop()
	n.adoptBoundAddress()

	n.registerWithSeeds()
	n.Bootstrap(ctx)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); n.runPeriodicSync(ctx) }()
	go func() { defer wg.Done(); n.runElectionScheduler(ctx) }()
	go func() { defer wg.Done(); n.runLeaderWatchdog(ctx) }()

	<-ctx.Done()
	wg.Wait()
	return nil
}

// adoptBoundAddress re-reads the listener's actual bound address and
// re-propagates it to every component that captured selfAddress at
// construction, so an ephemeral ":0" port resolves to one consistent
// identity everywhere rather than three independent copies.
func (n *Node) adoptBoundAddress() {
	addr := n.server.Addr().String()
	n.selfAddress = addr
	n.registry.SetSelf(addr)
	n.election.SetSelfAddress(addr)
	n.proposer.SetSelfAddress(addr)
}

func (n *Node) registerWithSeeds() {
	for _, seed := range n.registry.Peers() {
		resp, err := n.registry.Send(seed, p2pwire.Request{
			Type: p2pwire.TypeRegisterNode,
			Node: n.selfAddress,
		})
		if err != nil || resp == nil {
			logger.Warn("failed to register with seed peer", "peer", seed, "err", err)
			continue
		}
		n.adoptEarlierElectionStartTime(resp.ElectionStartTime)
	}
}

func (n *Node) adoptEarlierElectionStartTime(candidate float64) {
	if candidate <= 0 {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if candidate < n.electionStartTime {
		n.electionStartTime = candidate
	}
}

func (n *Node) electionStartTimeSnapshot() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.electionStartTime
}

// --- Operator-facing read-only accessors ---

// Chain returns a snapshot of the local chain.
func (n *Node) Chain() types.Chain {
	return n.store.ChainSnapshot()
}

// Pending returns a snapshot of the pending transaction pool.
func (n *Node) Pending() []types.Transaction {
	return n.store.PendingSnapshot()
}

// Nodes returns a snapshot of known peer addresses.
func (n *Node) Nodes() []string {
	return n.registry.Peers()
}

// PeerStats exposes peer.Registry.Stats to an operator surface such as a
// dashboard.
func (n *Node) PeerStats() peer.Stats {
	return n.registry.Stats()
}

// CurrentLeader returns this node's current view of the leader, or "" if
// none has been elected.
func (n *Node) CurrentLeader() string {
	return n.election.CurrentLeader()
}

// Address returns this node's own "host:port" identity.
func (n *Node) Address() string {
	return n.selfAddress
}

// SubmitTransaction exposes ledger.Store.SubmitTransaction to an
// operator surface such as a GUI or CLI.
func (n *Node) SubmitTransaction(sender, recipient string, amount float64) (types.Transaction, error) {
	return n.store.SubmitTransaction(sender, recipient, amount)
}

// Mine exposes proposer.Engine.Mine to an operator surface.
func (n *Node) Mine(ctx context.Context) (*types.Block, error) {
	return n.proposer.Mine(ctx)
}

// ResolveConflicts exposes forkchoice.ResolveConflicts to an operator
// surface.
func (n *Node) ResolveConflicts() bool {
	return forkchoice.ResolveConflicts(n.store, n.registry)
}

// GossipTransaction implements ledger.Gossiper: it fans tx out to every
// known peer, fire-and-forget.
func (n *Node) GossipTransaction(tx types.Transaction) {
	for _, addr := range n.registry.Peers() {
		go func(addr string) {
			if err := p2pwire.SendFireAndForget(addr, p2pwire.Request{
				Type:        p2pwire.TypeNewTransaction,
				Transaction: &tx,
			}); err != nil {
				n.registry.RecordFailure(addr)
			}
		}(addr)
	}
}
