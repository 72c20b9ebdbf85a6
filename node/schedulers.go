package node

import (
	"context"
	"time"

	"github.com/meshchain/meshchain/forkchoice"
	"github.com/meshchain/meshchain/p2pwire"
)

// periodicSyncInterval bounds how often a node resolves conflicts,
// rediscovers peers, and pulls its peers' pending pools.
const periodicSyncInterval = 5 * time.Second

// leaderWatchdogInterval bounds how often a node pings its current
// leader, triggering a fresh election the moment a ping fails.
const leaderWatchdogInterval = 5 * time.Second

// electionEpoch is the grid spacing an election scheduler anchors to, so
// that nodes that bootstrapped at different wall-clock times still tend
// to call elections around the same moments.
const electionEpoch = 30 * time.Second

// Bootstrap runs the one-shot startup sequence: discover peers, resolve
// conflicts against them, query peers for an existing leader and adopt
// it if one answers, and otherwise run an initial election — all before
// the background schedulers take over.
func (n *Node) Bootstrap(ctx context.Context) {
	n.registry.DiscoverPeers()
	forkchoice.ResolveConflicts(n.store, n.registry)

	if leader, ok := n.queryExistingLeader(); ok {
		n.election.AdoptLeader(leader)
		return
	}
	n.runElection()
}

// queryExistingLeader asks every known peer GET_LEADER and reports the
// first non-null answer found.
func (n *Node) queryExistingLeader() (string, bool) {
	for _, addr := range n.registry.Peers() {
		resp, err := n.registry.Send(addr, p2pwire.Request{Type: p2pwire.TypeGetLeader})
		if err != nil || resp == nil || resp.Leader == "" {
			continue
		}
		return resp.Leader, true
	}
	return "", false
}

func (n *Node) runPeriodicSync(ctx context.Context) {
	ticker := time.NewTicker(periodicSyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.registry.DiscoverPeers()
			if forkchoice.ResolveConflicts(n.store, n.registry) {
				logger.Info("adopted peer chain during periodic sync")
			}
			n.pullPendingFromPeers()
		}
	}
}

// pullPendingFromPeers merges every reachable peer's pending pool into
// this node's own, relying on IngestTransaction's idempotence to make
// repeated merges harmless.
func (n *Node) pullPendingFromPeers() {
	for _, addr := range n.registry.Peers() {
		resp, err := n.registry.Send(addr, p2pwire.Request{Type: p2pwire.TypeGetPending})
		if err != nil || resp == nil {
			continue
		}
		for _, tx := range resp.Pending {
			n.store.IngestTransaction(tx)
		}
	}
	n.store.CleanupAgainstChain(n.store.ChainSnapshot())
}

// runElectionScheduler fires runElection on an epoch grid anchored at
// this node's (possibly peer-adopted) electionStartTime, so a round of
// elections across the mesh tends to cluster rather than drift apart.
func (n *Node) runElectionScheduler(ctx context.Context) {
	for {
		wait := n.nextElectionDelay()
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			n.runElection()
		}
	}
}

func (n *Node) nextElectionDelay() time.Duration {
	start := n.electionStartTimeSnapshot()
	elapsed := nowSeconds() - start
	epoch := electionEpoch.Seconds()
	into := elapsed - epoch*float64(int64(elapsed/epoch))
	remaining := epoch - into
	if remaining <= 0 {
		remaining = epoch
	}
	return time.Duration(remaining * float64(time.Second))
}

func (n *Node) runElection() {
	leader, err := n.election.Run()
	if err != nil {
		logger.Warn("election round did not complete", "err", err)
		return
	}
	if leader == "" {
		return
	}
	n.election.BroadcastElection(leader)
}

// runLeaderWatchdog pings the current leader on an interval and forces a
// fresh election the moment it stops answering, so the mesh does not
// wait a full electionEpoch to notice a dead leader.
func (n *Node) runLeaderWatchdog(ctx context.Context) {
	ticker := time.NewTicker(leaderWatchdogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			leader := n.election.CurrentLeader()
			if leader == "" || leader == n.selfAddress {
				continue
			}
			if !n.registry.Ping(leader) {
				logger.Warn("leader unreachable, forcing new election", "leader", leader)
				n.runElection()
			}
		}
	}
}
