// Package proposer implements the leader-only block proposal and quorum
// vote driver, plus ApproveProposal, the follower's check for how to vote
// on BLOCK_PROPOSE. The node package's dispatcher handlers call
// ApproveProposal and apply BLOCK_COMMIT themselves, since that half runs
// on every node regardless of leadership.
package proposer

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/meshchain/meshchain/core/pow"
	"github.com/meshchain/meshchain/core/types"
	"github.com/meshchain/meshchain/ledger"
	"github.com/meshchain/meshchain/log"
	"github.com/meshchain/meshchain/peer"
	"github.com/meshchain/meshchain/p2pwire"
)

var logger = log.NewModuleLogger(log.Proposer)

var (
	// ErrNotLeader is returned by Mine when the calling node is not the
	// current leader.
	ErrNotLeader = errors.New("not the current leader")
	// ErrNoPendingTransactions is returned by Mine when the pending
	// pool is empty.
	ErrNoPendingTransactions = errors.New("no pending transactions to mine")
	// ErrQuorumNotReached is returned when the approvals, counting the
	// leader's own vote, fall short of quorum; the pool remains pending
	// and no block is added.
	ErrQuorumNotReached = errors.New("quorum not reached for proposed block")
)

// LeaderProvider is the minimal view of leader state Engine needs; it is
// satisfied by *election.Engine without proposer importing election.
type LeaderProvider interface {
	CurrentLeader() string
}

// Engine drives block proposal for one node.
type Engine struct {
	selfAddress string
	store       *ledger.Store
	registry    *peer.Registry
	leader      LeaderProvider
	now         func() float64
}

// New builds a proposer Engine.
func New(selfAddress string, store *ledger.Store, registry *peer.Registry, leader LeaderProvider) *Engine {
	return &Engine{
		selfAddress: selfAddress,
		store:       store,
		registry:    registry,
		leader:      leader,
		now:         func() float64 { return float64(time.Now().UnixNano()) / 1e9 },
	}
}

// SetSelfAddress updates this engine's own identity, used when a
// listener bound to an ephemeral port resolves its real address after
// construction.
func (e *Engine) SetSelfAddress(addr string) {
	e.selfAddress = addr
}

// Mine proposes and, on quorum approval, commits a new block: if this
// node is not the current leader, or the pending pool is empty, it
// returns nothing — callers on a non-leader node get (nil, ErrNotLeader)
// and must treat that as a no-op leaving the chain unchanged.
func (e *Engine) Mine(ctx context.Context) (*types.Block, error) {
	if e.leader.CurrentLeader() != e.selfAddress {
		return nil, ErrNotLeader
	}

	pending := e.store.PendingSnapshot()
	if len(pending) == 0 {
		return nil, ErrNoPendingTransactions
	}

	successTxs := make([]types.Transaction, len(pending))
	for i, tx := range pending {
		successTxs[i] = tx.WithStatus(types.TxSuccess)
	}

	last := e.store.LastBlock()
	difficulty := e.store.Difficulty()
	nonce, err := pow.Mine(ctx, last, difficulty)
	if err != nil {
		return nil, errors.Wrap(err, "mine proof of work")
	}
	prevHash, err := types.HashBlock(last)
	if err != nil {
		return nil, err
	}

	candidate := types.Block{
		Index:        last.Index + 1,
		Timestamp:    e.now(),
		Transactions: successTxs,
		Nonce:        nonce,
		PreviousHash: prevHash,
		Difficulty:   difficulty,
	}

	peers := e.registry.Peers()
	approvals := 1 + e.collectApprovals(candidate, peers) // leader's own vote counts
	quorum := (len(peers)+1)/2 + 1                        // floor((|peers|+1)/2) + 1

	if approvals < quorum {
		logger.Warn("block proposal failed to reach quorum",
			"index", candidate.Index, "approvals", approvals, "quorum", quorum)
		return nil, ErrQuorumNotReached
	}

	e.broadcastCommit(candidate, peers)

	if err := e.store.AppendCommitted(candidate); err != nil {
		return nil, errors.Wrap(err, "append committed block locally")
	}

	logger.Info("committed proposed block", "index", candidate.Index, "approvals", approvals, "quorum", quorum)
	return &candidate, nil
}

func (e *Engine) collectApprovals(block types.Block, peers []string) int {
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		approvals int
	)
	for _, addr := range peers {
		addr := addr
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := e.registry.Send(addr, p2pwire.Request{
				Type:  p2pwire.TypeBlockPropose,
				Block: &block,
			})
			if err != nil || resp == nil {
				return
			}
			if resp.Vote == p2pwire.VoteApprove {
				mu.Lock()
				approvals++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return approvals
}

func (e *Engine) broadcastCommit(block types.Block, peers []string) {
	for _, addr := range peers {
		go func(addr string) {
			if err := p2pwire.SendFireAndForget(addr, p2pwire.Request{
				Type:  p2pwire.TypeBlockCommit,
				Block: &block,
			}); err != nil {
				e.registry.RecordFailure(addr)
			}
		}(addr)
	}
}

// ApproveProposal implements the follower side of block proposal:
// approve iff index, previous_hash, and the proof of work all check out
// against the follower's own chain tip.
func ApproveProposal(store *ledger.Store, block types.Block) bool {
	last := store.LastBlock()
	if block.Index != last.Index+1 {
		return false
	}
	lastHash, err := types.HashBlock(last)
	if err != nil {
		return false
	}
	if block.PreviousHash != lastHash {
		return false
	}
	return pow.ValidProof(last.Nonce, block.Nonce, lastHash, block.Difficulty)
}
