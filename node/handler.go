package node

import (
	"github.com/meshchain/meshchain/core/types"
	"github.com/meshchain/meshchain/forkchoice"
	"github.com/meshchain/meshchain/p2pwire"
	"github.com/meshchain/meshchain/proposer"
)

// The methods below implement p2pwire.Handler, the dispatcher-facing
// seam the server dispatches into. Each handles exactly one request
// type and replies exactly once, per connection.

func (n *Node) HandlePing() p2pwire.Response {
	return p2pwire.OK()
}

func (n *Node) HandleRegisterNode(addr string) p2pwire.Response {
	n.registry.Register(addr)
	return p2pwire.Response{
		Status:            p2pwire.StatusOK,
		Message:           "registered",
		ElectionStartTime: n.electionStartTimeSnapshot(),
	}
}

func (n *Node) HandleGetChain() p2pwire.Response {
	return p2pwire.Response{Type: p2pwire.TypeChain, Chain: n.store.ChainSnapshot()}
}

func (n *Node) HandleGetPending() p2pwire.Response {
	return p2pwire.Response{Type: p2pwire.TypePending, Pending: n.store.PendingSnapshot()}
}

func (n *Node) HandleGetNodes() p2pwire.Response {
	return p2pwire.Response{Type: p2pwire.TypeNodes, Nodes: n.registry.Peers()}
}

func (n *Node) HandleDiscoverPeers() p2pwire.Response {
	return p2pwire.Response{Type: p2pwire.TypePeers, Nodes: n.registry.Peers()}
}

func (n *Node) HandleGetLeader() p2pwire.Response {
	return p2pwire.Response{Type: p2pwire.TypeLeader, Leader: n.election.CurrentLeader()}
}

func (n *Node) HandleNewTransaction(req p2pwire.Request) p2pwire.Response {
	if req.Transaction != nil {
		if n.store.IngestTransaction(*req.Transaction) {
			go n.regossip(*req.Transaction)
		}
		return p2pwire.OK()
	}

	amount := 0.0
	if req.Amount != nil {
		amount = *req.Amount
	}
	if _, err := n.store.SubmitTransaction(req.Sender, req.Recipient, amount); err != nil {
		return p2pwire.Err(err.Error())
	}
	return p2pwire.OK()
}

// regossip re-broadcasts a transaction learned via gossip to this node's
// own peers, so flooding continues to propagate; idempotent ingestion
// elsewhere in the pipeline keeps this from looping forever.
func (n *Node) regossip(tx types.Transaction) {
	n.GossipTransaction(tx)
}

func (n *Node) HandleLeaderElectionVRF(seed string) p2pwire.Response {
	sub, err := n.election.MakeSubmission(seed)
	if err != nil {
		return p2pwire.Err(err.Error())
	}
	return p2pwire.Response{Status: p2pwire.StatusOK, Submission: &sub}
}

func (n *Node) HandleElectLeader(leader string) p2pwire.Response {
	n.election.AdoptLeader(leader)
	return p2pwire.OK()
}

func (n *Node) HandleBlockPropose(block types.Block) p2pwire.Response {
	if proposer.ApproveProposal(n.store, block) {
		return p2pwire.Response{Vote: p2pwire.VoteApprove}
	}
	return p2pwire.Response{Vote: p2pwire.VoteReject}
}

func (n *Node) HandleBlockCommit(block types.Block) p2pwire.Response {
	if err := n.store.AppendCommitted(block); err == nil {
		return p2pwire.Response{Status: p2pwire.StatusCommitted}
	}

	// This block doesn't extend our tip. Resync against peers and retry
	// the append once; a block that still does not extend the tip is
	// dropped and answered with an "error" status.
	forkchoice.ResolveConflicts(n.store, n.registry)
	if err := n.store.AppendCommitted(block); err != nil {
		logger.Warn("dropped mismatched BLOCK_COMMIT after resync", "index", block.Index, "err", err)
		return p2pwire.Response{Status: "error"}
	}
	return p2pwire.Response{Status: p2pwire.StatusCommitted}
}

// HandleNewBlock implements the NEW_BLOCK compatibility shim: accepted
// only when it advances the chain by exactly one valid block from the
// current tip. meshchain never emits this message itself.
func (n *Node) HandleNewBlock(block types.Block) p2pwire.Response {
	if err := n.store.AppendCommitted(block); err != nil {
		return p2pwire.Err(err.Error())
	}
	return p2pwire.OK()
}
