package forkchoice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshchain/meshchain/core/pow"
	"github.com/meshchain/meshchain/core/types"
	"github.com/meshchain/meshchain/ledger"
	"github.com/meshchain/meshchain/p2pwire"
	"github.com/meshchain/meshchain/peer"
)

func mineNextBlock(t *testing.T, store *ledger.Store) types.Block {
	t.Helper()
	last := store.LastBlock()
	difficulty := store.Difficulty()
	nonce, err := pow.Mine(context.Background(), last, difficulty)
	require.NoError(t, err)
	lastHash, err := types.HashBlock(last)
	require.NoError(t, err)
	block := types.Block{
		Index:        last.Index + 1,
		Timestamp:    last.Timestamp + 1,
		Nonce:        nonce,
		PreviousHash: lastHash,
		Difficulty:   difficulty,
	}
	require.NoError(t, store.AppendCommitted(block))
	return block
}

func TestResolveConflictsReturnsFalseWithNoPeers(t *testing.T) {
	store := ledger.NewStore()
	registry := peer.NewRegistry("self:5000")
	require.False(t, ResolveConflicts(store, registry))
}

func TestResolveConflictsAdoptsLongerValidChain(t *testing.T) {
	local := ledger.NewStore()
	registry := peer.NewRegistry("self:5000")

	remote := ledger.NewStore()
	mineNextBlock(t, remote)
	mineNextBlock(t, remote)

	registry.Register("peer-a:5001")
	srv := p2pwire.NewServer(&chainOnlyHandler{chain: remote.ChainSnapshot()})
	require.NoError(t, srv.Start("127.0.0.1:0"))
	defer srv.Stop()
	registry.Remove("peer-a:5001")
	registry.Register(srv.Addr().String())

	replaced := ResolveConflicts(local, registry)
	require.True(t, replaced)
	require.Equal(t, remote.CumulativeWork(), local.CumulativeWork())
	require.Len(t, local.ChainSnapshot(), 3)
}

func TestResolveConflictsIgnoresChainWithLessWork(t *testing.T) {
	local := ledger.NewStore()
	mineNextBlock(t, local)
	registry := peer.NewRegistry("self:5000")

	remote := ledger.NewStore() // only genesis, strictly less work

	srv := p2pwire.NewServer(&chainOnlyHandler{chain: remote.ChainSnapshot()})
	require.NoError(t, srv.Start("127.0.0.1:0"))
	defer srv.Stop()
	registry.Register(srv.Addr().String())

	replaced := ResolveConflicts(local, registry)
	require.False(t, replaced)
	require.Len(t, local.ChainSnapshot(), 2)
}

// chainOnlyHandler answers GET_CHAIN with a fixed chain and OK/empty to
// everything else, enough surface to drive ResolveConflicts.
type chainOnlyHandler struct {
	chain types.Chain
}

func (h *chainOnlyHandler) HandlePing() p2pwire.Response { return p2pwire.OK() }
func (h *chainOnlyHandler) HandleRegisterNode(node string) p2pwire.Response {
	return p2pwire.OK()
}
func (h *chainOnlyHandler) HandleGetChain() p2pwire.Response {
	return p2pwire.Response{Type: p2pwire.TypeChain, Chain: h.chain}
}
func (h *chainOnlyHandler) HandleGetPending() p2pwire.Response { return p2pwire.Response{} }
func (h *chainOnlyHandler) HandleGetNodes() p2pwire.Response   { return p2pwire.Response{} }
func (h *chainOnlyHandler) HandleDiscoverPeers() p2pwire.Response {
	return p2pwire.Response{}
}
func (h *chainOnlyHandler) HandleGetLeader() p2pwire.Response { return p2pwire.Response{} }
func (h *chainOnlyHandler) HandleNewTransaction(req p2pwire.Request) p2pwire.Response {
	return p2pwire.OK()
}
func (h *chainOnlyHandler) HandleLeaderElectionVRF(seed string) p2pwire.Response {
	return p2pwire.Response{}
}
func (h *chainOnlyHandler) HandleElectLeader(leader string) p2pwire.Response { return p2pwire.OK() }
func (h *chainOnlyHandler) HandleBlockPropose(block types.Block) p2pwire.Response {
	return p2pwire.Response{}
}
func (h *chainOnlyHandler) HandleBlockCommit(block types.Block) p2pwire.Response {
	return p2pwire.Response{}
}
func (h *chainOnlyHandler) HandleNewBlock(block types.Block) p2pwire.Response {
	return p2pwire.Response{}
}
