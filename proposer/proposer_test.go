package proposer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshchain/meshchain/core/pow"
	"github.com/meshchain/meshchain/core/types"
	"github.com/meshchain/meshchain/ledger"
	"github.com/meshchain/meshchain/peer"
)

type fixedLeader string

func (f fixedLeader) CurrentLeader() string { return string(f) }

func TestMineReturnsNothingWhenNotLeader(t *testing.T) {
	store := ledger.NewStore()
	registry := peer.NewRegistry("node-b:5000")
	_, err := store.SubmitTransaction("alice", "bob", 1)
	require.NoError(t, err)

	engine := New("node-b:5000", store, registry, fixedLeader("node-a:5000"))
	block, err := engine.Mine(context.Background())
	require.ErrorIs(t, err, ErrNotLeader)
	require.Nil(t, block)
	require.Len(t, store.ChainSnapshot(), 1)
}

func TestMineReturnsNothingWhenPendingPoolEmpty(t *testing.T) {
	store := ledger.NewStore()
	registry := peer.NewRegistry("node-a:5000")

	engine := New("node-a:5000", store, registry, fixedLeader("node-a:5000"))
	block, err := engine.Mine(context.Background())
	require.ErrorIs(t, err, ErrNoPendingTransactions)
	require.Nil(t, block)
}

func TestMineWithNoPeersCommitsImmediately(t *testing.T) {
	store := ledger.NewStore()
	registry := peer.NewRegistry("node-a:5000")
	_, err := store.SubmitTransaction("alice", "bob", 7)
	require.NoError(t, err)

	engine := New("node-a:5000", store, registry, fixedLeader("node-a:5000"))
	block, err := engine.Mine(context.Background())
	require.NoError(t, err)
	require.NotNil(t, block)
	require.Equal(t, uint64(2), block.Index)
	require.Empty(t, store.PendingSnapshot())
	require.True(t, pow.ValidChain(store.ChainSnapshot()))
}

func TestApproveProposalAcceptsValidBlock(t *testing.T) {
	store := ledger.NewStore()
	last := store.LastBlock()
	lastHash, err := types.HashBlock(last)
	require.NoError(t, err)
	nonce, err := pow.Mine(context.Background(), last, store.Difficulty())
	require.NoError(t, err)

	block := types.Block{
		Index:        last.Index + 1,
		Timestamp:    last.Timestamp + 1,
		Nonce:        nonce,
		PreviousHash: lastHash,
		Difficulty:   store.Difficulty(),
	}
	require.True(t, ApproveProposal(store, block))
}

func TestApproveProposalRejectsWrongIndex(t *testing.T) {
	store := ledger.NewStore()
	last := store.LastBlock()
	lastHash, err := types.HashBlock(last)
	require.NoError(t, err)

	block := types.Block{
		Index:        last.Index + 2,
		PreviousHash: lastHash,
		Difficulty:   store.Difficulty(),
	}
	require.False(t, ApproveProposal(store, block))
}
