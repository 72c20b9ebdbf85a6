package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshchain/meshchain/core/pow"
	"github.com/meshchain/meshchain/core/types"
)

func TestGenesisHashIsDeterministic(t *testing.T) {
	a := NewStore()
	b := NewStore()

	hashA, err := types.HashBlock(a.LastBlock())
	require.NoError(t, err)
	hashB, err := types.HashBlock(b.LastBlock())
	require.NoError(t, err)

	require.Equal(t, hashA, hashB)
	require.Equal(t, types.NewGenesisBlock(), a.LastBlock())
}

func TestSubmitTransactionRejectsCoinbase(t *testing.T) {
	s := NewStore()
	_, err := s.SubmitTransaction(types.CoinbaseSender, "bob", 10)
	require.ErrorIs(t, err, types.ErrCoinbaseSender)
	require.Empty(t, s.PendingSnapshot())
}

func TestSubmitTransactionAddsToPendingPool(t *testing.T) {
	s := NewStore()
	tx, err := s.SubmitTransaction("alice", "bob", 7)
	require.NoError(t, err)

	pending := s.PendingSnapshot()
	require.Len(t, pending, 1)
	require.Equal(t, tx.ID, pending[0].ID)
	require.Equal(t, types.TxPending, pending[0].Status)
}

func TestIngestTransactionIsIdempotent(t *testing.T) {
	s := NewStore()
	tx, err := types.NewTransaction("alice", "bob", 1)
	require.NoError(t, err)

	require.True(t, s.IngestTransaction(tx))
	require.False(t, s.IngestTransaction(tx))
	require.False(t, s.IngestTransaction(tx))

	require.Len(t, s.PendingSnapshot(), 1)
}

func TestAppendCommittedRemovesPendingAndAdjustsDifficulty(t *testing.T) {
	s := NewStore()
	tx, err := s.SubmitTransaction("alice", "bob", 7)
	require.NoError(t, err)

	last := s.LastBlock()
	lastHash, err := types.HashBlock(last)
	require.NoError(t, err)
	nonce, err := pow.Mine(context.Background(), last, s.Difficulty())
	require.NoError(t, err)

	committed := tx.WithStatus(types.TxSuccess)
	next := types.Block{
		Index:        last.Index + 1,
		Timestamp:    last.Timestamp + 1,
		Transactions: []types.Transaction{committed},
		Nonce:        nonce,
		PreviousHash: lastHash,
		Difficulty:   s.Difficulty(),
	}

	require.NoError(t, s.AppendCommitted(next))
	require.Empty(t, s.PendingSnapshot())
	// One second after genesis is under the target interval: +1.
	require.Equal(t, types.InitialDifficulty+1, s.Difficulty())
	require.True(t, pow.ValidChain(s.ChainSnapshot()))
}

func TestAppendCommittedRejectsNonContiguousBlock(t *testing.T) {
	s := NewStore()
	last := s.LastBlock()
	bogus := types.Block{
		Index:        last.Index + 2,
		Timestamp:    last.Timestamp + 1,
		PreviousHash: "deadbeef",
		Difficulty:   s.Difficulty(),
	}
	require.ErrorIs(t, s.AppendCommitted(bogus), ErrNonContiguousBlock)
}
