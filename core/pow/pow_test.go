package pow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshchain/meshchain/core/types"
)

func TestValidProofAcceptsMinedNonce(t *testing.T) {
	genesis := types.NewGenesisBlock()
	prevHash, err := types.HashBlock(genesis)
	require.NoError(t, err)

	nonce, err := Mine(context.Background(), genesis, genesis.Difficulty)
	require.NoError(t, err)
	require.True(t, ValidProof(genesis.Nonce, nonce, prevHash, genesis.Difficulty))
}

func TestValidProofRejectsWrongNonce(t *testing.T) {
	genesis := types.NewGenesisBlock()
	prevHash, err := types.HashBlock(genesis)
	require.NoError(t, err)
	require.False(t, ValidProof(genesis.Nonce, 0, prevHash, 6))
}

func TestValidChainAcceptsGenesisAlone(t *testing.T) {
	require.True(t, ValidChain(types.NewChain()))
}

func TestValidChainRejectsTamperedBlock(t *testing.T) {
	genesis := types.NewGenesisBlock()
	prevHash, err := types.HashBlock(genesis)
	require.NoError(t, err)
	nonce, err := Mine(context.Background(), genesis, genesis.Difficulty)
	require.NoError(t, err)

	good := types.Block{
		Index:        2,
		Timestamp:    genesis.Timestamp + 1,
		Nonce:        nonce,
		PreviousHash: prevHash,
		Difficulty:   genesis.Difficulty,
	}
	chain := types.Chain{genesis, good}
	require.True(t, ValidChain(chain))

	tampered := good
	tampered.PreviousHash = "not-the-real-hash"
	chain[1] = tampered
	require.False(t, ValidChain(chain))
}

func TestAdjustDifficultyBounds(t *testing.T) {
	fast := types.Block{Timestamp: 100}
	fastLast := types.Block{Timestamp: 101}
	require.Equal(t, 5, AdjustDifficulty(4, fast, fastLast))

	slow := types.Block{Timestamp: 100}
	slowLast := types.Block{Timestamp: 130}
	require.Equal(t, 4, AdjustDifficulty(5, slow, slowLast))
	require.Equal(t, 4, AdjustDifficulty(4, slow, slowLast))

	steady := types.Block{Timestamp: 100}
	steadyLast := types.Block{Timestamp: 112}
	require.Equal(t, 4, AdjustDifficulty(4, steady, steadyLast))
}
