package types

import (
	"github.com/meshchain/meshchain/common"
)

// GenesisTimestamp, GenesisNonce, GenesisDifficulty and
// GenesisPreviousHash are the fixed constants every honest node boots
// with, so genesis hashes agree across the whole network.
const (
	GenesisTimestamp    = 1234567890
	GenesisNonce        = 100
	GenesisDifficulty   = 4
	GenesisPreviousHash = "1"

	// InitialDifficulty is the difficulty every node starts mining at;
	// it happens to equal GenesisDifficulty but is tracked separately
	// because mining difficulty adjusts locally while historical
	// blocks keep the difficulty they were mined at.
	InitialDifficulty = 4
)

// Block is a single entry of the chain.
type Block struct {
	Index        uint64        `json:"index"`
	Timestamp    float64       `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
	Nonce        int64         `json:"nonce"`
	PreviousHash string        `json:"previous_hash"`
	Difficulty   int           `json:"difficulty"`
}

// NewGenesisBlock builds the single fixed genesis block every node boots
// with.
func NewGenesisBlock() Block {
	return Block{
		Index:        1,
		Timestamp:    GenesisTimestamp,
		Transactions: []Transaction{},
		Nonce:        GenesisNonce,
		PreviousHash: GenesisPreviousHash,
		Difficulty:   GenesisDifficulty,
	}
}

// HashBlock returns the SHA-256 hex digest of b's canonical JSON
// encoding.
func HashBlock(b Block) (string, error) {
	if b.Transactions == nil {
		b.Transactions = []Transaction{}
	}
	return common.HashCanonicalJSON(b)
}

// MustHashBlock panics if HashBlock fails; canonical JSON marshaling of a
// Block never fails in practice (no cyclic or unsupported field types),
// so callers that already treat a hash failure as unrecoverable use this
// to avoid threading an error through call sites that cannot act on it.
func MustHashBlock(b Block) string {
	h, err := HashBlock(b)
	if err != nil {
		panic(err)
	}
	return h
}
