package types

import (
	"github.com/pkg/errors"

	"github.com/meshchain/meshchain/common"
)

// Chain is the ordered sequence of blocks. It is always non-empty: the
// zero value is not a valid chain, NewChain() is.
type Chain []Block

// ErrEmptyChain is returned by any operation that requires at least the
// genesis block.
var ErrEmptyChain = errors.New("chain has no blocks")

// NewChain returns a chain containing only the genesis block.
func NewChain() Chain {
	return Chain{NewGenesisBlock()}
}

// Last returns the most recently appended block.
func (c Chain) Last() (Block, error) {
	if len(c) == 0 {
		return Block{}, ErrEmptyChain
	}
	return c[len(c)-1], nil
}

// Clone returns a deep-enough copy of c safe to hand to a caller outside
// the ledger's lock.
func (c Chain) Clone() Chain {
	out := make(Chain, len(c))
	for i, b := range c {
		txs := make([]Transaction, len(b.Transactions))
		copy(txs, b.Transactions)
		b.Transactions = txs
		out[i] = b
	}
	return out
}

// HashChain returns the SHA-256 hex digest of the canonical JSON of the
// whole chain.
func HashChain(c Chain) (string, error) {
	return common.HashCanonicalJSON(c)
}

// CumulativeWork sums the difficulty of every block in c.
func CumulativeWork(c Chain) int64 {
	var work int64
	for _, b := range c {
		work += int64(b.Difficulty)
	}
	return work
}
