// Package pow implements the proof-of-work predicate, mining search, and
// whole-chain structural validation. The pattern — a small pure
// predicate plus a validator walking the chain position by position —
// mirrors the separation klaytn keeps between its Istanbul "verify"
// helpers (consensus/istanbul/core) and the chain it validates against.
package pow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/meshchain/meshchain/core/types"
	"github.com/meshchain/meshchain/log"
)

var logger = log.NewModuleLogger(log.CorePow)

// TargetBlockInterval is the target spacing between blocks used by
// difficulty adjustment.
const TargetBlockInterval = 10 // seconds

// MinDifficulty is the floor difficulty never adjusted below.
const MinDifficulty = 4

// ValidProof reports whether nonce is a valid proof of work following
// prevNonce against prevHash at the given difficulty: SHA-256(prevNonce
// ‖ nonce ‖ prevHash) must begin with `difficulty` hex zero characters.
func ValidProof(prevNonce, nonce int64, prevHash string, difficulty int) bool {
	guess := fmt.Sprintf("%d%d%s", prevNonce, nonce, prevHash)
	sum := sha256.Sum256([]byte(guess))
	digest := hex.EncodeToString(sum[:])
	return strings.HasPrefix(digest, strings.Repeat("0", difficulty))
}

// Mine searches nonce = 0, 1, 2, ... for the first value satisfying
// ValidProof against lastBlock and difficulty. It is CPU-bound but
// cooperative: it checks ctx between attempts so a caller can cancel a
// mining run in progress.
func Mine(ctx context.Context, lastBlock types.Block, difficulty int) (int64, error) {
	prevHash, err := types.HashBlock(lastBlock)
	if err != nil {
		return 0, err
	}
	for nonce := int64(0); ; nonce++ {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}
		if ValidProof(lastBlock.Nonce, nonce, prevHash, difficulty) {
			return nonce, nil
		}
	}
}

// ValidChain walks positions 1..N-1 of c and checks that each block
// correctly extends its predecessor; position 0 is trusted as genesis.
func ValidChain(c types.Chain) bool {
	if len(c) == 0 {
		return false
	}
	for i := 1; i < len(c); i++ {
		prev := c[i-1]
		cur := c[i]
		prevHash, err := types.HashBlock(prev)
		if err != nil {
			logger.Error("failed to hash block while validating chain", "index", prev.Index, "err", err)
			return false
		}
		if cur.PreviousHash != prevHash {
			return false
		}
		if !ValidProof(prev.Nonce, cur.Nonce, prevHash, cur.Difficulty) {
			return false
		}
	}
	return true
}

// AdjustDifficulty implements the difficulty-adjustment rule run after
// every local append: difficulty grows when blocks arrive faster than
// the target interval, shrinks (down to MinDifficulty) when they arrive
// more than twice as slowly, and otherwise holds.
func AdjustDifficulty(current int, previous, last types.Block) int {
	delta := last.Timestamp - previous.Timestamp
	switch {
	case delta < TargetBlockInterval:
		return current + 1
	case delta > 2*TargetBlockInterval && current > MinDifficulty:
		return current - 1
	default:
		return current
	}
}
