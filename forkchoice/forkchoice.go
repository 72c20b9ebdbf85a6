// Package forkchoice implements adopting the best reachable chain by
// cumulative work. It is a leaf package atop ledger, peer, and
// p2pwire — nothing depends on it that it in turn depends on, so it
// composes freely into election (which must resolve conflicts before
// drawing its seed) and the periodic sync scheduler.
package forkchoice

import (
	"github.com/meshchain/meshchain/core/pow"
	"github.com/meshchain/meshchain/core/types"
	"github.com/meshchain/meshchain/ledger"
	"github.com/meshchain/meshchain/log"
	"github.com/meshchain/meshchain/peer"
	"github.com/meshchain/meshchain/p2pwire"
)

var logger = log.NewModuleLogger(log.ForkChoice)

// ResolveConflicts requests GET_CHAIN from every known peer, adopts the
// best valid chain with strictly greater cumulative work than the local
// one, and reports whether a replacement occurred.
func ResolveConflicts(store *ledger.Store, registry *peer.Registry) bool {
	localWork := store.CumulativeWork()
	var (
		bestChain types.Chain
		bestWork  int64
	)

	for _, addr := range registry.Peers() {
		resp, err := registry.Send(addr, p2pwire.Request{Type: p2pwire.TypeGetChain})
		if err != nil || resp == nil {
			continue
		}
		candidate := resp.Chain
		if len(candidate) == 0 || !pow.ValidChain(candidate) {
			continue
		}
		work := types.CumulativeWork(candidate)
		if work > bestWork {
			bestWork = work
			bestChain = candidate
		}
	}

	if bestChain == nil || bestWork <= localWork {
		return false
	}

	if err := store.ReplaceChain(bestChain); err != nil {
		logger.Error("failed to adopt better chain", "err", err)
		return false
	}
	logger.Info("adopted chain with greater cumulative work", "work", bestWork, "previous_work", localWork)
	return true
}
