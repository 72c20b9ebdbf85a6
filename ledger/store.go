// Package ledger owns the chain, the pending transaction pool, and the
// seen-id/seen-hash dedup sets. It is the single place that mutates
// that state, guarded by one coarse lock.
package ledger

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/meshchain/meshchain/core/pow"
	"github.com/meshchain/meshchain/core/types"
	"github.com/meshchain/meshchain/log"
)

var logger = log.NewModuleLogger(log.Ledger)

// seenSetSize bounds the seen-transaction/seen-block ARC caches, the way
// klaytn's consensus/istanbul/backend bounds recentMessages/knownMessages.
// Eviction here only discards dedup memory, never ledger state: a seen
// entry evicted under memory pressure can at worst let one duplicate
// re-admit, which idempotent ingest tolerates.
const seenSetSize = 1 << 16

var (
	// ErrNonContiguousBlock is returned when a committed block's index
	// does not immediately follow the local chain tip.
	ErrNonContiguousBlock = errors.New("block index is not contiguous with chain tip")
	// ErrPreviousHashMismatch is returned when a committed block's
	// previous_hash does not match the local chain tip's hash.
	ErrPreviousHashMismatch = errors.New("previous_hash does not match chain tip")
	// ErrInvalidProof is returned when a committed block's nonce fails
	// the proof-of-work predicate.
	ErrInvalidProof = errors.New("block fails proof-of-work validation")
)

// Gossiper is the narrow outbound seam the ledger calls into when a
// locally submitted transaction needs fanning out to peers. The network
// layer satisfies this; the ledger never imports it, avoiding the
// ledger/network import cycle a naive layering would otherwise create.
type Gossiper interface {
	GossipTransaction(tx types.Transaction)
}

// Store is the node's single ledger instance.
type Store struct {
	mu sync.RWMutex

	chain      types.Chain
	difficulty int

	pending      []types.Transaction
	pendingIndex map[string]int

	seenTx     *lru.ARCCache
	seenBlocks *lru.ARCCache

	gossiper Gossiper
}

// NewStore boots a ledger containing only the genesis block, with an
// empty pending pool and dedup sets primed with the genesis hash.
func NewStore() *Store {
	seenTx, err := lru.NewARC(seenSetSize)
	if err != nil {
		panic(err)
	}
	seenBlocks, err := lru.NewARC(seenSetSize)
	if err != nil {
		panic(err)
	}

	chain := types.NewChain()
	genesis := chain[0]
	genesisHash, err := types.HashBlock(genesis)
	if err != nil {
		panic(err)
	}
	seenBlocks.Add(genesisHash, struct{}{})

	return &Store{
		chain:        chain,
		difficulty:   types.InitialDifficulty,
		pending:      nil,
		pendingIndex: make(map[string]int),
		seenTx:       seenTx,
		seenBlocks:   seenBlocks,
	}
}

// SetGossiper wires the outbound fanout seam; it is optional, a Store
// used only for local tests never needs one.
func (s *Store) SetGossiper(g Gossiper) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gossiper = g
}

// SubmitTransaction assigns a fresh id, rejects the coinbase sender,
// skips silently if the id is somehow already known, and otherwise
// admits the transaction and gossips it.
func (s *Store) SubmitTransaction(sender, recipient string, amount float64) (types.Transaction, error) {
	tx, err := types.NewTransaction(sender, recipient, amount)
	if err != nil {
		return types.Transaction{}, err
	}

	s.mu.Lock()
	added := s.admitPendingLocked(tx)
	gossiper := s.gossiper
	s.mu.Unlock()

	if added && gossiper != nil {
		gossiper.GossipTransaction(tx)
	}
	return tx, nil
}

// IngestTransaction implements the gossip path: idempotent on id. It
// reports whether the transaction was newly admitted, so a dispatcher
// can decide whether to keep flooding it to its own peers.
func (s *Store) IngestTransaction(tx types.Transaction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.admitPendingLocked(tx)
}

// admitPendingLocked adds tx to the pending pool unless its id has
// already been seen or is already present.
func (s *Store) admitPendingLocked(tx types.Transaction) bool {
	if s.seenTx.Contains(tx.ID) {
		return false
	}
	if _, exists := s.pendingIndex[tx.ID]; exists {
		return false
	}
	tx.Status = types.TxPending
	s.pendingIndex[tx.ID] = len(s.pending)
	s.pending = append(s.pending, tx)
	s.seenTx.Add(tx.ID, struct{}{})
	return true
}

// AppendCommitted appends a block the caller has already decided to
// commit (the leader after quorum, or a follower applying BLOCK_COMMIT),
// re-checking that the block correctly extends the chain tip before
// mutating any state.
func (s *Store) AppendCommitted(b types.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendCommittedLocked(b)
}

func (s *Store) appendCommittedLocked(b types.Block) error {
	last := s.chain[len(s.chain)-1]
	if b.Index != last.Index+1 {
		return ErrNonContiguousBlock
	}
	lastHash, err := types.HashBlock(last)
	if err != nil {
		return err
	}
	if b.PreviousHash != lastHash {
		return ErrPreviousHashMismatch
	}
	if !pow.ValidProof(last.Nonce, b.Nonce, lastHash, b.Difficulty) {
		return ErrInvalidProof
	}

	blockHash, err := types.HashBlock(b)
	if err != nil {
		return err
	}

	s.chain = append(s.chain, b)
	s.seenBlocks.Add(blockHash, struct{}{})
	s.difficulty = pow.AdjustDifficulty(s.difficulty, last, b)
	s.cleanupPendingLocked(b.Transactions)

	logger.Info("appended committed block",
		"index", b.Index, "difficulty", s.difficulty, "txs", len(b.Transactions))
	return nil
}

// cleanupPendingLocked removes every pending transaction whose id
// appears in committedTxs.
func (s *Store) cleanupPendingLocked(committedTxs []types.Transaction) {
	if len(s.pending) == 0 || len(committedTxs) == 0 {
		return
	}
	committed := make(map[string]struct{}, len(committedTxs))
	for _, tx := range committedTxs {
		committed[tx.ID] = struct{}{}
	}
	s.filterPendingLocked(func(tx types.Transaction) bool {
		_, isCommitted := committed[tx.ID]
		return !isCommitted
	})
}

// CleanupAgainstChain removes every pending transaction whose id appears
// anywhere in chain, used after wholesale chain replacement.
func (s *Store) CleanupAgainstChain(chain types.Chain) {
	committed := make(map[string]struct{})
	for _, b := range chain {
		for _, tx := range b.Transactions {
			committed[tx.ID] = struct{}{}
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filterPendingLocked(func(tx types.Transaction) bool {
		_, isCommitted := committed[tx.ID]
		return !isCommitted
	})
}

func (s *Store) filterPendingLocked(keep func(types.Transaction) bool) {
	filtered := s.pending[:0:0]
	for _, tx := range s.pending {
		if keep(tx) {
			filtered = append(filtered, tx)
		}
	}
	s.pending = filtered
	s.pendingIndex = make(map[string]int, len(s.pending))
	for i, tx := range s.pending {
		s.pendingIndex[tx.ID] = i
	}
}

// ReplaceChain wholesale-swaps the local chain for a better one adopted
// by fork choice, re-seeding seen_blocks, recomputing mining difficulty
// off the new tip, and running pending cleanup.
func (s *Store) ReplaceChain(newChain types.Chain) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chain = newChain.Clone()
	for _, b := range s.chain {
		hash, err := types.HashBlock(b)
		if err != nil {
			return err
		}
		s.seenBlocks.Add(hash, struct{}{})
	}

	if len(s.chain) >= 2 {
		prev := s.chain[len(s.chain)-2]
		last := s.chain[len(s.chain)-1]
		s.difficulty = pow.AdjustDifficulty(s.difficulty, prev, last)
	}

	committed := make(map[string]struct{})
	for _, b := range s.chain {
		for _, tx := range b.Transactions {
			committed[tx.ID] = struct{}{}
		}
	}
	s.filterPendingLocked(func(tx types.Transaction) bool {
		_, isCommitted := committed[tx.ID]
		return !isCommitted
	})
	return nil
}

// PendingSnapshot returns a copy of the pending pool in insertion order.
func (s *Store) PendingSnapshot() []types.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Transaction, len(s.pending))
	copy(out, s.pending)
	return out
}

// ChainSnapshot returns a deep-enough copy of the local chain.
func (s *Store) ChainSnapshot() types.Chain {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chain.Clone()
}

// LastBlock returns the current chain tip.
func (s *Store) LastBlock() types.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chain[len(s.chain)-1]
}

// Difficulty returns the node's current local mining difficulty.
func (s *Store) Difficulty() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.difficulty
}

// HasSeenBlock reports whether hash has already been appended locally.
func (s *Store) HasSeenBlock(hash string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seenBlocks.Contains(hash)
}

// CumulativeWork returns the cumulative work of the local chain.
func (s *Store) CumulativeWork() int64 {
	return types.CumulativeWork(s.ChainSnapshot())
}
