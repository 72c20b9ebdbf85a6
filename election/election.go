// Package election implements the VRF leader election round: gather
// signed submissions over the caller's own last-block hash from every
// reachable candidate, verify them, and adopt the candidate with the
// lexicographically smallest output hash.
//
// The one-shot-randomized-round-with-a-reentrancy-guard shape is
// grounded on klaytn's consensus/istanbul/core round state machine,
// which likewise owns a single in-flight-round flag and a timeout that
// re-arms it.
package election

import (
	"sort"
	"sync"
	"time"

	"github.com/meshchain/meshchain/core/types"
	"github.com/meshchain/meshchain/crypto"
	"github.com/meshchain/meshchain/forkchoice"
	"github.com/meshchain/meshchain/ledger"
	"github.com/meshchain/meshchain/log"
	"github.com/meshchain/meshchain/p2pwire"
	"github.com/meshchain/meshchain/peer"
)

var logger = log.NewModuleLogger(log.Election)

// Timeout bounds how long an election round may claim
// election_in_progress before the flag is forcibly reset, so a wedged
// round never permanently blocks future elections.
const Timeout = 10 * time.Second

// Engine runs leader election rounds for one node.
type Engine struct {
	selfAddress string
	privKey     *crypto.PrivateKey
	store       *ledger.Store
	registry    *peer.Registry

	mu          sync.Mutex
	inProgress  bool
	leader      string
	hasLeader   bool
}

// New builds an election Engine for a node identified by selfAddress.
func New(selfAddress string, privKey *crypto.PrivateKey, store *ledger.Store, registry *peer.Registry) *Engine {
	return &Engine{
		selfAddress: selfAddress,
		privKey:     privKey,
		store:       store,
		registry:    registry,
	}
}

// ErrElectionInProgress is returned when a caller requests an election
// while one is already running.
type ErrElectionInProgress struct{}

func (ErrElectionInProgress) Error() string { return "election already in progress" }

// CurrentLeader returns the node's current view of the leader, or "" if
// there is none; HasLeader reports the latter separately.
func (e *Engine) CurrentLeader() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.leader
}

// HasLeader reports whether current_leader is non-null.
func (e *Engine) HasLeader() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasLeader
}

// SetSelfAddress updates this engine's own identity, used when a
// listener bound to an ephemeral port resolves its real address after
// construction.
func (e *Engine) SetSelfAddress(addr string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selfAddress = addr
}

// AdoptLeader sets current_leader directly, used by a follower that
// receives ELECT_LEADER instead of running its own round.
func (e *Engine) AdoptLeader(leader string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setLeaderLocked(leader)
}

func (e *Engine) setLeaderLocked(leader string) {
	if leader == "" {
		e.leader = ""
		e.hasLeader = false
		return
	}
	e.leader = leader
	e.hasLeader = true
}

// submissionMessage is the exact byte sequence a candidate signs: the
// seed bound together with its own claimed identity, so that mutating
// either the candidate or the seed a submission carries invalidates the
// signature — every field of a submission must be tamper-evident, not
// only the signature itself.
func submissionMessage(seed, candidate string) string {
	return seed + "|" + candidate
}

// MakeSubmission signs seed together with this node's own identity,
// producing a VRF submission: signature, output_hash = SHA-256 of the
// raw signature, and the claimed candidate identity.
func (e *Engine) MakeSubmission(seed string) (p2pwire.Submission, error) {
	sig, err := e.privKey.SignHex(submissionMessage(seed, e.selfAddress))
	if err != nil {
		return p2pwire.Submission{}, err
	}
	outputHash, err := crypto.SHA256HexOfBase64(sig)
	if err != nil {
		return p2pwire.Submission{}, err
	}
	return p2pwire.Submission{
		PublicKey:  e.privKey.PublicKeyBase64(),
		Signature:  sig,
		OutputHash: outputHash,
		Candidate:  e.selfAddress,
	}, nil
}

// Verify checks a submission against the expected seed: the signature
// must verify under the claimed public key against seed+candidate, and
// the output hash must equal SHA-256 of the raw signature. Because
// verification is always performed against the caller's own seed, a
// submission signed over any other seed — e.g. from a candidate on a
// divergent chain — fails here rather than needing separate rejection.
func Verify(sub p2pwire.Submission, seed string) bool {
	pub, err := crypto.ParsePublicKeyBase64(sub.PublicKey)
	if err != nil {
		logger.Warn("discarding submission with undecodable public key", "candidate", sub.Candidate, "err", err)
		return false
	}
	if !crypto.VerifyHex(pub, submissionMessage(seed, sub.Candidate), sub.Signature) {
		logger.Warn("discarding submission with invalid signature", "candidate", sub.Candidate)
		return false
	}
	expectedOutput, err := crypto.SHA256HexOfBase64(sub.Signature)
	if err != nil || expectedOutput != sub.OutputHash {
		logger.Warn("discarding submission with mismatched output hash", "candidate", sub.Candidate)
		return false
	}
	return true
}

// Run executes one election round: resolve conflicts, build the
// candidate list, collect and verify VRF submissions, and adopt the
// winner. It rejects re-entrant calls while a round is already running.
func (e *Engine) Run() (string, error) {
	e.mu.Lock()
	if e.inProgress {
		e.mu.Unlock()
		return "", ErrElectionInProgress{}
	}
	e.inProgress = true
	e.mu.Unlock()

	timer := time.AfterFunc(Timeout, func() {
		e.mu.Lock()
		e.inProgress = false
		e.mu.Unlock()
		logger.Warn("election round timed out, resetting in-progress flag")
	})
	defer func() {
		timer.Stop()
		e.mu.Lock()
		e.inProgress = false
		e.mu.Unlock()
	}()

	forkchoice.ResolveConflicts(e.store, e.registry)

	seed, err := types.HashBlock(e.store.LastBlock())
	if err != nil {
		return "", err
	}

	reachable := e.registry.ReachablePeers()

	submissions := e.collectSubmissions(seed, reachable)

	selfSub, err := e.MakeSubmission(seed)
	if err != nil {
		return "", err
	}
	submissions = append(submissions, selfSub)

	winner, ok := pickWinner(submissions, seed)
	e.mu.Lock()
	e.setLeaderLocked(winner)
	e.mu.Unlock()

	if !ok {
		logger.Warn("no VRF submission verified, leader is null")
		return "", nil
	}
	logger.Info("elected leader", "leader", winner, "candidates", len(submissions))
	return winner, nil
}

func (e *Engine) collectSubmissions(seed string, peers []string) []p2pwire.Submission {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		subs []p2pwire.Submission
	)
	for _, addr := range peers {
		addr := addr
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := e.registry.Send(addr, p2pwire.Request{
				Type: p2pwire.TypeLeaderElectionVRF,
				Seed: seed,
			})
			if err != nil || resp == nil || resp.Submission == nil {
				return
			}
			mu.Lock()
			subs = append(subs, *resp.Submission)
			mu.Unlock()
		}()
	}
	wg.Wait()
	return subs
}

// pickWinner verifies every submission against seed and returns the
// candidate with the lexicographically smallest output_hash, breaking
// ties by candidate string.
func pickWinner(submissions []p2pwire.Submission, seed string) (string, bool) {
	var valid []p2pwire.Submission
	for _, sub := range submissions {
		if Verify(sub, seed) {
			valid = append(valid, sub)
		}
	}
	if len(valid) == 0 {
		return "", false
	}

	sort.Slice(valid, func(i, j int) bool {
		if valid[i].OutputHash != valid[j].OutputHash {
			return valid[i].OutputHash < valid[j].OutputHash
		}
		return valid[i].Candidate < valid[j].Candidate
	})
	return valid[0].Candidate, true
}

// BroadcastElection sends ELECT_LEADER{leader} to every known peer,
// fire-and-forget, so followers adopt the winner without re-running
// their own election.
func (e *Engine) BroadcastElection(leader string) {
	for _, addr := range e.registry.Peers() {
		go func(addr string) {
			if err := p2pwire.SendFireAndForget(addr, p2pwire.Request{
				Type:   p2pwire.TypeElectLeader,
				Leader: leader,
			}); err != nil {
				e.registry.RecordFailure(addr)
			}
		}(addr)
	}
}
