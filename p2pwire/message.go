// Package p2pwire implements the newline-delimited JSON wire protocol:
// one request, one JSON-per-line response, per TCP connection. It
// defines only message shapes, a client sender, and a dispatching
// server bound to a caller-supplied Handler — it never imports the
// ledger or peer packages, keeping the transport layer free of the
// ledger/network import cycle a naive layering would otherwise create.
package p2pwire

import (
	"github.com/meshchain/meshchain/core/types"
)

// MessageType is the `type` discriminator carried by every envelope.
type MessageType string

// Request types this protocol accepts.
const (
	TypePing              MessageType = "PING"
	TypeRegisterNode      MessageType = "REGISTER_NODE"
	TypeGetChain          MessageType = "GET_CHAIN"
	TypeGetPending        MessageType = "GET_PENDING"
	TypeGetNodes          MessageType = "GET_NODES"
	TypeDiscoverPeers     MessageType = "DISCOVER_PEERS"
	TypeGetLeader         MessageType = "GET_LEADER"
	TypeNewTransaction    MessageType = "NEW_TRANSACTION"
	TypeLeaderElectionVRF MessageType = "LEADER_ELECTION_VRF"
	TypeElectLeader       MessageType = "ELECT_LEADER"
	TypeBlockPropose      MessageType = "BLOCK_PROPOSE"
	TypeBlockCommit       MessageType = "BLOCK_COMMIT"
	TypeNewBlock          MessageType = "NEW_BLOCK"
)

// Reply-only types, carried in Response.Type.
const (
	TypeChain   MessageType = "CHAIN"
	TypePending MessageType = "PENDING"
	TypeNodes   MessageType = "NODES"
	TypePeers   MessageType = "PEERS"
	TypeLeader  MessageType = "LEADER"
)

// Status strings used in Response.Status.
const (
	StatusOK        = "OK"
	StatusError     = "Error"
	StatusCommitted = "committed"
)

// Vote strings used in Response.Vote.
const (
	VoteApprove = "approve"
	VoteReject  = "reject"
)

// Submission is a VRF submission: a signed digest over the election
// seed, verifiable by any peer.
type Submission struct {
	PublicKey  string `json:"public_key"`
	Signature  string `json:"signature"`
	OutputHash string `json:"output_hash"`
	Candidate  string `json:"candidate"`
}

// Request is the closed variant type for every request this protocol
// accepts; unused fields are omitted on the wire.
type Request struct {
	Type MessageType `json:"type"`

	Node string `json:"node,omitempty"`

	Transaction *types.Transaction `json:"transaction,omitempty"`
	Sender      string             `json:"sender,omitempty"`
	Recipient   string             `json:"recipient,omitempty"`
	Amount      *float64           `json:"amount,omitempty"`

	Seed string `json:"seed,omitempty"`

	Leader string `json:"leader,omitempty"`

	Block *types.Block `json:"block,omitempty"`
}

// Response is the closed variant type for every reply this protocol
// produces.
type Response struct {
	Type    MessageType `json:"type,omitempty"`
	Status  string      `json:"status,omitempty"`
	Message string      `json:"message,omitempty"`
	Vote    string      `json:"vote,omitempty"`

	ElectionStartTime float64 `json:"election_start_time,omitempty"`

	Chain   types.Chain          `json:"chain,omitempty"`
	Pending []types.Transaction  `json:"pending,omitempty"`
	Nodes   []string             `json:"nodes,omitempty"`
	Leader  string               `json:"leader,omitempty"`

	Submission *Submission `json:"submission,omitempty"`
}

// OK builds a bare {"status":"OK"} response.
func OK() Response { return Response{Status: StatusOK} }

// Err builds an {"status":"Error","message":...} response.
func Err(message string) Response {
	return Response{Status: StatusError, Message: message}
}
