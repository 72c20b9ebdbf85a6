// Package types defines the wire-and-storage data model of meshchain:
// transactions, blocks, and the chain built from them, grounded on the
// struct-plus-canonical-hash pattern used by klaytn's
// blockchain/types package.
package types

import (
	"github.com/hashicorp/go-uuid"
	"github.com/pkg/errors"

	"github.com/meshchain/meshchain/common"
)

// TxStatus is the lifecycle state of a Transaction.
type TxStatus string

const (
	TxPending TxStatus = "pending"
	TxSuccess TxStatus = "success"
)

// CoinbaseSender is the reserved sender address rejected at submission.
const CoinbaseSender = "0"

// Transaction is an opaque sender/recipient/amount triple.
type Transaction struct {
	ID        string   `json:"id"`
	Sender    string   `json:"sender"`
	Recipient string   `json:"recipient"`
	Amount    float64  `json:"amount"`
	Status    TxStatus `json:"status"`
}

// ErrCoinbaseSender is returned when a submission names the coinbase
// sender, which this ledger rejects outright.
var ErrCoinbaseSender = errors.New("coinbase sender is not allowed")

// ErrNegativeAmount is returned when a submission names a negative amount.
var ErrNegativeAmount = errors.New("amount must be non-negative")

// NewTransaction builds a fresh pending transaction with a new UUID,
// rejecting the coinbase sender and negative amounts.
func NewTransaction(sender, recipient string, amount float64) (Transaction, error) {
	if sender == CoinbaseSender {
		return Transaction{}, ErrCoinbaseSender
	}
	if amount < 0 {
		return Transaction{}, ErrNegativeAmount
	}
	id, err := uuid.GenerateUUID()
	if err != nil {
		return Transaction{}, errors.Wrap(err, "generate transaction id")
	}
	return Transaction{
		ID:        id,
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
		Status:    TxPending,
	}, nil
}

// canonicalTransaction is the subset of Transaction hashed/compared for
// equality: status is excluded since a transaction's lifecycle state
// changes without altering its identity.
type canonicalTransaction struct {
	ID        string  `json:"id"`
	Sender    string  `json:"sender"`
	Recipient string  `json:"recipient"`
	Amount    float64 `json:"amount"`
}

// CanonicalJSON returns the sorted-key JSON encoding used for hashing and
// equality, excluding Status.
func (tx Transaction) CanonicalJSON() ([]byte, error) {
	return common.CanonicalJSON(canonicalTransaction{
		ID:        tx.ID,
		Sender:    tx.Sender,
		Recipient: tx.Recipient,
		Amount:    tx.Amount,
	})
}

// WithStatus returns a copy of tx with Status replaced.
func (tx Transaction) WithStatus(status TxStatus) Transaction {
	tx.Status = status
	return tx
}
