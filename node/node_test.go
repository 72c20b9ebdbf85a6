package node

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meshchain/meshchain/p2pwire"
)

func newTxRequest(sender, recipient string, amount float64) p2pwire.Request {
	return p2pwire.Request{
		Type:      p2pwire.TypeNewTransaction,
		Sender:    sender,
		Recipient: recipient,
		Amount:    &amount,
	}
}

func startTestNode(t *testing.T) *Node {
	t.Helper()
	n, err := New(Config{Host: "127.0.0.1", Port: 0})
	require.NoError(t, err)
	require.NoError(t, n.server.Start(n.selfAddress))
	n.adoptBoundAddress()
	t.Cleanup(n.server.Stop)
	return n
}

func TestHandlePingReturnsOK(t *testing.T) {
	n := startTestNode(t)
	resp := n.HandlePing()
	require.Equal(t, "OK", resp.Status)
}

func TestHandleNewTransactionAddsToPendingPool(t *testing.T) {
	n := startTestNode(t)
	resp := n.HandleNewTransaction(newTxRequest("alice", "bob", 5))
	require.Equal(t, "OK", resp.Status)
	require.Len(t, n.Pending(), 1)
}

func TestHandleNewTransactionRejectsCoinbaseSender(t *testing.T) {
	n := startTestNode(t)
	resp := n.HandleNewTransaction(newTxRequest("0", "bob", 5))
	require.Equal(t, "Error", resp.Status)
	require.Empty(t, n.Pending())
}

func TestTwoNodesGossipTransactionsBetweenEachOther(t *testing.T) {
	a := startTestNode(t)
	b := startTestNode(t)

	a.registry.Register(b.selfAddress)
	b.registry.Register(a.selfAddress)

	tx, err := a.SubmitTransaction("alice", "bob", 3)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, p := range b.Pending() {
			if p.ID == tx.ID {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)
}

func TestMineCommitsBlockWhenSelfIsLeader(t *testing.T) {
	n := startTestNode(t)
	n.election.AdoptLeader(n.selfAddress)
	_, err := n.SubmitTransaction("alice", "bob", 1)
	require.NoError(t, err)

	block, err := n.Mine(context.Background())
	require.NoError(t, err)
	require.NotNil(t, block)
	require.Len(t, n.Chain(), 2)
	require.Empty(t, n.Pending())
}

func TestResolveConflictsAdoptsBetterPeerChain(t *testing.T) {
	a := startTestNode(t)
	b := startTestNode(t)

	b.election.AdoptLeader(b.selfAddress)
	_, err := b.SubmitTransaction("alice", "bob", 1)
	require.NoError(t, err)
	_, err = b.Mine(context.Background())
	require.NoError(t, err)

	a.registry.Register(b.selfAddress)
	require.True(t, a.ResolveConflicts())
	require.Len(t, a.Chain(), 2)
}
