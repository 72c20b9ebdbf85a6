package p2pwire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshchain/meshchain/core/types"
)

// fakeHandler is a scripted Handler used to exercise the server/client
// round trip over a real loopback TCP connection.
type fakeHandler struct {
	pingCalls int
}

func (f *fakeHandler) HandlePing() Response { f.pingCalls++; return OK() }
func (f *fakeHandler) HandleRegisterNode(node string) Response {
	return Response{Status: StatusOK, Message: "registered:" + node}
}
func (f *fakeHandler) HandleGetChain() Response {
	return Response{Type: TypeChain, Chain: types.NewChain()}
}
func (f *fakeHandler) HandleGetPending() Response { return Response{Type: TypePending} }
func (f *fakeHandler) HandleGetNodes() Response   { return Response{Type: TypeNodes, Nodes: []string{"a:1"}} }
func (f *fakeHandler) HandleDiscoverPeers() Response {
	return Response{Type: TypePeers, Nodes: []string{"a:1"}}
}
func (f *fakeHandler) HandleGetLeader() Response { return Response{Type: TypeLeader, Leader: "a:1"} }
func (f *fakeHandler) HandleNewTransaction(req Request) Response {
	return Response{Status: StatusOK, Message: req.Sender}
}
func (f *fakeHandler) HandleLeaderElectionVRF(seed string) Response {
	return Response{Submission: &Submission{Candidate: "a:1", OutputHash: seed}}
}
func (f *fakeHandler) HandleElectLeader(leader string) Response { return OK() }
func (f *fakeHandler) HandleBlockPropose(block types.Block) Response {
	return Response{Vote: VoteApprove}
}
func (f *fakeHandler) HandleBlockCommit(block types.Block) Response {
	return Response{Status: StatusCommitted}
}
func (f *fakeHandler) HandleNewBlock(block types.Block) Response { return OK() }

func startTestServer(t *testing.T) (*Server, *fakeHandler) {
	t.Helper()
	handler := &fakeHandler{}
	srv := NewServer(handler)
	require.NoError(t, srv.Start("127.0.0.1:0"))
	t.Cleanup(srv.Stop)
	return srv, handler
}

func TestServerRoundTripsPing(t *testing.T) {
	srv, handler := startTestServer(t)

	resp, err := Send(srv.Addr().String(), Request{Type: TypePing})
	require.NoError(t, err)
	require.Equal(t, StatusOK, resp.Status)
	require.Equal(t, 1, handler.pingCalls)
}

func TestServerRoundTripsGetChain(t *testing.T) {
	srv, _ := startTestServer(t)

	resp, err := Send(srv.Addr().String(), Request{Type: TypeGetChain})
	require.NoError(t, err)
	require.Equal(t, TypeChain, resp.Type)
	require.Len(t, resp.Chain, 1)
}

func TestServerRoundTripsNewTransaction(t *testing.T) {
	srv, _ := startTestServer(t)

	resp, err := Send(srv.Addr().String(), Request{Type: TypeNewTransaction, Sender: "alice"})
	require.NoError(t, err)
	require.Equal(t, "alice", resp.Message)
}

func TestServerRejectsUnknownMessageType(t *testing.T) {
	srv, _ := startTestServer(t)

	resp, err := Send(srv.Addr().String(), Request{Type: "NOT_A_REAL_TYPE"})
	require.NoError(t, err)
	require.Equal(t, StatusError, resp.Status)
}

func TestServerRejectsBlockProposeMissingBlock(t *testing.T) {
	srv, _ := startTestServer(t)

	resp, err := Send(srv.Addr().String(), Request{Type: TypeBlockPropose})
	require.NoError(t, err)
	require.Equal(t, StatusError, resp.Status)
}
