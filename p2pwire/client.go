package p2pwire

import (
	"bufio"
	"encoding/json"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/meshchain/meshchain/log"
)

var logger = log.NewModuleLogger(log.P2PWire)

// DialTimeout is the socket timeout every send/receive may block up to
// before the call gives up.
const DialTimeout = 5 * time.Second

// Send opens a TCP connection to addr, writes req as a single
// newline-terminated JSON line, reads back a single newline-terminated
// JSON response, and closes the connection — one request, one response,
// per connection.
//
// On any transport error (connect refused, timeout, malformed reply) it
// returns a nil response and a non-nil error; nothing panics, so a
// caller can always fall back to treating the peer as unreachable.
func Send(addr string, req Request) (*Response, error) {
	conn, err := net.DialTimeout("tcp", addr, DialTimeout)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}
	defer conn.Close()

	return roundTrip(conn, req)
}

// SendFireAndForget opens a connection, writes req, and returns without
// waiting for a reply — used for the gossip paths that don't need one
// (NEW_TRANSACTION, ELECT_LEADER, BLOCK_COMMIT). The remote side still
// replies (every dispatcher handler always replies once); the caller
// here simply does not wait to read it.
func SendFireAndForget(addr string, req Request) error {
	conn, err := net.DialTimeout("tcp", addr, DialTimeout)
	if err != nil {
		return errors.Wrapf(err, "dial %s", addr)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(DialTimeout)); err != nil {
		return err
	}
	return writeLine(conn, req)
}

func roundTrip(conn net.Conn, req Request) (*Response, error) {
	deadline := time.Now().Add(DialTimeout)
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	if err := writeLine(conn, req); err != nil {
		return nil, errors.Wrap(err, "write request")
	}

	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, errors.Wrap(err, "decode response")
	}
	return &resp, nil
}

func writeLine(conn net.Conn, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	raw = append(raw, '\n')
	_, err = conn.Write(raw)
	return err
}
