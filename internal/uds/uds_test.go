package uds

import (
	"bytes"
	"encoding/json"
	"log"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *Client) {
	t.Helper()
	// Socket paths have a tight length limit; keep the name short.
	sock := filepath.Join(t.TempDir(), "s.sock")
	srv := NewServer(sock, log.New(&bytes.Buffer{}, "", 0))
	t.Cleanup(func() { _ = srv.Stop() })
	return srv, NewClient(sock)
}

func TestPingRoundtrip(t *testing.T) {
	srv, cli := newTestServer(t)
	srv.Handle(CmdPing, func(*Request) *Response {
		return SuccessResponse(map[string]string{"pong": "ok"})
	})
	require.NoError(t, srv.Start())

	resp, err := cli.SendCommand(CmdPing, nil)
	require.NoError(t, err)
	require.True(t, resp.Success)

	var data map[string]string
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, "ok", data["pong"])
}

func TestUnknownCommand(t *testing.T) {
	srv, cli := newTestServer(t)
	require.NoError(t, srv.Start())

	resp, err := cli.SendCommand("explode", nil)
	require.NoError(t, err)
	require.False(t, resp.Success)
	assert.Equal(t, ErrCodeUnknownCommand, resp.Error.Code)
}

func TestProtocolVersionMismatch(t *testing.T) {
	srv, cli := newTestServer(t)
	srv.Handle(CmdPing, func(*Request) *Response { return SuccessResponse(nil) })
	require.NoError(t, srv.Start())

	resp, err := cli.Send(&Request{ProtocolVersion: 99, Command: CmdPing})
	require.NoError(t, err)
	require.False(t, resp.Success)
	assert.Equal(t, ErrCodeProtocolMismatch, resp.Error.Code)
}

func TestHandlerParamsDecode(t *testing.T) {
	srv, cli := newTestServer(t)
	srv.Handle(CmdRemind, func(req *Request) *Response {
		var p RemindParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return ErrorResponse(ErrCodeValidation, err.Error())
		}
		if p.Title == "" {
			return ErrorResponse(ErrCodeValidation, "title is required")
		}
		return SuccessResponse(map[string]string{"id": "rem_test", "title": p.Title})
	})
	require.NoError(t, srv.Start())

	resp, err := cli.SendCommand(CmdRemind, RemindParams{
		Title: "water the plants",
		At:    time.Now().Add(time.Hour).Format(time.RFC3339),
	})
	require.NoError(t, err)
	require.True(t, resp.Success)

	resp, err = cli.SendCommand(CmdRemind, RemindParams{At: "2026-03-10T12:00:00Z"})
	require.NoError(t, err)
	require.False(t, resp.Success)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
}

func TestHandlerPanicKeepsServerAlive(t *testing.T) {
	srv, cli := newTestServer(t)
	srv.Handle("boom", func(*Request) *Response { panic("handler bug") })
	srv.Handle(CmdPing, func(*Request) *Response { return SuccessResponse(nil) })
	require.NoError(t, srv.Start())

	// The panicked connection yields a transport error on the client.
	_, err := cli.SendCommand("boom", nil)
	assert.Error(t, err)

	// The server still answers the next connection.
	resp, err := cli.SendCommand(CmdPing, nil)
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestConcurrentClients(t *testing.T) {
	srv, cli := newTestServer(t)
	srv.Handle(CmdStatus, func(*Request) *Response {
		return SuccessResponse(map[string]bool{"running": true})
	})
	require.NoError(t, srv.Start())

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := cli.SendCommand(CmdStatus, nil)
			if err != nil {
				errs <- err
				return
			}
			if !resp.Success {
				errs <- assert.AnError
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent request failed: %v", err)
	}
}

func TestStopRemovesSocket(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "s.sock")
	srv := NewServer(sock, log.New(&bytes.Buffer{}, "", 0))
	require.NoError(t, srv.Start())
	require.NoError(t, srv.Stop())

	cli := NewClient(sock)
	cli.SetTimeout(time.Second)
	_, err := cli.SendCommand(CmdPing, nil)
	assert.Error(t, err, "stopped server rejects connections")
}
