package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// connPair returns the server and client ends of one websocket connection.
func connPair(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()
	serverConns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	peer, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { peer.Close() })

	select {
	case conn := <-serverConns:
		t.Cleanup(func() { conn.Close() })
		return conn, peer
	case <-time.After(2 * time.Second):
		t.Fatal("server side never upgraded")
		return nil, nil
	}
}

func TestSlowClientIsDisconnectedWhenBufferOverflows(t *testing.T) {
	conn, peer := connPair(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := newClient(conn, ConnInfo{ConnID: "c1", RoomID: "r1"}, cancel)

	for i := 0; i < sendBuffer; i++ {
		c.enqueue(errorFrame("queued"))
	}
	select {
	case <-ctx.Done():
		t.Fatal("client cancelled before its buffer was full")
	default:
	}

	c.enqueue(errorFrame("one too many"))

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("overflow did not cancel the connection")
	}
	c.enqueue(errorFrame("after close"))

	done := make(chan struct{})
	go c.writePump(done)

	require.NoError(t, peer.SetReadDeadline(time.Now().Add(3*time.Second)))
	received := 0
	var readErr error
	for {
		var f frame
		if readErr = peer.ReadJSON(&f); readErr != nil {
			break
		}
		assert.Equal(t, "queued", f.Error)
		received++
	}
	assert.Equal(t, sendBuffer, received)
	assert.True(t, websocket.IsCloseError(readErr, websocket.CloseNormalClosure), "got %v", readErr)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("writer did not stop")
	}
}

func TestFinishFlushesQueuedFrames(t *testing.T) {
	conn, peer := connPair(t)
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := newClient(conn, ConnInfo{ConnID: "c2"}, cancel)

	c.enqueue(errorFrame("last words"))
	c.finish()
	c.finish()

	done := make(chan struct{})
	go c.writePump(done)

	require.NoError(t, peer.SetReadDeadline(time.Now().Add(3*time.Second)))
	var f frame
	require.NoError(t, peer.ReadJSON(&f))
	assert.Equal(t, "last words", f.Error)
	_, _, err := peer.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	<-done
}
