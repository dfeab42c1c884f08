package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sporthub/pkg/log"
)

type fakeSink struct {
	mu     sync.Mutex
	deltas []map[string]any
}

func (f *fakeSink) OnDelta(subscriptionID string, delta map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deltas = append(f.deltas, delta)
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deltas)
}

var upgrader = websocket.Upgrader{}

// newHandshakeServer replies to request_session with a fixed token and, once
// handshaken, pushes one delta frame before staying open for further requests.
func newHandshakeServer(t *testing.T, closeAfterHandshake bool) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var hello frame
		if err := conn.ReadJSON(&hello); err != nil {
			return
		}
		conn.WriteJSON(frame{ID: hello.ID, Result: map[string]any{"session_token": "tok-1"}})

		if closeAfterHandshake {
			return
		}

		conn.WriteJSON(frame{ID: deltaCorrelationID, Params: map[string]any{
			"subscription_id": "sub-1",
			"delta":           map[string]any{"score": "1-0"},
		}})

		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			conn.WriteJSON(frame{ID: f.ID, Result: map[string]any{"echo": f.Cmd}})
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestSessionEnsureAndDelta(t *testing.T) {
	server := newHandshakeServer(t, false)
	defer server.Close()

	sink := &fakeSink{}
	sess := NewSession(wsURL(server), "site-1", "en", sink, log.New("test"))

	err := sess.Ensure(context.Background())
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestSessionRequestReply(t *testing.T) {
	server := newHandshakeServer(t, false)
	defer server.Close()

	sink := &fakeSink{}
	sess := NewSession(wsURL(server), "site-1", "en", sink, log.New("test"))
	require.NoError(t, sess.Ensure(context.Background()))

	result, err := sess.Request(context.Background(), "subscribe", map[string]any{"sportId": "1"}, time.Second)

	require.NoError(t, err)
	assert.Equal(t, "subscribe", result["echo"])
}

func TestSessionDisconnectNotifiesHandlers(t *testing.T) {
	server := newHandshakeServer(t, true)
	defer server.Close()

	sink := &fakeSink{}
	sess := NewSession(wsURL(server), "site-1", "en", sink, log.New("test"))
	notified := make(chan struct{})
	sess.OnDisconnect(func() { close(notified) })
	require.NoError(t, sess.Ensure(context.Background()))

	select {
	case <-notified:
	case <-time.After(time.Second):
		t.Fatal("disconnect handler was not invoked")
	}
}

func TestSessionRequestTimeoutWhenNoReply(t *testing.T) {
	// Server accepts the handshake then never answers further requests.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		var hello frame
		require.NoError(t, conn.ReadJSON(&hello))
		conn.WriteJSON(frame{ID: hello.ID, Result: map[string]any{"session_token": "tok-1"}})
		var f frame
		conn.ReadJSON(&f) // consume the request but never reply
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	sink := &fakeSink{}
	sess := NewSession(wsURL(server), "site-1", "en", sink, log.New("test"))
	require.NoError(t, sess.Ensure(context.Background()))

	_, err := sess.Request(context.Background(), "subscribe", nil, 50*time.Millisecond)

	assert.ErrorIs(t, err, ErrRequestTimeout)
}
