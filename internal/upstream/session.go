// Upstream duplex session: one persistent connection to the sportsbook feed,
// request/response correlation, and delta routing.

package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"sporthub/pkg/log"
)

const (
	// deltaCorrelationID is the sentinel correlation id upstream uses to
	// mark an unsolicited delta frame rather than a reply.
	deltaCorrelationID = 0

	// ConnectTimeout bounds how long ensure() waits for the socket to open
	// and the handshake reply to arrive.
	ConnectTimeout = 15 * time.Second

	// DefaultRequestTimeout is used by request() when the caller passes 0.
	DefaultRequestTimeout = 60 * time.Second
)

// Sink receives delta frames routed off the wire. internal/registry.Registry
// implements this; keeping it as a narrow interface here avoids an import
// cycle between upstream and registry.
type Sink interface {
	OnDelta(subscriptionID string, delta map[string]any)
}

// frame is the wire envelope every outbound and inbound message uses.
type frame struct {
	ID     int64          `json:"id"`
	Cmd    string         `json:"cmd,omitempty"`
	Params map[string]any `json:"params,omitempty"`
	Result map[string]any `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

type pendingRequest struct {
	reply chan frame
	done  chan struct{}
}

// Session owns at most one duplex connection to the upstream feed. Its send
// and recv paths are strictly serialised: writes go through writeMu, and the
// correlation map is mutated only from the read loop and from request().
type Session struct {
	url    string
	siteID string
	lang   string
	logger log.Logger
	sink   Sink

	writeMu sync.Mutex
	conn    *websocket.Conn

	ensureMu sync.Mutex
	token    string

	pendingMu sync.Mutex
	pending   map[int64]*pendingRequest
	nextID    int64

	ring         *ring
	totalMsgs    int64
	parseErrors  int64

	reconnectLimiter *rate.Limiter

	disconnectMu       sync.Mutex
	disconnectHandlers []func()

	closed atomic.Bool
}

// NewSession constructs a Session that has not yet connected; call ensure()
// before issuing requests.
func NewSession(url, siteID, lang string, sink Sink, logger log.Logger) *Session {
	return &Session{
		url:    url,
		siteID: siteID,
		lang:   lang,
		sink:   sink,
		logger: logger,
		pending: make(map[int64]*pendingRequest),
		ring:    newRing(),
		// One reconnect attempt per second, bursting to 3, keeps a flapping
		// upstream from being hammered by every group's re-subscribe.
		reconnectLimiter: rate.NewLimiter(rate.Limit(1), 3),
	}
}

// OnDisconnect registers a callback invoked whenever the session transitions
// to disconnected. Used by the group manager to schedule re-subscribes.
func (s *Session) OnDisconnect(fn func()) {
	s.disconnectMu.Lock()
	defer s.disconnectMu.Unlock()
	s.disconnectHandlers = append(s.disconnectHandlers, fn)
}

// Ensure is idempotent: it connects and completes the handshake only if not
// already connected. Returns ErrConnectFailed on timeout or handshake rejection.
func (s *Session) Ensure(ctx context.Context) error {
	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()

	if s.isConnected() {
		return nil
	}

	if err := s.reconnectLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, s.url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	s.writeMu.Lock()
	s.conn = conn
	s.closed.Store(false)
	s.writeMu.Unlock()

	go s.readLoop(conn)

	handshakeCtx, hcancel := context.WithTimeout(ctx, ConnectTimeout)
	defer hcancel()
	reply, err := s.request(handshakeCtx, "request_session", map[string]any{
		"site_id":  s.siteID,
		"language": s.lang,
	}, ConnectTimeout)
	if err != nil {
		s.teardown(conn)
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
	token, _ := reply.Result["session_token"].(string)
	if token == "" {
		s.teardown(conn)
		return fmt.Errorf("%w: empty session token", ErrConnectFailed)
	}
	s.token = token
	s.logger.Info().Msg("upstream: session established")
	return nil
}

func (s *Session) isConnected() bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn != nil && !s.closed.Load()
}

// Request sends a correlated frame and awaits its reply. timeout of 0 uses
// DefaultRequestTimeout. Returns ErrRequestTimeout on expiry, ErrUpstreamGone
// if the connection closes first.
func (s *Session) Request(ctx context.Context, cmd string, params map[string]any, timeout time.Duration) (map[string]any, error) {
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}
	reply, err := s.request(ctx, cmd, params, timeout)
	if err != nil {
		return nil, err
	}
	return reply.Result, nil
}

func (s *Session) request(ctx context.Context, cmd string, params map[string]any, timeout time.Duration) (frame, error) {
	id := atomic.AddInt64(&s.nextID, 1)
	pr := &pendingRequest{reply: make(chan frame, 1), done: make(chan struct{})}

	s.pendingMu.Lock()
	s.pending[id] = pr
	s.pendingMu.Unlock()

	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
	}()

	out := frame{ID: id, Cmd: cmd, Params: params}
	if err := s.writeFrame(out); err != nil {
		return frame{}, fmt.Errorf("%w: %v", ErrUpstreamGone, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-pr.reply:
		if reply.Error != "" {
			return frame{}, fmt.Errorf("%w: %s", ErrSubscribeFailed, reply.Error)
		}
		return reply, nil
	case <-timer.C:
		return frame{}, ErrRequestTimeout
	case <-pr.done:
		return frame{}, ErrUpstreamGone
	case <-ctx.Done():
		return frame{}, ctx.Err()
	}
}

func (s *Session) writeFrame(f frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.conn == nil {
		return ErrUpstreamGone
	}
	return s.conn.WriteJSON(f)
}

func (s *Session) readLoop(conn *websocket.Conn) {
	for {
		var f frame
		err := conn.ReadJSON(&f)
		if err != nil {
			s.teardown(conn)
			return
		}
		atomic.AddInt64(&s.totalMsgs, 1)
		s.ring.record(time.Now())

		if f.ID == deltaCorrelationID {
			subID, _ := f.Params["subscription_id"].(string)
			delta, _ := f.Params["delta"].(map[string]any)
			if subID == "" || delta == nil {
				atomic.AddInt64(&s.parseErrors, 1)
				continue
			}
			s.sink.OnDelta(subID, delta)
			continue
		}

		s.pendingMu.Lock()
		pr, ok := s.pending[f.ID]
		s.pendingMu.Unlock()
		if !ok {
			continue
		}
		select {
		case pr.reply <- f:
		default:
		}
	}
}

// teardown fails every pending request with ErrUpstreamGone, clears the
// connection, and notifies registered disconnect handlers so groups with
// subscribers schedule a re-subscribe. Safe to call more than once for the
// same conn (only the first call has effect).
func (s *Session) teardown(conn *websocket.Conn) {
	s.writeMu.Lock()
	if s.conn != conn {
		s.writeMu.Unlock()
		return
	}
	s.conn = nil
	s.closed.Store(true)
	s.writeMu.Unlock()
	conn.Close()

	s.pendingMu.Lock()
	pending := s.pending
	s.pending = make(map[int64]*pendingRequest)
	s.pendingMu.Unlock()
	for _, pr := range pending {
		close(pr.done)
	}

	s.logger.Warn().Msg("upstream: connection lost, notifying subscribers")
	s.disconnectMu.Lock()
	handlers := append([]func(){}, s.disconnectHandlers...)
	s.disconnectMu.Unlock()
	for _, h := range handlers {
		go h()
	}
}

// Close shuts down the session's connection, if any.
func (s *Session) Close() error {
	s.writeMu.Lock()
	conn := s.conn
	s.writeMu.Unlock()
	if conn != nil {
		s.teardown(conn)
	}
	return nil
}

// RollingMessageCount60s reports the exact (or ring-bounded approximate)
// count of messages received in the last 60 seconds.
func (s *Session) RollingMessageCount60s() int64 {
	return s.ring.countSince(time.Now().Add(-60 * time.Second))
}

// TotalMessages and ParseErrors expose the raw counters for the metrics aggregator.
func (s *Session) TotalMessages() int64 { return atomic.LoadInt64(&s.totalMsgs) }
func (s *Session) ParseErrors() int64   { return atomic.LoadInt64(&s.parseErrors) }

// MarshalDebug is a small helper used by health/debug endpoints; kept out of
// the hot path.
func (s *Session) MarshalDebug() ([]byte, error) {
	return json.Marshal(map[string]any{
		"connected":     s.isConnected(),
		"total_msgs":    s.TotalMessages(),
		"parse_errors":  s.ParseErrors(),
		"rolling_60s":   s.RollingMessageCount60s(),
	})
}
