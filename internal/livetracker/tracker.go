// Live-tracker bridge: one dedicated upstream websocket per in-play game,
// forwarding raw frames to its SSE subscribers unchanged. Each tracked game
// gets its own connection and subscriber set, independent of the main feed
// session.

package livetracker

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"sporthub/internal/broadcaster"
	"sporthub/internal/entity"
	"sporthub/internal/metrics"
	"sporthub/pkg/log"
)

const (
	dialTimeout    = 15 * time.Second
	leaseTTL       = 20 * time.Second
	leaseRenewal   = 5 * time.Second
	reconnectDelay = 3 * time.Second
	graceDuration  = 30 * time.Second
	batchReportN   = 50
)

// Config carries the connection parameters for the upstream live-tracker
// feed, one instance of which is dialed per tracked game.
type Config struct {
	URL       string
	Partner   string
	SiteRef   string
}

// Tracker owns one game's upstream connection and its SSE subscriber set.
// Every mutation of its state runs on its own goroutine, the same
// single-goroutine-per-resource discipline internal/group uses for a Group.
type Tracker struct {
	gameID string
	cfg    Config
	logger log.Logger
	bcast  *broadcaster.Broadcaster
	agg    *metrics.Aggregator

	actions chan func()
	done    chan struct{}

	graceTimer *time.Timer
	onEmpty    func(t *Tracker)
}

func newTracker(gameID string, cfg Config, agg *metrics.Aggregator, logger log.Logger, onEmpty func(t *Tracker)) *Tracker {
	t := &Tracker{
		gameID:  gameID,
		cfg:     cfg,
		logger:  logger,
		bcast:   broadcaster.New(logger),
		agg:     agg,
		actions: make(chan func(), 32),
		done:    make(chan struct{}),
		onEmpty: onEmpty,
	}
	go t.run()
	go t.connectLoop()
	return t
}

func (t *Tracker) run() {
	for {
		select {
		case fn := <-t.actions:
			fn()
		case <-t.done:
			return
		}
	}
}

func (t *Tracker) do(fn func()) {
	reply := make(chan struct{})
	select {
	case t.actions <- func() { fn(); close(reply) }:
	case <-t.done:
		return
	}
	select {
	case <-reply:
	case <-t.done:
	}
}

func (t *Tracker) doAsync(fn func()) {
	select {
	case t.actions <- fn:
	case <-t.done:
	}
}

// Attach registers a new SSE subscriber and cancels any pending grace teardown.
func (t *Tracker) Attach(c *entity.Client) {
	t.do(func() {
		if t.graceTimer != nil {
			t.graceTimer.Stop()
			t.graceTimer = nil
		}
		t.bcast.Add(c)
	})
}

// Detach removes a subscriber, scheduling a grace teardown once the last one
// leaves so a quick reconnect doesn't tear down and redial the upstream feed.
func (t *Tracker) Detach(clientID string) {
	t.doAsync(func() {
		t.bcast.Remove(clientID)
		if t.bcast.Count() > 0 {
			return
		}
		if t.graceTimer != nil {
			t.graceTimer.Stop()
		}
		t.graceTimer = time.AfterFunc(graceDuration, func() {
			t.doAsync(func() {
				if t.bcast.Count() == 0 && t.onEmpty != nil {
					t.onEmpty(t)
				}
			})
		})
	})
}

// SubscriberCount reports the current subscriber count.
func (t *Tracker) SubscriberCount() int {
	var n int
	t.do(func() { n = t.bcast.Count() })
	return n
}

// Stopped reports whether the tracker's goroutines have exited.
func (t *Tracker) Stopped() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Close stops the tracker for good. Safe to call more than once.
func (t *Tracker) Close() {
	select {
	case <-t.done:
	default:
		close(t.done)
	}
}

// connectLoop dials the upstream feed, forwards frames until it drops, then
// retries after a fixed delay for as long as the tracker is alive.
func (t *Tracker) connectLoop() {
	for !t.Stopped() {
		t.runConnection()
		if t.Stopped() {
			return
		}
		time.Sleep(reconnectDelay)
	}
}

func (t *Tracker) runConnection() {
	dialCtx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	header := map[string][]string{}
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, t.cfg.URL, header)
	if err != nil {
		t.logger.Warn().Err(err).Str("game_id", t.gameID).Msg("live-tracker: dial failed")
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{
		"cmd":      "subscribe_game_tracker",
		"game_id":  t.gameID,
		"partner":  t.cfg.Partner,
		"site_ref": t.cfg.SiteRef,
	}); err != nil {
		t.logger.Warn().Err(err).Str("game_id", t.gameID).Msg("live-tracker: subscribe write failed")
		return
	}

	t.doAsync(func() { t.bcast.BroadcastEvent("ready", entity.ErrorPayload{}) })
	defer t.doAsync(func() { t.bcast.BroadcastEvent("end", entity.ErrorPayload{}) })

	msgCount := 0
	lastLeaseAt := time.Now()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.agg.DropLease(t.gameID)
			return
		}
		t.doAsync(func() { t.bcast.BroadcastRaw(data) })
		t.agg.RecordMessage(time.Now())
		msgCount++

		now := time.Now()
		if msgCount%batchReportN == 0 || now.Sub(lastLeaseAt) >= leaseRenewal {
			t.agg.RenewLease(t.gameID, t.SubscriberCount(), true, now, leaseTTL)
			lastLeaseAt = now
		}
		if t.SubscriberCount() == 0 {
			t.agg.DropLease(t.gameID)
			return
		}
	}
}

// Manager owns every currently-tracked game's Tracker, keyed by game id.
type Manager struct {
	mu       sync.Mutex
	trackers map[string]*Tracker
	cfg      Config
	agg      *metrics.Aggregator
	logger   log.Logger
}

func NewManager(cfg Config, agg *metrics.Aggregator, logger log.Logger) *Manager {
	return &Manager{
		trackers: make(map[string]*Tracker),
		cfg:      cfg,
		agg:      agg,
		logger:   logger,
	}
}

// Attach registers c against gameID's tracker, dialing a fresh upstream
// connection if this is the first subscriber for that game.
func (m *Manager) Attach(gameID string, c *entity.Client) {
	m.mu.Lock()
	tr, ok := m.trackers[gameID]
	if !ok {
		tr = newTracker(gameID, m.cfg, m.agg, m.logger, m.onEmpty)
		m.trackers[gameID] = tr
	}
	m.mu.Unlock()
	tr.Attach(c)
}

// Detach removes c from gameID's tracker, if it currently exists.
func (m *Manager) Detach(gameID, clientID string) {
	m.mu.Lock()
	tr, ok := m.trackers[gameID]
	m.mu.Unlock()
	if ok {
		tr.Detach(clientID)
	}
}

func (m *Manager) onEmpty(tr *Tracker) {
	m.mu.Lock()
	delete(m.trackers, tr.gameID)
	m.mu.Unlock()
	tr.Close()
	m.agg.DropLease(tr.gameID)
}

// Count reports how many games currently have a live tracker instance.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.trackers)
}

// CloseAll tears down every tracker, used during graceful shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	trackers := make([]*Tracker, 0, len(m.trackers))
	for _, tr := range m.trackers {
		trackers = append(trackers, tr)
	}
	m.trackers = make(map[string]*Tracker)
	m.mu.Unlock()
	for _, tr := range trackers {
		tr.Close()
	}
}
