// Group is one fan-out aggregation unit: subscriber set, cached payloads
// for attach-time replay, and the single goroutine that owns all of its
// mutable state: every mutation runs on one dedicated goroutine per group.

package group

import (
	"time"

	"sporthub/internal/broadcaster"
	"sporthub/internal/entity"
	"sporthub/internal/oddscache"
	"sporthub/pkg/log"
)

// Group owns one key's subscriber set, upstream subscription ids, and last
// payloads. Every method that touches this state runs on the group's own
// goroutine (started by run()); callers reach it only through do/doAsync.
type Group struct {
	Key entity.GroupKey

	logger log.Logger
	bcast  *broadcaster.Broadcaster

	gamesGate  oddscache.Gate
	countsGate oddscache.Gate
	gameGate   oddscache.Gate
	odds       *oddscache.Cache // nil for kinds that don't carry odds

	// prematchCountsGate gates the prematch counts stream apart from the
	// live one on countsGate, since a Gate remembers a single fingerprint.
	prematchCountsGate oddscache.Gate

	lastGames  *entity.GamesPayload
	lastGame   *entity.GamePayload
	lastOdds   *entity.OddsPayload

	// lastLiveCounts/lastPrematchCounts hold the counts group's own two
	// event streams, replayed under their own event names to /counts-stream
	// subscribers. lastRelayedCounts holds the live-counts view as relayed
	// onto a live sport-games group via the counts→live-games back-edge,
	// replayed there under the "counts" event name; lastPrematchCounts
	// doubles as the relayed prematch view too, since a live sport-games
	// group and the counts group never share one Group instance.
	lastLiveCounts     *entity.CountsPayload
	lastPrematchCounts *entity.CountsPayload
	lastRelayedCounts  *entity.CountsPayload

	subscriptionIDs map[string]bool

	// dependents counts other groups that need this group alive even
	// with zero direct subscribers of its own (the counts group is kept
	// alive by every live sport-games group riding its back-edge).
	dependents int

	actions chan func()
	done    chan struct{}

	heartbeatInterval time.Duration
	graceDuration     time.Duration
	graceTimer        *time.Timer

	// onEmpty is invoked from the group's own goroutine once grace expires
	// with zero subscribers; the manager uses it to cancel held upstream
	// subscriptions and drop the group from its table.
	onEmpty func(g *Group)
}

func newGroup(key entity.GroupKey, logger log.Logger, heartbeat, grace time.Duration, onEmpty func(g *Group), withOdds bool) *Group {
	g := &Group{
		Key:               key,
		logger:            logger,
		bcast:             broadcaster.New(logger),
		subscriptionIDs:   make(map[string]bool),
		actions:           make(chan func(), 64),
		done:              make(chan struct{}),
		heartbeatInterval: heartbeat,
		graceDuration:     grace,
		onEmpty:           onEmpty,
	}
	if withOdds {
		g.odds = oddscache.New()
	}
	go g.run()
	return g
}

func (g *Group) run() {
	ticker := time.NewTicker(g.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case fn := <-g.actions:
			fn()
		case <-ticker.C:
			g.bcast.Heartbeat()
		case <-g.done:
			return
		}
	}
}

// do runs fn on the group's goroutine and waits for it to complete.
func (g *Group) do(fn func()) {
	reply := make(chan struct{})
	select {
	case g.actions <- func() { fn(); close(reply) }:
	case <-g.done:
		return
	}
	select {
	case <-reply:
	case <-g.done:
	}
}

// doAsync queues fn on the group's goroutine without waiting.
func (g *Group) doAsync(fn func()) {
	select {
	case g.actions <- fn:
	case <-g.done:
	}
}

// Stopped reports whether the group's goroutine has exited.
func (g *Group) Stopped() bool {
	select {
	case <-g.done:
		return true
	default:
		return false
	}
}

// Attach registers a new subscriber and replays the group's last-known
// payloads so it observes data within one round trip. A pending grace
// teardown is cancelled.
func (g *Group) Attach(c *entity.Client) {
	g.do(func() {
		if g.graceTimer != nil {
			g.graceTimer.Stop()
			g.graceTimer = nil
		}
		g.bcast.Add(c)
		if g.lastLiveCounts != nil {
			g.bcast.SendTo(c, "live_counts", g.lastLiveCounts)
		}
		if g.lastPrematchCounts != nil {
			g.bcast.SendTo(c, "prematch_counts", g.lastPrematchCounts)
		}
		if g.lastRelayedCounts != nil {
			g.bcast.SendTo(c, "counts", g.lastRelayedCounts)
		}
		if g.lastGames != nil {
			g.bcast.SendTo(c, "games", g.lastGames)
		}
		if g.lastOdds != nil {
			g.bcast.SendTo(c, "odds", g.lastOdds)
		}
		if g.lastGame != nil {
			g.bcast.SendTo(c, "game", g.lastGame)
		}
	})
}

// Detach removes a subscriber. If the group becomes idle (no direct
// subscribers and no dependents), a grace timer is started; on expiry with
// it still idle, onEmpty runs.
func (g *Group) Detach(clientID string) {
	g.doAsync(func() {
		g.bcast.Remove(clientID)
		g.armGraceIfIdle()
	})
}

// AddDependent marks another group (a live sport-games group riding this
// group's back-edge) as depending on this group staying up. Cancels any
// pending grace teardown, the same way a direct Attach does.
func (g *Group) AddDependent() {
	g.do(func() {
		if g.graceTimer != nil {
			g.graceTimer.Stop()
			g.graceTimer = nil
		}
		g.dependents++
	})
}

// RemoveDependent drops one dependent reference. If the group is now idle,
// a grace timer is started exactly as Detach does.
func (g *Group) RemoveDependent() {
	g.doAsync(func() {
		if g.dependents > 0 {
			g.dependents--
		}
		g.armGraceIfIdle()
	})
}

// armGraceIfIdle starts (or restarts) the grace teardown timer once the
// group has neither direct subscribers nor dependents left. Must run on the
// group's own goroutine.
func (g *Group) armGraceIfIdle() {
	if g.bcast.Count() > 0 || g.dependents > 0 {
		return
	}
	if g.graceTimer != nil {
		g.graceTimer.Stop()
	}
	g.graceTimer = time.AfterFunc(g.graceDuration, func() {
		g.doAsync(func() {
			if g.bcast.Count() == 0 && g.dependents == 0 && g.onEmpty != nil {
				g.onEmpty(g)
			}
		})
	})
}

// SubscriberCount reports the current subscriber count, synchronously.
func (g *Group) SubscriberCount() int {
	var n int
	g.do(func() { n = g.bcast.Count() })
	return n
}

// TrackSubscription records an upstream subscription id this group holds,
// so the manager can cancel it on teardown.
func (g *Group) TrackSubscription(id string) {
	g.doAsync(func() { g.subscriptionIDs[id] = true })
}

// SubscriptionIDs returns a copy of the held upstream subscription ids.
func (g *Group) SubscriptionIDs() []string {
	var out []string
	g.do(func() {
		out = make([]string, 0, len(g.subscriptionIDs))
		for id := range g.subscriptionIDs {
			out = append(out, id)
		}
	})
	return out
}

// Close stops the group's goroutine. Safe to call more than once.
func (g *Group) Close() {
	select {
	case <-g.done:
	default:
		close(g.done)
	}
}

// EmitLiveCounts and EmitPrematchCounts are the counts group's own two
// upstream-driven event streams, each independently gated on its own
// content fingerprint so an unchanged count list never re-emits.
func (g *Group) EmitLiveCounts(fp string, payload entity.CountsPayload) {
	g.doAsync(func() {
		if !g.countsGate.ShouldEmit("live:" + fp) {
			return
		}
		g.lastLiveCounts = &payload
		g.bcast.BroadcastEvent("live_counts", payload)
	})
}

func (g *Group) EmitPrematchCounts(fp string, payload entity.CountsPayload) {
	g.doAsync(func() {
		if !g.prematchCountsGate.ShouldEmit(fp) {
			return
		}
		g.lastPrematchCounts = &payload
		g.bcast.BroadcastEvent("prematch_counts", payload)
	})
}

// RelayCounts and RelayPrematchCounts fan the counts group's live/prematch
// views onto a live sport-games group via the counts→live-games back-edge,
// each gated on its own content fingerprint so an unchanged view is not
// relayed again, and retain each as the group's own attach-replay payload
// the same way EmitGames/EmitOdds do, so a client attaching to a live
// sport-games group sees counts/prematch_counts within one round trip
// instead of waiting for the next upstream counts delta.
func (g *Group) RelayCounts(payload entity.CountsPayload) {
	g.doAsync(func() {
		if !g.countsGate.ShouldEmit(entryFp(payload)) {
			return
		}
		g.lastRelayedCounts = &payload
		g.bcast.BroadcastEvent("counts", payload)
	})
}

func (g *Group) RelayPrematchCounts(payload entity.CountsPayload) {
	g.doAsync(func() {
		if !g.prematchCountsGate.ShouldEmit(entryFp(payload)) {
			return
		}
		g.lastPrematchCounts = &payload
		g.bcast.BroadcastEvent("prematch_counts", payload)
	})
}

// EmitGames applies the SportFp gate for a sport-games group.
func (g *Group) EmitGames(fp string, payload entity.GamesPayload) {
	g.doAsync(func() {
		if !g.gamesGate.ShouldEmit(fp) {
			return
		}
		g.lastGames = &payload
		g.bcast.BroadcastEvent("games", payload)
	})
}

// EmitGame applies the GameFp gate for a per-game group.
func (g *Group) EmitGame(fp string, payload entity.GamePayload) {
	g.doAsync(func() {
		if !g.gameGate.ShouldEmit(fp) {
			return
		}
		g.lastGame = &payload
		g.bcast.BroadcastEvent("game", payload)
	})
}

// UpsertOdds runs one game's odds through the bounded cache and, if it
// changed, appends it to batch. Blocks until the cache update completes, so
// a caller building up batch across many calls can safely pass it to
// EmitOddsBatch once every UpsertOdds call has returned.
func (g *Group) UpsertOdds(gameID string, outcomes []entity.OddsOutcome, marketsCount int, fp string, batch *[]entity.OddsGameUpdate) {
	g.do(func() {
		if g.odds == nil {
			return
		}
		if g.odds.Upsert(gameID, outcomes, marketsCount, fp) {
			*batch = append(*batch, entity.OddsGameUpdate{GameID: gameID, Odds: outcomes, MarketsCount: marketsCount})
		}
	})
}

// EmitOddsBatch sends a batch of per-game odds changes as one update,
// bounded to at most maxPerFrame games per frame.
func (g *Group) EmitOddsBatch(sportID, competitionID string, updates []entity.OddsGameUpdate, maxPerFrame int) {
	if len(updates) == 0 {
		return
	}
	g.doAsync(func() {
		for start := 0; start < len(updates); start += maxPerFrame {
			end := start + maxPerFrame
			if end > len(updates) {
				end = len(updates)
			}
			payload := entity.OddsPayload{SportID: sportID, CompetitionID: competitionID, Updates: updates[start:end]}
			g.lastOdds = &payload
			g.bcast.BroadcastEvent("odds", payload)
		}
	})
}

// EmitError surfaces a recovered error condition to current subscribers,
// as an event; a recovered error never tears the hub down.
func (g *Group) EmitError(message string) {
	g.doAsync(func() {
		g.bcast.BroadcastEvent("error", entity.ErrorPayload{Error: message})
	})
}

// ResetGates clears every fingerprint gate, forcing the next payload of
// each kind to be treated as first-after-attach. Used after a re-subscribe
// following an upstream disconnect.
func (g *Group) ResetGates() {
	g.doAsync(func() {
		g.gamesGate.Reset()
		g.countsGate.Reset()
		g.prematchCountsGate.Reset()
		g.gameGate.Reset()
	})
}

// RebuildOddsSnapshot recomputes the retained "odds" replay payload from
// the current cache contents.
func (g *Group) RebuildOddsSnapshot(sportID, competitionID string) {
	g.doAsync(func() {
		if g.odds == nil {
			return
		}
		payload := entity.OddsPayload{SportID: sportID, CompetitionID: competitionID, Updates: g.odds.Snapshot()}
		g.lastOdds = &payload
	})
}
