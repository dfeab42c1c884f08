// Manager owns the group table: lifecycle of the five group kinds, grace
// teardown, and re-subscribe on upstream reconnect.

package group

import (
	"context"
	"sync"
	"time"

	"sporthub/internal/config"
	"sporthub/internal/entity"
	"sporthub/internal/hierarchy"
	"sporthub/internal/metrics"
	"sporthub/internal/registry"
	"sporthub/internal/upstream"
	"sporthub/pkg/log"
)

// maxOddsPerFrame bounds how many game odds updates one "odds" frame
// carries, so a prematch fan-out of hundreds of games never produces an
// unbounded single event.
const maxOddsPerFrame = 30

// Manager coordinates every live Group against the single upstream session
// and subscription registry shared by the whole hub.
type Manager struct {
	mu     sync.Mutex
	groups map[entity.GroupKey]*Group

	session  *upstream.Session
	registry *registry.Registry
	hier     *hierarchy.Cache
	agg      *metrics.Aggregator
	priority *marketPriorityCache
	cfg      config.Config
	logger   log.Logger
}

// NewManager wires a Manager against the shared upstream session and
// supporting caches. priorityFetcher may be nil, in which case the static
// fallback market priority list is always used.
func NewManager(session *upstream.Session, reg *registry.Registry, hier *hierarchy.Cache, agg *metrics.Aggregator, priorityFetcher PriorityFetcher, cfg config.Config, logger log.Logger) *Manager {
	m := &Manager{
		groups:   make(map[entity.GroupKey]*Group),
		session:  session,
		registry: reg,
		hier:     hier,
		agg:      agg,
		priority: newMarketPriorityCache(priorityFetcher),
		cfg:      cfg,
		logger:   logger,
	}
	session.OnDisconnect(m.onUpstreamDisconnect)
	return m
}

// getOrCreate returns the group for key, creating it if this is the first
// attach, and reports whether it was created; the caller starts the new
// group's ingest pipeline. withOdds controls whether the new group gets a
// bounded odds cache.
func (m *Manager) getOrCreate(ctx context.Context, key entity.GroupKey, withOdds bool) (*Group, bool) {
	m.mu.Lock()
	g, ok := m.groups[key]
	if ok {
		m.mu.Unlock()
		return g, false
	}
	g = newGroup(key, m.logger, m.cfg.HeartbeatInterval, m.cfg.GraceDuration, m.onGroupEmpty, withOdds)
	m.groups[key] = g
	m.mu.Unlock()
	return g, true
}

// onGroupEmpty is the Group callback run once grace expires with zero
// subscribers: cancel every upstream subscription this group held and drop
// it from the table.
func (m *Manager) onGroupEmpty(g *Group) {
	m.mu.Lock()
	delete(m.groups, g.Key)
	counts, hasCounts := m.groups[entity.GroupKey{Kind: entity.GroupCounts}]
	m.mu.Unlock()

	if g.Key.Kind == entity.GroupSportGames && g.Key.Mode == entity.ModeLive && hasCounts {
		counts.RemoveDependent()
	}

	// Runs on g's own goroutine, so its ids are read directly: going
	// through g.SubscriptionIDs (g.do) here would wait on this goroutine.
	for subID := range g.subscriptionIDs {
		m.registry.Unregister(subID)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if _, err := m.session.Request(ctx, "unsubscribe", map[string]any{"subscription_id": subID}, 5*time.Second); err != nil {
			m.logger.Warn().Err(err).Msg("group manager: unsubscribe on teardown failed, upstream will time it out")
		}
		cancel()
	}
	g.Close()
	m.logger.Info().Msgf("group manager: removed %s group after grace", g.Key.Kind)
}

// onUpstreamDisconnect runs on the upstream session's disconnect callback
// (possibly concurrently with normal operation): every group with
// subscribers schedules a re-subscribe, and every fingerprint gate is
// reset so the first post-reconnect payload is always treated as fresh.
func (m *Manager) onUpstreamDisconnect() {
	m.registry.Reset()

	m.mu.Lock()
	groups := make([]*Group, 0, len(m.groups))
	for _, g := range m.groups {
		groups = append(groups, g)
	}
	m.mu.Unlock()

	for _, g := range groups {
		g.ResetGates()
		if g.SubscriberCount() == 0 {
			continue
		}
		go m.resubscribe(g)
	}
}

// resubscribe re-establishes whatever upstream subscriptions a group's kind
// requires. Errors are logged and surfaced to the group's subscribers; the
// group itself is left in place so the next successful reconnect can retry.
func (m *Manager) resubscribe(g *Group) {
	ctx, cancel := context.WithTimeout(context.Background(), upstream.ConnectTimeout)
	defer cancel()
	if err := m.session.Ensure(ctx); err != nil {
		g.EmitError("upstream reconnect failed")
		return
	}
	switch g.Key.Kind {
	case entity.GroupCounts:
		m.startCounts(ctx, g)
	case entity.GroupSportGames:
		m.startSportGames(ctx, g)
	case entity.GroupPerGame:
		m.startPerGame(ctx, g)
	case entity.GroupCompetitionOdds:
		m.startCompetitionOdds(ctx, g)
	}
}

// Detach removes a client from key's group, if it currently exists.
func (m *Manager) Detach(key entity.GroupKey, clientID string) {
	m.mu.Lock()
	g, ok := m.groups[key]
	m.mu.Unlock()
	if ok {
		g.Detach(clientID)
	}
}

// AttachCounts attaches c to the singleton counts group, starting its
// upstream subscriptions on first use.
func (m *Manager) AttachCounts(ctx context.Context, c *entity.Client) {
	key := entity.GroupKey{Kind: entity.GroupCounts}
	g, isNew := m.getOrCreate(ctx, key, false)
	if isNew {
		go m.startCounts(ctx, g)
	}
	g.Attach(c)
}

// AttachSportGames attaches c to the sport-games group for (mode, sportID).
func (m *Manager) AttachSportGames(ctx context.Context, mode entity.Mode, sportID string, c *entity.Client) {
	key := entity.GroupKey{Kind: entity.GroupSportGames, Mode: mode, SportID: sportID}
	g, isNew := m.getOrCreate(ctx, key, true)
	if isNew {
		go m.startSportGames(ctx, g)
		// a live sport-games group rides the counts→live-games back-edge
		// for as long as it exists, whether or not it currently has any
		// direct counts-stream subscribers of its own.
		if mode == entity.ModeLive {
			countsKey := entity.GroupKey{Kind: entity.GroupCounts}
			counts, countsIsNew := m.getOrCreate(ctx, countsKey, false)
			if countsIsNew {
				go m.startCounts(ctx, counts)
			}
			counts.AddDependent()
		}
	}
	g.Attach(c)
}

// AttachPerGame attaches c to the per-game group for gameID.
func (m *Manager) AttachPerGame(ctx context.Context, gameID string, c *entity.Client) {
	key := entity.GroupKey{Kind: entity.GroupPerGame, GameID: gameID}
	g, isNew := m.getOrCreate(ctx, key, false)
	if isNew {
		go m.startPerGame(ctx, g)
	}
	g.Attach(c)
}

// AttachCompetitionOdds attaches c to the competition-odds group for
// (mode, competitionID, sportID).
func (m *Manager) AttachCompetitionOdds(ctx context.Context, mode entity.Mode, competitionID, sportID string, c *entity.Client) {
	key := entity.GroupKey{Kind: entity.GroupCompetitionOdds, Mode: mode, CompetitionID: competitionID, SportID: sportID}
	g, isNew := m.getOrCreate(ctx, key, true)
	if isNew {
		go m.startCompetitionOdds(ctx, g)
	}
	g.Attach(c)
}

func (m *Manager) mustGet(key entity.GroupKey) *Group {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.groups[key]
}

// liveSportGamesGroups returns every currently-live-mode sport-games group,
// used by the counts→live-games back-edge fan-out.
func (m *Manager) liveSportGamesGroups() []*Group {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Group
	for key, g := range m.groups {
		if key.Kind == entity.GroupSportGames && key.Mode == entity.ModeLive {
			out = append(out, g)
		}
	}
	return out
}
