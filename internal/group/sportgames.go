// Sport-games group ingestion: the authoritative game list for one sport in
// one mode, plus the main-market odds carried alongside it. Live mode rides
// a persistent upstream subscription; prematch mode polls, since the
// upstream feed only pushes deltas for in-play events.

package group

import (
	"context"
	"sort"
	"strings"
	"time"

	"sporthub/internal/entity"
	"sporthub/internal/fingerprint"
)

const prematchPollInterval = 5 * time.Second

// featuredOddsWindow bounds how close to kickoff a prematch game must be to
// ride the featured-odds secondary subscription.
const featuredOddsWindow = 30 * time.Minute

func (m *Manager) startSportGames(ctx context.Context, g *Group) {
	if g.Key.Mode == entity.ModeLive {
		m.startLiveSportGames(ctx, g)
		return
	}
	go m.pollPrematchGames(g)
}

func (m *Manager) startLiveSportGames(ctx context.Context, g *Group) {
	result, err := m.session.Request(ctx, "subscribe_live_games", map[string]any{"sport_id": g.Key.SportID}, 0)
	if err != nil {
		g.EmitError("live games subscription failed")
		return
	}
	subID := gstr(result, "subscription_id")
	if subID == "" {
		g.EmitError("live games subscription returned no id")
		return
	}
	g.TrackSubscription(subID)

	initial := map[string]any{}
	if data, ok := result["data"].(map[string]any); ok {
		initial = data
	}

	m.registry.Register(subID, initial, func(accumulated map[string]any) {
		m.processSportGames(g, accumulated)
	})

	if len(initial) > 0 {
		m.processSportGames(g, initial)
	}
}

// pollPrematchGames re-queries the prematch snapshot on a fixed interval
// until the group empties out and is torn down; a failed upstream request
// is skipped and retried on the next tick.
// It also keeps a secondary featured-odds subscription pointed at whichever
// games are currently within featuredOddsWindow of kickoff, since the main
// prematch poll only refreshes odds for that batch every 5s and near-kickoff
// games need tighter odds freshness.
func (m *Manager) pollPrematchGames(g *Group) {
	ticker := time.NewTicker(prematchPollInterval)
	defer ticker.Stop()
	featured := &featuredOddsState{}
	for {
		if g.Stopped() {
			return
		}
		reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		result, err := m.session.Request(reqCtx, "query_prematch_games", map[string]any{"sport_id": g.Key.SportID}, 10*time.Second)
		cancel()
		if err == nil {
			data, _ := result["data"].(map[string]any)
			if data == nil {
				data = result
			}
			games := m.processSportGames(g, data)
			m.reconcileFeaturedOdds(g, games, featured)
		}
		<-ticker.C
	}
}

// processSportGames turns one accumulated (or polled) payload into a
// GamesPayload emission plus a batch of per-game odds updates, and returns
// the parsed, filtered games so callers can inspect them further (e.g. to
// pick out near-kickoff games for the featured-odds subscription).
func (m *Manager) processSportGames(g *Group, accumulated map[string]any) []entity.Game {
	unwrapped := fingerprint.Unwrap(accumulated)
	raws := fingerprint.ExtractGames(unwrapped)

	names := m.hier.Index()
	keep := KeepLive
	if g.Key.Mode == entity.ModePrematch {
		keep = KeepPrematch
	}

	games := make([]entity.Game, 0, len(raws))
	for _, raw := range raws {
		game := fingerprint.ParseGame(raw)
		if !keep(game) {
			continue
		}
		hydrateNames(&game, names)
		games = append(games, game)
	}

	payload := entity.GamesPayload{
		SportID:     g.Key.SportID,
		SportName:   names.Sports[g.Key.SportID],
		Data:        games,
		LastUpdated: time.Now().UnixMilli(),
	}
	g.EmitGames(fingerprint.SportFp(games), payload)
	m.emitOddsForGames(g, g.Key.SportID, "", games)
	return games
}

// emitOddsForGames runs main-market selection over games and emits the
// resulting per-game odds batch, shared by both the primary games poll and
// the featured-odds secondary subscription.
func (m *Manager) emitOddsForGames(g *Group, sportID, competitionID string, games []entity.Game) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	priority := m.priority.Get(ctx, sportID)

	var batch []entity.OddsGameUpdate
	for _, game := range games {
		market, ok := selectMainMarket(game.Markets, priority)
		if !ok {
			continue
		}
		outcomes := BuildOddsOutcomes(market)
		if outcomes == nil {
			continue
		}
		g.UpsertOdds(game.ID, outcomes, len(game.Markets), fingerprint.OddsFp(market), &batch)
	}
	g.EmitOddsBatch(sportID, competitionID, batch, maxOddsPerFrame)
	g.RebuildOddsSnapshot(sportID, competitionID)
}

// featuredOddsState tracks the currently-held featured-odds subscription so
// reconcileFeaturedOdds only re-subscribes when the near-kickoff game set
// actually changes.
type featuredOddsState struct {
	subID string
	ids   string // comma-joined, sorted game ids; used purely as a change key
}

// reconcileFeaturedOdds opens (or replaces) the secondary featured-odds
// subscription for whichever games in games are within featuredOddsWindow
// of kickoff. Near-kickoff odds move faster than the 5s snapshot poll
// refreshes them, so these games get their own push subscription on top.
func (m *Manager) reconcileFeaturedOdds(g *Group, games []entity.Game, state *featuredOddsState) {
	ids := nearKickoffGameIDs(games, time.Now().Unix())
	key := strings.Join(ids, ",")
	if key == state.ids {
		return
	}

	if state.subID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		m.registry.Unregister(state.subID)
		if _, err := m.session.Request(ctx, "unsubscribe", map[string]any{"subscription_id": state.subID}, 5*time.Second); err != nil {
			m.logger.Warn().Err(err).Msg("sport-games group: featured-odds unsubscribe failed, upstream will time it out")
		}
		cancel()
		state.subID = ""
	}
	state.ids = key
	if len(ids) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	result, err := m.session.Request(ctx, "subscribe_featured_odds", map[string]any{"sport_id": g.Key.SportID, "game_ids": ids}, 0)
	if err != nil {
		m.logger.Warn().Err(err).Msg("sport-games group: featured-odds subscription failed")
		return
	}
	subID := gstr(result, "subscription_id")
	if subID == "" {
		return
	}
	state.subID = subID
	g.TrackSubscription(subID)

	handle := func(accumulated map[string]any) {
		unwrapped := fingerprint.Unwrap(accumulated)
		raws := fingerprint.ExtractGames(unwrapped)
		names := m.hier.Index()
		featuredGames := make([]entity.Game, 0, len(raws))
		for _, raw := range raws {
			game := fingerprint.ParseGame(raw)
			hydrateNames(&game, names)
			featuredGames = append(featuredGames, game)
		}
		m.emitOddsForGames(g, g.Key.SportID, "", featuredGames)
	}

	initial := map[string]any{}
	if data, ok := result["data"].(map[string]any); ok {
		initial = data
	}
	m.registry.Register(subID, initial, handle)
	if len(initial) > 0 {
		handle(initial)
	}
}

// nearKickoffGameIDs returns the sorted ids of games that have not started
// yet but start within featuredOddsWindow of now, the eligibility rule for
// the featured-odds subscription.
func nearKickoffGameIDs(games []entity.Game, now int64) []string {
	cutoff := now + int64(featuredOddsWindow.Seconds())
	var ids []string
	for _, game := range games {
		if game.StartTS > now && game.StartTS <= cutoff {
			ids = append(ids, game.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

func hydrateNames(g *entity.Game, names entity.NameIndex) {
	if g.Sport == "" {
		g.Sport = names.Sports[g.SportID]
	}
	if g.Region == "" {
		g.Region = names.Regions[g.RegionID]
	}
	if g.Competition == "" {
		g.Competition = names.Competitions[g.CompetitionID]
	}
}
