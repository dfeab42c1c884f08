// Competition-odds group ingestion: main-market odds for every game in one
// competition, independent of which sport-games group (if any) also
// happens to cover those games.

package group

import (
	"context"
	"time"

	"sporthub/internal/entity"
	"sporthub/internal/fingerprint"
)

func (m *Manager) startCompetitionOdds(ctx context.Context, g *Group) {
	result, err := m.session.Request(ctx, "subscribe_competition_odds", map[string]any{
		"competition_id": g.Key.CompetitionID,
		"sport_id":       g.Key.SportID,
		"mode":           g.Key.Mode.String(),
	}, 0)
	if err != nil {
		g.EmitError("competition odds subscription failed")
		return
	}
	subID := gstr(result, "subscription_id")
	if subID == "" {
		g.EmitError("competition odds subscription returned no id")
		return
	}
	g.TrackSubscription(subID)

	initial := map[string]any{}
	if data, ok := result["data"].(map[string]any); ok {
		initial = data
	}

	m.registry.Register(subID, initial, func(accumulated map[string]any) {
		m.processCompetitionOdds(g, accumulated)
	})

	if len(initial) > 0 {
		m.processCompetitionOdds(g, initial)
	}
}

func (m *Manager) processCompetitionOdds(g *Group, accumulated map[string]any) {
	unwrapped := fingerprint.Unwrap(accumulated)
	raws := fingerprint.ExtractGames(unwrapped)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	priority := m.priority.Get(ctx, g.Key.SportID)

	var batch []entity.OddsGameUpdate
	for _, raw := range raws {
		game := fingerprint.ParseGame(raw)
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
	g.EmitOddsBatch(g.Key.SportID, g.Key.CompetitionID, batch, maxOddsPerFrame)
	g.RebuildOddsSnapshot(g.Key.SportID, g.Key.CompetitionID)
}
