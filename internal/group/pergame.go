// Per-game group ingestion: one upstream subscription scoped to a single
// game id, carrying its full live detail.

package group

import (
	"context"
	"time"

	"sporthub/internal/entity"
	"sporthub/internal/fingerprint"
)

// perGameFallbackPollInterval mirrors the sport-games group's prematch poll
// cadence: when the upstream push subscription can't be established, a
// per-game group falls back to polling rather than sitting stale until the
// next upstream-wide reconnect.
const perGameFallbackPollInterval = 5 * time.Second

func (m *Manager) startPerGame(ctx context.Context, g *Group) {
	if m.trySubscribeGame(g) {
		return
	}
	g.EmitError("game subscription failed, falling back to polling")
	go m.pollPerGameFallback(g)
}

// pollPerGameFallback re-queries the single game snapshot on a fixed
// interval, exactly the shape of the sport-games group's prematch poll,
// used when the push subscription for this game never came up. Each tick
// also retries the real subscribe; a successful one hands the group back to
// push delivery and ends the fallback loop.
func (m *Manager) pollPerGameFallback(g *Group) {
	ticker := time.NewTicker(perGameFallbackPollInterval)
	defer ticker.Stop()
	for {
		if g.Stopped() {
			return
		}
		if m.trySubscribeGame(g) {
			return
		}
		reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		result, err := m.session.Request(reqCtx, "query_game", map[string]any{"game_id": g.Key.GameID}, 10*time.Second)
		cancel()
		if err == nil {
			data, _ := result["data"].(map[string]any)
			if data == nil {
				data = result
			}
			m.processPerGame(g, data)
		}
		<-ticker.C
	}
}

// trySubscribeGame attempts the push subscription for g and, on success,
// wires it up exactly as startPerGame does. Reports whether it succeeded.
func (m *Manager) trySubscribeGame(g *Group) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := m.session.Request(ctx, "subscribe_game", map[string]any{"game_id": g.Key.GameID}, 0)
	if err != nil {
		return false
	}
	subID := gstr(result, "subscription_id")
	if subID == "" {
		return false
	}
	g.TrackSubscription(subID)
	initial := map[string]any{}
	if data, ok := result["data"].(map[string]any); ok {
		initial = data
	}
	m.registry.Register(subID, initial, func(accumulated map[string]any) {
		m.processPerGame(g, accumulated)
	})
	if len(initial) > 0 {
		m.processPerGame(g, initial)
	}
	return true
}

func (m *Manager) processPerGame(g *Group, accumulated map[string]any) {
	unwrapped := fingerprint.Unwrap(accumulated)
	raw := unwrapped
	if games := fingerprint.ExtractGames(unwrapped); len(games) > 0 {
		raw = games[0]
	}
	game := fingerprint.ParseGame(raw)
	if game.ID == "" {
		game.ID = g.Key.GameID
	}
	hydrateNames(&game, m.hier.Index())

	payload := entity.GamePayload{
		GameID:      g.Key.GameID,
		Data:        game,
		LastUpdated: nowMillis(),
	}
	g.EmitGame(fingerprint.GameFp(game), payload)
}
