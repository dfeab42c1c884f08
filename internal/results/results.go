// Pass-through results endpoints: finished-competition/game data that never
// needs fan-out, so it is fetched from upstream and handed back as-is
// rather than routed through a Group.

package results

import (
	"context"
	"time"

	"sporthub/internal/upstream"
)

const requestTimeout = 10 * time.Second

// Service answers the /results/* endpoints directly against the upstream
// session's request/response channel, bypassing groups and subscriptions
// entirely since results are a one-shot query, not a live feed.
type Service struct {
	session *upstream.Session
}

func New(session *upstream.Session) *Service {
	return &Service{session: session}
}

// Competitions fetches finished competitions, optionally bounded by a
// from/to date range (upstream's own format; passed through unvalidated).
func (s *Service) Competitions(ctx context.Context, from, to string) (map[string]any, error) {
	params := map[string]any{}
	addRange(params, from, to)
	return s.query(ctx, "query_results_competitions", params)
}

// GamesBySport fetches finished games for one sport, optionally bounded by
// a from/to date range.
func (s *Service) GamesBySport(ctx context.Context, sportID, from, to string) (map[string]any, error) {
	params := map[string]any{"sport_id": sportID}
	addRange(params, from, to)
	return s.query(ctx, "query_results_games", params)
}

func addRange(params map[string]any, from, to string) {
	if from != "" {
		params["from"] = from
	}
	if to != "" {
		params["to"] = to
	}
}

func (s *Service) Game(ctx context.Context, gameID string) (map[string]any, error) {
	return s.query(ctx, "query_results_game", map[string]any{"game_id": gameID})
}

func (s *Service) query(ctx context.Context, cmd string, params map[string]any) (map[string]any, error) {
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	return s.session.Request(reqCtx, cmd, params, requestTimeout)
}
