// Game filtering and odds-market label resolution rules.

package group

import (
	"strings"

	"sporthub/internal/entity"
)

var finishMarkers = []string{"finished", "final", "ft", "ended", "closed"}

func containsFinishMarker(s string) bool {
	lower := strings.ToLower(s)
	for _, marker := range finishMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// isFinishedLive reports whether a live game's status fields indicate it
// has already concluded, using the same heuristic across every field the
// upstream might carry the marker in.
func isFinishedLive(g entity.Game) bool {
	fields := []string{g.ShowType, g.CurrentState, g.LastEvent, g.TextInfo}
	for _, f := range fields {
		if containsFinishMarker(f) {
			return true
		}
	}
	return false
}

// KeepLive filters the live sport-games feed: type 1 (in-play), not an
// outright, not finished, and not explicitly flagged not-live.
func KeepLive(g entity.Game) bool {
	if g.Type != 1 {
		return false
	}
	if isFinishedLive(g) {
		return false
	}
	if g.IsLive != nil && !*g.IsLive {
		return false
	}
	return true
}

// KeepPrematch filters the prematch sport-games feed.
func KeepPrematch(g entity.Game) bool {
	if g.VisibleInPre {
		return true
	}
	return g.Type == 0 || g.Type == 2
}

// footballLikeSports lists sport ids whose main-market priority follows the
// football-style ordering; every other sport uses the generic fallback.
var footballLikeSports = map[string]bool{
	"1": true, // soccer, in the upstream's numbering convention
}

// defaultMarketPriority returns the static fallback priority list for a
// sport, always appended after any dynamically-fetched list.
func defaultMarketPriority(sportID string) []string {
	if footballLikeSports[sportID] {
		return []string{"P1XP2", "W1XW2", "1X2", "MATCH_RESULT", "MATCHRESULT"}
	}
	return []string{"P1P2", "P1XP2", "W1W2", "W1XW2"}
}

// mergePriority prepends dynamic (deduplicated, order-preserving) ahead of
// the static fallback, without duplicate entries.
func mergePriority(dynamic, fallback []string) []string {
	seen := make(map[string]bool, len(dynamic)+len(fallback))
	out := make([]string, 0, len(dynamic)+len(fallback))
	for _, list := range [][]string{dynamic, fallback} {
		for _, t := range list {
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// selectMainMarket picks the first market in priority order that appears
// among the game's markets.
func selectMainMarket(markets []entity.Market, priority []string) (entity.Market, bool) {
	byType := make(map[string]entity.Market, len(markets))
	for _, m := range markets {
		byType[m.Type] = m
	}
	for _, t := range priority {
		if m, ok := byType[t]; ok {
			return m, true
		}
	}
	return entity.Market{}, false
}

// resolveLabel maps one market event to its odds label: direct type match,
// then name-based fallback (draw detection), then positional.
func resolveLabel(ev entity.MarketEvent, position, total int) string {
	switch strings.ToUpper(ev.Type) {
	case "P1":
		return "1"
	case "P2":
		return "2"
	case "X":
		return "X"
	}
	lowerName := strings.ToLower(ev.Name)
	if lowerName == "x" || strings.Contains(lowerName, "draw") {
		return "X"
	}
	if total == 3 {
		return [...]string{"1", "X", "2"}[position]
	}
	return [...]string{"1", "2"}[position]
}

// BuildOddsOutcomes converts a market's raw events into the labeled,
// ordered outcome list a subscriber receives, per the "1/2" or "1/X/2"
// contract.
func BuildOddsOutcomes(m entity.Market) []entity.OddsOutcome {
	events := m.Events
	if len(events) != 2 && len(events) != 3 {
		return nil
	}
	out := make([]entity.OddsOutcome, len(events))
	for i, ev := range events {
		out[i] = entity.OddsOutcome{
			Label: resolveLabel(ev, i, len(events)),
			Price: ev.Price,
		}
	}
	return out
}
