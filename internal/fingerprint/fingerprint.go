// Deterministic, non-cryptographic content fingerprints.
//
// These are value identities used purely for change detection: a collision
// merely skips an emission, it never causes a duplicate one, so a fast
// non-cryptographic string join is preferred over hashing.

package fingerprint

import (
	"fmt"
	"sort"
	"strings"

	"sporthub/internal/entity"
)

// eventsConcat orders a market's events by (order asc, id lex) and joins
// their id:price:base triples with commas.
func eventsConcat(events []entity.MarketEvent) string {
	sorted := make([]entity.MarketEvent, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Order != sorted[j].Order {
			return sorted[i].Order < sorted[j].Order
		}
		return sorted[i].ID < sorted[j].ID
	})
	parts := make([]string, len(sorted))
	for i, e := range sorted {
		parts[i] = fmt.Sprintf("%s:%s:%s", e.ID, trimFloat(e.Price), trimFloat(e.Base))
	}
	return strings.Join(parts, ",")
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%.4f", f)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

// marketToken produces one market's contribution to a GameFp/OddsFp:
// mid|id|type|display_key|eventsConcat.
func marketToken(m entity.Market) string {
	return strings.Join([]string{m.ID, m.ID, m.Type, m.DisplayKey, eventsConcat(m.Events)}, "|")
}

// GameFp is stable over equivalent content: markets sorted by id, each
// contributing marketToken.
func GameFp(g entity.Game) string {
	tokens := make([]string, len(g.Markets))
	for i, m := range g.Markets {
		tokens[i] = marketToken(m)
	}
	sort.Strings(tokens)
	return strings.Join(tokens, ";")
}

// OddsFp is one market's contribution, used standalone when comparing a
// single market against its cached counterpart.
func OddsFp(m entity.Market) string {
	return marketToken(m)
}

// SportFp is stable over a sport-games snapshot: per game
// (id|markets_count|text_info|score|phase|clock|added_minutes), sorted
// ascending and joined.
func SportFp(games []entity.Game) string {
	tokens := make([]string, len(games))
	for i, g := range games {
		tokens[i] = strings.Join([]string{
			g.ID,
			fmt.Sprintf("%d", g.MarketsCount),
			g.TextInfo,
			g.Score,
			g.Phase,
			g.Clock,
			g.AddedMinutes,
		}, "|")
	}
	sort.Strings(tokens)
	return strings.Join(tokens, ";")
}

// CountsFp is a list of (name:count) sorted by name.
func CountsFp(entries []entity.CountsEntry) string {
	tokens := make([]string, len(entries))
	for i, e := range entries {
		tokens[i] = fmt.Sprintf("%s:%d", e.Name, e.Count)
	}
	sort.Strings(tokens)
	return strings.Join(tokens, ";")
}
