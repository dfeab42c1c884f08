// Counts group ingestion: a single upstream subscription carrying both
// live and prematch per-sport game counts, split into two independently
// gated events and relayed to every live sport-games group.

package group

import (
	"context"
	"sort"

	"sporthub/internal/entity"
	"sporthub/internal/fingerprint"
)

// startCounts opens the counts subscription and wires its delta stream to
// the group's two emit paths. Safe to call again after a reconnect; the
// group's own gates are reset first by the caller.
func (m *Manager) startCounts(ctx context.Context, g *Group) {
	result, err := m.session.Request(ctx, "subscribe_counts", nil, 0)
	if err != nil {
		g.EmitError("counts subscription failed")
		return
	}
	subID := gstr(result, "subscription_id")
	if subID == "" {
		g.EmitError("counts subscription returned no id")
		return
	}
	g.TrackSubscription(subID)

	initial := map[string]any{}
	if data, ok := result["data"].(map[string]any); ok {
		initial = data
	}

	m.registry.Register(subID, initial, func(accumulated map[string]any) {
		live, prematch := parseCounts(accumulated)
		liveFp := entryFp(live)
		prematchFp := entryFp(prematch)

		g.EmitLiveCounts(liveFp, live)
		g.EmitPrematchCounts(prematchFp, prematch)

		for _, sg := range m.liveSportGamesGroups() {
			sg.RelayCounts(live)
			sg.RelayPrematchCounts(prematch)
		}
	})

	if len(initial) > 0 {
		live, prematch := parseCounts(initial)
		g.EmitLiveCounts(entryFp(live), live)
		g.EmitPrematchCounts(entryFp(prematch), prematch)
	}
}

// parseCounts splits the accumulated counts document into its live and
// prematch views. The upstream document is keyed by sport id, each entry
// carrying a display name and separate live/prematch counters.
func parseCounts(accumulated map[string]any) (entity.CountsPayload, entity.CountsPayload) {
	sportsRaw, _ := accumulated["sports"].(map[string]any)
	var liveEntries, prematchEntries []entity.CountsEntry
	var liveTotal, prematchTotal int

	for _, raw := range sportsRaw {
		sport, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name := gstr(sport, "name")
		liveCount := gint(sport, "live_count")
		prematchCount := gint(sport, "prematch_count")
		if liveCount > 0 {
			liveEntries = append(liveEntries, entity.CountsEntry{Name: name, Count: liveCount})
			liveTotal += liveCount
		}
		if prematchCount > 0 {
			prematchEntries = append(prematchEntries, entity.CountsEntry{Name: name, Count: prematchCount})
			prematchTotal += prematchCount
		}
	}
	sort.Slice(liveEntries, func(i, j int) bool { return liveEntries[i].Name < liveEntries[j].Name })
	sort.Slice(prematchEntries, func(i, j int) bool { return prematchEntries[i].Name < prematchEntries[j].Name })

	return entity.CountsPayload{Sports: liveEntries, TotalGames: liveTotal},
		entity.CountsPayload{Sports: prematchEntries, TotalGames: prematchTotal}
}

func entryFp(p entity.CountsPayload) string {
	return fingerprint.CountsFp(p.Sports)
}
