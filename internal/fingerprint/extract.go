// Game extraction from a normalised upstream payload.
//
// A game is extracted either (a) by walking sport -> region ->
// competition -> game using id-reference resolution across sibling maps, or
// (b) as a flat mapping keyed by game id, or (c) as a sequence.

package fingerprint

import "strconv"

// entityFields are the field names that, when present, mark a map value as a
// direct entity rather than an id reference into a sibling map.
var entityFields = []string{"name", "game", "competition", "market", "event"}

// resolveRef resolves value against sibling, which is the (possibly nil) map
// of the same key at one level up (e.g. all games, all competitions).
// A value is a direct entity when it already has an entity-shaped field. A
// map without one is looked up in sibling by its "id" field and otherwise
// returned as-is. Any other value is treated as an id to look up in
// sibling; otherwise the original key itself is tried as a last resort.
func resolveRef(key string, value any, sibling map[string]any) map[string]any {
	if m, ok := value.(map[string]any); ok {
		if isEntityShaped(m) {
			return m
		}
		// Not entity-shaped: it may still be a map keyed by an id field.
		if id, ok := m["id"].(string); ok && sibling != nil {
			if resolved, ok := sibling[id].(map[string]any); ok {
				return resolved
			}
		}
		return m
	}
	if id, ok := asString(value); ok && sibling != nil {
		if resolved, ok := sibling[id].(map[string]any); ok {
			return resolved
		}
	}
	if sibling != nil {
		if resolved, ok := sibling[key].(map[string]any); ok {
			return resolved
		}
	}
	return nil
}

func isEntityShaped(m map[string]any) bool {
	for _, f := range entityFields {
		if _, ok := m[f]; ok {
			return true
		}
	}
	return false
}

func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	default:
		return "", false
	}
}

// ExtractGames walks a normalised payload and returns every game map it can
// find, trying the three shapes in order: hierarchical (a), flat-by-id (b),
// then sequence (c).
func ExtractGames(payload map[string]any) []map[string]any {
	if games := extractHierarchical(payload); len(games) > 0 {
		return games
	}
	if games := extractFlat(payload); len(games) > 0 {
		return games
	}
	return extractSequence(payload)
}

func extractHierarchical(payload map[string]any) []map[string]any {
	sportsRaw, ok := payload["sport"]
	if !ok {
		sportsRaw, ok = payload["sports"]
	}
	if !ok {
		return nil
	}
	sportsSibling, _ := payload["sports"].(map[string]any)
	regionsSibling, _ := payload["regions"].(map[string]any)
	competitionsSibling, _ := payload["competitions"].(map[string]any)
	gamesSibling, _ := payload["games"].(map[string]any)

	var out []map[string]any
	walkAny(sportsRaw, func(sportKey string, sportVal any) {
		sport := resolveRef(sportKey, sportVal, sportsSibling)
		if sport == nil {
			return
		}
		regionRaw, ok := sport["region"]
		if !ok {
			regionRaw = sport["regions"]
		}
		walkAny(regionRaw, func(regionKey string, regionVal any) {
			region := resolveRef(regionKey, regionVal, regionsSibling)
			if region == nil {
				return
			}
			compRaw, ok := region["competition"]
			if !ok {
				compRaw = region["competitions"]
			}
			walkAny(compRaw, func(compKey string, compVal any) {
				comp := resolveRef(compKey, compVal, competitionsSibling)
				if comp == nil {
					return
				}
				gameRaw, ok := comp["game"]
				if !ok {
					gameRaw = comp["games"]
				}
				walkAny(gameRaw, func(gameKey string, gameVal any) {
					game := resolveRef(gameKey, gameVal, gamesSibling)
					if game != nil {
						out = append(out, game)
					}
				})
			})
		})
	})
	return out
}

func extractFlat(payload map[string]any) []map[string]any {
	gamesRaw, ok := payload["games"]
	if !ok {
		return nil
	}
	gamesMap, ok := gamesRaw.(map[string]any)
	if !ok {
		return nil
	}
	var out []map[string]any
	for _, v := range gamesMap {
		if m, ok := v.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func extractSequence(payload map[string]any) []map[string]any {
	gamesRaw, ok := payload["games"]
	if !ok {
		gamesRaw = payload["data"]
	}
	seq, ok := gamesRaw.([]any)
	if !ok {
		return nil
	}
	var out []map[string]any
	for _, v := range seq {
		if m, ok := v.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// walkAny calls fn once per entry of v whether v is a map[string]any (key is
// the map key) or a []any (key is the decimal index).
func walkAny(v any, fn func(key string, val any)) {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			fn(k, val)
		}
	case []any:
		for i, val := range t {
			fn(strconv.Itoa(i), val)
		}
	}
}
