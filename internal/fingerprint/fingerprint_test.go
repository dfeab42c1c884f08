package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sporthub/internal/entity"
)

func TestMergeDeltaIdempotence(t *testing.T) {
	accum := map[string]any{
		"score": "1-0",
		"markets": map[string]any{
			"m1": map[string]any{"id": "m1", "type": "1X2"},
		},
	}
	delta := map[string]any{"score": "1-0"}

	before := MergeDelta(clone(accum), delta)
	after := MergeDelta(clone(before), delta)

	assert.Equal(t, before, after)
}

func TestMergeDeltaDeletesOnNull(t *testing.T) {
	accum := map[string]any{"score": "1-0", "clock": "45:00"}
	delta := map[string]any{"clock": nil}

	result := MergeDelta(accum, delta)

	_, exists := result["clock"]
	assert.False(t, exists)
	assert.Equal(t, "1-0", result["score"])
}

func TestMergeDeltaRecursesIntoSubMaps(t *testing.T) {
	accum := map[string]any{
		"info": map[string]any{"current_game_state": "live", "period": "1"},
	}
	delta := map[string]any{
		"info": map[string]any{"period": "2"},
	}

	result := MergeDelta(accum, delta)

	info := result["info"].(map[string]any)
	assert.Equal(t, "live", info["current_game_state"])
	assert.Equal(t, "2", info["period"])
}

func TestParseGameIsOrderPreservingAndIdempotent(t *testing.T) {
	raw := map[string]any{
		"id":            "g1",
		"sport_id":      "1",
		"team1_name":    "A",
		"team2_name":    "B",
		"markets_count": float64(2),
		"markets": []any{
			map[string]any{"id": "m2", "type": "OU", "events": []any{}},
			map[string]any{"id": "m1", "type": "1X2", "events": []any{}},
		},
	}

	first := ParseGame(raw)
	second := ParseGame(raw)

	assert.Equal(t, first, second)
	assert.Equal(t, "m2", first.Markets[0].ID)
	assert.Equal(t, "m1", first.Markets[1].ID)
}

func TestGameFpChangesOnPriceChange(t *testing.T) {
	g1 := entity.Game{Markets: []entity.Market{{
		ID: "m1", Type: "1X2", DisplayKey: "1x2",
		Events: []entity.MarketEvent{{ID: "e1", Order: 0, Price: 1.50}},
	}}}
	g2 := g1
	g2.Markets = []entity.Market{{
		ID: "m1", Type: "1X2", DisplayKey: "1x2",
		Events: []entity.MarketEvent{{ID: "e1", Order: 0, Price: 1.55}},
	}}

	assert.NotEqual(t, GameFp(g1), GameFp(g2))
}

func TestGameFpStableUnderMarketReordering(t *testing.T) {
	events := []entity.MarketEvent{{ID: "e1", Order: 0, Price: 1.5}}
	a := entity.Game{Markets: []entity.Market{
		{ID: "m1", Type: "1X2", Events: events},
		{ID: "m2", Type: "OU", Events: events},
	}}
	b := entity.Game{Markets: []entity.Market{
		{ID: "m2", Type: "OU", Events: events},
		{ID: "m1", Type: "1X2", Events: events},
	}}

	assert.Equal(t, GameFp(a), GameFp(b))
}

func TestCountsFpSortsByName(t *testing.T) {
	a := CountsFp([]entity.CountsEntry{{Name: "soccer", Count: 3}, {Name: "tennis", Count: 1}})
	b := CountsFp([]entity.CountsEntry{{Name: "tennis", Count: 1}, {Name: "soccer", Count: 3}})

	assert.Equal(t, a, b)
}

func TestExtractGamesFlatShape(t *testing.T) {
	payload := map[string]any{
		"games": map[string]any{
			"g1": map[string]any{"id": "g1"},
			"g2": map[string]any{"id": "g2"},
		},
	}

	games := ExtractGames(payload)

	assert.Len(t, games, 2)
}

func TestExtractGamesSequenceShape(t *testing.T) {
	payload := map[string]any{
		"data": []any{
			map[string]any{"id": "g1"},
			map[string]any{"id": "g2"},
		},
	}

	games := ExtractGames(payload)

	assert.Len(t, games, 2)
}

func TestUnwrapPeelsDataLayers(t *testing.T) {
	raw := map[string]any{"data": map[string]any{"data": map[string]any{"games": []any{}}}}

	unwrapped := Unwrap(raw)

	_, ok := unwrapped["games"]
	assert.True(t, ok)
}

func clone(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
