package edge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultPayloadUnwrapsDataField(t *testing.T) {
	raw := map[string]any{"data": map[string]any{"foo": "bar"}}
	assert.Equal(t, map[string]any{"foo": "bar"}, resultPayload(raw))
}

func TestResultPayloadFallsBackToRawWithoutDataField(t *testing.T) {
	raw := map[string]any{"foo": "bar"}
	assert.Equal(t, raw, resultPayload(raw))
}

func TestResultListFindsTopLevelKey(t *testing.T) {
	raw := map[string]any{"games": []any{"g1", "g2"}}
	assert.Equal(t, []any{"g1", "g2"}, resultList(raw, "games"))
}

func TestResultListFindsNestedUnderData(t *testing.T) {
	raw := map[string]any{"data": map[string]any{"games": []any{"g1"}}}
	assert.Equal(t, []any{"g1"}, resultList(raw, "games"))
}

func TestResultListDefaultsToEmpty(t *testing.T) {
	raw := map[string]any{}
	assert.Equal(t, []any{}, resultList(raw, "games"))
}
