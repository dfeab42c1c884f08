package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegisterAndOnDeltaMergesIntoListener(t *testing.T) {
	r := New()
	var got map[string]any
	r.Register("sub1", map[string]any{"a": float64(1)}, func(accumulated map[string]any) {
		got = accumulated
	})

	r.OnDelta("sub1", map[string]any{"b": float64(2)})

	assert.Equal(t, float64(1), got["a"])
	assert.Equal(t, float64(2), got["b"])
}

func TestOnDeltaIgnoresUnknownSubscription(t *testing.T) {
	r := New()
	called := false
	r.Register("sub1", nil, func(accumulated map[string]any) { called = true })

	r.OnDelta("sub-other", map[string]any{"x": 1})

	assert.False(t, called)
}

func TestReRegisterReplacesPriorEntry(t *testing.T) {
	r := New()
	r.Register("sub1", map[string]any{"a": 1}, nil)
	r.Register("sub1", map[string]any{"a": 2}, nil)

	snap, ok := r.Snapshot("sub1")
	assert.True(t, ok)
	assert.Equal(t, 2, snap["a"])
}

func TestUnregisterRemovesSubscription(t *testing.T) {
	r := New()
	r.Register("sub1", nil, nil)
	r.Unregister("sub1")

	_, ok := r.Snapshot("sub1")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestResetClearsEverySubscription(t *testing.T) {
	r := New()
	r.Register("sub1", nil, nil)
	r.Register("sub2", nil, nil)
	assert.Equal(t, 2, r.Len())

	r.Reset()

	assert.Equal(t, 0, r.Len())
}

func TestSnapshotReturnsAccumulatedState(t *testing.T) {
	r := New()
	r.Register("sub1", map[string]any{"a": 1}, nil)
	r.OnDelta("sub1", map[string]any{"b": 2})

	snap, ok := r.Snapshot("sub1")
	assert.True(t, ok)
	assert.Equal(t, 1, snap["a"])
	assert.Equal(t, 2, snap["b"])
}
