package upstream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRingCountSinceExact(t *testing.T) {
	r := newRing()
	base := time.Now()
	r.record(base.Add(-90 * time.Second))
	r.record(base.Add(-30 * time.Second))
	r.record(base.Add(-10 * time.Second))

	count := r.countSince(base.Add(-60 * time.Second))

	assert.Equal(t, int64(2), count)
}

func TestRingCountSinceBoundedByCapacity(t *testing.T) {
	r := newRing()
	now := time.Now()
	for i := 0; i < ringCapacity+50; i++ {
		r.record(now)
	}

	count := r.countSince(now.Add(-60 * time.Second))

	assert.Equal(t, int64(ringCapacity), count)
}

func TestRingCountSinceEmpty(t *testing.T) {
	r := newRing()
	assert.Equal(t, int64(0), r.countSince(time.Now()))
}
