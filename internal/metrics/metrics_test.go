package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"sporthub/pkg/log"
)

func TestRollupCountsActiveGamesAndSubscribers(t *testing.T) {
	a := New(nil, log.New("test"))
	now := time.Now()

	a.RenewLease("g1", 3, true, now, time.Minute)
	a.RenewLease("g2", 0, false, now, time.Minute)

	rollup := a.Rollup(now)

	assert.Equal(t, 1, rollup.ActiveGames)
	assert.Equal(t, 3, rollup.ActiveSubscribers)
	assert.Equal(t, 1, rollup.UpstreamConnectedGames)
}

func TestRollupPrunesExpiredLeases(t *testing.T) {
	a := New(nil, log.New("test"))
	now := time.Now()

	a.RenewLease("g1", 2, true, now, time.Millisecond)

	rollup := a.Rollup(now.Add(time.Second))

	assert.Equal(t, 0, rollup.ActiveGames)
	assert.Equal(t, 0, rollup.ActiveSubscribers)
}

func TestRollingMessageCountWindow(t *testing.T) {
	a := New(nil, log.New("test"))
	now := time.Now()

	a.RecordMessage(now.Add(-90 * time.Second))
	a.RecordMessage(now.Add(-10 * time.Second))
	a.RecordMessage(now)

	rollup := a.Rollup(now)

	assert.Equal(t, int64(2), rollup.RollingMessages60s)
	assert.Equal(t, int64(3), rollup.TotalMessages)
}
