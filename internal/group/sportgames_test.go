package group

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sporthub/internal/entity"
)

func TestNearKickoffGameIDsSelectsOnlyUpcomingWithinWindow(t *testing.T) {
	now := int64(1_000_000)
	games := []entity.Game{
		{ID: "already-started", StartTS: now - 10},
		{ID: "kicking-off-soon", StartTS: now + 60},
		{ID: "kicking-off-at-cutoff", StartTS: now + int64(featuredOddsWindow.Seconds())},
		{ID: "far-out", StartTS: now + int64(featuredOddsWindow.Seconds()) + 1},
	}

	ids := nearKickoffGameIDs(games, now)

	assert.Equal(t, []string{"kicking-off-at-cutoff", "kicking-off-soon"}, ids)
}

func TestNearKickoffGameIDsEmptyWhenNothingQualifies(t *testing.T) {
	now := int64(1_000_000)
	games := []entity.Game{
		{ID: "past", StartTS: now - 1},
		{ID: "distant", StartTS: now + int64(featuredOddsWindow.Seconds())*10},
	}

	assert.Empty(t, nearKickoffGameIDs(games, now))
}
