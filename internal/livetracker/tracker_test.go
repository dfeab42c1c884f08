package livetracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"sporthub/internal/entity"
	"sporthub/internal/metrics"
	"sporthub/pkg/log"
)

func testConfig() Config {
	return Config{URL: "ws://127.0.0.1:1/no-such-server", Partner: "p1", SiteRef: "s1"}
}

func newTestClient(id string) *entity.Client {
	return &entity.Client{ID: id, Send: make(chan entity.Frame, 8), Done: make(chan struct{})}
}

func TestManagerAttachCreatesTrackerForNewGame(t *testing.T) {
	m := NewManager(testConfig(), metrics.New(nil, log.New("test")), log.New("test"))
	defer m.CloseAll()

	m.Attach("g1", newTestClient("c1"))

	assert.Equal(t, 1, m.Count())
}

func TestManagerAttachReusesTrackerForSameGame(t *testing.T) {
	m := NewManager(testConfig(), metrics.New(nil, log.New("test")), log.New("test"))
	defer m.CloseAll()

	m.Attach("g1", newTestClient("c1"))
	m.Attach("g1", newTestClient("c2"))

	assert.Equal(t, 1, m.Count())
}

func TestManagerDetachOnUnknownGameIsNoop(t *testing.T) {
	m := NewManager(testConfig(), metrics.New(nil, log.New("test")), log.New("test"))
	defer m.CloseAll()

	assert.NotPanics(t, func() { m.Detach("no-such-game", "c1") })
}

func TestManagerDetachEventuallyTearsDownEmptyTracker(t *testing.T) {
	m := NewManager(testConfig(), metrics.New(nil, log.New("test")), log.New("test"))
	defer m.CloseAll()

	c := newTestClient("c1")
	m.Attach("g1", c)
	m.Detach("g1", c.ID)

	deadline := time.Now().Add(graceDuration + 500*time.Millisecond)
	for time.Now().Before(deadline) {
		if m.Count() == 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("tracker was not torn down after grace period")
}

func TestManagerCloseAllStopsEveryTracker(t *testing.T) {
	m := NewManager(testConfig(), metrics.New(nil, log.New("test")), log.New("test"))

	m.Attach("g1", newTestClient("c1"))
	m.Attach("g2", newTestClient("c2"))

	m.CloseAll()

	assert.Equal(t, 0, m.Count())
}
