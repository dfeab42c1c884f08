package edge

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"sporthub/internal/config"
	"sporthub/internal/entity"
	"sporthub/internal/group"
	"sporthub/internal/hierarchy"
	"sporthub/internal/livetracker"
	"sporthub/internal/metrics"
	"sporthub/internal/registry"
	"sporthub/internal/results"
	"sporthub/internal/testutil"
	"sporthub/internal/upstream"
	"sporthub/pkg/log"
)

var registerOnce sync.Once

type fakeHierarchyFetcher struct{}

func (fakeHierarchyFetcher) FetchHierarchy(ctx context.Context) (entity.HierarchyDoc, error) {
	return entity.HierarchyDoc{}, nil
}

func setupRoutes() {
	registerOnce.Do(func() {
		logger := log.New("test")
		reg := registry.New()
		session := upstream.NewSession("wss://upstream.invalid/ws", "p1", "en", reg, logger)
		agg := metrics.New(nil, logger)
		hier := hierarchy.New(fakeHierarchyFetcher{}, nil, logger)
		groups := group.NewManager(session, reg, hier, agg, nil, config.Config{
			GraceDuration:     time.Second,
			HeartbeatInterval: time.Hour,
		}, logger)
		tracker := livetracker.NewManager(livetracker.Config{URL: "ws://127.0.0.1:1/none"}, agg, logger)

		RegisterRoutes(testutil.MockRouter(), Deps{
			Groups:  groups,
			Tracker: tracker,
			Hier:    hier,
			Agg:     agg,
			Session: session,
			Results: results.New(session),
			Logger:  logger,
			Started: time.Now(),
		})
	})
}

func TestHealthEndpointReturnsOK(t *testing.T) {
	setupRoutes()
	router := testutil.MockRouter()
	testutil.ExecuteAPITest(log.New("test"), t, router, testutil.RequestAPITest{
		Method:       http.MethodGet,
		Path:         "/health",
		WantResponse: []int{http.StatusOK},
	})
}

func TestHierarchyEndpointReturnsOK(t *testing.T) {
	setupRoutes()
	router := testutil.MockRouter()
	testutil.ExecuteAPITest(log.New("test"), t, router, testutil.RequestAPITest{
		Method:       http.MethodGet,
		Path:         "/hierarchy",
		WantResponse: []int{http.StatusOK},
	})
}

func TestSportGamesStreamRequiresSportID(t *testing.T) {
	setupRoutes()
	router := testutil.MockRouter()
	testutil.ExecuteAPITest(log.New("test"), t, router, testutil.RequestAPITest{
		Method:       http.MethodGet,
		Path:         "/live-stream",
		WantResponse: []int{http.StatusBadRequest},
	})
}

func TestPerGameStreamRequiresGameID(t *testing.T) {
	setupRoutes()
	router := testutil.MockRouter()
	testutil.ExecuteAPITest(log.New("test"), t, router, testutil.RequestAPITest{
		Method:       http.MethodGet,
		Path:         "/live-game-stream",
		WantResponse: []int{http.StatusBadRequest},
	})
}

func TestCompetitionOddsStreamRequiresBothIDs(t *testing.T) {
	setupRoutes()
	router := testutil.MockRouter()
	testutil.ExecuteAPITest(log.New("test"), t, router, testutil.RequestAPITest{
		Method:       http.MethodGet,
		Path:         "/competition-odds-stream?sportId=1",
		WantResponse: []int{http.StatusBadRequest},
	})
}

func TestResultsCompetitionsPropagatesUpstreamFailure(t *testing.T) {
	setupRoutes()
	router := testutil.MockRouter()
	testutil.ExecuteAPITest(log.New("test"), t, router, testutil.RequestAPITest{
		Method:       http.MethodGet,
		Path:         "/results/competitions?from=2026-01-01&to=2026-01-31",
		WantResponse: []int{http.StatusInternalServerError},
	})
}

func TestResultsGamesPropagatesUpstreamFailure(t *testing.T) {
	setupRoutes()
	router := testutil.MockRouter()
	testutil.ExecuteAPITest(log.New("test"), t, router, testutil.RequestAPITest{
		Method:       http.MethodGet,
		Path:         "/results/games/1",
		WantResponse: []int{http.StatusInternalServerError},
	})
}

func TestLiveTrackerStreamRequiresGameID(t *testing.T) {
	setupRoutes()
	router := testutil.MockRouter()
	testutil.ExecuteAPITest(log.New("test"), t, router, testutil.RequestAPITest{
		Method:       http.MethodGet,
		Path:         "/live-tracker",
		WantResponse: []int{http.StatusBadRequest},
	})
}
