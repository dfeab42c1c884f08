// Rolling counters, per-game health leases, and periodic persistence for
// the whole hub. Correctness of the rest of the system never depends on
// this package: every public method is safe to call from any goroutine and
// never blocks callers on I/O.

package metrics

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"sporthub/internal/entity"
	"sporthub/pkg/db"
	"sporthub/pkg/log"
)

const redisKey = "sporthub:metrics"

// flushInterval bounds how often the aggregator's state is persisted;
// intermediate reports coalesce into a single flush.
const flushInterval = 5 * time.Second

var (
	messagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sporthub_upstream_messages_total",
		Help: "Total inbound upstream messages observed across all feeds.",
	})
	parseErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sporthub_upstream_parse_errors_total",
		Help: "Total inbound frames that failed to parse.",
	})
	activeGamesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sporthub_live_tracker_active_games",
		Help: "Number of live-tracker instances with at least one subscriber.",
	})
	activeSubscribersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sporthub_live_tracker_active_subscribers",
		Help: "Sum of subscriber counts across all live-tracker instances.",
	})
)

// Aggregator is the process-wide metrics singleton. Construct one with New
// and share it across every component that reports (the live-tracker
// instances).
type Aggregator struct {
	mu      sync.Mutex
	totals  entity.Totals
	buckets map[int64]int64 // second-unix -> count, pruned to the last 60s
	leases  map[string]entity.HealthLease

	db       *db.RedisDB
	logger   log.Logger
	lastSave time.Time
}

func New(redisDB *db.RedisDB, logger log.Logger) *Aggregator {
	return &Aggregator{
		buckets: make(map[int64]int64),
		leases:  make(map[string]entity.HealthLease),
		db:      redisDB,
		logger:  logger,
	}
}

// RecordMessage registers one inbound message at t, updating both the
// rolling bucket series and the process totals.
func (a *Aggregator) RecordMessage(t time.Time) {
	a.mu.Lock()
	a.totals.Messages++
	a.totals.LastSeen = t
	a.buckets[t.Unix()]++
	a.mu.Unlock()
	messagesTotal.Inc()
	a.maybeFlush(t)
}

// RecordParseError registers one inbound frame that failed to decode.
func (a *Aggregator) RecordParseError(t time.Time) {
	a.mu.Lock()
	a.totals.ParseErrors++
	a.mu.Unlock()
	parseErrorsTotal.Inc()
	a.maybeFlush(t)
}

// RenewLease upserts the health lease for a live-tracker instance, valid
// until now+ttl. Called on every batch report from a live-tracker instance.
func (a *Aggregator) RenewLease(gameID string, sseClients int, upstreamConnected bool, now time.Time, ttl time.Duration) {
	a.mu.Lock()
	a.leases[gameID] = entity.HealthLease{
		GameID:            gameID,
		SSEClients:        sseClients,
		UpstreamConnected: upstreamConnected,
		ExpiresAt:         now.Add(ttl),
	}
	a.mu.Unlock()
	a.maybeFlush(now)
}

// DropLease removes a game's lease immediately, used when its live-tracker
// instance disconnects rather than waiting for expiry.
func (a *Aggregator) DropLease(gameID string) {
	a.mu.Lock()
	delete(a.leases, gameID)
	a.mu.Unlock()
}

// pruneLeases removes expired leases; called on every read.
func (a *Aggregator) pruneLeases(now time.Time) {
	for id, lease := range a.leases {
		if now.After(lease.ExpiresAt) {
			delete(a.leases, id)
		}
	}
}

// pruneBuckets drops bucket entries outside the trailing 60-second window.
func (a *Aggregator) pruneBuckets(now time.Time) {
	cutoff := now.Add(-60 * time.Second).Unix()
	for second := range a.buckets {
		if second < cutoff {
			delete(a.buckets, second)
		}
	}
}

// Rollup computes the read-side aggregate: active games/subscribers,
// upstream-connected games, and the rolling 60s message count.
func (a *Aggregator) Rollup(now time.Time) entity.MetricsRollup {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pruneLeases(now)
	a.pruneBuckets(now)

	var activeGames, activeSubscribers, upstreamConnectedGames int
	for _, lease := range a.leases {
		if lease.SSEClients > 0 {
			activeGames++
			activeSubscribers += lease.SSEClients
		}
		if lease.UpstreamConnected {
			upstreamConnectedGames++
		}
	}
	activeGamesGauge.Set(float64(activeGames))
	activeSubscribersGauge.Set(float64(activeSubscribers))

	var rolling int64
	for _, count := range a.buckets {
		rolling += count
	}

	return entity.MetricsRollup{
		ActiveGames:            activeGames,
		ActiveSubscribers:      activeSubscribers,
		UpstreamConnectedGames: upstreamConnectedGames,
		RollingMessages60s:     rolling,
		TotalMessages:          a.totals.Messages,
		TotalParseErrors:       a.totals.ParseErrors,
	}
}

// maybeFlush persists the current snapshot to Redis on a background
// goroutine, coalesced to at most once per flushInterval. Failures are logged and otherwise ignored: the
// hub must remain correct even if metrics persistence never succeeds.
func (a *Aggregator) maybeFlush(now time.Time) {
	if a.db == nil {
		return
	}
	a.mu.Lock()
	if now.Sub(a.lastSave) < flushInterval {
		a.mu.Unlock()
		return
	}
	a.lastSave = now
	snapshot := a.snapshotLocked()
	a.mu.Unlock()

	go func() {
		body, err := json.Marshal(snapshot)
		if err != nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := a.db.Client().Set(ctx, redisKey, body, 0).Err(); err != nil {
			a.logger.Warn().Err(err).Msg("metrics: persistence flush failed")
		}
	}()
}

func (a *Aggregator) snapshotLocked() entity.MetricsSnapshot {
	buckets := make([]entity.Bucket, 0, len(a.buckets))
	for second, count := range a.buckets {
		buckets = append(buckets, entity.Bucket{SecondUnix: second, Count: count})
	}
	leases := make(map[string]entity.HealthLease, len(a.leases))
	for id, lease := range a.leases {
		leases[id] = lease
	}
	return entity.MetricsSnapshot{Totals: a.totals, Buckets: buckets, Leases: leases}
}
