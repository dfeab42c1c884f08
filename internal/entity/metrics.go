// Structure of the metrics aggregator's state and durable snapshot.

package entity

import "time"

// Totals are the process-wide upstream counters.
type Totals struct {
	Messages    int64     `json:"messages" redis:"messages"`
	ParseErrors int64     `json:"parse_errors" redis:"parse_errors"`
	LastSeen    time.Time `json:"last_seen"`
}

// Bucket is one second's worth of message counts in the rolling 60s series.
type Bucket struct {
	SecondUnix int64 `json:"t"`
	Count      int64 `json:"count"`
}

// HealthLease asserts a live-tracker instance for gameID has active
// subscribers; it expires if not renewed by the next heartbeat tick.
type HealthLease struct {
	GameID            string    `json:"game_id"`
	SSEClients        int       `json:"sse_clients"`
	UpstreamConnected bool      `json:"upstream_connected"`
	ExpiresAt         time.Time `json:"expires_at"`
}

// MetricsSnapshot is the durable, opportunistically-flushed metrics document.
type MetricsSnapshot struct {
	Totals  Totals                  `json:"totals"`
	Buckets []Bucket                `json:"buckets"`
	Leases  map[string]HealthLease  `json:"leases"`
}

// MetricsRollup is the read-side aggregate consumers observe.
type MetricsRollup struct {
	ActiveGames            int   `json:"active_games"`
	ActiveSubscribers      int   `json:"active_subscribers"`
	UpstreamConnectedGames int   `json:"upstream_connected_games"`
	RollingMessages60s     int64 `json:"rolling_messages_60s"`
	TotalMessages          int64 `json:"total_messages"`
	TotalParseErrors       int64 `json:"total_parse_errors"`
}
