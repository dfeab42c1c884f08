// Loads and exposes the environment knobs used across sporthub.

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// uses go package: godotenv to load up development enviroment variables
func LoadDevConfig() {
	err := godotenv.Load("config/dev.env")
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(-1)
	}
}

// Config holds every environment-driven tunable named across the hub.
type Config struct {
	// Upstream sportsbook feed.
	UpstreamURL    string
	UpstreamSiteID string
	UpstreamLang   string

	// Live-tracker second feed.
	LiveTrackerURL     string
	LiveTrackerPartner string
	LiveTrackerSiteRef string

	// Group lifecycle.
	GraceDuration     time.Duration
	ConnectTimeout    time.Duration
	HeartbeatInterval time.Duration

	// Redis persistence.
	RedisAddr         string
	RedisPort         string
	RedisPassword     string
	RedisDBNumber     int
	RedisTxMaxRetries int

	// HTTP server.
	SrvAddr string
	SrvPort string
	Env     string
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvIntDefault(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvSecondsDefault(key string, fallbackSeconds int) time.Duration {
	return time.Duration(getenvIntDefault(key, fallbackSeconds)) * time.Second
}

// FromEnv reads Config from the process environment, applying the defaults
// documents for every optional knob.
func FromEnv() Config {
	return Config{
		UpstreamURL:    getenvDefault("UPSTREAM_FEED_URL", "wss://upstream.example.com/ws"),
		UpstreamSiteID: getenvDefault("UPSTREAM_PARTNER_ID", ""),
		UpstreamLang:   getenvDefault("UPSTREAM_LANGUAGE", "en"),

		LiveTrackerURL:     getenvDefault("LIVE_TRACKER_FEED_URL", "wss://livetracker.example.com/ws"),
		LiveTrackerPartner: getenvDefault("LIVE_TRACKER_PARTNER_ID", ""),
		LiveTrackerSiteRef: getenvDefault("LIVE_TRACKER_SITE_REF", ""),

		GraceDuration:     getenvSecondsDefault("GROUP_GRACE_SECONDS", 30),
		ConnectTimeout:    getenvSecondsDefault("CONNECT_TIMEOUT_SECONDS", 15),
		HeartbeatInterval: getenvSecondsDefault("HEARTBEAT_INTERVAL_SECONDS", 15),

		RedisAddr:         getenvDefault("REDIS_ADDR", "localhost"),
		RedisPort:         getenvDefault("REDIS_PORT", "6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDBNumber:     getenvIntDefault("REDIS_DB_NUMBER", 0),
		RedisTxMaxRetries: getenvIntDefault("REDIS_TX_MAX_RETRIES", 3),

		SrvAddr: getenvDefault("SRV_ADDR", "0.0.0.0"),
		SrvPort: getenvDefault("SRV_PORT", "8080"),
		Env:     getenvDefault("ENV", "PROD"),
	}
}
