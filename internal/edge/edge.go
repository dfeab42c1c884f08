// HTTP route registration for every fan-out endpoint the hub exposes,
// using gin's gctx.Stream to drain each subscriber's channel onto its own
// SSE response for as long as the request stays open.

package edge

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/xid"

	"sporthub/internal/entity"
	"sporthub/internal/errors"
	"sporthub/internal/group"
	"sporthub/internal/hierarchy"
	"sporthub/internal/livetracker"
	"sporthub/internal/metrics"
	"sporthub/internal/results"
	"sporthub/internal/upstream"
	"sporthub/pkg/log"
)

// Deps bundles every component a route handler needs.
type Deps struct {
	Groups  *group.Manager
	Tracker *livetracker.Manager
	Hier    *hierarchy.Cache
	Agg     *metrics.Aggregator
	Session *upstream.Session
	Results *results.Service
	Logger  log.Logger
	Started time.Time
}

// RegisterRoutes wires every hub endpoint onto router.
func RegisterRoutes(router *gin.Engine, d Deps) {
	router.GET("/health", healthHandler(d))
	router.GET("/hierarchy", hierarchyHandler(d))

	router.GET("/counts-stream", countsStreamHandler(d))
	router.GET("/live-stream", sportGamesStreamHandler(d, entity.ModeLive))
	router.GET("/prematch-stream", sportGamesStreamHandler(d, entity.ModePrematch))
	router.GET("/live-game-stream", perGameStreamHandler(d))
	router.GET("/competition-odds-stream", competitionOddsStreamHandler(d))
	router.GET("/live-tracker", liveTrackerStreamHandler(d))

	router.GET("/results/competitions", resultsCompetitionsHandler(d))
	router.GET("/results/games/:sportId", resultsGamesHandler(d))
	router.GET("/results/game/:gameId", resultsGameHandler(d))
}

func healthHandler(d Deps) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		rollup := d.Agg.Rollup(time.Now())
		upstreamDebug, err := d.Session.MarshalDebug()
		body := gin.H{
			"status":             "ok",
			"uptime_seconds":     int64(time.Since(d.Started).Seconds()),
			"live_tracker_games": d.Tracker.Count(),
			"metrics":            rollup,
		}
		if err == nil {
			body["upstream"] = json.RawMessage(upstreamDebug)
		}
		gctx.JSON(http.StatusOK, body)
	}
}

func hierarchyHandler(d Deps) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		forceRefresh := gctx.Query("refresh") == "true"
		doc, fromCache := d.Hier.Get(gctx.Request.Context(), forceRefresh)
		gctx.JSON(http.StatusOK, gin.H{"data": doc, "cached": fromCache})
	}
}

// newClient allocates an SSE client bound to the request's cancellation.
func newClient(gctx *gin.Context) *entity.Client {
	return &entity.Client{
		ID:   xid.New().String(),
		Send: make(chan entity.Frame, 32),
		Done: gctx.Request.Context().Done(),
	}
}

// stream drains client.Send onto the SSE response until the request is
// cancelled or the channel closes, writing each Frame to the response in the
// SSE wire format itself. detach is always called exactly once on exit.
func stream(gctx *gin.Context, client *entity.Client, detach func()) {
	defer detach()
	gctx.Writer.Header().Set("Content-Type", "text/event-stream")
	gctx.Writer.Header().Set("Cache-Control", "no-cache, no-transform")
	gctx.Writer.Header().Set("Connection", "keep-alive")
	gctx.Writer.Header().Set("X-Accel-Buffering", "no")

	gctx.Stream(func(w io.Writer) bool {
		select {
		case f, ok := <-client.Send:
			if !ok {
				return false
			}
			writeFrame(w, f)
			return true
		case <-gctx.Request.Context().Done():
			return false
		}
	})
}

// writeFrame renders one Frame in raw SSE wire format directly onto w. Named
// events use the standard "event:"/"data:" pair; unnamed events (the
// live-tracker's forwarded bytes) and comments write only what the format
// requires, matching what a manually-constructed SSE frame looks like on
// the wire.
func writeFrame(w io.Writer, f entity.Frame) {
	switch f.Kind {
	case entity.FrameNamedEvent:
		io.WriteString(w, "event: "+f.Event+"\n")
		io.WriteString(w, "data: ")
		w.Write(f.Data)
		io.WriteString(w, "\n\n")
	case entity.FrameUnnamedEvent:
		io.WriteString(w, "data: ")
		w.Write(f.Data)
		io.WriteString(w, "\n\n")
	case entity.FrameComment:
		io.WriteString(w, ": ")
		w.Write(f.Data)
		io.WriteString(w, "\n\n")
	}
}

func countsStreamHandler(d Deps) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		client := newClient(gctx)
		d.Groups.AttachCounts(context.Background(), client)
		stream(gctx, client, func() {
			d.Groups.Detach(entity.GroupKey{Kind: entity.GroupCounts}, client.ID)
		})
	}
}

func sportGamesStreamHandler(d Deps, mode entity.Mode) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		sportID := gctx.Query("sportId")
		if sportID == "" {
			gctx.JSON(http.StatusBadRequest, errors.BadRequest("sportId is required"))
			return
		}
		client := newClient(gctx)
		d.Groups.AttachSportGames(context.Background(), mode, sportID, client)
		stream(gctx, client, func() {
			d.Groups.Detach(entity.GroupKey{Kind: entity.GroupSportGames, Mode: mode, SportID: sportID}, client.ID)
		})
	}
}

func perGameStreamHandler(d Deps) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		gameID := gctx.Query("gameId")
		if gameID == "" {
			gctx.JSON(http.StatusBadRequest, errors.BadRequest("gameId is required"))
			return
		}
		client := newClient(gctx)
		d.Groups.AttachPerGame(context.Background(), gameID, client)
		stream(gctx, client, func() {
			d.Groups.Detach(entity.GroupKey{Kind: entity.GroupPerGame, GameID: gameID}, client.ID)
		})
	}
}

func competitionOddsStreamHandler(d Deps) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		competitionID := gctx.Query("competitionId")
		sportID := gctx.Query("sportId")
		if competitionID == "" || sportID == "" {
			gctx.JSON(http.StatusBadRequest, errors.BadRequest("competitionId and sportId are required"))
			return
		}
		mode := entity.ModeLive
		if gctx.Query("mode") == "prematch" {
			mode = entity.ModePrematch
		}
		client := newClient(gctx)
		d.Groups.AttachCompetitionOdds(context.Background(), mode, competitionID, sportID, client)
		stream(gctx, client, func() {
			d.Groups.Detach(entity.GroupKey{Kind: entity.GroupCompetitionOdds, Mode: mode, CompetitionID: competitionID, SportID: sportID}, client.ID)
		})
	}
}

func liveTrackerStreamHandler(d Deps) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		gameID := gctx.Query("gameId")
		if gameID == "" {
			gctx.JSON(http.StatusBadRequest, errors.BadRequest("gameId is required"))
			return
		}
		client := newClient(gctx)
		d.Tracker.Attach(gameID, client)
		stream(gctx, client, func() {
			d.Tracker.Detach(gameID, client.ID)
		})
	}
}

func resultsCompetitionsHandler(d Deps) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		from, to := gctx.Query("from"), gctx.Query("to")
		raw, err := d.Results.Competitions(gctx.Request.Context(), from, to)
		if err != nil {
			respondResultError(gctx)
			return
		}
		gctx.JSON(http.StatusOK, gin.H{
			"success":   true,
			"data":      resultPayload(raw),
			"timestamp": time.Now().UnixMilli(),
		})
	}
}

func resultsGamesHandler(d Deps) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		sportID := gctx.Param("sportId")
		from, to := gctx.Query("from"), gctx.Query("to")
		raw, err := d.Results.GamesBySport(gctx.Request.Context(), sportID, from, to)
		if err != nil {
			respondResultError(gctx)
			return
		}
		games := resultList(raw, "games")
		gctx.JSON(http.StatusOK, gin.H{
			"success":   true,
			"sportId":   sportID,
			"count":     len(games),
			"games":     games,
			"timestamp": time.Now().UnixMilli(),
		})
	}
}

func resultsGameHandler(d Deps) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		gameID := gctx.Param("gameId")
		raw, err := d.Results.Game(gctx.Request.Context(), gameID)
		if err != nil {
			respondResultError(gctx)
			return
		}
		gctx.JSON(http.StatusOK, gin.H{
			"success":     true,
			"gameId":      gameID,
			"settlements": raw["settlements"],
			"raw":         raw,
			"timestamp":   time.Now().UnixMilli(),
		})
	}
}

func respondResultError(gctx *gin.Context) {
	gctx.JSON(http.StatusInternalServerError, errors.InternalServerError("upstream results request failed"))
}

// resultPayload unwraps a one-shot results reply's "data" envelope, if the
// upstream sent one, and hands back the raw map otherwise.
func resultPayload(raw map[string]any) any {
	if data, ok := raw["data"]; ok {
		return data
	}
	return raw
}

// resultList pulls key out of a results reply as a list, trying key itself,
// then a nested "data" envelope, so games/settlements survive whichever
// shape the upstream used for this particular reply.
func resultList(raw map[string]any, key string) []any {
	if list, ok := raw[key].([]any); ok {
		return list
	}
	if data, ok := raw["data"].(map[string]any); ok {
		if list, ok := data[key].([]any); ok {
			return list
		}
	}
	if list, ok := raw["data"].([]any); ok {
		return list
	}
	return []any{}
}
