// The main entrypoint of sporthub.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"sporthub/internal/config"
	"sporthub/internal/edge"
	"sporthub/internal/group"
	"sporthub/internal/hierarchy"
	"sporthub/internal/livetracker"
	"sporthub/internal/metrics"
	"sporthub/internal/registry"
	"sporthub/internal/results"
	"sporthub/internal/upstream"
	"sporthub/pkg/cleanup"
	"sporthub/pkg/db"
	"sporthub/pkg/globalcontext"
	"sporthub/pkg/log"
	"sporthub/pkg/middlewares"
)

// Version is the current build version of sporthub, stamped onto every
// log line by pkg/log.
var Version = "1.0.0"

func main() {
	logger := log.New(Version)

	if len(os.Getenv("ENV")) == 0 {
		logger.Fatal().Err(errors.New("os couldn't load ENV")).Msg("startup failed")
	}
	logger.Info().Msg(fmt.Sprintf("Welcome to sporthub: v%s", Version))
	logger.Info().Msg(fmt.Sprintf("sporthub Environment: %s", os.Getenv("ENV")))

	if os.Getenv("ENV") == "DEV" {
		gin.SetMode(gin.DebugMode)
		config.LoadDevConfig()
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	cfg := config.FromEnv()
	ctx := context.Background()

	redisDB, err := db.NewDbConnection(ctx, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("couldn't establish a Redis connection")
	}
	if err := redisDB.CheckDbConnection(ctx, logger); err != nil {
		logger.Fatal().Err(err).Msg("Redis client couldn't PING the redis-server")
	}

	reg := registry.New()
	session := upstream.NewSession(cfg.UpstreamURL, cfg.UpstreamSiteID, cfg.UpstreamLang, reg, logger)
	if err := session.Ensure(ctx); err != nil {
		logger.Warn().Err(err).Msg("initial upstream connect failed, will retry on demand")
	}

	agg := metrics.New(redisDB, logger)
	hier := hierarchy.New(hierarchyFetcher{session: session}, redisDB, logger)
	hier.LoadPersisted(ctx)
	groups := group.NewManager(session, reg, hier, agg, marketPriorityFetcher{session: session}, cfg, logger)
	tracker := livetracker.NewManager(livetracker.Config{
		URL:     cfg.LiveTrackerURL,
		Partner: cfg.LiveTrackerPartner,
		SiteRef: cfg.LiveTrackerSiteRef,
	}, agg, logger)
	resultsSvc := results.New(session)

	server := gin.New()
	server.Use(globalcontext.UniqueIDMiddleware(logger))
	server.Use(log.LoggerGinExtension(logger))
	server.Use(gin.Recovery())
	server.Use(middlewares.CORSMiddleware("https://dob-edge*.pages.dev"))

	Router(server, edge.Deps{
		Groups:  groups,
		Tracker: tracker,
		Hier:    hier,
		Agg:     agg,
		Session: session,
		Results: resultsSvc,
		Logger:  logger,
		Started: time.Now(),
	})

	srv := &http.Server{
		Addr:    cfg.SrvAddr + ":" + cfg.SrvPort,
		Handler: server,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("gin server crashed")
		}
	}()

	wait := cleanup.GracefulShutdown(ctx, logger, 5*time.Second, map[string]cleanup.Operation{
		"gin": func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
		"upstream-session": func(ctx context.Context) error {
			return session.Close()
		},
		"live-tracker": func(ctx context.Context) error {
			tracker.CloseAll()
			return nil
		},
		"redis": func(ctx context.Context) error {
			return redisDB.CloseDbConnection(ctx)
		},
	})
	<-wait
}
