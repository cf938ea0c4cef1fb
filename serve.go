package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariebrainware/realty-leads/assistant"
	"github.com/ariebrainware/realty-leads/config"
	"github.com/ariebrainware/realty-leads/endpoint"
	"github.com/ariebrainware/realty-leads/metrics"
	"github.com/ariebrainware/realty-leads/middleware"
	"github.com/ariebrainware/realty-leads/util"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer util.SyncLogger()
	log := util.Logger()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := config.ConnectRedis()
	if err != nil {
		log.Warn("redis unavailable, using local state", zap.Error(err))
	}

	var (
		remote util.RemoteRateChecker
		mirror util.EventMirror
		dbRate = util.NewDBRateChecker(db)
	)
	if rdb != nil {
		remote = util.NewRedisRateChecker(rdb)
		mirror = util.NewRedisEventMirror(rdb, 0)
	} else {
		remote = dbRate
	}

	monitor := util.NewSecurityMonitor(util.MonitorOptions{
		DB:          db,
		Mirror:      mirror,
		Development: !cfg.IsProduction(),
		OnEvent: func(e util.SecurityEvent) {
			metrics.SecurityEvents.WithLabelValues(string(e.Type), string(e.Severity)).Inc()
		},
	})
	util.SetSecurityMonitor(monitor)
	if n, err := monitor.Restore(ctx); err != nil {
		log.Warn("could not restore security events", zap.Error(err))
	} else if n > 0 {
		log.Info("restored security events", zap.Int("count", n))
	}
	monitor.StartPruning(ctx, time.Hour, 24*time.Hour)

	limiter := util.NewRateLimiter(remote)
	limiter.StartCleanup(ctx, 5*time.Minute)
	go cleanupRateLimitRows(ctx, dbRate, 30*time.Minute)

	if cfg.GeoIPDBPath != "" {
		if err := util.InitGeoIP(cfg.GeoIPDBPath); err != nil {
			log.Warn("geoip disabled", zap.String("path", cfg.GeoIPDBPath), zap.Error(err))
		}
		defer util.CloseGeoIP()
	}

	chat := assistant.NewStore(assistant.DefaultConversationTTL)

	gin.SetMode(cfg.GinMode)
	router := endpoint.SetupRouter(endpoint.Deps{
		AppName:        cfg.AppName,
		DB:             db,
		Security:       middleware.NewSecurity(limiter, monitor),
		Chat:           chat,
		RateStore:      dbRate,
		MapboxToken:    cfg.MapboxToken,
		CORSOrigins:    cfg.CORSOrigins,
		MetricsEnabled: cfg.MetricsEnabled,
		MetricsToken:   cfg.MetricsToken,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.AppPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("error starting server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func cleanupRateLimitRows(ctx context.Context, checker *util.DBRateChecker, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := checker.Cleanup(ctx); err != nil {
				util.Logger().Warn("rate limit cleanup failed", zap.Error(err))
			} else if n > 0 {
				util.Logger().Debug("rate limit rows removed", zap.Int64("rows", n))
			}
		}
	}
}
