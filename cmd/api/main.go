package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studio/internal/bootstrap"
	"studio/internal/http/handlers"
	httpapi "studio/internal/http/httpapi"
	"studio/internal/infra"
	"studio/internal/infra/geoip"
	"studio/internal/pipeline"
	"studio/internal/queue"
	"studio/internal/status"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	stack, err := bootstrap.Build(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to build pipeline")
	}
	defer stack.Close()

	// Queue mode hands orders to cmd/worker; inline mode runs them here.
	var dispatcher pipeline.Dispatcher
	if cfg.ExecutionMode == infra.ExecutionQueue {
		rdb, err := infra.NewRedisClient(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: redis connection failed")
		}
		defer rdb.Close()
		dispatcher = queue.NewRedisQueue(rdb, queue.DefaultKey)
	}
	manager := stack.Manager(dispatcher)

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("api: geoip disabled")
	}
	defer resolver.Close()

	app := handlers.NewApp(manager, status.NewService(stack.Store), &logger)
	router := httpapi.NewRouter(app, httpapi.Options{
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		CountryLookup:   resolver.Lookup(),
		StaticDir:       stack.StaticDir,
		Logger:          &logger,
	})
	server := infra.NewHTTPServer(cfg, router, logger)

	go func() {
		logger.Info().Str("mode", cfg.ExecutionMode).Msgf("API listening on %s", server.Addr())
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelDrain()
	if err := manager.Drain(drainCtx); err != nil {
		logger.Warn().Err(err).Msg("api: in-flight orders still running at exit")
	}
	logger.Info().Msg("server stopped")
}
