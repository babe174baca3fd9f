// README: Entry point; loads config, wires services, starts the HTTP server.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lifeline/internal/auth"
	"lifeline/internal/config"
	"lifeline/internal/geo"
	httptransport "lifeline/internal/http"
	"lifeline/internal/infra"
	"lifeline/internal/logging"
	"lifeline/internal/modules/dispatch"
	"lifeline/internal/modules/driver"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := logging.New(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()

	var resolver geo.Resolver = geo.NopResolver{}
	if cfg.Geo.MapsAPIKey != "" {
		resolver, err = geo.NewGoogleResolver(cfg.Geo.MapsAPIKey)
		if err != nil {
			log.Fatalf("maps init: %v", err)
		}
	}

	gate := auth.NewGateway()
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret)

	fleetCache := driver.NewCache(redisClient, cfg.Fleet.CacheTTL)
	driverSvc := driver.NewService(driver.NewStore(dbPool), gate, fleetCache, logger)
	dispatchSvc := dispatch.NewService(dispatch.NewPGStore(dbPool), gate, resolver, fleetCache, logger)

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Dispatch: dispatchSvc,
		Drivers:  driverSvc,
		Verifier: verifier,
		Log:      logger,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler.Routes()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("lifeline api listening", "addr", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
