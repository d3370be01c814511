package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"readlog/internal/ratelimit"
	"readlog/internal/util"
	"readlog/services/readlog/internal/app"
	"readlog/services/readlog/internal/config"
	"readlog/services/readlog/internal/server"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appCore, err := app.New(ctx, app.ConfigFromFile(cfg))
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}
	defer appCore.Close()

	serverCfg := server.Config{
		App:            appCore,
		CORSOrigin:     cfg.CORSOrigin,
		TrustedProxies: trusted,
	}
	newLimiter := func(name string, limit int) *ratelimit.FixedWindow {
		if limit <= 0 {
			return nil
		}
		limiter, err := ratelimit.NewFixedWindow(ratelimit.Config{
			Addr:     cfg.RateLimitAddr,
			Password: cfg.RedisPassword,
			Prefix:   ratelimit.DefaultPrefix + ":" + name,
			Limit:    limit,
			Window:   time.Minute,
		})
		if err != nil {
			log.Fatalf("failed to init %s limiter: %v", name, err)
		}
		return limiter
	}
	if l := newLimiter("events", cfg.EventsPerMinute); l != nil {
		defer l.Close()
		serverCfg.EventLimiter = l
	}
	if l := newLimiter("suggestions", cfg.SuggestionsPerMinute); l != nil {
		defer l.Close()
		serverCfg.SuggestLimiter = l
	}

	httpServer, err := server.New(serverCfg)
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpServer.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		// Event streams end when the process is asked to stop.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("readlog server listening", "addr", addr, "storage", cfg.StorageBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
	}
	slog.Info("readlog server stopped")
}
