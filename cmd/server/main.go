package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/farhanreizha/yt-live-chat-scraper/internal/broadcast"
	"github.com/farhanreizha/yt-live-chat-scraper/internal/domain"
	"github.com/farhanreizha/yt-live-chat-scraper/internal/platform/config"
	"github.com/farhanreizha/yt-live-chat-scraper/internal/platform/logging"
	"github.com/farhanreizha/yt-live-chat-scraper/internal/resolve"
	"github.com/farhanreizha/yt-live-chat-scraper/internal/scraper"
	"github.com/farhanreizha/yt-live-chat-scraper/internal/server"
	"github.com/farhanreizha/yt-live-chat-scraper/internal/session"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupSourceFactory(cfg *config.Config) domain.SourceFactory {
	factory, err := scraper.NewFactory(scraper.Config{
		Mode:               scraper.Mode(cfg.ScrapeMode),
		Headless:           cfg.Headless,
		NavigationTimeout:  cfg.NavigationTimeout,
		BrowserPath:        cfg.BrowserPath,
		DebugScreenshotDir: cfg.DebugScreenshotDir,
	})
	if err != nil {
		slog.Error("Failed to create scraper factory", "error", err)
		os.Exit(1)
	}
	return factory
}

func runGracefulShutdown(srv *server.Server, broadcaster *broadcast.Broadcaster, registry *session.Registry) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		broadcaster.Stop()
		registry.CloseAll()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "scrape_mode", cfg.ScrapeMode)

	factory := setupSourceFactory(cfg)

	// The broadcaster consumes the registry and the registry's sessions feed
	// the broadcaster; the closures below break the construction cycle.
	var broadcaster *broadcast.Broadcaster
	handlers := session.Handlers{
		OnBatch: func(streamID string, msgs []domain.Message) {
			broadcaster.Deliver(streamID, msgs)
		},
		OnOffline: func(streamID string) {
			broadcaster.StreamOffline(streamID)
		},
	}

	sessionCfg := session.Config{
		PollInterval:           cfg.PollInterval,
		CacheCapacity:          cfg.SeenCacheCapacity,
		MaxConsecutiveFailures: cfg.MaxExtractFails,
	}
	registry := session.NewRegistry(sessionCfg, factory, clock, handlers)

	broadcaster = broadcast.NewBroadcaster(registry, clock, cfg.MaxClientsPerStream)

	resolver := resolve.NewResolver()

	srv := server.NewServer(cfg, broadcaster, resolver)

	done := runGracefulShutdown(srv, broadcaster, registry)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
