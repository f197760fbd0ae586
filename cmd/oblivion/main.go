package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nathanplyles/oblivion/client"
	"github.com/nathanplyles/oblivion/internal/platform/config"
	"github.com/nathanplyles/oblivion/internal/platform/logger"
	"github.com/nathanplyles/oblivion/internal/platform/metrics"
	"github.com/nathanplyles/oblivion/relay"
	"github.com/nathanplyles/oblivion/resolve"
	"github.com/nathanplyles/oblivion/server"
	"github.com/nathanplyles/oblivion/youtube/cipher"
	"github.com/nathanplyles/oblivion/youtube/innertube"
	"github.com/nathanplyles/oblivion/youtube/scrape"
)

func main() {
	_ = config.Load()
	cfg := config.FromEnv()

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	met := metrics.New()

	httpc := client.New()
	decoder := cipher.New(httpc)
	scraper := scrape.New(httpc)

	innertubeStrategy := resolve.NewInnertubeStrategy(innertube.New(nil), nil, decoder)
	chain := resolve.NewChain(
		resolve.NewCache(cfg.CacheMaxEntries),
		log,
		innertubeStrategy,
		resolve.NewMirrorStrategy(nil, cfg.Mirrors, true),
		resolve.NewSubprocessStrategy(nil, nil, cfg.CookiesPath),
		resolve.NewScrapeStrategy(scraper, innertubeStrategy),
	)

	rl := relay.New(nil, chain.Cache(), log)
	rl.OnBytes = met.AddRelayBytes

	srv := server.New(chain, rl, scraper, met, log, server.Config{
		StaticDir:   cfg.StaticDir,
		RateLimit:   cfg.RateLimit,
		RatePeriod:  cfg.RatePeriod,
		LastFMKey:   cfg.LastFMKey,
		CerebrasKey: cfg.CerebrasKey,
		GroqKey:     cfg.GroqKey,
		GeminiKey:   cfg.GeminiKey,
	})

	httpSrv := &http.Server{Addr: cfg.Addr, Handler: srv.Routes()}

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	log.Info().
		Str("addr", cfg.Addr).
		Str("log_level", cfg.LogLevel).
		Int("cache_max_entries", cfg.CacheMaxEntries).
		Msg("gateway starting")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
		os.Exit(1)
	}

	log.Info().Msg("gateway stopped")
}
