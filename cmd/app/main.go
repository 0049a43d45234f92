package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/local/cardforge/internal/analyzer"
	"github.com/local/cardforge/internal/config"
	"github.com/local/cardforge/internal/export"
	"github.com/local/cardforge/internal/extractor"
	"github.com/local/cardforge/internal/limiter"
	"github.com/local/cardforge/internal/logger"
	"github.com/local/cardforge/internal/metrics"
	"github.com/local/cardforge/internal/pipeline"
	"github.com/local/cardforge/internal/preflight"
	"github.com/local/cardforge/internal/storage"
	"github.com/local/cardforge/internal/store"
	"github.com/local/cardforge/internal/web"
)

func main() {
	_ = godotenv.Load()

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging, cfg.Axiom); err != nil {
		fmt.Fprintln(os.Stderr, "logger init:", err)
		os.Exit(1)
	}
	defer logger.Close()

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Provider gate: per-provider inflight caps plus a cooldown breaker,
	// redis-backed when available so replicas share cooldowns.
	gateOpts := limiter.Options{
		RedisURL:    cfg.RedisURL,
		MaxInflight: cfg.Pipeline.MaxInflightPerProv,
		BaseBackoff: cfg.Pipeline.BreakerBaseBackoff,
		MaxBackoff:  cfg.Pipeline.BreakerMaxBackoff,
	}
	gate, err := limiter.New(gateOpts)
	if err != nil {
		log.Warn().Err(err).Msg("redis breaker unavailable, using in-memory cooldowns")
		gateOpts.RedisURL = ""
		gate, _ = limiter.New(gateOpts)
	}
	defer gate.Close()

	chain := analyzer.NewFallback(analyzer.BuildChain(cfg.Provider), gate, cfg.Pipeline.RequestTimeout)

	exporters := []export.Exporter{export.NewTSV(cfg.Export.OutputDir)}
	if cfg.Export.APKGServiceURL != "" {
		exporters = append(exporters, export.NewAPKG(cfg.Export.APKGServiceURL, cfg.Export.OutputDir))
	}

	ext := extractor.New(cfg.Web.FetchTimeout, cfg.Coverage.CharsPerPage)
	jobs := pipeline.NewJobStore(cfg.Pipeline.JobTTL)
	jobs.StartCleanup(ctx, time.Hour)

	runner := pipeline.NewRunner(cfg, ext, chain, exporters, jobs)

	var mirror *store.RedisStatus
	if cfg.RedisURL != "" {
		rs, err := store.NewRedisStatus(cfg.RedisURL, cfg.Pipeline.JobTTL)
		if err != nil {
			log.Warn().Err(err).Msg("redis status mirror unavailable")
		} else {
			mirror = rs
			runner.WithMirror(rs)
			defer rs.Close()
		}
	}

	if cfg.Archive.S3Bucket != "" {
		archive, err := storage.NewDeckArchive(ctx, cfg.Archive.S3Bucket, cfg.Archive.Passphrase)
		if err != nil {
			log.Warn().Err(err).Msg("deck archive unavailable")
		} else {
			runner.WithArchiver(archive)
		}
	}

	checkerOpts := preflight.Options{
		S3Bucket: cfg.Archive.S3Bucket,
		Provider: cfg.Provider,
	}
	if mirror != nil {
		checkerOpts.Redis = redisPinger{mirror}
	}
	checker := preflight.New(checkerOpts)
	if err := checker.Check(ctx); err != nil {
		log.Fatal().Err(err).Msg("preflight failed")
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Web.Port,
		Handler: web.NewServer(runner, checker, mirrorReader(mirror), cfg),
	}

	go func() {
		log.Info().Str("port", cfg.Web.Port).Str("provider", cfg.Provider.Engine).Msg("cardforge listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info().Msg("shutdown complete")
}

// redisPinger adapts the status mirror's client to the preflight probe.
type redisPinger struct{ rs *store.RedisStatus }

func (p redisPinger) Ping(ctx context.Context) error {
	return p.rs.Client().Ping(ctx).Err()
}

// mirrorReader keeps the web server's mirror nil when redis is absent. A nil
// *RedisStatus in a non-nil interface would defeat the handler's nil check.
func mirrorReader(rs *store.RedisStatus) web.MirrorReader {
	if rs == nil {
		return nil
	}
	return rs
}
