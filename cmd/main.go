// zakupki-ingest-service
//
// Periodically ingests public-procurement notices from the zakupki.gov.ru
// FTP archive: recursive date-filtered listing, download, ZIP unpack,
// namespace-tolerant XML extraction, OKPD2 filtering, idempotent
// persistence, per-file cleanup and a durable ingestion ledger.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"zakupki/ingest-service/internal/archive"
	"zakupki/ingest-service/internal/config"
	"zakupki/ingest-service/internal/docs"
	"zakupki/ingest-service/internal/ftpclient"
	"zakupki/ingest-service/internal/logging"
	"zakupki/ingest-service/internal/metrics"
	"zakupki/ingest-service/internal/parser"
	"zakupki/ingest-service/internal/pipeline"
	"zakupki/ingest-service/internal/scheduler"
	"zakupki/ingest-service/internal/store"
)

const version = "1.0.0"

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat).With().Str("service", "ingest-service").Logger()

	roots, err := config.LoadRoots(cfg.RootsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("roots config")
	}
	codeList, err := config.LoadCodes(cfg.OKPD2CodesFile)
	if err != nil {
		log.Fatal().Err(err).Msg("OKPD2 codes config")
	}
	codes := parser.NewCodeSet(codeList)
	log.Info().Int("roots", len(roots)).Int("codes", codes.Len()).Str("cutoff", cfg.CutoffDate).Msg("configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	pool, err := store.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	if err := store.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("migrations")
	}
	log.Info().Msg("postgres connected, schema up to date")

	// ── Redis ────────────────────────────────────────────────────────────────
	rdb, err := store.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("redis")
	}
	defer rdb.Close()
	log.Info().Msg("redis connected")

	// ── FTP probe ────────────────────────────────────────────────────────────
	// Nothing can run without the archive host; fail fast like any other
	// startup dependency. Each ingest cycle dials its own session.
	probe := ftpclient.New(cfg.FTPAddr, cfg.FTPUser, cfg.FTPPassword, cfg.FTPTimeout,
		log.With().Str("component", "ftp").Logger())
	if err := probe.Connect(); err != nil {
		log.Fatal().Err(err).Msg("ftp probe")
	}
	probe.Close()

	// ── Pipeline ─────────────────────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	met := metrics.New(reg)

	src := ftpclient.New(cfg.FTPAddr, cfg.FTPUser, cfg.FTPPassword, cfg.FTPTimeout,
		log.With().Str("component", "ftp").Logger())
	ledger := store.NewLedger(pool, rdb, log.With().Str("component", "ledger").Logger())
	contracts := store.NewContractStore(pool, log.With().Str("component", "store").Logger())
	extractor := archive.New(log.With().Str("component", "archive").Logger())
	noticeParser := parser.NewParser(log.With().Str("component", "parser").Logger())

	orch := pipeline.New(src, ledger, contracts, extractor, noticeParser, codes,
		pipeline.Options{
			Roots:        roots,
			CutoffDate:   cfg.CutoffDate,
			ArchiveDir:   cfg.ArchiveDir,
			XMLDir:       cfg.XMLDir,
			PositiveDir:  cfg.PositiveDir,
			FetchRetries: cfg.FetchRetries,
		},
		met, log.With().Str("component", "pipeline").Logger())

	cycle := &ingestCycle{
		orch:       orch,
		downloader: docs.NewDownloader(contracts, extractor, cfg.DocsDir, log.With().Str("component", "downloader").Logger()),
		log:        log.With().Str("component", "cycle").Logger(),
	}
	if len(cfg.SearchPhrases) > 0 {
		cycle.searcher = docs.NewSearcher(cfg.DocsDir, cfg.SearchPhrases, log.With().Str("component", "search").Logger())
	}

	sched := scheduler.New(cycle, cfg.IngestIntervalHours, log.With().Str("component", "scheduler").Logger())
	if err := sched.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("scheduler")
	}
	defer sched.Stop()

	// ── HTTP server (health + metrics) ───────────────────────────────────────
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	log.Info().Msg("stopped")
}

// ingestCycle chains the scheduled stages: the FTP ingest run, then the
// attachment download pass over newly persisted notices, then the
// optional keyword scan of the documents directory. Follow-up stage
// failures are logged but never fail the cycle — the ingest itself
// already committed.
type ingestCycle struct {
	orch       *pipeline.Orchestrator
	downloader *docs.Downloader
	searcher   *docs.Searcher
	log        zerolog.Logger
}

func (c *ingestCycle) RunOnce(ctx context.Context) error {
	if err := c.orch.RunOnce(ctx); err != nil {
		return err
	}

	if err := c.downloader.Run(ctx); err != nil {
		c.log.Error().Err(err).Msg("attachment download stage failed")
	}

	if c.searcher != nil {
		matches, err := c.searcher.Search()
		if err != nil {
			c.log.Error().Err(err).Msg("document search stage failed")
		}
		for _, m := range matches {
			c.log.Info().
				Str("file", m.File).
				Str("phrase", m.Phrase).
				Str("snippet", m.Snippet).
				Msg("keyword match")
		}
	}

	return nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "ingest-service",
		"version": version,
	})
}
