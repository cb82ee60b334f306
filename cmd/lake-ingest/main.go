package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/quantmill/marketlake/internal/catalog"
	"github.com/quantmill/marketlake/internal/config"
	"github.com/quantmill/marketlake/internal/lake"
	"github.com/quantmill/marketlake/internal/lakestore"
	"github.com/quantmill/marketlake/internal/logging"
	"github.com/quantmill/marketlake/internal/metrics"
	"github.com/quantmill/marketlake/internal/source"
	"github.com/quantmill/marketlake/internal/tables"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	force := flag.Bool("force", false, "re-process files that already succeeded")
	dryRun := flag.Bool("dry-run", false, "run the pipeline without writing anything")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *force {
		cfg.Ingest.Force = true
	}
	if *dryRun {
		cfg.Ingest.DryRun = true
	}

	logging.Setup(cfg.Logging)
	log := logging.Component("main")
	log.Info("market lake ingest starting", "version", lakestore.Version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		sig := <-ch
		log.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	metrics.Init()
	if cfg.Metrics.Addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				log.Error("metrics server failed", "error", err)
			}
		}()
	}

	registry, err := tables.DefaultRegistry()
	if err != nil {
		log.Error("failed to build feed registry", "error", err)
		os.Exit(1)
	}

	var manifest catalog.ManifestStore
	var dimensions catalog.DimensionStore
	if cfg.Catalog.PostgresDSN != "" {
		pg, err := catalog.NewPostgres(ctx, cfg.Catalog)
		if err != nil {
			log.Error("failed to connect to catalog", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		manifest, dimensions = pg, pg
	} else {
		log.Warn("no catalog DSN configured, using in-memory catalog")
		mem := catalog.NewMemory()
		manifest, dimensions = mem, mem
	}

	store, err := lakestore.NewBlobStore(ctx, cfg.Lake)
	if err != nil {
		log.Error("failed to open lake bucket", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	scanner, err := source.NewScanner(ctx, cfg.Bronze)
	if err != nil {
		log.Error("failed to open bronze bucket", "error", err)
		os.Exit(1)
	}
	defer scanner.Close()

	parser, err := source.NewCSVParser(scanner)
	if err != nil {
		log.Error("failed to create parser", "error", err)
		os.Exit(1)
	}
	defer parser.Close()

	metas, err := scanner.Scan(ctx)
	if err != nil {
		log.Error("failed to scan bronze bucket", "error", err)
		os.Exit(1)
	}
	log.Info("bronze scan complete", "files", len(metas))

	// Drop already-ingested files up front so the worker pool only sees
	// work. Forced runs keep everything; the per-file claim still decides.
	if !cfg.Ingest.Force {
		pending, err := filterPending(ctx, manifest, metas)
		if err != nil {
			log.Error("failed to filter manifest", "error", err)
			os.Exit(1)
		}
		if len(pending) < len(metas) {
			log.Info("skipping already ingested files", "skipped", len(metas)-len(pending))
		}
		metas = pending
	}

	ingestor := lake.New(registry, manifest, dimensions, store, store)
	opts := lake.Options{Force: cfg.Ingest.Force, DryRun: cfg.Ingest.DryRun}
	results := ingestor.IngestBatch(ctx, metas, parser.Parse, opts, cfg.Ingest.Workers)

	var succeeded, skipped, failed int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
		case r.Result.Status == lake.StatusSkipped:
			skipped++
		default:
			succeeded++
		}
	}
	log.Info("ingest run complete",
		"files", len(results),
		"succeeded", succeeded,
		"skipped", skipped,
		"failed", failed)

	if ctx.Err() != nil {
		log.Info("shutdown complete")
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// filterPending keeps the scanned files whose manifest identity has not
// yet succeeded, preserving scan order.
func filterPending(ctx context.Context, manifest catalog.ManifestStore, metas []source.FileMetadata) ([]source.FileMetadata, error) {
	identities := make([]catalog.FileIdentity, len(metas))
	for i, m := range metas {
		identities[i] = catalog.FileIdentity{
			Vendor:     m.Vendor,
			DataType:   m.DataType,
			BronzePath: m.Path,
			FileHash:   m.ContentHash,
		}
	}
	keep, err := manifest.FilterPending(ctx, identities)
	if err != nil {
		return nil, err
	}
	wanted := make(map[catalog.FileIdentity]bool, len(keep))
	for _, id := range keep {
		wanted[id] = true
	}
	out := metas[:0]
	for i, m := range metas {
		if wanted[identities[i]] {
			out = append(out, m)
		}
	}
	return out, nil
}
