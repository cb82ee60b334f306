package lake

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quantmill/marketlake/internal/catalog"
	"github.com/quantmill/marketlake/internal/conform"
	"github.com/quantmill/marketlake/internal/lakestore"
	"github.com/quantmill/marketlake/internal/lineage"
	"github.com/quantmill/marketlake/internal/logging"
	"github.com/quantmill/marketlake/internal/metrics"
	"github.com/quantmill/marketlake/internal/rules"
	"github.com/quantmill/marketlake/internal/scd"
	"github.com/quantmill/marketlake/internal/source"
	"github.com/quantmill/marketlake/internal/tables"
)

// Parser turns a discovered bronze file into intermediate rows. The
// CSV reference parser lives in internal/source; tests substitute their
// own.
type Parser func(ctx context.Context, meta source.FileMetadata) ([]tables.Row, error)

// Options control a single Ingest call.
type Options struct {
	// Force re-processes a file whose manifest entry already succeeded,
	// or one stuck in processing after a crash. Re-runs overwrite the
	// same object keys with identical bytes.
	Force bool

	// DryRun executes everything up to and including normalization but
	// performs no writes: no claim, no lake objects, no manifest update.
	DryRun bool
}

// Status is the outcome of one Ingest call.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Result summarizes one Ingest call.
type Result struct {
	Status          Status
	FileID          int64
	RowsRead        int64
	RowsWritten     int64
	RowsQuarantined int64
}

// Ingestor runs the per-file pipeline: resolve the feed spec, settle
// idempotency against the manifest, parse, canonicalize, validate,
// resolve symbols point-in-time, stamp lineage, normalize, and append
// to the event and quarantine stores before recording the final
// manifest status.
type Ingestor struct {
	registry   *tables.Registry
	manifest   catalog.ManifestStore
	dimensions catalog.DimensionStore
	events     lakestore.EventStore
	quarantine lakestore.QuarantineStore
	log        *slog.Logger
}

func New(registry *tables.Registry, manifest catalog.ManifestStore, dimensions catalog.DimensionStore, events lakestore.EventStore, quarantine lakestore.QuarantineStore) *Ingestor {
	return &Ingestor{
		registry:   registry,
		manifest:   manifest,
		dimensions: dimensions,
		events:     events,
		quarantine: quarantine,
		log:        logging.Component("ingestor"),
	}
}

// Ingest processes one bronze file end to end. Row-level problems are
// quarantined, never dropped; file-level problems fail the whole file
// with nothing written. The returned error is non-nil only for
// file-level failures.
func (in *Ingestor) Ingest(ctx context.Context, meta source.FileMetadata, parse Parser, opts Options) (Result, error) {
	runID := uuid.New().String()
	start := time.Now()

	// Stage 1: feed registry. Unknown feeds fail before any catalog or
	// storage traffic.
	spec, err := in.registry.Resolve(meta.Vendor, meta.DataType)
	if err != nil {
		return Result{Status: StatusFailed}, &ConfigurationError{
			Key: meta.Vendor + "/" + meta.DataType,
			Err: err,
		}
	}

	labels := metrics.Labels{Vendor: meta.Vendor, DataType: meta.DataType, Table: spec.Table}
	defer func() {
		metrics.Get().ObserveIngestDuration(labels, time.Since(start).Seconds())
	}()

	// Stage 2: idempotency. The file id is allocated on first sight and
	// stable thereafter; the claim is the mutual-exclusion point.
	identity := catalog.FileIdentity{
		Vendor:     meta.Vendor,
		DataType:   meta.DataType,
		BronzePath: meta.Path,
		FileHash:   meta.ContentHash,
	}
	fileID, err := in.manifest.ResolveFileID(ctx, identity)
	if err != nil {
		return Result{Status: StatusFailed}, &StorageError{Op: "resolve file id", Err: err}
	}

	log := logging.FileLogger(runID, meta.Vendor, meta.DataType, meta.Path, fileID)

	entry, err := in.manifest.Lookup(ctx, identity)
	if err != nil {
		return Result{Status: StatusFailed, FileID: fileID}, &StorageError{Op: "manifest lookup", Err: err}
	}
	if entry != nil && entry.Status == catalog.StatusSucceeded && !opts.Force {
		log.Info("file already ingested, skipping",
			"rows_written", entry.Counts.Written,
			"rows_quarantined", entry.Counts.Quarantined)
		metrics.Get().IncFileSkipped(labels)
		return Result{
			Status:          StatusSkipped,
			FileID:          fileID,
			RowsRead:        entry.Counts.Read,
			RowsWritten:     entry.Counts.Written,
			RowsQuarantined: entry.Counts.Quarantined,
		}, nil
	}

	if !opts.DryRun {
		claimed, err := in.manifest.Claim(ctx, fileID, opts.Force)
		if err != nil {
			return Result{Status: StatusFailed, FileID: fileID}, &StorageError{Op: "manifest claim", Err: err}
		}
		if !claimed {
			log.Info("file claimed by another worker, skipping")
			metrics.Get().IncFileSkipped(labels)
			return Result{Status: StatusSkipped, FileID: fileID}, nil
		}
	}

	// Stage 3: parse. A parse failure fails the whole file.
	raw, err := parse(ctx, meta)
	if err != nil {
		in.fail(ctx, log, labels, fileID, CategoryParse, catalog.Counts{}, opts.DryRun)
		return Result{Status: StatusFailed, FileID: fileID}, &ParseError{Path: meta.Path, Err: err}
	}
	rowsRead := int64(len(raw))
	log.Info("parsed bronze file", "rows_read", rowsRead)

	// Stage 4: canonicalize vendor column names.
	rows := canonicalize(raw, spec.Renames)

	// Stage 5: derive trading_date from the event timestamp in the
	// exchange's local timezone. Rows whose exchange or timestamp does
	// not yield a date are left without one and quarantined in stage 6.
	in.deriveTradingDate(rows)

	var quarantined []tables.QuarantineRecord

	// Stage 6: generic validation.
	accepted, rejected := rules.Apply(rows, rules.Generic(spec))
	quarantined = appendRejections(quarantined, rejected, "generic")

	// Stage 7: venue-specific validation.
	accepted, rejected = rules.Apply(accepted, rules.Venue(spec))
	quarantined = appendRejections(quarantined, rejected, "venue")

	// Stage 8: point-in-time symbol resolution against the dimension as
	// of each row's own event timestamp.
	dim, _, err := in.dimensions.Load(ctx)
	if err != nil {
		in.fail(ctx, log, labels, fileID, CategoryStorage, catalog.Counts{Read: rowsRead}, opts.DryRun)
		return Result{Status: StatusFailed, FileID: fileID}, &StorageError{Op: "load dimension", Err: err}
	}
	accepted, quarantined = resolveSymbols(dim, accepted, quarantined)

	// Stage 9: lineage. Deterministic total order, then (file_id,
	// file_seq) stamps.
	accepted = lineage.Assign(accepted, fileID, spec.Schema.SortKeys)

	// Stage 10: normalize to the canonical schema.
	accepted, err = conform.Normalize(accepted, spec.Schema)
	if err != nil {
		in.fail(ctx, log, labels, fileID, CategoryConfiguration, catalog.Counts{Read: rowsRead}, opts.DryRun)
		return Result{Status: StatusFailed, FileID: fileID}, &ConfigurationError{Key: spec.Table, Err: err}
	}

	counts := catalog.Counts{
		Read:        rowsRead,
		Written:     int64(len(accepted)),
		Quarantined: int64(len(quarantined)),
	}
	if counts.Read != counts.Written+counts.Quarantined {
		in.fail(ctx, log, labels, fileID, CategoryInternal, counts, opts.DryRun)
		return Result{Status: StatusFailed, FileID: fileID}, fmt.Errorf(
			"row accounting mismatch for file %d: read %d, written %d, quarantined %d",
			fileID, counts.Read, counts.Written, counts.Quarantined)
	}

	result := Result{
		Status:          StatusSuccess,
		FileID:          fileID,
		RowsRead:        counts.Read,
		RowsWritten:     counts.Written,
		RowsQuarantined: counts.Quarantined,
	}

	if opts.DryRun {
		log.Info("dry run complete",
			"rows_written", counts.Written,
			"rows_quarantined", counts.Quarantined)
		return result, nil
	}

	// Stage 11: event append. A failure here stops the run before the
	// quarantine write so a partially ingested file is never marked
	// succeeded.
	if err := in.events.Append(ctx, spec.Table, fileID, accepted); err != nil {
		in.fail(ctx, log, labels, fileID, CategoryStorage, counts, false)
		return Result{Status: StatusFailed, FileID: fileID}, &StorageError{Op: "event append", Err: err}
	}

	// Stage 12: quarantine append.
	if len(quarantined) > 0 {
		if err := in.quarantine.AppendQuarantine(ctx, spec.Table, fileID, quarantined); err != nil {
			in.fail(ctx, log, labels, fileID, CategoryStorage, counts, false)
			return Result{Status: StatusFailed, FileID: fileID}, &StorageError{Op: "quarantine append", Err: err}
		}
	}

	// Stage 13: the manifest update is the last durable action; only a
	// succeeded status makes the file skippable.
	if err := in.manifest.UpdateStatus(ctx, fileID, catalog.StatusSucceeded, counts, ""); err != nil {
		return Result{Status: StatusFailed, FileID: fileID}, &StorageError{Op: "manifest update", Err: err}
	}

	metrics.Get().IncFileProcessed(labels)
	metrics.Get().AddRows(labels, counts.Written, counts.Quarantined)
	byStage := map[string]int64{}
	for _, rec := range quarantined {
		byStage[rec.Stage]++
	}
	for stage, n := range byStage {
		metrics.Get().AddQuarantineReason(labels, stage, n)
	}

	log.Info("file ingested",
		"rows_read", counts.Read,
		"rows_written", counts.Written,
		"rows_quarantined", counts.Quarantined,
		"duration", time.Since(start).String())
	return result, nil
}

// fail records a failed manifest status. Dry runs and pre-identity
// failures leave the manifest untouched.
func (in *Ingestor) fail(ctx context.Context, log *slog.Logger, labels metrics.Labels, fileID int64, category string, counts catalog.Counts, dryRun bool) {
	metrics.Get().IncFileFailed(labels)
	if dryRun || fileID == 0 {
		return
	}
	if err := in.manifest.UpdateStatus(ctx, fileID, catalog.StatusFailed, counts, category); err != nil {
		log.Warn("failed to record failed status", "error", err)
	}
}

// canonicalize renames vendor-native columns to canonical names,
// leaving unlisted columns untouched. Rows are cloned so the parser's
// output is never mutated.
func canonicalize(rows []tables.Row, renames map[string]string) []tables.Row {
	out := make([]tables.Row, len(rows))
	for i, row := range rows {
		r := row.Clone()
		for from, to := range renames {
			if v, ok := r[from]; ok {
				delete(r, from)
				r[to] = v
			}
		}
		out[i] = r
	}
	return out
}

func (in *Ingestor) deriveTradingDate(rows []tables.Row) {
	for _, row := range rows {
		ts, ok := row.Int64(tables.ColEventTsUs)
		if !ok || ts <= 0 {
			continue
		}
		exchange, ok := row.String(tables.ColExchange)
		if !ok {
			continue
		}
		loc, ok := in.registry.Location(exchange)
		if !ok {
			continue
		}
		row[tables.ColTradingDate] = time.UnixMicro(ts).In(loc).Format("2006-01-02")
	}
}

// resolveSymbols stamps symbol_id on rows whose natural key has a
// dimension window covering the event timestamp, and quarantines the
// rest.
func resolveSymbols(dim scd.Dimension, rows []tables.Row, quarantined []tables.QuarantineRecord) ([]tables.Row, []tables.QuarantineRecord) {
	resolver := scd.NewResolver(dim)
	accepted := make([]tables.Row, 0, len(rows))
	for _, row := range rows {
		exchange, _ := row.String(tables.ColExchange)
		symbol, _ := row.String(tables.ColExchangeSymbol)
		ts, _ := row.Int64(tables.ColEventTsUs)
		key := scd.NaturalKey{Exchange: exchange, ExchangeSymbol: symbol}
		dimRow, ok := resolver.Resolve(key, ts)
		if !ok {
			quarantined = append(quarantined, tables.QuarantineRecord{
				Row:    row,
				Stage:  "pit",
				Reason: fmt.Sprintf("no PIT coverage: %s at %d", key, ts),
			})
			continue
		}
		row[tables.ColSymbolID] = dimRow.SymbolID
		accepted = append(accepted, row)
	}
	return accepted, quarantined
}

func appendRejections(quarantined []tables.QuarantineRecord, rejected []rules.Rejection, stage string) []tables.QuarantineRecord {
	for _, rej := range rejected {
		quarantined = append(quarantined, tables.QuarantineRecord{
			Row:    rej.Row,
			Stage:  stage,
			Reason: rej.Reason,
		})
	}
	return quarantined
}
