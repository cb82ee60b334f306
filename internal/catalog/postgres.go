package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantmill/marketlake/internal/scd"
)

//go:embed schema.sql
var schemaSQL string

// CatalogConfig configures the Postgres catalog.
type CatalogConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Postgres implements ManifestStore and DimensionStore against PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewPostgres connects to the catalog database and ensures the schema.
func NewPostgres(ctx context.Context, cfg CatalogConfig) (*Postgres, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}
	poolCfg.MaxConns = 5
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	p := &Postgres{pool: pool, log: slog.With("component", "catalog")}
	if _, err := pool.Exec(connectCtx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	p.log.Info("connected to catalog")
	return p, nil
}

func (p *Postgres) ResolveFileID(ctx context.Context, id FileIdentity) (int64, error) {
	query := `
		INSERT INTO ingest_manifest (vendor, data_type, bronze_path, file_hash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (vendor, data_type, bronze_path, file_hash)
		DO UPDATE SET updated_at = ingest_manifest.updated_at
		RETURNING file_id
	`
	var fileID int64
	err := p.pool.QueryRow(ctx, query, id.Vendor, id.DataType, id.BronzePath, id.FileHash).Scan(&fileID)
	if err != nil {
		return 0, fmt.Errorf("resolve file id: %w", err)
	}
	return fileID, nil
}

func (p *Postgres) Lookup(ctx context.Context, id FileIdentity) (*ManifestEntry, error) {
	query := `
		SELECT file_id, status, rows_read, rows_written, rows_quarantined,
		       COALESCE(error_category, ''), discovered_at, updated_at
		FROM ingest_manifest
		WHERE vendor = $1 AND data_type = $2 AND bronze_path = $3 AND file_hash = $4
	`
	e := ManifestEntry{Identity: id}
	err := p.pool.QueryRow(ctx, query, id.Vendor, id.DataType, id.BronzePath, id.FileHash).Scan(
		&e.FileID, &e.Status,
		&e.Counts.Read, &e.Counts.Written, &e.Counts.Quarantined,
		&e.ErrorCategory, &e.DiscoveredAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup manifest: %w", err)
	}
	return &e, nil
}

func (p *Postgres) Claim(ctx context.Context, fileID int64, force bool) (bool, error) {
	// The WHERE clause is the mutual exclusion: at most one concurrent
	// caller observes a claimable status and flips it to processing.
	query := `
		UPDATE ingest_manifest
		SET status = 'processing', updated_at = NOW()
		WHERE file_id = $1
		  AND (status IN ('pending', 'failed') OR ($2 AND status IN ('succeeded', 'processing')))
	`
	tag, err := p.pool.Exec(ctx, query, fileID, force)
	if err != nil {
		return false, fmt.Errorf("claim file %d: %w", fileID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (p *Postgres) FilterPending(ctx context.Context, candidates []FileIdentity) ([]FileIdentity, error) {
	var out []FileIdentity
	for _, id := range candidates {
		e, err := p.Lookup(ctx, id)
		if err != nil {
			return nil, err
		}
		if e != nil && e.Status == StatusSucceeded {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

func (p *Postgres) UpdateStatus(ctx context.Context, fileID int64, status Status, counts Counts, errorCategory string) error {
	query := `
		UPDATE ingest_manifest
		SET status = $2, rows_read = $3, rows_written = $4,
		    rows_quarantined = $5, error_category = NULLIF($6, ''),
		    updated_at = NOW()
		WHERE file_id = $1
	`
	_, err := p.pool.Exec(ctx, query, fileID, string(status),
		counts.Read, counts.Written, counts.Quarantined, errorCategory)
	if err != nil {
		return fmt.Errorf("update status for file %d: %w", fileID, err)
	}
	return nil
}

func (p *Postgres) Load(ctx context.Context) (scd.Dimension, int64, error) {
	var version int64
	err := p.pool.QueryRow(ctx, `SELECT version FROM symbol_dimension_head WHERE id = 1`).Scan(&version)
	if err != nil {
		return scd.Dimension{}, 0, fmt.Errorf("load dimension version: %w", err)
	}

	rows, err := p.pool.Query(ctx, `
		SELECT exchange, exchange_symbol, canonical_symbol, market_type,
		       base_asset, quote_asset, tick_size, lot_size, contract_size,
		       valid_from_ts_us, valid_until_ts_us, symbol_id
		FROM symbol_dimension
		ORDER BY exchange, exchange_symbol, valid_from_ts_us
	`)
	if err != nil {
		return scd.Dimension{}, 0, fmt.Errorf("load dimension rows: %w", err)
	}
	defer rows.Close()

	var dim scd.Dimension
	for rows.Next() {
		var r scd.Row
		if err := rows.Scan(
			&r.Key.Exchange, &r.Key.ExchangeSymbol,
			&r.CanonicalSymbol, &r.MarketType,
			&r.BaseAsset, &r.QuoteAsset,
			&r.TickSize, &r.LotSize, &r.ContractSize,
			&r.ValidFromTsUs, &r.ValidUntilTsUs, &r.SymbolID,
		); err != nil {
			return scd.Dimension{}, 0, fmt.Errorf("scan dimension row: %w", err)
		}
		dim.Rows = append(dim.Rows, r)
	}
	if err := rows.Err(); err != nil {
		return scd.Dimension{}, 0, fmt.Errorf("read dimension rows: %w", err)
	}
	return dim, version, nil
}

func (p *Postgres) Save(ctx context.Context, dim scd.Dimension, expectedVersion int64) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin dimension save: %w", err)
	}
	defer tx.Rollback(ctx)

	// Optimistic concurrency: the version bump only succeeds if no
	// concurrent writer advanced it since our Load.
	tag, err := tx.Exec(ctx, `
		UPDATE symbol_dimension_head
		SET version = version + 1
		WHERE id = 1 AND version = $1
	`, expectedVersion)
	if err != nil {
		return fmt.Errorf("advance dimension version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}

	if _, err := tx.Exec(ctx, `DELETE FROM symbol_dimension`); err != nil {
		return fmt.Errorf("clear dimension: %w", err)
	}

	batch := &pgx.Batch{}
	for _, r := range dim.Rows {
		batch.Queue(`
			INSERT INTO symbol_dimension (
				exchange, exchange_symbol, canonical_symbol, market_type,
				base_asset, quote_asset, tick_size, lot_size, contract_size,
				valid_from_ts_us, valid_until_ts_us, symbol_id
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`,
			r.Key.Exchange, r.Key.ExchangeSymbol,
			r.CanonicalSymbol, r.MarketType,
			r.BaseAsset, r.QuoteAsset,
			r.TickSize, r.LotSize, r.ContractSize,
			r.ValidFromTsUs, r.ValidUntilTsUs, r.SymbolID,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert dimension rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit dimension save: %w", err)
	}
	return nil
}

// Close releases database connections.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
