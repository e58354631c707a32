package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/donaldgifford/meli-harvester/internal/sink"
	domain "github.com/donaldgifford/meli-harvester/pkg/types"
)

const defaultPoolSize = 10

// PostgresStore implements Store using pgxpool (connection-pooled PostgreSQL).
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new PostgresStore with connection pooling. A
// pool_max_conns value in connString overrides the default pool size.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	if cfg.MaxConns <= 0 {
		cfg.MaxConns = defaultPoolSize
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close gracefully shuts down the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping verifies the database connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies pending SQL schema migrations and returns their versions.
func (s *PostgresStore) Migrate(ctx context.Context) ([]string, error) {
	return RunMigrations(ctx, s.pool)
}

// Save writes a result and its products in one transaction, then prunes old
// snapshots.
func (s *PostgresStore) Save(ctx context.Context, result *domain.ExtractionResult) error {
	summary, err := json.Marshal(result.Summary)
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	resultID := uuid.NewString()
	if _, err := tx.Exec(ctx, queryInsertResult, pgx.NamedArgs{
		"id":          resultID,
		"account_id":  result.Summary.AccountID,
		"taken_at":    result.Summary.Timestamp,
		"total_count": result.Summary.TotalCount,
		"summary":     summary,
	}); err != nil {
		return fmt.Errorf("inserting result: %w", err)
	}

	batch := &pgx.Batch{}
	for i := range result.Products {
		p := &result.Products[i]
		record, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshaling product %s: %w", p.ID, err)
		}
		batch.Queue(queryInsertProduct,
			resultID, i, p.ID, p.Title, p.Price, p.Currency,
			p.Status, p.Condition, p.AvailableQuantity, p.SoldQuantity,
			string(p.AccessMethod), record,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting products: %w", err)
	}

	if _, err := tx.Exec(ctx, queryPruneResults); err != nil {
		return fmt.Errorf("pruning results: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing result: %w", err)
	}
	return nil
}

// Latest returns the most recent result, or sink.ErrNoResult.
func (s *PostgresStore) Latest(ctx context.Context) (*domain.ExtractionResult, error) {
	var (
		resultID string
		summary  []byte
	)
	err := s.pool.QueryRow(ctx, queryLatestResult).Scan(&resultID, &summary)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sink.ErrNoResult
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest result: %w", err)
	}

	result := &domain.ExtractionResult{}
	if err := json.Unmarshal(summary, &result.Summary); err != nil {
		return nil, fmt.Errorf("decoding summary: %w", err)
	}

	rows, err := s.pool.Query(ctx, queryProductsByResult, resultID)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}
	products, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	result.Products = products
	return result, nil
}

// ListProducts queries the latest snapshot with optional filters, returning
// the page and the total match count.
func (s *PostgresStore) ListProducts(
	ctx context.Context,
	q *ProductQuery,
) ([]domain.ProductRecord, int, error) {
	dataSQL, countSQL, args := q.ToSQL()

	var total int
	if err := s.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting products: %w", err)
	}

	rows, err := s.pool.Query(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying products: %w", err)
	}
	products, err := scanRecords(rows)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// GetProduct returns one product from the latest snapshot.
func (s *PostgresStore) GetProduct(ctx context.Context, itemID string) (*domain.ProductRecord, error) {
	var record []byte
	err := s.pool.QueryRow(ctx, queryGetProduct, itemID).Scan(&record)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying product %s: %w", itemID, err)
	}

	var p domain.ProductRecord
	if err := json.Unmarshal(record, &p); err != nil {
		return nil, fmt.Errorf("decoding product %s: %w", itemID, err)
	}
	return &p, nil
}

// RecordRun inserts or updates a run report.
func (s *PostgresStore) RecordRun(ctx context.Context, r *domain.RunReport) error {
	skipped, err := json.Marshal(nonNil(r.Skipped))
	if err != nil {
		return fmt.Errorf("marshaling skipped ids: %w", err)
	}

	_, err = s.pool.Exec(ctx, queryUpsertRun, pgx.NamedArgs{
		"run_id":      r.RunID,
		"started_at":  r.StartedAt,
		"finished_at": r.FinishedAt,
		"status":      string(r.Status),
		"reason":      string(r.Reason),
		"error_text":  r.Error,
		"requested":   r.Requested,
		"resolved":    r.Resolved,
		"skipped":     skipped,
		"stopped_at":  r.StoppedAt,
	})
	if err != nil {
		return fmt.Errorf("recording run %s: %w", r.RunID, err)
	}
	return nil
}

// ListRuns returns the most recent run reports, newest first.
func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]domain.RunReport, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	rows, err := s.pool.Query(ctx, queryListRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunReport
	for rows.Next() {
		var (
			r       domain.RunReport
			status  string
			reason  string
			skipped []byte
		)
		if err := rows.Scan(
			&r.RunID, &r.StartedAt, &r.FinishedAt, &status, &reason, &r.Error,
			&r.Requested, &r.Resolved, &skipped, &r.StoppedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Status = domain.OutcomeStatus(status)
		r.Reason = domain.FailureReason(reason)
		if err := json.Unmarshal(skipped, &r.Skipped); err != nil {
			return nil, fmt.Errorf("decoding skipped ids for run %s: %w", r.RunID, err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

func scanRecords(rows pgx.Rows) ([]domain.ProductRecord, error) {
	defer rows.Close()

	products := []domain.ProductRecord{}
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		var p domain.ProductRecord
		if err := json.Unmarshal(record, &p); err != nil {
			return nil, fmt.Errorf("decoding product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating products: %w", err)
	}
	return products, nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
