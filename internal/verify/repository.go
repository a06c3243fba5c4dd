package verify

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verity-catalog/verity-catalog/internal/platform/db"
)

// Repository persists verification runs and their per-product results.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repo.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateRun records a new run, normally in PENDING state.
func (r *Repository) CreateRun(ctx context.Context, run Run) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO verification_runs (id, search, brand, status, total, verified, unverified, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,now(),now())`,
		run.ID, run.Filters.Search, run.Filters.Brand, run.Status, run.Total, run.Verified, run.Unverified)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.ConstraintName == "verification_runs_pkey" {
			return ErrRunExists
		}
		return err
	}
	return nil
}

// GetRun fetches a run by id.
func (r *Repository) GetRun(ctx context.Context, id uuid.UUID) (Run, error) {
	var run Run
	err := r.pool.QueryRow(ctx, `SELECT id, COALESCE(search,''), COALESCE(brand,''), status, total, verified, unverified, COALESCE(error,''), started_at, finished_at, created_at, updated_at
FROM verification_runs WHERE id = $1`, id).
		Scan(&run.ID, &run.Filters.Search, &run.Filters.Brand, &run.Status, &run.Total, &run.Verified, &run.Unverified, &run.Error, &run.StartedAt, &run.FinishedAt, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Run{}, ErrRunNotFound
		}
		return Run{}, err
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `SELECT id, COALESCE(search,''), COALESCE(brand,''), status, total, verified, unverified, COALESCE(error,''), started_at, finished_at, created_at, updated_at
FROM verification_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		err := rows.Scan(&run.ID, &run.Filters.Search, &run.Filters.Brand, &run.Status, &run.Total, &run.Verified, &run.Unverified, &run.Error, &run.StartedAt, &run.FinishedAt, &run.CreatedAt, &run.UpdatedAt)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// UpdateRunStatus moves a run through its lifecycle. The first RUNNING
// transition stamps started_at, terminal states stamp finished_at.
func (r *Repository) UpdateRunStatus(ctx context.Context, id uuid.UUID, status RunStatus, errMsg string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE verification_runs
SET status = $2,
    error = NULLIF($3, ''),
    started_at = CASE WHEN $2 = 'RUNNING' AND started_at IS NULL THEN now() ELSE started_at END,
    finished_at = CASE WHEN $2 IN ('COMPLETED','FAILED') THEN now() ELSE finished_at END,
    updated_at = now()
WHERE id = $1`, id, status, errMsg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

// AddRunCounters accumulates page totals onto a run so progress stays
// visible while the run executes.
func (r *Repository) AddRunCounters(ctx context.Context, id uuid.UUID, total, verified, unverified int) error {
	tag, err := r.pool.Exec(ctx, `UPDATE verification_runs
SET total = total + $2, verified = verified + $3, unverified = unverified + $4, updated_at = now()
WHERE id = $1`, id, total, verified, unverified)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

// SaveResults stores a page of per-product verdicts atomically.
func (r *Repository) SaveResults(ctx context.Context, items []StoredResult) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, item := range items {
			payload, err := json.Marshal(item.Result)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `INSERT INTO verification_results (run_id, product_id, product_name, status, result, created_at)
VALUES ($1,$2,$3,$4,$5,now())`,
				item.RunID, item.ProductID, item.ProductName, item.Status, payload); err != nil {
				return err
			}
		}
		return nil
	})
}

// ResultsForRun returns a page of stored verdicts plus the run total.
func (r *Repository) ResultsForRun(ctx context.Context, runID uuid.UUID, limit, offset int) ([]StoredResult, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM verification_results WHERE run_id = $1`, runID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, run_id, product_id, product_name, status, result, created_at
FROM verification_results WHERE run_id = $1 ORDER BY id`
	args := []interface{}{runID}
	if limit > 0 {
		query += ` LIMIT $2 OFFSET $3`
		if offset < 0 {
			offset = 0
		}
		args = append(args, limit, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items, err := scanStoredResults(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// LatestResults resolves the newest stored verdict per product in one
// round trip, keyed by product id.
func (r *Repository) LatestResults(ctx context.Context, productIDs []int64) (map[int64]StoredResult, error) {
	result := make(map[int64]StoredResult)
	if len(productIDs) == 0 {
		return result, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT ON (product_id) id, run_id, product_id, product_name, status, result, created_at
FROM verification_results WHERE product_id = ANY($1) ORDER BY product_id, id DESC`, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanStoredResults(rows)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		result[item.ProductID] = item
	}
	return result, nil
}

func scanStoredResults(rows pgx.Rows) ([]StoredResult, error) {
	var items []StoredResult
	for rows.Next() {
		var item StoredResult
		var payload []byte
		if err := rows.Scan(&item.ID, &item.RunID, &item.ProductID, &item.ProductName, &item.Status, &payload, &item.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &item.Result); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
