package store

// Result queries.
const (
	queryInsertResult = `
		INSERT INTO extraction_results (id, account_id, taken_at, total_count, summary)
		VALUES (@id, @account_id, @taken_at, @total_count, @summary)`

	queryInsertProduct = `
		INSERT INTO products (
			result_id, position, item_id, title, price, currency,
			status, condition, available_quantity, sold_quantity,
			access_method, record
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12
		)`

	queryLatestResult = `
		SELECT id, summary
		FROM extraction_results
		ORDER BY taken_at DESC, created_at DESC
		LIMIT 1`

	queryProductsByResult = `
		SELECT record
		FROM products
		WHERE result_id = $1
		ORDER BY position`

	queryGetProduct = `
		SELECT record
		FROM products
		WHERE item_id = $1
		  AND result_id = (` + latestResultIDSubquery + `)`

	// Only the two most recent snapshots are kept.
	queryPruneResults = `
		DELETE FROM extraction_results
		WHERE id NOT IN (
			SELECT id FROM extraction_results
			ORDER BY taken_at DESC, created_at DESC
			LIMIT 2
		)`
)

const latestResultIDSubquery = `SELECT id FROM extraction_results ORDER BY taken_at DESC, created_at DESC LIMIT 1`

// Run report queries.
const (
	queryUpsertRun = `
		INSERT INTO run_reports (
			run_id, started_at, finished_at, status, reason, error_text,
			requested, resolved, skipped, stopped_at
		) VALUES (
			@run_id, @started_at, @finished_at, @status, @reason, @error_text,
			@requested, @resolved, @skipped, @stopped_at
		)
		ON CONFLICT (run_id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			status = EXCLUDED.status,
			reason = EXCLUDED.reason,
			error_text = EXCLUDED.error_text,
			requested = EXCLUDED.requested,
			resolved = EXCLUDED.resolved,
			skipped = EXCLUDED.skipped,
			stopped_at = EXCLUDED.stopped_at`

	queryListRuns = `
		SELECT run_id, started_at, finished_at, status, reason, error_text,
		       requested, resolved, skipped, stopped_at
		FROM run_reports
		ORDER BY started_at DESC
		LIMIT $1`
)
