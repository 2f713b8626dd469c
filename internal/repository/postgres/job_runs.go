package postgres

import (
	"context"
	"fmt"
	"time"
)

// ClaimJobRun inserts a job-run marker; an existing marker means the run
// already happened
func (q *queries) ClaimJobRun(ctx context.Context, job, key string, at time.Time) (bool, error) {
	result, err := q.db.Exec(ctx, `
		INSERT INTO job_runs (job, run_key, ran_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (job, run_key) DO NOTHING
	`, job, key, at)
	if err != nil {
		return false, fmt.Errorf("failed to claim job run: %w", err)
	}
	return result.RowsAffected() == 1, nil
}
