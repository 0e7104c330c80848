// Package timing records how long pipeline stages take and predicts the next
// run from the recent history.
package timing

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// historySize is the number of recent successful runs a prediction averages.
const historySize = 10

type dbConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Recorder stores stage runs in stage_runs.
type Recorder struct {
	db dbConn
}

func NewRecorder(db dbConn) *Recorder {
	return &Recorder{db: db}
}

func (r *Recorder) RecordStage(ctx context.Context, stage string, start time.Time, duration time.Duration, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO stage_runs (stage, started_at, duration_ms, succeeded, error)
		VALUES ($1, $2, $3, $4, $5)
	`, stage, start, duration.Milliseconds(), runErr == nil, msg)
	return err
}

// PredictStage averages the last successful runs of stage. It returns 0 when
// the stage never succeeded.
func (r *Recorder) PredictStage(ctx context.Context, stage string) (time.Duration, error) {
	var avgMs int64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(AVG(duration_ms), 0)::BIGINT
		FROM (
			SELECT duration_ms FROM stage_runs
			WHERE stage = $1 AND succeeded
			ORDER BY started_at DESC
			LIMIT $2
		) recent
	`, stage, historySize).Scan(&avgMs)
	if err != nil {
		return 0, err
	}
	return time.Duration(avgMs) * time.Millisecond, nil
}
