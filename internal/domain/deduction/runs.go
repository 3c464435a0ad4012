package deduction

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// RunRecord is one persisted scheduled-run outcome, kept for operator
// visibility into what each run did.
type RunRecord struct {
	ID           uuid.UUID `db:"id"`
	Kind         string    `db:"kind"`
	Processed    int       `db:"processed"`
	Failed       int       `db:"failed"`
	Paused       int       `db:"paused"`
	Resumed      int       `db:"resumed"`
	Increased    int       `db:"increased"`
	OracleErrors int       `db:"oracle_errors"`
	StartedAt    time.Time `db:"started_at"`
	FinishedAt   time.Time `db:"finished_at"`
}

// Run kinds
const (
	RunKindDaily      = "daily"
	RunKindAutoResume = "auto_resume"
	RunKindIncrease   = "auto_increase"
)

// RunStore persists run records
type RunStore interface {
	Record(ctx context.Context, rec *RunRecord) error
}

type runRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates the daily_runs repository
func NewRunRepository(db *sqlx.DB) RunStore {
	return &runRepository{db: db}
}

func (r *runRepository) Record(ctx context.Context, rec *RunRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO daily_runs (
			id, kind, processed, failed, paused, resumed, increased,
			oracle_errors, started_at, finished_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, rec.ID, rec.Kind, rec.Processed, rec.Failed, rec.Paused, rec.Resumed,
		rec.Increased, rec.OracleErrors, rec.StartedAt, rec.FinishedAt)
	return err
}
