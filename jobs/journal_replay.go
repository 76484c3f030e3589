package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/shiksha-erp/shiksha-erp/internal/jobs"
)

// JournalReplayJob rebuilds monthly_cells.paid from the live receipt journal.
// The journal is the source of truth; paid is a projection, so a replay run
// zeroes it and re-applies every allocation whose receipt has no tombstone.
type JournalReplayJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewJournalReplayJob initialises the replay handler.
func NewJournalReplayJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *JournalReplayJob {
	return &JournalReplayJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the replay.
func (j *JournalReplayJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("journal replay: handler not configured")
	}
	var payload JournalReplayPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.TenantID == 0 || payload.SessionID == 0 {
		return asynq.SkipRetry
	}

	start := j.now()
	tracker := j.metrics().Track(TaskJournalReplay)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(
		slog.Int64("tenant_id", payload.TenantID),
		slog.Int64("session_id", payload.SessionID),
		slog.Int64("student_id", payload.StudentID),
	)
	logger.Info("starting journal replay")

	touched, err := j.replay(ctx, payload)
	if err != nil {
		resultErr = err
		logger.Error("replay failed", slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddCells(TaskJournalReplay, int(touched))

	logger.Info("completed journal replay",
		slog.Int64("cells", touched),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *JournalReplayJob) replay(ctx context.Context, payload JournalReplayPayload) (int64, error) {
	if j.Pool == nil {
		return 0, errors.New("journal replay: pool not configured")
	}
	tx, err := j.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	reset, err := tx.Exec(ctx, `UPDATE monthly_cells
SET paid = 0
WHERE tenant_id=$1 AND session_id=$2 AND ($3::bigint = 0 OR student_id=$3) AND paid <> 0`,
		payload.TenantID, payload.SessionID, payload.StudentID)
	if err != nil {
		return 0, err
	}

	applied, err := tx.Exec(ctx, `UPDATE monthly_cells c
SET paid = s.total
FROM (
	SELECT r.student_id, a.component_id, a.month, SUM(a.amount) AS total
	FROM receipt_allocations a
	JOIN receipts r ON r.tenant_id=a.tenant_id AND r.session_id=a.session_id AND r.receipt_no=a.receipt_no
	WHERE r.tenant_id=$1 AND r.session_id=$2 AND ($3::bigint = 0 OR r.student_id=$3)
	AND NOT EXISTS (
		SELECT 1 FROM receipt_deletions d
		WHERE d.tenant_id=r.tenant_id AND d.session_id=r.session_id AND d.receipt_no=r.receipt_no)
	GROUP BY r.student_id, a.component_id, a.month
) s
WHERE c.tenant_id=$1 AND c.session_id=$2
AND c.student_id=s.student_id AND c.component_id=s.component_id AND c.month=s.month`,
		payload.TenantID, payload.SessionID, payload.StudentID)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	touched := reset.RowsAffected()
	if applied.RowsAffected() > touched {
		touched = applied.RowsAffected()
	}
	return touched, nil
}

func (j *JournalReplayJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskJournalReplay))
	}
	return slog.Default().With(slog.String("job", TaskJournalReplay))
}

func (j *JournalReplayJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *JournalReplayJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
