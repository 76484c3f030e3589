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

// SessionRolloverJob freezes each student's remaining due at the end of one
// academic session into the opening balance of the next. The frozen figure is
// never recomputed afterwards; later edits to the old session do not leak
// into the new one unless the rollover is run again.
type SessionRolloverJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewSessionRolloverJob initialises the rollover handler.
func NewSessionRolloverJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionRolloverJob {
	return &SessionRolloverJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the rollover.
func (j *SessionRolloverJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("session rollover: handler not configured")
	}
	var payload SessionRolloverPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.TenantID == 0 || payload.FromSessionID == 0 || payload.ToSessionID == 0 ||
		payload.FromSessionID == payload.ToSessionID {
		return asynq.SkipRetry
	}

	start := j.now()
	tracker := j.metrics().Track(TaskSessionRollover)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(
		slog.Int64("tenant_id", payload.TenantID),
		slog.Int64("from_session_id", payload.FromSessionID),
		slog.Int64("to_session_id", payload.ToSessionID),
	)
	logger.Info("starting session rollover")

	students, err := j.rollover(ctx, payload)
	if err != nil {
		resultErr = err
		logger.Error("rollover failed", slog.Any("error", err))
		return resultErr
	}

	logger.Info("completed session rollover",
		slog.Int64("students", students),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *SessionRolloverJob) rollover(ctx context.Context, payload SessionRolloverPayload) (int64, error) {
	if j.Pool == nil {
		return 0, errors.New("session rollover: pool not configured")
	}
	tx, err := j.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Remaining due is old balance plus every open net-minus-paid in the
	// closing session; rerunning the job refreshes an earlier freeze.
	tag, err := tx.Exec(ctx, `INSERT INTO student_accounts
(tenant_id, session_id, student_id, student_name, class_name, old_balance, sibling_group_id)
SELECT a.tenant_id, $3, a.student_id, a.student_name, a.class_name,
	a.old_balance + COALESCE(SUM(c.base - c.discount + c.fine - c.paid), 0),
	a.sibling_group_id
FROM student_accounts a
LEFT JOIN monthly_cells c
	ON c.tenant_id=a.tenant_id AND c.session_id=a.session_id AND c.student_id=a.student_id
WHERE a.tenant_id=$1 AND a.session_id=$2
GROUP BY a.tenant_id, a.student_id, a.student_name, a.class_name, a.old_balance, a.sibling_group_id
ON CONFLICT (tenant_id, session_id, student_id)
DO UPDATE SET old_balance = EXCLUDED.old_balance`,
		payload.TenantID, payload.FromSessionID, payload.ToSessionID)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (j *SessionRolloverJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSessionRollover))
	}
	return slog.Default().With(slog.String("job", TaskSessionRollover))
}

func (j *SessionRolloverJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *SessionRolloverJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
