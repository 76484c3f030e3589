package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/shiksha-erp/shiksha-erp/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskJournalReplay rebuilds the schedule's paid projection from the
	// receipt journal.
	TaskJournalReplay = "fees:journal_replay"
	// TaskSessionRollover freezes each student's remaining due into the next
	// session's opening balance.
	TaskSessionRollover = "fees:session_rollover"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// JournalReplayPayload scopes a replay run. StudentID zero replays the whole
// tenant session.
type JournalReplayPayload struct {
	TenantID  int64 `json:"tenant_id"`
	SessionID int64 `json:"session_id"`
	StudentID int64 `json:"student_id,omitempty"`
}

// NewJournalReplayTask constructs an Asynq task.
func NewJournalReplayTask(payload JournalReplayPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskJournalReplay, data), nil
}

// SessionRolloverPayload names the session pair being rolled over.
type SessionRolloverPayload struct {
	TenantID      int64 `json:"tenant_id"`
	FromSessionID int64 `json:"from_session_id"`
	ToSessionID   int64 `json:"to_session_id"`
}

// NewSessionRolloverTask constructs an Asynq task.
func NewSessionRolloverTask(payload SessionRolloverPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionRollover, data), nil
}
