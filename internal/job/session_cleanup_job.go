package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type SessionSweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// SessionCleanupJob deletes anonymous sessions past their retention.
type SessionCleanupJob struct {
	sessions SessionSweeper
}

func NewSessionCleanupJob(sessions SessionSweeper) *SessionCleanupJob {
	return &SessionCleanupJob{sessions: sessions}
}

func (j *SessionCleanupJob) Name() string {
	return "session_cleanup"
}

func (j *SessionCleanupJob) Run(ctx context.Context) error {
	if j.sessions == nil {
		return nil
	}
	removed, err := j.sessions.Sweep(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		logutil.GetLogger(ctx).Info("expired sessions removed", zap.Int64("count", removed))
	}
	return nil
}
