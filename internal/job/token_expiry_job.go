package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type TokenSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

type TokenExpiryJob struct {
	tokens TokenSweeper
}

func NewTokenExpiryJob(tokens TokenSweeper) *TokenExpiryJob {
	return &TokenExpiryJob{tokens: tokens}
}

func (j *TokenExpiryJob) Name() string {
	return "share_token_expiry"
}

func (j *TokenExpiryJob) Run(ctx context.Context) error {
	if j.tokens == nil {
		return nil
	}
	marked, err := j.tokens.SweepExpired(ctx)
	if err != nil {
		return err
	}
	if marked > 0 {
		logutil.GetLogger(ctx).Info("share tokens expired", zap.Int64("count", marked))
	}
	return nil
}
