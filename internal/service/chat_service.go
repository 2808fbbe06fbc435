package service

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/dshare/internal/ai"
	"github.com/xxxsen/dshare/internal/model"
	appErr "github.com/xxxsen/dshare/internal/pkg/errors"
)

type Asker interface {
	Ask(ctx context.Context, datasetName, content, question string) (string, error)
	MaxInputChars() int
}

// ChatService answers questions about a dataset the requester was granted.
type ChatService struct {
	access    *AccessService
	datasets  *DatasetService
	assistant Asker
}

func NewChatService(access *AccessService, datasets *DatasetService, assistant Asker) *ChatService {
	return &ChatService{access: access, datasets: datasets, assistant: assistant}
}

// Ask counts the chat against the grant's session before calling the model.
func (s *ChatService) Ask(ctx context.Context, grant *AccessGrant, question string) (string, error) {
	if s.assistant == nil {
		return "", ai.ErrUnavailable
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return "", appErr.ErrInvalid
	}
	if grant == nil || !grant.Allowed || grant.Dataset == nil {
		return "", appErr.ErrForbidden
	}
	if err := s.access.Consume(ctx, grant, model.ActivityChat); err != nil {
		return "", err
	}
	limit := int64(s.assistant.MaxInputChars()) * 4
	if limit <= 0 {
		limit = 64 * 1024
	}
	excerpt, err := s.datasets.Preview(ctx, grant.Dataset, limit)
	if err != nil {
		return "", err
	}
	answer, err := s.assistant.Ask(ctx, grant.Dataset.Name, excerpt, question)
	if err != nil {
		logutil.GetLogger(ctx).Error("dataset chat failed", zap.String("dataset_id", grant.Dataset.ID), zap.Error(err))
		return "", err
	}
	return answer, nil
}
