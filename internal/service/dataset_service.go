package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/dshare/internal/filestore"
	"github.com/xxxsen/dshare/internal/model"
	appErr "github.com/xxxsen/dshare/internal/pkg/errors"
)

// FileStore holds raw dataset bytes keyed by dataset id.
type FileStore interface {
	Save(ctx context.Context, key string, r filestore.ReadSeekCloser, size int64) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

type DatasetService struct {
	datasets DatasetStore
	files    FileStore
	perms    *permissionTable
	now      func() time.Time
}

func NewDatasetService(datasets DatasetStore, files FileStore) *DatasetService {
	return &DatasetService{
		datasets: datasets,
		files:    files,
		perms:    newPermissionTable(),
		now:      time.Now,
	}
}

type CreateDatasetInput struct {
	Name        string
	ContentType string
	Size        int64
	Body        filestore.ReadSeekCloser
}

// Create stores the uploaded bytes and registers a private dataset owned by
// user within the user's organization.
func (s *DatasetService) Create(ctx context.Context, user *AuthenticatedUser, input CreateDatasetInput) (*model.Dataset, error) {
	if user == nil {
		return nil, appErr.ErrUnauthorized
	}
	name := strings.TrimSpace(input.Name)
	if name == "" || input.Body == nil {
		return nil, appErr.ErrInvalid
	}
	now := s.now().Unix()
	ds := &model.Dataset{
		ID:           newID(),
		OwnerID:      user.ID,
		OrgID:        user.OrgID,
		Name:         name,
		FileSize:     input.Size,
		ContentType:  input.ContentType,
		SharingLevel: model.SharingPrivate,
		State:        model.DatasetStateActive,
		Ctime:        now,
		Mtime:        now,
	}
	ds.FileKey = ds.ID
	if err := s.files.Save(ctx, ds.FileKey, input.Body, input.Size); err != nil {
		logutil.GetLogger(ctx).Error("save dataset file failed", zap.String("dataset_id", ds.ID), zap.Error(err))
		return nil, err
	}
	if err := s.datasets.Create(ctx, ds); err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("dataset created",
		zap.String("dataset_id", ds.ID),
		zap.String("user_id", user.ID),
		zap.Int64("size", ds.FileSize),
	)
	return ds, nil
}

func (s *DatasetService) Get(ctx context.Context, datasetID string) (*model.Dataset, error) {
	return s.datasets.GetByID(ctx, datasetID)
}

func (s *DatasetService) List(ctx context.Context, user *AuthenticatedUser) ([]model.Dataset, error) {
	if user == nil {
		return nil, appErr.ErrUnauthorized
	}
	return s.datasets.ListVisible(ctx, user.ID, user.OrgID)
}

// UpdateSharingLevel changes the visibility of a dataset. Moving to private
// revokes the share link in the same write.
func (s *DatasetService) UpdateSharingLevel(ctx context.Context, datasetID string, req Requester, level model.SharingLevel) (*model.Dataset, error) {
	if !level.Valid() {
		return nil, appErr.ErrInvalid
	}
	ds, err := s.datasets.GetByID(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	if !s.perms.allowed(ds, req.User, PermissionSharingLevel) {
		return nil, appErr.ErrPermission
	}
	if level == model.SharingOrganization && ds.OrgID == "" {
		return nil, appErr.ErrInvalidState
	}
	if ds.SharingLevel == level {
		return ds, nil
	}
	now := s.now().Unix()
	if err := s.datasets.UpdateSharingLevel(ctx, ds.ID, level, now); err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("dataset sharing level changed",
		zap.String("dataset_id", ds.ID),
		zap.String("from", ds.SharingLevel.String()),
		zap.String("to", level.String()),
		zap.String("user_id", req.User.ID),
	)
	ds.SharingLevel = level
	ds.Mtime = now
	return ds, nil
}

func (s *DatasetService) Delete(ctx context.Context, datasetID string, req Requester) error {
	ds, err := s.datasets.GetByID(ctx, datasetID)
	if err != nil {
		return err
	}
	if !s.perms.allowed(ds, req.User, PermissionDelete) {
		return appErr.ErrPermission
	}
	if err := s.datasets.SoftDelete(ctx, ds.ID, s.now().Unix()); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("dataset deleted", zap.String("dataset_id", ds.ID), zap.String("user_id", req.User.ID))
	return nil
}

// Open streams the raw dataset bytes. Callers must have resolved access first.
func (s *DatasetService) Open(ctx context.Context, ds *model.Dataset) (io.ReadCloser, error) {
	rc, err := s.files.Open(ctx, ds.FileKey)
	if errors.Is(err, filestore.ErrNotExist) {
		return nil, appErr.ErrNotFound
	}
	return rc, err
}

// Preview returns at most limit bytes from the start of the dataset.
func (s *DatasetService) Preview(ctx context.Context, ds *model.Dataset, limit int64) (string, error) {
	rc, err := s.Open(ctx, ds)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, limit))
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), ""), nil
}
