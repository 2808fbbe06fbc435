package service

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/dshare/internal/model"
	appErr "github.com/xxxsen/dshare/internal/pkg/errors"
	"github.com/xxxsen/dshare/internal/pkg/password"
)

type ShareTokenService struct {
	tokens   ShareTokenStore
	datasets DatasetStore
	perms    *permissionTable
	now      func() time.Time
}

func NewShareTokenService(tokens ShareTokenStore, datasets DatasetStore) *ShareTokenService {
	return &ShareTokenService{
		tokens:   tokens,
		datasets: datasets,
		perms:    newPermissionTable(),
		now:      time.Now,
	}
}

type IssueOptions struct {
	// ExpiresIn of zero issues a token that never expires.
	ExpiresIn time.Duration
	Password  string
}

// Issue creates the dataset's share link, replacing any previous one.
func (s *ShareTokenService) Issue(ctx context.Context, ds *model.Dataset, req Requester, opts IssueOptions) (*model.ShareToken, error) {
	if !s.perms.allowed(ds, req.User, PermissionShareIssue) {
		return nil, appErr.ErrPermission
	}
	if ds.Deleted() {
		return nil, appErr.ErrNotFound
	}
	if ds.SharingLevel == model.SharingPrivate {
		return nil, appErr.ErrInvalidState
	}
	if opts.ExpiresIn < 0 {
		return nil, appErr.ErrInvalid
	}
	now := s.now()
	token := &model.ShareToken{
		ID:           newID(),
		Token:        newToken(),
		DatasetID:    ds.ID,
		CreatedBy:    req.User.ID,
		SharingLevel: ds.SharingLevel,
		State:        model.ShareTokenActive,
		Ctime:        now.Unix(),
		Mtime:        now.Unix(),
	}
	if opts.ExpiresIn > 0 {
		token.ExpiresAt = now.Add(opts.ExpiresIn).Unix()
	}
	if opts.Password != "" {
		hash, err := password.Hash(opts.Password)
		if err != nil {
			return nil, err
		}
		token.PasswordHash = hash
	}
	if err := s.tokens.Issue(ctx, token); err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("share token issued",
		zap.String("dataset_id", ds.ID),
		zap.String("token_id", token.ID),
		zap.String("user_id", req.User.ID),
		zap.Int64("expires_at", token.ExpiresAt),
		zap.Bool("password", token.HasPassword()),
	)
	return token, nil
}

// Validate looks a token up without side effects. A token whose dataset was
// deleted or made private is reported as revoked.
func (s *ShareTokenService) Validate(ctx context.Context, tokenString string) (*model.ShareToken, error) {
	if tokenString == "" {
		return nil, appErr.ErrNotFound
	}
	token, err := s.tokens.GetByToken(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	if token.State == model.ShareTokenRevoked {
		return nil, appErr.ErrRevoked
	}
	if token.ExpiredAt(s.now().Unix()) {
		return nil, appErr.ErrExpired
	}
	ds, err := s.datasets.GetByID(ctx, token.DatasetID)
	if appErr.IsNotFound(err) {
		return nil, appErr.ErrRevoked
	}
	if err != nil {
		return nil, err
	}
	if ds.SharingLevel == model.SharingPrivate {
		return nil, appErr.ErrRevoked
	}
	return token, nil
}

// Revoke revokes the dataset's active token. Revoking when nothing is active
// is not an error.
func (s *ShareTokenService) Revoke(ctx context.Context, ds *model.Dataset, req Requester) error {
	if !s.perms.allowed(ds, req.User, PermissionShareRevoke) {
		return appErr.ErrPermission
	}
	affected, err := s.tokens.RevokeByDataset(ctx, ds.ID, s.now().Unix())
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("share token revoked",
		zap.String("dataset_id", ds.ID),
		zap.String("user_id", req.User.ID),
		zap.Int64("revoked", affected),
	)
	return nil
}

// CheckPassword reports whether supplied unlocks token. Tokens without a
// password accept anything.
func (s *ShareTokenService) CheckPassword(token *model.ShareToken, supplied string) bool {
	if !token.HasPassword() {
		return true
	}
	return password.Matches(token.PasswordHash, supplied)
}

// GetActive returns the usable share token of a dataset, or nil.
func (s *ShareTokenService) GetActive(ctx context.Context, ds *model.Dataset, req Requester) (*model.ShareToken, error) {
	if !s.perms.allowed(ds, req.User, PermissionShareIssue) {
		return nil, appErr.ErrPermission
	}
	token, err := s.tokens.GetActiveByDataset(ctx, ds.ID)
	if appErr.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if token.ExpiredAt(s.now().Unix()) {
		return nil, nil
	}
	return token, nil
}

// SweepExpired persists the expired state of tokens past their expiry.
func (s *ShareTokenService) SweepExpired(ctx context.Context) (int64, error) {
	return s.tokens.MarkExpired(ctx, s.now().Unix())
}
