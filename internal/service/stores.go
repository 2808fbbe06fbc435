package service

import (
	"context"

	"github.com/xxxsen/dshare/internal/model"
)

// The store interfaces are satisfied by the repo package. Services only
// depend on the operations listed here.

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, userID string) (*model.User, error)
	UpdateOrganization(ctx context.Context, userID, orgID string, isAdmin bool, mtime int64) error
}

type OrganizationStore interface {
	CreateWithAdmin(ctx context.Context, org *model.Organization, adminID string) error
	GetByID(ctx context.Context, orgID string) (*model.Organization, error)
}

type DatasetStore interface {
	Create(ctx context.Context, ds *model.Dataset) error
	GetByID(ctx context.Context, datasetID string) (*model.Dataset, error)
	ListVisible(ctx context.Context, userID, orgID string) ([]model.Dataset, error)
	UpdateSharingLevel(ctx context.Context, datasetID string, level model.SharingLevel, mtime int64) error
	SoftDelete(ctx context.Context, datasetID string, mtime int64) error
}

type ShareTokenStore interface {
	// Issue must revoke the dataset's active token and insert the new one
	// atomically, failing with ErrInvalidState when the dataset is private.
	Issue(ctx context.Context, token *model.ShareToken) error
	GetByToken(ctx context.Context, token string) (*model.ShareToken, error)
	GetActiveByDataset(ctx context.Context, datasetID string) (*model.ShareToken, error)
	RevokeByDataset(ctx context.Context, datasetID string, mtime int64) (int64, error)
	MarkExpired(ctx context.Context, now int64) (int64, error)
}

type SessionStore interface {
	Create(ctx context.Context, session *model.AnonymousSession) error
	GetByID(ctx context.Context, sessionID string) (*model.AnonymousSession, error)
	Touch(ctx context.Context, sessionID string, lastActive int64) error
	Increment(ctx context.Context, sessionID string, kind model.ActivityKind, lastActive int64) (*model.AnonymousSession, error)
	DeleteBefore(ctx context.Context, cutoff int64) (int64, error)
}
