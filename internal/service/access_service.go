package service

import (
	"context"
	"errors"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/dshare/internal/model"
	appErr "github.com/xxxsen/dshare/internal/pkg/errors"
)

type AccessLevel string

const (
	AccessOwner        AccessLevel = "owner"
	AccessOrganization AccessLevel = "organization"
	AccessPublic       AccessLevel = "public"
	AccessDenied       AccessLevel = "denied"
)

type DenyReason string

const (
	ReasonOwnershipRequired     DenyReason = "ownership_required"
	ReasonOrganizationMismatch  DenyReason = "organization_mismatch"
	ReasonLoginRequired         DenyReason = "login_required"
	ReasonInvalidOrExpiredToken DenyReason = "invalid_or_expired_token"
	ReasonPasswordRequired      DenyReason = "password_required"
	ReasonPasswordIncorrect     DenyReason = "password_incorrect"
	ReasonDatasetNotFound       DenyReason = "dataset_not_found"
)

// TokenStatus refines ReasonInvalidOrExpiredToken so the HTTP layer can tell
// a link that never existed from one that expired or was revoked.
type TokenStatus string

const (
	TokenMissing TokenStatus = "missing"
	TokenExpired TokenStatus = "expired"
	TokenRevoked TokenStatus = "revoked"
)

// AccessGrant is the outcome of one access decision. It is never persisted.
type AccessGrant struct {
	Allowed     bool                    `json:"allowed"`
	Level       AccessLevel             `json:"level"`
	Reason      DenyReason              `json:"reason,omitempty"`
	TokenStatus TokenStatus             `json:"token_status,omitempty"`
	Session     *model.AnonymousSession `json:"session,omitempty"`
	Dataset     *model.Dataset          `json:"dataset,omitempty"`
	Token       *model.ShareToken       `json:"-"`
}

func allow(ds *model.Dataset, level AccessLevel) *AccessGrant {
	return &AccessGrant{Allowed: true, Level: level, Dataset: ds}
}

func deny(reason DenyReason) *AccessGrant {
	return &AccessGrant{Allowed: false, Level: AccessDenied, Reason: reason}
}

func denyToken(status TokenStatus) *AccessGrant {
	grant := deny(ReasonInvalidOrExpiredToken)
	grant.TokenStatus = status
	return grant
}

// AccessService resolves who may see a dataset. Denials come back as tagged
// grants; only storage failures are returned as errors.
type AccessService struct {
	datasets DatasetStore
	tokens   *ShareTokenService
	sessions *SessionService
}

func NewAccessService(datasets DatasetStore, tokens *ShareTokenService, sessions *SessionService) *AccessService {
	return &AccessService{datasets: datasets, tokens: tokens, sessions: sessions}
}

// ResolveByID loads the dataset and resolves access to it.
func (s *AccessService) ResolveByID(ctx context.Context, datasetID string, req Requester) (*AccessGrant, error) {
	ds, err := s.datasets.GetByID(ctx, datasetID)
	if appErr.IsNotFound(err) {
		return deny(ReasonDatasetNotFound), nil
	}
	if err != nil {
		return nil, err
	}
	return s.Resolve(ctx, ds, req)
}

// ResolveByToken resolves access to whichever dataset tokenString points at.
func (s *AccessService) ResolveByToken(ctx context.Context, tokenString string, req Requester) (*AccessGrant, error) {
	req.ShareToken = tokenString
	token, err := s.tokens.Validate(ctx, tokenString)
	if grant, err := tokenFailure(err); grant != nil || err != nil {
		return grant, err
	}
	return s.ResolveByID(ctx, token.DatasetID, req)
}

// Resolve applies the fixed decision order: ownership, then the dataset's
// sharing level.
func (s *AccessService) Resolve(ctx context.Context, ds *model.Dataset, req Requester) (*AccessGrant, error) {
	grant, err := s.resolve(ctx, ds, req)
	if err != nil {
		return nil, err
	}
	if !grant.Allowed {
		logutil.GetLogger(ctx).Debug("access denied",
			zap.String("dataset_id", ds.ID),
			zap.String("reason", string(grant.Reason)),
			zap.Bool("authenticated", req.Authenticated()),
		)
	}
	return grant, nil
}

func (s *AccessService) resolve(ctx context.Context, ds *model.Dataset, req Requester) (*AccessGrant, error) {
	if req.owns(ds) || (req.User != nil && req.User.IsSuperuser) {
		return allow(ds, AccessOwner), nil
	}
	switch ds.SharingLevel {
	case model.SharingPrivate:
		return deny(ReasonOwnershipRequired), nil
	case model.SharingOrganization:
		if req.User == nil {
			return deny(ReasonLoginRequired), nil
		}
		if req.User.OrgID != "" && req.User.OrgID == ds.OrgID {
			return allow(ds, AccessOrganization), nil
		}
		return deny(ReasonOrganizationMismatch), nil
	case model.SharingPublic:
		return s.resolvePublic(ctx, ds, req)
	}
	return deny(ReasonOwnershipRequired), nil
}

func (s *AccessService) resolvePublic(ctx context.Context, ds *model.Dataset, req Requester) (*AccessGrant, error) {
	if req.ShareToken == "" {
		return denyToken(TokenMissing), nil
	}
	token, err := s.tokens.Validate(ctx, req.ShareToken)
	if grant, err := tokenFailure(err); grant != nil || err != nil {
		return grant, err
	}
	if token.DatasetID != ds.ID {
		return denyToken(TokenMissing), nil
	}
	if token.HasPassword() {
		if req.Password == "" {
			return deny(ReasonPasswordRequired), nil
		}
		if !s.tokens.CheckPassword(token, req.Password) {
			return deny(ReasonPasswordIncorrect), nil
		}
	}
	session, err := s.sessions.GetOrCreate(ctx, token, req.SessionID)
	if err != nil {
		return nil, err
	}
	grant := allow(ds, AccessPublic)
	grant.Token = token
	grant.Session = session
	return grant, nil
}

// tokenFailure maps Validate errors onto a denied grant. It returns (nil, nil)
// when err is nil.
func tokenFailure(err error) (*AccessGrant, error) {
	switch {
	case err == nil:
		return nil, nil
	case errors.Is(err, appErr.ErrNotFound):
		return denyToken(TokenMissing), nil
	case errors.Is(err, appErr.ErrExpired):
		return denyToken(TokenExpired), nil
	case errors.Is(err, appErr.ErrRevoked):
		return denyToken(TokenRevoked), nil
	}
	return nil, err
}

// Consume records a download or chat made under grant. Only public grants
// carry a session; other levels are not counted.
func (s *AccessService) Consume(ctx context.Context, grant *AccessGrant, kind model.ActivityKind) error {
	if grant == nil || !grant.Allowed {
		return appErr.ErrForbidden
	}
	if grant.Level != AccessPublic || grant.Session == nil {
		return nil
	}
	session, err := s.sessions.RecordActivity(ctx, grant.Session, kind)
	if err != nil {
		return err
	}
	grant.Session = session
	return nil
}
