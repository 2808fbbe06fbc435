package service

import (
	"context"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/dshare/internal/model"
	appErr "github.com/xxxsen/dshare/internal/pkg/errors"
)

type OrganizationService struct {
	orgs  OrganizationStore
	users UserStore
	now   func() time.Time
}

func NewOrganizationService(orgs OrganizationStore, users UserStore) *OrganizationService {
	return &OrganizationService{orgs: orgs, users: users, now: time.Now}
}

// Create opens an organization with the caller as its admin. A user belongs
// to at most one organization.
func (s *OrganizationService) Create(ctx context.Context, user *AuthenticatedUser, name string) (*model.Organization, error) {
	if user == nil {
		return nil, appErr.ErrUnauthorized
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErr.ErrInvalid
	}
	if user.OrgID != "" {
		return nil, appErr.ErrConflict
	}
	now := s.now().Unix()
	org := &model.Organization{ID: newID(), Name: name, Ctime: now, Mtime: now}
	if err := s.orgs.CreateWithAdmin(ctx, org, user.ID); err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("organization created", zap.String("org_id", org.ID), zap.String("user_id", user.ID))
	return org, nil
}

// AddMember moves an existing user without an organization into the admin's
// organization.
func (s *OrganizationService) AddMember(ctx context.Context, admin *AuthenticatedUser, email string) (*model.User, error) {
	if admin == nil {
		return nil, appErr.ErrUnauthorized
	}
	if admin.OrgID == "" || !admin.IsOrgAdmin {
		return nil, appErr.ErrPermission
	}
	member, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if member.OrgID == admin.OrgID {
		return member, nil
	}
	if member.OrgID != "" {
		return nil, appErr.ErrConflict
	}
	now := s.now().Unix()
	if err := s.users.UpdateOrganization(ctx, member.ID, admin.OrgID, false, now); err != nil {
		return nil, err
	}
	member.OrgID = admin.OrgID
	member.Mtime = now
	logutil.GetLogger(ctx).Info("organization member added",
		zap.String("org_id", admin.OrgID),
		zap.String("user_id", member.ID),
	)
	return member, nil
}
