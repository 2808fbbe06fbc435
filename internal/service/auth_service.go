package service

import (
	"context"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/dshare/internal/model"
	appErr "github.com/xxxsen/dshare/internal/pkg/errors"
	"github.com/xxxsen/dshare/internal/pkg/jwt"
	"github.com/xxxsen/dshare/internal/pkg/password"
)

type AuthService struct {
	users      UserStore
	jwtSecret  []byte
	jwtTTL     time.Duration
	superusers map[string]struct{}
	now        func() time.Time
}

func NewAuthService(users UserStore, secret []byte, ttl time.Duration, superusers []string) *AuthService {
	set := make(map[string]struct{}, len(superusers))
	for _, email := range superusers {
		set[normalizeEmail(email)] = struct{}{}
	}
	return &AuthService{users: users, jwtSecret: secret, jwtTTL: ttl, superusers: set, now: time.Now}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Register(ctx context.Context, email, plainPassword string) (*model.User, string, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") || len(plainPassword) < 6 {
		return nil, "", appErr.ErrInvalid
	}
	hash, err := password.Hash(plainPassword)
	if err != nil {
		return nil, "", err
	}
	now := s.now().Unix()
	_, superuser := s.superusers[email]
	user := &model.User{
		ID:           newID(),
		Email:        email,
		PasswordHash: hash,
		IsSuperuser:  superuser,
		Ctime:        now,
		Mtime:        now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", err
	}
	token, err := jwt.GenerateToken(user.ID, user.Email, s.jwtSecret, s.jwtTTL)
	if err != nil {
		return nil, "", err
	}
	logutil.GetLogger(ctx).Info("user registered", zap.String("user_id", user.ID), zap.Bool("superuser", superuser))
	return user, token, nil
}

func (s *AuthService) Login(ctx context.Context, email, plainPassword string) (*model.User, string, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if appErr.IsNotFound(err) {
			return nil, "", appErr.ErrUnauthorized
		}
		return nil, "", err
	}
	if err := password.Compare(user.PasswordHash, plainPassword); err != nil {
		return nil, "", appErr.ErrUnauthorized
	}
	token, err := jwt.GenerateToken(user.ID, user.Email, s.jwtSecret, s.jwtTTL)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Authenticate loads the current identity of a token subject. Organization
// membership is read fresh so a token never carries stale org claims.
func (s *AuthService) Authenticate(ctx context.Context, userID string) (*AuthenticatedUser, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if appErr.IsNotFound(err) {
			return nil, appErr.ErrUnauthorized
		}
		return nil, err
	}
	return NewAuthenticatedUser(user), nil
}
