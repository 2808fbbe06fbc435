package service

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/dshare/internal/model"
	appErr "github.com/xxxsen/dshare/internal/pkg/errors"
)

const DefaultSessionTTL = 24 * time.Hour

type SessionOptions struct {
	TTL time.Duration
	// Retention is how long sessions are kept before the sweeper deletes them.
	Retention    time.Duration
	CacheSize    int
	MaxDownloads int64
	MaxChats     int64
}

// SessionService tracks anonymous sessions opened through public share links.
// Sessions expire TTL after creation; activity does not extend them.
type SessionService struct {
	store SessionStore
	cache *expirable.LRU[string, model.AnonymousSession]
	opts  SessionOptions
	now   func() time.Time
}

func NewSessionService(store SessionStore, opts SessionOptions) *SessionService {
	if opts.TTL <= 0 {
		opts.TTL = DefaultSessionTTL
	}
	if opts.Retention < opts.TTL {
		opts.Retention = opts.TTL
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 4096
	}
	return &SessionService{
		store: store,
		cache: expirable.NewLRU[string, model.AnonymousSession](opts.CacheSize, nil, opts.TTL),
		opts:  opts,
		now:   time.Now,
	}
}

// GetOrCreate reuses suppliedID when it names a live session bound to token,
// otherwise it opens a new session. Concurrent first requests may each create
// a session.
func (s *SessionService) GetOrCreate(ctx context.Context, token *model.ShareToken, suppliedID string) (*model.AnonymousSession, error) {
	if suppliedID != "" {
		session, err := s.reuse(ctx, token, suppliedID)
		if err != nil {
			return nil, err
		}
		if session != nil {
			return session, nil
		}
	}
	now := s.now().Unix()
	session := &model.AnonymousSession{
		ID:         newSessionID(),
		TokenID:    token.ID,
		Ctime:      now,
		LastActive: now,
	}
	if err := s.store.Create(ctx, session); err != nil {
		return nil, err
	}
	s.cache.Add(session.ID, *session)
	logutil.GetLogger(ctx).Debug("anonymous session created", zap.String("token_id", token.ID))
	return session, nil
}

func (s *SessionService) reuse(ctx context.Context, token *model.ShareToken, sessionID string) (*model.AnonymousSession, error) {
	session, err := s.lookup(ctx, sessionID)
	if appErr.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if session.TokenID != token.ID || s.IsExpired(session) {
		return nil, nil
	}
	now := s.now().Unix()
	if err := s.store.Touch(ctx, session.ID, now); err != nil {
		if appErr.IsNotFound(err) {
			s.cache.Remove(session.ID)
			return nil, nil
		}
		return nil, err
	}
	session.LastActive = now
	s.cache.Add(session.ID, *session)
	return session, nil
}

func (s *SessionService) lookup(ctx context.Context, sessionID string) (*model.AnonymousSession, error) {
	if cached, ok := s.cache.Get(sessionID); ok {
		return &cached, nil
	}
	session, err := s.store.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.cache.Add(session.ID, *session)
	return session, nil
}

// RecordActivity counts a download or chat against the session.
func (s *SessionService) RecordActivity(ctx context.Context, session *model.AnonymousSession, kind model.ActivityKind) (*model.AnonymousSession, error) {
	if s.IsExpired(session) {
		return nil, appErr.ErrExpired
	}
	switch kind {
	case model.ActivityDownload:
		if s.opts.MaxDownloads > 0 && session.DownloadCount >= s.opts.MaxDownloads {
			return nil, appErr.ErrTooMany
		}
	case model.ActivityChat:
		if s.opts.MaxChats > 0 && session.ChatCount >= s.opts.MaxChats {
			return nil, appErr.ErrTooMany
		}
	default:
		return nil, appErr.ErrInvalid
	}
	updated, err := s.store.Increment(ctx, session.ID, kind, s.now().Unix())
	if err != nil {
		return nil, err
	}
	s.cache.Add(updated.ID, *updated)
	return updated, nil
}

func (s *SessionService) IsExpired(session *model.AnonymousSession) bool {
	return s.now().Sub(time.Unix(session.Ctime, 0)) > s.opts.TTL
}

// Sweep deletes sessions older than the retention window.
func (s *SessionService) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.opts.Retention).Unix()
	deleted, err := s.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		logutil.GetLogger(ctx).Info("anonymous sessions swept", zap.Int64("deleted", deleted))
	}
	return deleted, nil
}
