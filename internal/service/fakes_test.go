package service

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/xxxsen/dshare/internal/filestore"
	"github.com/xxxsen/dshare/internal/model"
	appErr "github.com/xxxsen/dshare/internal/pkg/errors"
	"github.com/xxxsen/dshare/internal/pkg/password"
)

func init() {
	password.Cost = bcrypt.MinCost
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memDB backs every fake store with one lock so multi-table writes are atomic
// like the postgres transactions they stand in for.
type memDB struct {
	mu       sync.Mutex
	users    map[string]model.User
	orgs     map[string]model.Organization
	datasets map[string]model.Dataset
	tokens   map[string]model.ShareToken
	sessions map[string]model.AnonymousSession
}

func newMemDB() *memDB {
	return &memDB{
		users:    map[string]model.User{},
		orgs:     map[string]model.Organization{},
		datasets: map[string]model.Dataset{},
		tokens:   map[string]model.ShareToken{},
		sessions: map[string]model.AnonymousSession{},
	}
}

func (m *memDB) revokeLocked(datasetID string, mtime int64) int64 {
	var n int64
	for id, tok := range m.tokens {
		if tok.DatasetID == datasetID && tok.State == model.ShareTokenActive {
			tok.State = model.ShareTokenRevoked
			tok.Mtime = mtime
			m.tokens[id] = tok
			n++
		}
	}
	return n
}

func (m *memDB) activeTokens(datasetID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, tok := range m.tokens {
		if tok.DatasetID == datasetID && tok.State == model.ShareTokenActive {
			n++
		}
	}
	return n
}

type fakeUsers struct{ db *memDB }

func (f fakeUsers) Create(ctx context.Context, user *model.User) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, u := range f.db.users {
		if u.Email == user.Email {
			return appErr.ErrConflict
		}
	}
	f.db.users[user.ID] = *user
	return nil
}

func (f fakeUsers) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, u := range f.db.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (f fakeUsers) GetByID(ctx context.Context, userID string) (*model.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	u, ok := f.db.users[userID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &u, nil
}

func (f fakeUsers) UpdateOrganization(ctx context.Context, userID, orgID string, isAdmin bool, mtime int64) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.updateOrgLocked(userID, orgID, isAdmin, mtime)
}

func (m *memDB) updateOrgLocked(userID, orgID string, isAdmin bool, mtime int64) error {
	u, ok := m.users[userID]
	if !ok || u.OrgID != "" {
		return appErr.ErrConflict
	}
	u.OrgID = orgID
	u.IsOrgAdmin = isAdmin
	u.Mtime = mtime
	m.users[userID] = u
	return nil
}

type fakeOrgs struct{ db *memDB }

func (f fakeOrgs) CreateWithAdmin(ctx context.Context, org *model.Organization, adminID string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if err := f.db.updateOrgLocked(adminID, org.ID, true, org.Mtime); err != nil {
		return err
	}
	f.db.orgs[org.ID] = *org
	return nil
}

func (f fakeOrgs) GetByID(ctx context.Context, orgID string) (*model.Organization, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	org, ok := f.db.orgs[orgID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &org, nil
}

type fakeDatasets struct{ db *memDB }

func (f fakeDatasets) Create(ctx context.Context, ds *model.Dataset) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.datasets[ds.ID]; ok {
		return appErr.ErrConflict
	}
	f.db.datasets[ds.ID] = *ds
	return nil
}

func (f fakeDatasets) GetByID(ctx context.Context, datasetID string) (*model.Dataset, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	ds, ok := f.db.datasets[datasetID]
	if !ok || ds.Deleted() {
		return nil, appErr.ErrNotFound
	}
	return &ds, nil
}

func (f fakeDatasets) ListVisible(ctx context.Context, userID, orgID string) ([]model.Dataset, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	items := make([]model.Dataset, 0)
	for _, ds := range f.db.datasets {
		if ds.Deleted() {
			continue
		}
		if ds.OwnerID == userID || (orgID != "" && ds.OrgID == orgID && ds.SharingLevel != model.SharingPrivate) {
			items = append(items, ds)
		}
	}
	return items, nil
}

func (f fakeDatasets) UpdateSharingLevel(ctx context.Context, datasetID string, level model.SharingLevel, mtime int64) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	ds, ok := f.db.datasets[datasetID]
	if !ok || ds.Deleted() {
		return appErr.ErrNotFound
	}
	ds.SharingLevel = level
	ds.Mtime = mtime
	f.db.datasets[datasetID] = ds
	if level == model.SharingPrivate {
		f.db.revokeLocked(datasetID, mtime)
	}
	return nil
}

func (f fakeDatasets) SoftDelete(ctx context.Context, datasetID string, mtime int64) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	ds, ok := f.db.datasets[datasetID]
	if !ok || ds.Deleted() {
		return appErr.ErrNotFound
	}
	ds.State = model.DatasetStateDeleted
	ds.Mtime = mtime
	f.db.datasets[datasetID] = ds
	f.db.revokeLocked(datasetID, mtime)
	return nil
}

type fakeTokens struct{ db *memDB }

func (f fakeTokens) Issue(ctx context.Context, token *model.ShareToken) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	ds, ok := f.db.datasets[token.DatasetID]
	if !ok || ds.Deleted() {
		return appErr.ErrNotFound
	}
	if ds.SharingLevel == model.SharingPrivate {
		return appErr.ErrInvalidState
	}
	f.db.revokeLocked(token.DatasetID, token.Mtime)
	token.SharingLevel = ds.SharingLevel
	f.db.tokens[token.ID] = *token
	return nil
}

func (f fakeTokens) GetByToken(ctx context.Context, token string) (*model.ShareToken, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, tok := range f.db.tokens {
		if tok.Token == token {
			return &tok, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (f fakeTokens) GetActiveByDataset(ctx context.Context, datasetID string) (*model.ShareToken, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, tok := range f.db.tokens {
		if tok.DatasetID == datasetID && tok.State == model.ShareTokenActive {
			return &tok, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (f fakeTokens) RevokeByDataset(ctx context.Context, datasetID string, mtime int64) (int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.revokeLocked(datasetID, mtime), nil
}

func (f fakeTokens) MarkExpired(ctx context.Context, now int64) (int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var n int64
	for id, tok := range f.db.tokens {
		if tok.State == model.ShareTokenActive && tok.ExpiresAt > 0 && tok.ExpiresAt <= now {
			tok.State = model.ShareTokenExpired
			tok.Mtime = now
			f.db.tokens[id] = tok
			n++
		}
	}
	return n, nil
}

type fakeSessions struct{ db *memDB }

func (f fakeSessions) Create(ctx context.Context, session *model.AnonymousSession) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.db.sessions[session.ID] = *session
	return nil
}

func (f fakeSessions) GetByID(ctx context.Context, sessionID string) (*model.AnonymousSession, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.sessions[sessionID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &s, nil
}

func (f fakeSessions) Touch(ctx context.Context, sessionID string, lastActive int64) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.sessions[sessionID]
	if !ok {
		return appErr.ErrNotFound
	}
	s.LastActive = lastActive
	f.db.sessions[sessionID] = s
	return nil
}

func (f fakeSessions) Increment(ctx context.Context, sessionID string, kind model.ActivityKind, lastActive int64) (*model.AnonymousSession, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.sessions[sessionID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	switch kind {
	case model.ActivityDownload:
		s.DownloadCount++
	case model.ActivityChat:
		s.ChatCount++
	default:
		return nil, appErr.ErrInvalid
	}
	s.LastActive = lastActive
	f.db.sessions[sessionID] = s
	return &s, nil
}

func (f fakeSessions) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var n int64
	for id, s := range f.db.sessions {
		if s.Ctime < cutoff {
			delete(f.db.sessions, id)
			n++
		}
	}
	return n, nil
}

type memFiles struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (m *memFiles) Save(ctx context.Context, key string, r filestore.ReadSeekCloser, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.files[key] = data
	m.mu.Unlock()
	return nil
}

func (m *memFiles) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[key]
	if !ok {
		return nil, filestore.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type bytesBody struct {
	*bytes.Reader
}

func (bytesBody) Close() error { return nil }

func body(s string) filestore.ReadSeekCloser {
	return bytesBody{bytes.NewReader([]byte(s))}
}

type testEnv struct {
	db       *memDB
	clock    *fakeClock
	files    *memFiles
	auth     *AuthService
	orgs     *OrganizationService
	datasets *DatasetService
	tokens   *ShareTokenService
	sessions *SessionService
	access   *AccessService
}

func newTestEnv(t *testing.T, opts SessionOptions) *testEnv {
	t.Helper()
	db := newMemDB()
	clock := newFakeClock()
	files := &memFiles{files: map[string][]byte{}}

	auth := NewAuthService(fakeUsers{db}, []byte("test-secret"), time.Hour, []string{"root@example.com"})
	auth.now = clock.Now
	orgs := NewOrganizationService(fakeOrgs{db}, fakeUsers{db})
	orgs.now = clock.Now
	datasets := NewDatasetService(fakeDatasets{db}, files)
	datasets.now = clock.Now
	tokens := NewShareTokenService(fakeTokens{db}, fakeDatasets{db})
	tokens.now = clock.Now
	sessions := NewSessionService(fakeSessions{db}, opts)
	sessions.now = clock.Now

	return &testEnv{
		db:       db,
		clock:    clock,
		files:    files,
		auth:     auth,
		orgs:     orgs,
		datasets: datasets,
		tokens:   tokens,
		sessions: sessions,
		access:   NewAccessService(fakeDatasets{db}, tokens, sessions),
	}
}

// addUser inserts a user directly, bypassing registration.
func (e *testEnv) addUser(id, orgID string, orgAdmin, superuser bool) *AuthenticatedUser {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	user := model.User{
		ID:          id,
		Email:       id + "@example.com",
		OrgID:       orgID,
		IsOrgAdmin:  orgAdmin,
		IsSuperuser: superuser,
	}
	e.db.users[id] = user
	return NewAuthenticatedUser(&user)
}

func (e *testEnv) addDataset(t *testing.T, owner *AuthenticatedUser, level model.SharingLevel) *model.Dataset {
	t.Helper()
	ds, err := e.datasets.Create(context.Background(), owner, CreateDatasetInput{
		Name:        "sales.csv",
		ContentType: "text/csv",
		Size:        16,
		Body:        body("region,total\nnorth,42\n"),
	})
	if err != nil {
		t.Fatalf("create dataset: %v", err)
	}
	if level != model.SharingPrivate {
		ds, err = e.datasets.UpdateSharingLevel(context.Background(), ds.ID, UserRequester(owner), level)
		if err != nil {
			t.Fatalf("set sharing level: %v", err)
		}
	}
	return ds
}
