package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/dshare/internal/model"
	"github.com/xxxsen/dshare/internal/pkg/dbutil"
	appErr "github.com/xxxsen/dshare/internal/pkg/errors"
)

const sessionSelect = `SELECT id, token_id, ctime, last_active, download_count, chat_count FROM anonymous_sessions`

type SessionRepo struct {
	db *sql.DB
}

func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

func (r *SessionRepo) Create(ctx context.Context, session *model.AnonymousSession) error {
	data := map[string]interface{}{
		"id":             session.ID,
		"token_id":       session.TokenID,
		"ctime":          session.Ctime,
		"last_active":    session.LastActive,
		"download_count": session.DownloadCount,
		"chat_count":     session.ChatCount,
	}
	sqlStr, args, err := builder.BuildInsert("anonymous_sessions", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *SessionRepo) GetByID(ctx context.Context, sessionID string) (*model.AnonymousSession, error) {
	sqlStr, args := dbutil.Finalize(sessionSelect+` WHERE id = ?`, []interface{}{sessionID})
	return scanSession(r.db.QueryRowContext(ctx, sqlStr, args...))
}

func (r *SessionRepo) Touch(ctx context.Context, sessionID string, lastActive int64) error {
	where := map[string]interface{}{"id": sessionID}
	update := map[string]interface{}{"last_active": lastActive}
	sqlStr, args, err := builder.BuildUpdate("anonymous_sessions", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// Increment bumps the counter for kind in a single statement and returns the
// updated row.
func (r *SessionRepo) Increment(ctx context.Context, sessionID string, kind model.ActivityKind, lastActive int64) (*model.AnonymousSession, error) {
	var column string
	switch kind {
	case model.ActivityDownload:
		column = "download_count"
	case model.ActivityChat:
		column = "chat_count"
	default:
		return nil, fmt.Errorf("unknown activity kind %q: %w", kind, appErr.ErrInvalid)
	}
	sqlStr := `UPDATE anonymous_sessions SET ` + column + ` = ` + column + ` + 1, last_active = ? WHERE id = ?
		RETURNING id, token_id, ctime, last_active, download_count, chat_count`
	sqlStr, args := dbutil.Finalize(sqlStr, []interface{}{lastActive, sessionID})
	return scanSession(r.db.QueryRowContext(ctx, sqlStr, args...))
}

func (r *SessionRepo) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	sqlStr, args, err := builder.BuildDelete("anonymous_sessions", map[string]interface{}{"ctime <": cutoff})
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanSession(row rowScanner) (*model.AnonymousSession, error) {
	var session model.AnonymousSession
	err := row.Scan(&session.ID, &session.TokenID, &session.Ctime, &session.LastActive, &session.DownloadCount, &session.ChatCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}
