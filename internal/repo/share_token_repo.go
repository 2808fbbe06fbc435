package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/dshare/internal/model"
	"github.com/xxxsen/dshare/internal/pkg/dbutil"
	appErr "github.com/xxxsen/dshare/internal/pkg/errors"
)

var shareTokenColumns = []string{"id", "token", "dataset_id", "created_by", "sharing_level", "password_hash", "expires_at", "state", "ctime", "mtime"}

type ShareTokenRepo struct {
	db *sql.DB
}

func NewShareTokenRepo(db *sql.DB) *ShareTokenRepo {
	return &ShareTokenRepo{db: db}
}

// Issue revokes the active token of the dataset and inserts token as the new
// active one. Both happen under a row lock on the dataset so concurrent
// issuers serialize. The sharing level snapshot is taken under the lock.
func (r *ShareTokenRepo) Issue(ctx context.Context, token *model.ShareToken) error {
	return dbutil.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		ds, err := lockActiveDataset(ctx, tx, token.DatasetID)
		if err != nil {
			return err
		}
		if ds.SharingLevel == model.SharingPrivate {
			return appErr.ErrInvalidState
		}
		token.SharingLevel = ds.SharingLevel
		if _, err := revokeActiveTokens(ctx, tx, token.DatasetID, token.Mtime); err != nil {
			return err
		}
		data := map[string]interface{}{
			"id":            token.ID,
			"token":         token.Token,
			"dataset_id":    token.DatasetID,
			"created_by":    token.CreatedBy,
			"sharing_level": int(token.SharingLevel),
			"password_hash": token.PasswordHash,
			"expires_at":    token.ExpiresAt,
			"state":         int(token.State),
			"ctime":         token.Ctime,
			"mtime":         token.Mtime,
		}
		sqlStr, args, err := builder.BuildInsert("share_tokens", []map[string]interface{}{data})
		if err != nil {
			return err
		}
		sqlStr, args = dbutil.Finalize(sqlStr, args)
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			if dbutil.IsConflict(err) {
				return appErr.ErrConflict
			}
			return err
		}
		return nil
	})
}

func (r *ShareTokenRepo) GetByToken(ctx context.Context, token string) (*model.ShareToken, error) {
	return r.getOne(ctx, map[string]interface{}{"token": token})
}

func (r *ShareTokenRepo) GetActiveByDataset(ctx context.Context, datasetID string) (*model.ShareToken, error) {
	return r.getOne(ctx, map[string]interface{}{"dataset_id": datasetID, "state": int(model.ShareTokenActive)})
}

// RevokeByDataset revokes the active token of a dataset, if any.
func (r *ShareTokenRepo) RevokeByDataset(ctx context.Context, datasetID string, mtime int64) (int64, error) {
	var affected int64
	err := dbutil.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		affected, err = revokeActiveTokens(ctx, tx, datasetID, mtime)
		return err
	})
	return affected, err
}

// MarkExpired moves active tokens whose expires_at has passed to the expired state.
func (r *ShareTokenRepo) MarkExpired(ctx context.Context, now int64) (int64, error) {
	where := map[string]interface{}{
		"state":         int(model.ShareTokenActive),
		"expires_at >":  0,
		"expires_at <=": now,
	}
	update := map[string]interface{}{"state": int(model.ShareTokenExpired), "mtime": now}
	sqlStr, args, err := builder.BuildUpdate("share_tokens", where, update)
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

func (r *ShareTokenRepo) getOne(ctx context.Context, where map[string]interface{}) (*model.ShareToken, error) {
	sqlStr, args, err := builder.BuildSelect("share_tokens", where, shareTokenColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	var tok model.ShareToken
	var level, state int
	if err := rows.Scan(&tok.ID, &tok.Token, &tok.DatasetID, &tok.CreatedBy, &level, &tok.PasswordHash, &tok.ExpiresAt, &state, &tok.Ctime, &tok.Mtime); err != nil {
		return nil, err
	}
	tok.SharingLevel = model.SharingLevel(level)
	tok.State = model.ShareTokenState(state)
	return &tok, nil
}

func revokeActiveTokens(ctx context.Context, tx *sql.Tx, datasetID string, mtime int64) (int64, error) {
	sqlStr := `UPDATE share_tokens SET state = ?, mtime = ? WHERE dataset_id = ? AND state = ?`
	sqlStr, args := dbutil.Finalize(sqlStr, []interface{}{int(model.ShareTokenRevoked), mtime, datasetID, int(model.ShareTokenActive)})
	result, err := tx.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
