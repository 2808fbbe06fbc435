package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/dshare/internal/model"
	"github.com/xxxsen/dshare/internal/pkg/dbutil"
	appErr "github.com/xxxsen/dshare/internal/pkg/errors"
)

var datasetColumns = []string{"id", "owner_id", "org_id", "name", "file_key", "file_size", "content_type", "sharing_level", "state", "ctime", "mtime"}

type DatasetRepo struct {
	db *sql.DB
}

func NewDatasetRepo(db *sql.DB) *DatasetRepo {
	return &DatasetRepo{db: db}
}

func (r *DatasetRepo) Create(ctx context.Context, ds *model.Dataset) error {
	data := map[string]interface{}{
		"id":            ds.ID,
		"owner_id":      ds.OwnerID,
		"org_id":        ds.OrgID,
		"name":          ds.Name,
		"file_key":      ds.FileKey,
		"file_size":     ds.FileSize,
		"content_type":  ds.ContentType,
		"sharing_level": int(ds.SharingLevel),
		"state":         int(ds.State),
		"ctime":         ds.Ctime,
		"mtime":         ds.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("datasets", []map[string]interface{}{data})
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

// GetByID returns an active dataset. Soft-deleted datasets are reported as not found.
func (r *DatasetRepo) GetByID(ctx context.Context, datasetID string) (*model.Dataset, error) {
	where := map[string]interface{}{"id": datasetID, "state": int(model.DatasetStateActive)}
	sqlStr, args, err := builder.BuildSelect("datasets", where, datasetColumns)
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
	return scanDataset(rows)
}

// ListVisible lists the datasets a user owns plus the organization and public
// datasets of the user's organization.
func (r *DatasetRepo) ListVisible(ctx context.Context, userID, orgID string) ([]model.Dataset, error) {
	sqlStr := `SELECT ` + strings.Join(datasetColumns, ", ") + ` FROM datasets WHERE state = ? AND (owner_id = ?`
	args := []interface{}{int(model.DatasetStateActive), userID}
	if orgID != "" {
		sqlStr += ` OR (org_id = ? AND sharing_level IN (?, ?))`
		args = append(args, orgID, int(model.SharingOrganization), int(model.SharingPublic))
	}
	sqlStr += `) ORDER BY mtime DESC`
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := make([]model.Dataset, 0)
	for rows.Next() {
		ds, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *ds)
	}
	return items, rows.Err()
}

// UpdateSharingLevel changes the sharing level under a row lock. A downgrade
// to private revokes every active share token of the dataset in the same
// transaction.
func (r *DatasetRepo) UpdateSharingLevel(ctx context.Context, datasetID string, level model.SharingLevel, mtime int64) error {
	return dbutil.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := lockActiveDataset(ctx, tx, datasetID); err != nil {
			return err
		}
		where := map[string]interface{}{"id": datasetID}
		update := map[string]interface{}{"sharing_level": int(level), "mtime": mtime}
		sqlStr, args, err := builder.BuildUpdate("datasets", where, update)
		if err != nil {
			return err
		}
		sqlStr, args = dbutil.Finalize(sqlStr, args)
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return err
		}
		if level == model.SharingPrivate {
			if _, err := revokeActiveTokens(ctx, tx, datasetID, mtime); err != nil {
				return err
			}
		}
		return nil
	})
}

// SoftDelete marks the dataset deleted and revokes its share tokens.
func (r *DatasetRepo) SoftDelete(ctx context.Context, datasetID string, mtime int64) error {
	return dbutil.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := lockActiveDataset(ctx, tx, datasetID); err != nil {
			return err
		}
		where := map[string]interface{}{"id": datasetID}
		update := map[string]interface{}{"state": int(model.DatasetStateDeleted), "mtime": mtime}
		sqlStr, args, err := builder.BuildUpdate("datasets", where, update)
		if err != nil {
			return err
		}
		sqlStr, args = dbutil.Finalize(sqlStr, args)
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return err
		}
		_, err = revokeActiveTokens(ctx, tx, datasetID, mtime)
		return err
	})
}

// lockActiveDataset takes a row lock on an active dataset for the rest of tx.
func lockActiveDataset(ctx context.Context, tx *sql.Tx, datasetID string) (*model.Dataset, error) {
	sqlStr := `SELECT ` + strings.Join(datasetColumns, ", ") + ` FROM datasets WHERE id = ? FOR UPDATE`
	sqlStr, args := dbutil.Finalize(sqlStr, []interface{}{datasetID})
	row := tx.QueryRowContext(ctx, sqlStr, args...)
	ds, err := scanDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if ds.Deleted() {
		return nil, appErr.ErrNotFound
	}
	return ds, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDataset(row rowScanner) (*model.Dataset, error) {
	var ds model.Dataset
	var level, state int
	if err := row.Scan(&ds.ID, &ds.OwnerID, &ds.OrgID, &ds.Name, &ds.FileKey, &ds.FileSize, &ds.ContentType, &level, &state, &ds.Ctime, &ds.Mtime); err != nil {
		return nil, err
	}
	ds.SharingLevel = model.SharingLevel(level)
	ds.State = model.DatasetState(state)
	return &ds, nil
}
