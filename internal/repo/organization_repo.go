package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/dshare/internal/model"
	"github.com/xxxsen/dshare/internal/pkg/dbutil"
	appErr "github.com/xxxsen/dshare/internal/pkg/errors"
)

type OrganizationRepo struct {
	db *sql.DB
}

func NewOrganizationRepo(db *sql.DB) *OrganizationRepo {
	return &OrganizationRepo{db: db}
}

// CreateWithAdmin inserts the organization and makes adminID its first admin.
func (r *OrganizationRepo) CreateWithAdmin(ctx context.Context, org *model.Organization, adminID string) error {
	return dbutil.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		data := map[string]interface{}{
			"id":    org.ID,
			"name":  org.Name,
			"ctime": org.Ctime,
			"mtime": org.Mtime,
		}
		sqlStr, args, err := builder.BuildInsert("organizations", []map[string]interface{}{data})
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
		where := map[string]interface{}{"id": adminID, "org_id": ""}
		update := map[string]interface{}{"org_id": org.ID, "is_org_admin": true, "mtime": org.Mtime}
		sqlStr, args, err = builder.BuildUpdate("users", where, update)
		if err != nil {
			return err
		}
		sqlStr, args = dbutil.Finalize(sqlStr, args)
		result, err := tx.ExecContext(ctx, sqlStr, args...)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return appErr.ErrConflict
		}
		return nil
	})
}

func (r *OrganizationRepo) GetByID(ctx context.Context, orgID string) (*model.Organization, error) {
	sqlStr, args, err := builder.BuildSelect("organizations", map[string]interface{}{"id": orgID}, []string{"id", "name", "ctime", "mtime"})
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
	var org model.Organization
	if err := rows.Scan(&org.ID, &org.Name, &org.Ctime, &org.Mtime); err != nil {
		return nil, err
	}
	return &org, nil
}
