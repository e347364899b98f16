package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"obralink/internal/domain"
)

func (r Repo) InsertAccessRef(ctx context.Context, tx *sql.Tx, ref domain.AccessRef) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO access_refs(ref,project_id,kind,item_id,role,created_at) VALUES (?,?,?,?,?,?)`,
		ref.Ref, ref.ProjectID, ref.Kind, ref.ItemID, ref.Role, formatTime(ref.CreatedAt))
	return err
}

func (r Repo) GetAccessRef(ctx context.Context, tx *sql.Tx, ref string) (domain.AccessRef, error) {
	var (
		a        domain.AccessRef
		created  string
		consumed sql.NullString
	)
	err := r.q(tx).QueryRowContext(ctx, `SELECT ref,project_id,kind,item_id,role,created_at,consumed_at FROM access_refs WHERE ref=?`, ref).
		Scan(&a.Ref, &a.ProjectID, &a.Kind, &a.ItemID, &a.Role, &created, &consumed)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	a.CreatedAt = parseTime(created)
	a.ConsumedAt = parseTimePtr(consumed)
	return a, nil
}

// ConsumeAccessRef marks ref as used. A reference can be consumed once; a
// second attempt fails with domain.ErrUnauthorized.
func (r Repo) ConsumeAccessRef(ctx context.Context, tx *sql.Tx, ref string, now time.Time) (domain.AccessRef, error) {
	res, err := tx.ExecContext(ctx, `UPDATE access_refs SET consumed_at=? WHERE ref=? AND consumed_at IS NULL`, formatTime(now), ref)
	if err != nil {
		return domain.AccessRef{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetAccessRef(ctx, tx, ref); err != nil {
			return domain.AccessRef{}, err
		}
		return domain.AccessRef{}, fmt.Errorf("%w: access reference already used", domain.ErrUnauthorized)
	}
	return r.GetAccessRef(ctx, tx, ref)
}
