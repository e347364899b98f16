package repo

import (
	"context"
	"database/sql"
	"errors"

	"obralink/internal/domain"
)

const adicionalCols = `id,project_id,title,COALESCE(description,''),COALESCE(category,''),presented_amount,approved_amount,status,COALESCE(rejection_notes,''),COALESCE(resolved_by,''),resolved_at,created_by,created_role,created_at,version`

func scanAdicional(sc scanner) (domain.Adicional, error) {
	var (
		a          domain.Adicional
		approved   sql.NullInt64
		resolvedAt sql.NullString
		created    string
	)
	err := sc.Scan(&a.ID, &a.ProjectID, &a.Title, &a.Description, &a.Category, &a.PresentedAmount, &approved, &a.Status,
		&a.RejectionNotes, &a.ResolvedBy, &resolvedAt, &a.CreatedBy.Subject, &a.CreatedBy.Role, &created, &a.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if approved.Valid {
		v := approved.Int64
		a.ApprovedAmount = &v
	}
	a.ResolvedAt = parseTimePtr(resolvedAt)
	a.CreatedAt = parseTime(created)
	return a, nil
}

func (r Repo) InsertAdicional(ctx context.Context, tx *sql.Tx, a domain.Adicional) (int64, error) {
	res, err := r.q(tx).ExecContext(ctx, `INSERT INTO adicionales(project_id,title,description,category,presented_amount,status,created_by,created_role,created_at,version) VALUES (?,?,?,?,?,?,?,?,?,1)`,
		a.ProjectID, a.Title, nullable(a.Description), nullable(a.Category), a.PresentedAmount, a.Status,
		a.CreatedBy.Subject, a.CreatedBy.Role, formatTime(a.CreatedAt))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetAdicional(ctx context.Context, tx *sql.Tx, projectID string, id int64) (domain.Adicional, error) {
	return scanAdicional(r.q(tx).QueryRowContext(ctx, `SELECT `+adicionalCols+` FROM adicionales WHERE project_id=? AND id=?`, projectID, id))
}

func (r Repo) ListAdicionales(ctx context.Context, projectID string) ([]domain.Adicional, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+adicionalCols+` FROM adicionales WHERE project_id=? ORDER BY id DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Adicional
	for rows.Next() {
		a, err := scanAdicional(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) UpdateAdicional(ctx context.Context, tx *sql.Tx, prev, next domain.Adicional) error {
	res, err := tx.ExecContext(ctx, `UPDATE adicionales SET status=?,approved_amount=?,rejection_notes=?,resolved_by=?,resolved_at=?,version=version+1
WHERE id=? AND project_id=? AND status=? AND version=?`,
		next.Status, nullableInt64(next.ApprovedAmount), nullable(next.RejectionNotes), nullable(next.ResolvedBy), formatTimePtr(next.ResolvedAt),
		prev.ID, prev.ProjectID, prev.Status, prev.Version)
	if err != nil {
		return err
	}
	return checkCAS(res, domain.KindAdicional, prev.ID)
}
