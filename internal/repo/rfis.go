package repo

import (
	"context"
	"database/sql"
	"errors"

	"obralink/internal/domain"
)

const rfiCols = `id,project_id,title,COALESCE(description,''),status,urgency,due_date,COALESCE(response,''),responded_at,COALESCE(responded_by,''),created_by,created_role,created_at,version`

func scanRFI(sc scanner) (domain.RFI, error) {
	var (
		r                domain.RFI
		due, respondedAt sql.NullString
		created          string
	)
	err := sc.Scan(&r.ID, &r.ProjectID, &r.Title, &r.Description, &r.Status, &r.Urgency, &due, &r.Response,
		&respondedAt, &r.RespondedBy, &r.CreatedBy.Subject, &r.CreatedBy.Role, &created, &r.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrNotFound
	}
	if err != nil {
		return r, err
	}
	r.DueDate = parseTimePtr(due)
	r.RespondedAt = parseTimePtr(respondedAt)
	r.CreatedAt = parseTime(created)
	return r, nil
}

// InsertRFI stores a new RFI and returns its id.
func (r Repo) InsertRFI(ctx context.Context, tx *sql.Tx, rfi domain.RFI) (int64, error) {
	res, err := r.q(tx).ExecContext(ctx, `INSERT INTO rfis(project_id,title,description,status,urgency,due_date,created_by,created_role,created_at,version) VALUES (?,?,?,?,?,?,?,?,?,1)`,
		rfi.ProjectID, rfi.Title, nullable(rfi.Description), rfi.Status, rfi.Urgency, formatTimePtr(rfi.DueDate),
		rfi.CreatedBy.Subject, rfi.CreatedBy.Role, formatTime(rfi.CreatedAt))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetRFI(ctx context.Context, tx *sql.Tx, projectID string, id int64) (domain.RFI, error) {
	rfi, err := scanRFI(r.q(tx).QueryRowContext(ctx, `SELECT `+rfiCols+` FROM rfis WHERE project_id=? AND id=?`, projectID, id))
	if err != nil {
		return rfi, err
	}
	rfi.Forwards, err = r.listForwards(ctx, tx, id)
	return rfi, err
}

// ListRFIs returns every RFI of the project, newest first. Visibility is
// decided by the caller.
func (r Repo) ListRFIs(ctx context.Context, projectID string) ([]domain.RFI, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+rfiCols+` FROM rfis WHERE project_id=? ORDER BY id DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.RFI
	for rows.Next() {
		rfi, err := scanRFI(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rfi)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	for i := range res {
		if res[i].Forwards, err = r.listForwards(ctx, nil, res[i].ID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// UpdateRFI writes next only if the stored row still has prev's status and
// version. Forwards are appended; existing ones are left untouched.
func (r Repo) UpdateRFI(ctx context.Context, tx *sql.Tx, prev, next domain.RFI) error {
	res, err := tx.ExecContext(ctx, `UPDATE rfis SET status=?,response=?,responded_at=?,responded_by=?,version=version+1
WHERE id=? AND project_id=? AND status=? AND version=?`,
		next.Status, nullable(next.Response), formatTimePtr(next.RespondedAt), nullable(next.RespondedBy),
		prev.ID, prev.ProjectID, prev.Status, prev.Version)
	if err != nil {
		return err
	}
	if err := checkCAS(res, domain.KindRFI, prev.ID); err != nil {
		return err
	}
	for _, f := range next.Forwards {
		if prev.ForwardedTo(f.Recipient) {
			continue
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO rfi_forwards(rfi_id,recipient,forwarded_at) VALUES (?,?,?)`,
			prev.ID, f.Recipient, formatTime(f.ForwardedAt)); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) listForwards(ctx context.Context, tx *sql.Tx, rfiID int64) ([]domain.RFIForward, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT recipient,forwarded_at FROM rfi_forwards WHERE rfi_id=? ORDER BY forwarded_at, recipient`, rfiID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.RFIForward
	for rows.Next() {
		var f domain.RFIForward
		var ts string
		if err := rows.Scan(&f.Recipient, &ts); err != nil {
			return nil, err
		}
		f.ForwardedAt = parseTime(ts)
		res = append(res, f)
	}
	return res, rows.Err()
}
