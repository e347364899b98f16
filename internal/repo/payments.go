package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"obralink/internal/domain"
)

const paymentCols = `id,project_id,period,total_amount,expires_on,status,approval_progress,approvals_required,documents_json,COALESCE(access_ref,''),submitted_at,COALESCE(rejection_notes,''),COALESCE(resolved_by,''),resolved_at,created_by,created_role,created_at,version`

func scanPayment(sc scanner) (domain.PaymentSubmission, error) {
	var (
		p                              domain.PaymentSubmission
		expires, submitted, resolvedAt sql.NullString
		docs, created                  string
	)
	err := sc.Scan(&p.ID, &p.ProjectID, &p.Period, &p.TotalAmount, &expires, &p.Status, &p.ApprovalProgress, &p.ApprovalsRequired,
		&docs, &p.AccessRef, &submitted, &p.RejectionNotes, &p.ResolvedBy, &resolvedAt, &p.CreatedBy.Subject, &p.CreatedBy.Role, &created, &p.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal([]byte(docs), &p.Documents); err != nil {
		return p, fmt.Errorf("decode documents of payment %d: %w", p.ID, err)
	}
	p.ExpiresOn = parseTimePtr(expires)
	p.SubmittedAt = parseTimePtr(submitted)
	p.ResolvedAt = parseTimePtr(resolvedAt)
	p.CreatedAt = parseTime(created)
	return p, nil
}

func encodeDocuments(docs map[string]bool) (string, error) {
	if docs == nil {
		docs = map[string]bool{}
	}
	data, err := json.Marshal(docs)
	return string(data), err
}

func (r Repo) InsertPayment(ctx context.Context, tx *sql.Tx, p domain.PaymentSubmission) (int64, error) {
	docs, err := encodeDocuments(p.Documents)
	if err != nil {
		return 0, err
	}
	res, err := r.q(tx).ExecContext(ctx, `INSERT INTO payments(project_id,period,total_amount,expires_on,status,approval_progress,approvals_required,documents_json,created_by,created_role,created_at,version) VALUES (?,?,?,?,?,0,?,?,?,?,?,1)`,
		p.ProjectID, p.Period, p.TotalAmount, formatTimePtr(p.ExpiresOn), p.Status, p.ApprovalsRequired, docs,
		p.CreatedBy.Subject, p.CreatedBy.Role, formatTime(p.CreatedAt))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetPayment(ctx context.Context, tx *sql.Tx, projectID string, id int64) (domain.PaymentSubmission, error) {
	p, err := scanPayment(r.q(tx).QueryRowContext(ctx, `SELECT `+paymentCols+` FROM payments WHERE project_id=? AND id=?`, projectID, id))
	if err != nil {
		return p, err
	}
	p.Approvers, err = r.listApprovers(ctx, tx, id)
	return p, err
}

func (r Repo) ListPayments(ctx context.Context, projectID string) ([]domain.PaymentSubmission, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+paymentCols+` FROM payments WHERE project_id=? ORDER BY id DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.PaymentSubmission
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	for i := range res {
		if res[i].Approvers, err = r.listApprovers(ctx, nil, res[i].ID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// ListScheduledPayments returns Programado payments across all projects.
func (r Repo) ListScheduledPayments(ctx context.Context) ([]domain.PaymentSubmission, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+paymentCols+` FROM payments WHERE status=? ORDER BY id`, domain.PaymentProgramado)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.PaymentSubmission
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// UpdatePayment applies a conditional update. New approvers are inserted into
// payment_approvals, whose primary key rejects a second signoff by the same
// subject even if two writers raced past the status check.
func (r Repo) UpdatePayment(ctx context.Context, tx *sql.Tx, prev, next domain.PaymentSubmission, now time.Time) error {
	docs, err := encodeDocuments(next.Documents)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE payments SET status=?,approval_progress=?,documents_json=?,access_ref=?,submitted_at=?,rejection_notes=?,resolved_by=?,resolved_at=?,version=version+1
WHERE id=? AND project_id=? AND status=? AND version=?`,
		next.Status, next.ApprovalProgress, docs, nullable(next.AccessRef), formatTimePtr(next.SubmittedAt),
		nullable(next.RejectionNotes), nullable(next.ResolvedBy), formatTimePtr(next.ResolvedAt),
		prev.ID, prev.ProjectID, prev.Status, prev.Version)
	if err != nil {
		return err
	}
	if err := checkCAS(res, domain.KindPayment, prev.ID); err != nil {
		return err
	}
	for _, approver := range next.Approvers {
		if prev.ApprovedBy(approver) {
			continue
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO payment_approvals(payment_id,approver,approved_at) VALUES (?,?,?)`,
			prev.ID, approver, formatTime(now)); err != nil {
			return fmt.Errorf("%w: record approval: %v", domain.ErrConflict, err)
		}
	}
	return nil
}

func (r Repo) listApprovers(ctx context.Context, tx *sql.Tx, paymentID int64) ([]string, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT approver FROM payment_approvals WHERE payment_id=? ORDER BY approved_at, approver`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}
