package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"obralink/internal/domain"
	"obralink/internal/identity"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r Repo) q(tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.DB
}

func (r Repo) EnsureOrg(ctx context.Context, tx *sql.Tx, org domain.Organization) error {
	if org.Name == "" {
		org.Name = org.ID
	}
	_, err := r.q(tx).ExecContext(ctx, `INSERT OR IGNORE INTO organizations(id,name,created_at) VALUES (?,?,?)`,
		org.ID, org.Name, formatTime(org.CreatedAt))
	return err
}

func (r Repo) AddMember(ctx context.Context, tx *sql.Tx, orgID, accountID string, now time.Time) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT OR IGNORE INTO org_members(org_id,account_id,created_at) VALUES (?,?,?)`,
		orgID, accountID, formatTime(now))
	return err
}

func (r Repo) ListMembers(ctx context.Context, orgID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT account_id FROM org_members WHERE org_id=? ORDER BY account_id`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		res = append(res, id)
	}
	return res, rows.Err()
}

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO projects(id,name,currency,contractor_org_id,mandante_org_id,created_at) VALUES (?,?,?,?,?,?)`,
		p.ID, p.Name, p.Currency, p.ContractorOrgID, p.MandanteOrgID, formatTime(p.CreatedAt))
	return err
}

const projectCols = `id,name,currency,contractor_org_id,mandante_org_id,created_at`

func scanProject(sc scanner) (domain.Project, error) {
	var p domain.Project
	var created string
	if err := sc.Scan(&p.ID, &p.Name, &p.Currency, &p.ContractorOrgID, &p.MandanteOrgID, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, ErrNotFound
		}
		return p, err
	}
	p.CreatedAt = parseTime(created)
	return p, nil
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return scanProject(r.DB.QueryRowContext(ctx, `SELECT `+projectCols+` FROM projects WHERE id=?`, id))
}

func (r Repo) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+projectCols+` FROM projects ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// Membership reports which sides of projectID the account belongs to through
// its organizations.
func (r Repo) Membership(ctx context.Context, projectID, accountID string) (identity.Membership, error) {
	p, err := r.GetProject(ctx, projectID)
	if err != nil {
		return identity.Membership{}, err
	}
	var m identity.Membership
	rows, err := r.DB.QueryContext(ctx, `SELECT org_id FROM org_members WHERE account_id=? AND org_id IN (?,?)`,
		accountID, p.ContractorOrgID, p.MandanteOrgID)
	if err != nil {
		return m, err
	}
	defer rows.Close()
	for rows.Next() {
		var org string
		if err := rows.Scan(&org); err != nil {
			return m, err
		}
		if org == p.ContractorOrgID {
			m.Contractor = true
		}
		if org == p.MandanteOrgID {
			m.Mandante = true
		}
	}
	return m, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

// checkCAS turns a conditional update that matched no row into ErrConflict.
func checkCAS(res sql.Result, kind domain.Kind, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %d", domain.ErrConflict, kind, id)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
