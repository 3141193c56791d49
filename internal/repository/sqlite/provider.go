package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/healthops/credwatch/pkg/models"
)

const providerColumns = `id, npi, full_name, dept, location, primary_specialty, is_active, created, updated`

func (r *SQLiteRepo) GetProvider(ctx context.Context, id int64) (*models.Provider, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+providerColumns+` FROM providers WHERE id = ?`, id)
	return scanProvider(row)
}

func (r *SQLiteRepo) GetProviderByNPI(ctx context.Context, npi string) (*models.Provider, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+providerColumns+` FROM providers WHERE npi = ?`, npi)
	return scanProvider(row)
}

func (r *SQLiteRepo) CreateProvider(ctx context.Context, p *models.Provider) (int64, error) {
	if p == nil {
		return 0, fmt.Errorf("provider is nil")
	}
	ts := now()
	res, err := r.conn.Exec(ctx, `INSERT INTO providers (npi, full_name, dept, location, primary_specialty, is_active, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.NPI, p.FullName, p.Dept, p.Location, p.PrimarySpecialty, boolToInt(p.IsActive), ts, ts)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpsertProviderByNPI resolves concurrent syncs for the same NPI through the
// unique index: the insert either creates the row or updates the registry
// owned fields in place. Dept is locally owned and never written here.
func (r *SQLiteRepo) UpsertProviderByNPI(ctx context.Context, p *models.Provider) (*models.Provider, error) {
	if p == nil {
		return nil, fmt.Errorf("provider is nil")
	}
	if p.NPI == nil || *p.NPI == "" {
		return nil, fmt.Errorf("provider npi is required for upsert")
	}
	ts := now()
	_, err := r.conn.Exec(ctx, `INSERT INTO providers (npi, full_name, dept, location, primary_specialty, is_active, created, updated)
		VALUES (?, ?, NULL, ?, ?, 1, ?, ?)
		ON CONFLICT(npi) DO UPDATE SET
			full_name = excluded.full_name,
			location = excluded.location,
			primary_specialty = excluded.primary_specialty,
			updated = excluded.updated`,
		p.NPI, p.FullName, p.Location, p.PrimarySpecialty, ts, ts)
	if err != nil {
		return nil, err
	}
	return r.GetProviderByNPI(ctx, *p.NPI)
}

// DeleteProvider removes a provider row. Credentials and alerts cascade at
// the schema level; the lifecycle engine never calls this, it exists for
// store-level administration.
func (r *SQLiteRepo) DeleteProvider(ctx context.Context, id int64) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM providers WHERE id = ?`, id)
	return err
}

func scanProvider(row *sql.Row) (*models.Provider, error) {
	var (
		p         models.Provider
		npi       sql.NullString
		dept      sql.NullString
		location  sql.NullString
		specialty sql.NullString
		active    int
	)
	if err := row.Scan(&p.ID, &npi, &p.FullName, &dept, &location, &specialty, &active, &p.Created, &p.Updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if npi.Valid {
		p.NPI = &npi.String
	}
	if dept.Valid {
		p.Dept = &dept.String
	}
	if location.Valid {
		p.Location = &location.String
	}
	if specialty.Valid {
		p.PrimarySpecialty = &specialty.String
	}
	p.IsActive = active != 0
	return &p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
