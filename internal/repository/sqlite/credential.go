package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/healthops/credwatch/pkg/models"
	"github.com/healthops/credwatch/pkg/repository"
)

const credentialColumns = `id, provider_id, type, issuer, number, status, issue_date, expiry_date, last_verified_at, metadata, created, updated`

// UpsertCredential writes through the unique (provider_id, type, issuer,
// number) index so two racing upserts for the same identity key converge on
// one row instead of duplicating it.
func (r *SQLiteRepo) UpsertCredential(ctx context.Context, c *models.Credential) (*models.Credential, error) {
	if c == nil {
		return nil, fmt.Errorf("credential is nil")
	}
	ts := now()
	_, err := r.conn.Exec(ctx, `INSERT INTO credentials (provider_id, type, issuer, number, status, issue_date, expiry_date, last_verified_at, metadata, created, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider_id, type, issuer, number) DO UPDATE SET
			status = excluded.status,
			expiry_date = excluded.expiry_date,
			updated = excluded.updated`,
		c.ProviderID, c.Type, c.Issuer, c.Number, c.Status, c.IssueDate, c.ExpiryDate, c.LastVerifiedAt, c.Metadata, ts, ts)
	if err != nil {
		return nil, err
	}
	return r.GetCredentialByKey(ctx, c.ProviderID, c.Type, c.Issuer, c.Number)
}

func (r *SQLiteRepo) GetCredentialByKey(ctx context.Context, providerID int64, credType, issuer, number string) (*models.Credential, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+credentialColumns+` FROM credentials WHERE provider_id = ? AND type = ? AND issuer = ? AND number = ?`,
		providerID, credType, issuer, number)
	c, err := scanCredentialRow(row)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *SQLiteRepo) ListCredentialsByProvider(ctx context.Context, providerID int64) ([]models.Credential, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+credentialColumns+` FROM credentials WHERE provider_id = ? ORDER BY id`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// ListExpiring joins active credentials inside the inclusive expiry window
// to their providers. Dates are YYYY-MM-DD text, so plain comparison is a
// chronological range scan. NULL expiry dates never match.
func (r *SQLiteRepo) ListExpiring(ctx context.Context, f repository.ExpiryFilter) ([]repository.ExpiringRow, error) {
	q := `SELECT c.id, c.provider_id, c.type, c.issuer, c.number, c.status, c.issue_date, c.expiry_date, c.last_verified_at, c.metadata, c.created, c.updated,
			p.id, p.npi, p.full_name, p.dept, p.location, p.primary_specialty, p.is_active, p.created, p.updated
		FROM credentials c
		JOIN providers p ON p.id = c.provider_id
		WHERE c.status = ? AND c.expiry_date IS NOT NULL AND c.expiry_date >= ? AND c.expiry_date <= ?`
	args := []any{models.CredentialActive, f.From, f.To}
	if f.Dept != "" {
		q += ` AND p.dept = ?`
		args = append(args, f.Dept)
	}
	if f.Location != "" {
		q += ` AND LOWER(p.location) LIKE '%' || LOWER(?) || '%'`
		args = append(args, f.Location)
	}
	q += ` ORDER BY c.expiry_date ASC, c.id ASC`

	rows, err := r.conn.QueryRows(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.ExpiringRow
	for rows.Next() {
		var (
			c models.Credential
			p models.Provider

			issueDate    sql.NullString
			expiryDate   sql.NullString
			lastVerified sql.NullInt64
			metadata     sql.NullString

			npi       sql.NullString
			dept      sql.NullString
			location  sql.NullString
			specialty sql.NullString
			active    int
		)
		if err := rows.Scan(
			&c.ID, &c.ProviderID, &c.Type, &c.Issuer, &c.Number, &c.Status,
			&issueDate, &expiryDate, &lastVerified, &metadata, &c.Created, &c.Updated,
			&p.ID, &npi, &p.FullName, &dept, &location, &specialty, &active, &p.Created, &p.Updated,
		); err != nil {
			return nil, err
		}
		if issueDate.Valid {
			c.IssueDate = &issueDate.String
		}
		if expiryDate.Valid {
			c.ExpiryDate = &expiryDate.String
		}
		if lastVerified.Valid {
			c.LastVerifiedAt = &lastVerified.Int64
		}
		if metadata.Valid {
			c.Metadata = &metadata.String
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
		out = append(out, repository.ExpiringRow{Provider: p, Credential: c})
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredentialRow(row *sql.Row) (*models.Credential, error) {
	c, err := scanCredential(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func scanCredential(s rowScanner) (*models.Credential, error) {
	var (
		c            models.Credential
		issueDate    sql.NullString
		expiryDate   sql.NullString
		lastVerified sql.NullInt64
		metadata     sql.NullString
	)
	if err := s.Scan(&c.ID, &c.ProviderID, &c.Type, &c.Issuer, &c.Number, &c.Status,
		&issueDate, &expiryDate, &lastVerified, &metadata, &c.Created, &c.Updated); err != nil {
		return nil, err
	}
	if issueDate.Valid {
		c.IssueDate = &issueDate.String
	}
	if expiryDate.Valid {
		c.ExpiryDate = &expiryDate.String
	}
	if lastVerified.Valid {
		c.LastVerifiedAt = &lastVerified.Int64
	}
	if metadata.Valid {
		c.Metadata = &metadata.String
	}
	return &c, nil
}
