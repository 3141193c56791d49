package sqlite

import (
	"context"
	"fmt"

	"github.com/healthops/credwatch/pkg/models"
)

func (r *SQLiteRepo) CreateAlert(ctx context.Context, a *models.Alert) (int64, error) {
	if a == nil {
		return 0, fmt.Errorf("alert is nil")
	}
	res, err := r.conn.Exec(ctx, `INSERT INTO alerts (provider_id, message, created) VALUES (?, ?, ?)`,
		a.ProviderID, a.Message, now())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *SQLiteRepo) ListAlertsByProvider(ctx context.Context, providerID int64) ([]models.Alert, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, provider_id, message, created FROM alerts WHERE provider_id = ? ORDER BY id`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Alert
	for rows.Next() {
		var a models.Alert
		if err := rows.Scan(&a.ID, &a.ProviderID, &a.Message, &a.Created); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AlertExists is the sweeper's dedup check: one alert per exact message per
// provider.
func (r *SQLiteRepo) AlertExists(ctx context.Context, providerID int64, message string) (bool, error) {
	row := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM alerts WHERE provider_id = ? AND message = ?`, providerID, message)
	var cnt int64
	if err := row.Scan(&cnt); err != nil {
		return false, err
	}
	return cnt > 0, nil
}
