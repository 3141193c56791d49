package sqlite

import (
	"log/slog"
	"time"

	"github.com/healthops/credwatch/internal/db"
	"github.com/healthops/credwatch/pkg/repository"
)

// SQLiteRepo implements repository interfaces using the internal DB wrapper.
type SQLiteRepo struct {
	conn   *db.DB
	logger *slog.Logger
}

// Ensure SQLiteRepo implements the public interfaces.
var _ repository.ProviderRepo = (*SQLiteRepo)(nil)
var _ repository.CredentialRepo = (*SQLiteRepo)(nil)
var _ repository.AlertRepo = (*SQLiteRepo)(nil)

func New(conn *db.DB, logger *slog.Logger) *SQLiteRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteRepo{conn: conn, logger: logger}
}

func now() int64 {
	return time.Now().UTC().UnixMilli()
}
