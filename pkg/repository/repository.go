package repository

import (
	"context"

	"github.com/healthops/credwatch/pkg/models"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.
//
// Point lookups return (nil, nil) when no row matches; callers translate
// that into their own not-found semantics.

type ProviderRepo interface {
	GetProvider(ctx context.Context, id int64) (*models.Provider, error)
	GetProviderByNPI(ctx context.Context, npi string) (*models.Provider, error)
	// UpsertProviderByNPI inserts a provider keyed by its NPI or, when one
	// already exists, updates full_name, primary_specialty and location in
	// place. Dept is locally owned and never written by this path.
	UpsertProviderByNPI(ctx context.Context, p *models.Provider) (*models.Provider, error)
	CreateProvider(ctx context.Context, p *models.Provider) (int64, error)
}

type CredentialRepo interface {
	// UpsertCredential inserts a credential or, when a row with the same
	// (provider_id, type, issuer, number) identity key exists, overwrites
	// its expiry date and status in place; issue_date, last_verified_at
	// and metadata keep their stored values. The identity key is enforced
	// by a unique index, so concurrent upserts resolve to a single row.
	UpsertCredential(ctx context.Context, c *models.Credential) (*models.Credential, error)
	GetCredentialByKey(ctx context.Context, providerID int64, credType, issuer, number string) (*models.Credential, error)
	ListCredentialsByProvider(ctx context.Context, providerID int64) ([]models.Credential, error)
	// ListExpiring scans active credentials with an expiry date inside the
	// inclusive [From, To] range, joined to their providers. NULL expiry
	// dates never match.
	ListExpiring(ctx context.Context, f ExpiryFilter) ([]ExpiringRow, error)
}

type AlertRepo interface {
	CreateAlert(ctx context.Context, a *models.Alert) (int64, error)
	ListAlertsByProvider(ctx context.Context, providerID int64) ([]models.Alert, error)
	AlertExists(ctx context.Context, providerID int64, message string) (bool, error)
}

// ExpiryFilter bounds an expiring-credential scan. From and To are
// inclusive YYYY-MM-DD dates. Dept is an exact match on the provider's
// department; Location is a case-insensitive substring match. Empty filter
// fields are ignored.
type ExpiryFilter struct {
	From     string
	To       string
	Dept     string
	Location string
}

// ExpiringRow is one joined row of the expiring-credential scan.
type ExpiringRow struct {
	Provider   models.Provider
	Credential models.Credential
}
