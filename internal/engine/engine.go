// Package engine implements the credential lifecycle engine: provider
// identity sync, credential upserts with date-driven status derivation, the
// expiry-window risk query, and the provider snapshot view.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/healthops/credwatch/pkg/apperr"
	"github.com/healthops/credwatch/pkg/models"
	"github.com/healthops/credwatch/pkg/npi"
	"github.com/healthops/credwatch/pkg/repository"
)

const dateLayout = "2006-01-02"

// RegistryClient is the engine's view of the NPI registry adapter.
type RegistryClient interface {
	GetProviderByNPI(ctx context.Context, npi string) (*npi.ProviderDocument, error)
}

type Engine struct {
	providers   repository.ProviderRepo
	credentials repository.CredentialRepo
	alerts      repository.AlertRepo
	registry    RegistryClient
	logger      *slog.Logger
	now         func() time.Time
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the engine's time source. Tests use this to pin the
// local calendar day.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func New(providers repository.ProviderRepo, credentials repository.CredentialRepo, alerts repository.AlertRepo, registry RegistryClient, opts ...Option) *Engine {
	e := &Engine{
		providers:   providers,
		credentials: credentials,
		alerts:      alerts,
		registry:    registry,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// today returns the process-local calendar day at midnight UTC, so whole-day
// arithmetic is exact. Date handling is deliberately timezone-naive: the day
// boundary is the process's, not the credential issuer's.
func (e *Engine) today() time.Time {
	y, m, d := e.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SyncProviderIdentity fetches the identity document for an NPI from the
// upstream registry and creates or updates the matching local provider.
// Registry-owned fields (name, specialty, location) are overwritten; dept is
// locally owned and never touched by sync.
func (e *Engine) SyncProviderIdentity(ctx context.Context, npiID string) (*models.Provider, error) {
	npiID = strings.TrimSpace(npiID)
	if npiID == "" {
		return nil, apperr.New(apperr.KindInvalidArgument, "npi is required")
	}

	doc, err := e.registry.GetProviderByNPI(ctx, npiID)
	if err != nil {
		if errors.Is(err, npi.ErrNotFound) {
			return nil, apperr.Newf(apperr.KindNotFound, "NPI %s not found in upstream registry", npiID)
		}
		return nil, apperr.Wrap(err, apperr.KindUnavailable, "registry lookup failed")
	}

	fullName := strings.TrimSpace(doc.FirstName + " " + doc.LastName)
	if fullName == "" {
		fullName = doc.OrganizationName
	}
	if fullName == "" {
		fullName = "Unknown"
	}

	specialty := doc.TaxonomyDesc
	if specialty == "" {
		specialty = "Unknown"
	}

	var location string
	if addr, ok := doc.StructuredAddress(); ok {
		location = fmt.Sprintf("%s, %s", addr.City, addr.State)
	} else {
		location = doc.AddressString()
	}

	p := &models.Provider{
		NPI:              &npiID,
		FullName:         fullName,
		PrimarySpecialty: &specialty,
		Location:         &location,
		IsActive:         true,
	}
	persisted, err := e.providers.UpsertProviderByNPI(ctx, p)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, "failed to store provider")
	}

	e.logger.Info("provider synced from registry",
		slog.String("npi", npiID),
		slog.Int64("provider_id", persisted.ID),
	)
	return persisted, nil
}

// UpsertCredential creates a credential or updates the one matching the
// (providerID, credType, issuer, number) identity key. Status is derived at
// write time: active iff the expiry date is strictly after today.
func (e *Engine) UpsertCredential(ctx context.Context, providerID int64, credType, issuer, number, expiryDate string) (*models.Credential, error) {
	if _, err := time.Parse(dateLayout, expiryDate); err != nil {
		return nil, apperr.New(apperr.KindInvalidArgument, "Invalid date format. Use YYYY-MM-DD")
	}

	provider, err := e.providers.GetProvider(ctx, providerID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, "failed to look up provider")
	}
	if provider == nil {
		return nil, apperr.Newf(apperr.KindNotFound, "Provider with ID %d not found", providerID)
	}

	c := &models.Credential{
		ProviderID: providerID,
		Type:       credType,
		Issuer:     issuer,
		Number:     number,
		Status:     e.statusForExpiry(expiryDate),
		ExpiryDate: &expiryDate,
	}
	persisted, err := e.credentials.UpsertCredential(ctx, c)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, "failed to store credential")
	}

	e.logger.Info("credential upserted",
		slog.Int64("provider_id", providerID),
		slog.String("type", credType),
		slog.String("status", persisted.Status),
	)
	return persisted, nil
}

// statusForExpiry derives the stored status for a YYYY-MM-DD expiry date.
// The format makes lexical comparison chronological.
func (e *Engine) statusForExpiry(expiryDate string) string {
	if expiryDate > e.today().Format(dateLayout) {
		return models.CredentialActive
	}
	return models.CredentialExpired
}

// ListExpiring returns active credentials whose expiry date falls inside
// [today, today+windowDays], joined to their providers and annotated with
// days-to-expiry and a risk bucket, ordered by expiry date ascending.
func (e *Engine) ListExpiring(ctx context.Context, windowDays int, dept, location string) ([]models.ExpiringCredential, error) {
	if windowDays < 0 {
		return nil, apperr.New(apperr.KindInvalidArgument, "window_days must not be negative")
	}

	today := e.today()
	f := repository.ExpiryFilter{
		From:     today.Format(dateLayout),
		To:       today.AddDate(0, 0, windowDays).Format(dateLayout),
		Dept:     dept,
		Location: location,
	}
	rows, err := e.credentials.ListExpiring(ctx, f)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, "failed to scan expiring credentials")
	}

	out := make([]models.ExpiringCredential, 0, len(rows))
	for _, row := range rows {
		if row.Credential.ExpiryDate == nil {
			continue
		}
		expiry, err := time.Parse(dateLayout, *row.Credential.ExpiryDate)
		if err != nil {
			e.logger.Warn("skipping credential with malformed expiry date",
				slog.Int64("credential_id", row.Credential.ID),
				slog.String("expiry_date", *row.Credential.ExpiryDate),
			)
			continue
		}
		days := int(expiry.Sub(today).Hours() / 24)
		out = append(out, models.ExpiringCredential{
			Provider:     row.Provider,
			Credential:   row.Credential,
			DaysToExpiry: days,
			RiskScore:    RiskScore(days),
		})
	}
	return out, nil
}

// RiskScore buckets days-to-expiry into a coarse 1-3 score: 3 under 30
// days, 2 from 30 to 59, 1 from 60 up. It is a triage bucket, not a
// calibrated probability.
func RiskScore(daysToExpiry int) int {
	switch {
	case daysToExpiry < 30:
		return 3
	case daysToExpiry < 60:
		return 2
	default:
		return 1
	}
}

// GetProviderSnapshot resolves a provider by internal id or NPI and returns
// it with every credential and alert that references it.
func (e *Engine) GetProviderSnapshot(ctx context.Context, providerID int64, npiID string) (*models.ProviderSnapshot, error) {
	if providerID == 0 && npiID == "" {
		return nil, apperr.New(apperr.KindInvalidArgument, "Must provide either provider_id or npi")
	}

	var (
		provider *models.Provider
		err      error
	)
	if providerID != 0 {
		provider, err = e.providers.GetProvider(ctx, providerID)
	} else {
		provider, err = e.providers.GetProviderByNPI(ctx, npiID)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, "failed to look up provider")
	}
	if provider == nil {
		return nil, apperr.New(apperr.KindNotFound, "Provider not found")
	}

	credentials, err := e.credentials.ListCredentialsByProvider(ctx, provider.ID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, "failed to list credentials")
	}
	alerts, err := e.alerts.ListAlertsByProvider(ctx, provider.ID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, "failed to list alerts")
	}

	if credentials == nil {
		credentials = []models.Credential{}
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	return &models.ProviderSnapshot{
		Provider:    *provider,
		Credentials: credentials,
		Alerts:      alerts,
	}, nil
}
