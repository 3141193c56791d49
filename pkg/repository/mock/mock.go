package mock

import (
	"context"

	"github.com/healthops/credwatch/pkg/models"
	"github.com/healthops/credwatch/pkg/repository"
)

// Test helpers and mocks
type Mocks struct {
	Providers   *ProviderRepo
	Credentials *CredentialRepo
	Alerts      *AlertRepo
}

func NewMocks() *Mocks {
	return &Mocks{
		Providers:   &ProviderRepo{},
		Credentials: &CredentialRepo{},
		Alerts:      &AlertRepo{},
	}
}

type ProviderRepo struct {
	Stored    *models.Provider
	GetErr    error
	UpsertErr error
	nextID    int64
}

var _ repository.ProviderRepo = (*ProviderRepo)(nil)

func (m *ProviderRepo) GetProvider(ctx context.Context, id int64) (*models.Provider, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	if m.Stored != nil && m.Stored.ID == id {
		return m.Stored, nil
	}
	return nil, nil
}

func (m *ProviderRepo) GetProviderByNPI(ctx context.Context, npi string) (*models.Provider, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	if m.Stored != nil && m.Stored.NPI != nil && *m.Stored.NPI == npi {
		return m.Stored, nil
	}
	return nil, nil
}

func (m *ProviderRepo) UpsertProviderByNPI(ctx context.Context, p *models.Provider) (*models.Provider, error) {
	if m.UpsertErr != nil {
		return nil, m.UpsertErr
	}
	if m.Stored != nil && m.Stored.NPI != nil && p.NPI != nil && *m.Stored.NPI == *p.NPI {
		m.Stored.FullName = p.FullName
		m.Stored.PrimarySpecialty = p.PrimarySpecialty
		m.Stored.Location = p.Location
		return m.Stored, nil
	}
	m.nextID++
	cp := *p
	cp.ID = m.nextID
	m.Stored = &cp
	return m.Stored, nil
}

func (m *ProviderRepo) CreateProvider(ctx context.Context, p *models.Provider) (int64, error) {
	m.nextID++
	cp := *p
	cp.ID = m.nextID
	m.Stored = &cp
	return cp.ID, nil
}

type CredentialRepo struct {
	Rows      []models.Credential
	UpsertErr error
	ListErr   error
	Expiring  []repository.ExpiringRow
	nextID    int64
}

var _ repository.CredentialRepo = (*CredentialRepo)(nil)

func (m *CredentialRepo) UpsertCredential(ctx context.Context, c *models.Credential) (*models.Credential, error) {
	if m.UpsertErr != nil {
		return nil, m.UpsertErr
	}
	for i := range m.Rows {
		r := &m.Rows[i]
		if r.ProviderID == c.ProviderID && r.Type == c.Type && r.Issuer == c.Issuer && r.Number == c.Number {
			r.ExpiryDate = c.ExpiryDate
			r.Status = c.Status
			r.Updated = c.Updated
			return r, nil
		}
	}
	m.nextID++
	cp := *c
	cp.ID = m.nextID
	m.Rows = append(m.Rows, cp)
	return &m.Rows[len(m.Rows)-1], nil
}

func (m *CredentialRepo) GetCredentialByKey(ctx context.Context, providerID int64, credType, issuer, number string) (*models.Credential, error) {
	for i := range m.Rows {
		r := &m.Rows[i]
		if r.ProviderID == providerID && r.Type == credType && r.Issuer == issuer && r.Number == number {
			return r, nil
		}
	}
	return nil, nil
}

func (m *CredentialRepo) ListCredentialsByProvider(ctx context.Context, providerID int64) ([]models.Credential, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []models.Credential
	for _, r := range m.Rows {
		if r.ProviderID == providerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *CredentialRepo) ListExpiring(ctx context.Context, f repository.ExpiryFilter) ([]repository.ExpiringRow, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Expiring, nil
}

type AlertRepo struct {
	Rows      []models.Alert
	CreateErr error
	nextID    int64
}

var _ repository.AlertRepo = (*AlertRepo)(nil)

func (m *AlertRepo) CreateAlert(ctx context.Context, a *models.Alert) (int64, error) {
	if m.CreateErr != nil {
		return 0, m.CreateErr
	}
	m.nextID++
	cp := *a
	cp.ID = m.nextID
	m.Rows = append(m.Rows, cp)
	return cp.ID, nil
}

func (m *AlertRepo) ListAlertsByProvider(ctx context.Context, providerID int64) ([]models.Alert, error) {
	var out []models.Alert
	for _, r := range m.Rows {
		if r.ProviderID == providerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *AlertRepo) AlertExists(ctx context.Context, providerID int64, message string) (bool, error) {
	for _, r := range m.Rows {
		if r.ProviderID == providerID && r.Message == message {
			return true, nil
		}
	}
	return false, nil
}
