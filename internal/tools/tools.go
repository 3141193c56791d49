// Package tools exposes the credential lifecycle engine as MCP tools.
// Tool names are part of the wire contract and must not change.
package tools

import (
	"context"
	"time"

	"github.com/healthops/credwatch/pkg/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Engine is the subset of the lifecycle engine the tools call into.
type Engine interface {
	SyncProviderIdentity(ctx context.Context, npi string) (*models.Provider, error)
	UpsertCredential(ctx context.Context, providerID int64, credType, issuer, number, expiryDate string) (*models.Credential, error)
	ListExpiring(ctx context.Context, windowDays int, dept, location string) ([]models.ExpiringCredential, error)
	GetProviderSnapshot(ctx context.Context, providerID int64, npi string) (*models.ProviderSnapshot, error)
}

// Add registers every credwatch tool on the server.
func Add(server *mcp.Server, eng Engine) {
	mcp.AddTool(server, SyncProviderTool(), SyncProviderHandler(eng))
	mcp.AddTool(server, UpsertCredentialTool(), UpsertCredentialHandler(eng))
	mcp.AddTool(server, ListExpiringTool(), ListExpiringHandler(eng))
	mcp.AddTool(server, ProviderSnapshotTool(), ProviderSnapshotHandler(eng))
}

// ProviderPayload is the wire shape of a provider record.
type ProviderPayload struct {
	ID               int64  `json:"id" jsonschema:"provider identifier"`
	NPI              string `json:"npi,omitempty" jsonschema:"national provider identifier, if linked"`
	FullName         string `json:"full_name" jsonschema:"provider display name"`
	Dept             string `json:"dept,omitempty" jsonschema:"department, locally assigned"`
	Location         string `json:"location,omitempty" jsonschema:"practice location"`
	PrimarySpecialty string `json:"primary_specialty,omitempty" jsonschema:"primary specialty from the registry taxonomy"`
	IsActive         bool   `json:"is_active" jsonschema:"whether the provider is active"`
	CreatedAt        string `json:"created_at" jsonschema:"RFC3339 timestamp when the record was created"`
	UpdatedAt        string `json:"updated_at" jsonschema:"RFC3339 timestamp when the record was last updated"`
}

// CredentialPayload is the wire shape of a credential record.
type CredentialPayload struct {
	ID             int64  `json:"id" jsonschema:"credential identifier"`
	ProviderID     int64  `json:"provider_id" jsonschema:"owning provider identifier"`
	Type           string `json:"type" jsonschema:"credential type, e.g. license or certification"`
	Issuer         string `json:"issuer" jsonschema:"issuing body"`
	Number         string `json:"number" jsonschema:"credential number"`
	Status         string `json:"status" jsonschema:"derived status (active, expired)"`
	IssueDate      string `json:"issue_date,omitempty" jsonschema:"YYYY-MM-DD issue date"`
	ExpiryDate     string `json:"expiry_date,omitempty" jsonschema:"YYYY-MM-DD expiry date"`
	LastVerifiedAt string `json:"last_verified_at,omitempty" jsonschema:"RFC3339 timestamp of the last verification"`
	CreatedAt      string `json:"created_at" jsonschema:"RFC3339 timestamp when the record was created"`
	UpdatedAt      string `json:"updated_at" jsonschema:"RFC3339 timestamp when the record was last updated"`
}

// AlertPayload is the wire shape of an expiry alert.
type AlertPayload struct {
	ID         int64  `json:"id" jsonschema:"alert identifier"`
	ProviderID int64  `json:"provider_id" jsonschema:"provider the alert is about"`
	Message    string `json:"message" jsonschema:"alert message"`
	CreatedAt  string `json:"created_at" jsonschema:"RFC3339 timestamp when the alert was raised"`
}

func formatTimestamp(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func providerPayload(p *models.Provider) ProviderPayload {
	return ProviderPayload{
		ID:               p.ID,
		NPI:              deref(p.NPI),
		FullName:         p.FullName,
		Dept:             deref(p.Dept),
		Location:         deref(p.Location),
		PrimarySpecialty: deref(p.PrimarySpecialty),
		IsActive:         p.IsActive,
		CreatedAt:        formatTimestamp(p.Created),
		UpdatedAt:        formatTimestamp(p.Updated),
	}
}

func credentialPayload(c *models.Credential) CredentialPayload {
	payload := CredentialPayload{
		ID:         c.ID,
		ProviderID: c.ProviderID,
		Type:       c.Type,
		Issuer:     c.Issuer,
		Number:     c.Number,
		Status:     c.Status,
		IssueDate:  deref(c.IssueDate),
		ExpiryDate: deref(c.ExpiryDate),
		CreatedAt:  formatTimestamp(c.Created),
		UpdatedAt:  formatTimestamp(c.Updated),
	}
	if c.LastVerifiedAt != nil {
		payload.LastVerifiedAt = formatTimestamp(*c.LastVerifiedAt)
	}
	return payload
}

func alertPayload(a *models.Alert) AlertPayload {
	return AlertPayload{
		ID:         a.ID,
		ProviderID: a.ProviderID,
		Message:    a.Message,
		CreatedAt:  formatTimestamp(a.Created),
	}
}
