package models

// Domain models matching the database schema in db/migrations/0001_init.sql.
//
// Calendar dates (issue_date, expiry_date) are YYYY-MM-DD strings so that
// lexical comparison matches chronological order in range scans. Timestamps
// (created, updated, last_verified_at) are unix milliseconds.

const (
	// CredentialActive and CredentialExpired are the derived credential
	// statuses. Status is fixed at write time and never recomputed on read:
	// a credential whose expiry date has since passed keeps reporting
	// active until the next write touches the row.
	CredentialActive  = "active"
	CredentialExpired = "expired"
)

type Provider struct {
	ID               int64   `json:"id" db:"id"`
	NPI              *string `json:"npi,omitempty" db:"npi"`
	FullName         string  `json:"full_name" db:"full_name"`
	Dept             *string `json:"dept,omitempty" db:"dept"`
	Location         *string `json:"location,omitempty" db:"location"`
	PrimarySpecialty *string `json:"primary_specialty,omitempty" db:"primary_specialty"`
	IsActive         bool    `json:"is_active" db:"is_active"`
	Created          int64   `json:"created" db:"created"`
	Updated          int64   `json:"updated" db:"updated"`
}

type Credential struct {
	ID             int64   `json:"id" db:"id"`
	ProviderID     int64   `json:"provider_id" db:"provider_id"`
	Type           string  `json:"type" db:"type"`
	Issuer         string  `json:"issuer" db:"issuer"`
	Number         string  `json:"number" db:"number"`
	Status         string  `json:"status" db:"status"`
	IssueDate      *string `json:"issue_date,omitempty" db:"issue_date"`
	ExpiryDate     *string `json:"expiry_date,omitempty" db:"expiry_date"`
	LastVerifiedAt *int64  `json:"last_verified_at,omitempty" db:"last_verified_at"`
	Metadata       *string `json:"metadata,omitempty" db:"metadata"`
	Created        int64   `json:"created" db:"created"`
	Updated        int64   `json:"updated" db:"updated"`
}

type Alert struct {
	ID         int64  `json:"id" db:"id"`
	ProviderID int64  `json:"provider_id" db:"provider_id"`
	Message    string `json:"message" db:"message"`
	Created    int64  `json:"created" db:"created"`
}

// ExpiringCredential is one row of the expiry-risk report: a credential
// joined to its provider, annotated with days until expiry and a coarse
// 1-3 risk bucket.
type ExpiringCredential struct {
	Provider     Provider   `json:"provider"`
	Credential   Credential `json:"credential"`
	DaysToExpiry int        `json:"days_to_expiry"`
	RiskScore    int        `json:"risk_score"`
}

// ProviderSnapshot is the composed read view of a provider with every
// credential and alert that references it.
type ProviderSnapshot struct {
	Provider    Provider     `json:"provider"`
	Credentials []Credential `json:"credentials"`
	Alerts      []Alert      `json:"alerts"`
}
