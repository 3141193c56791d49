package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// UpsertCredentialInput represents the MCP tool input for adding or
// updating a credential. The identity key is (provider_id, type, issuer,
// number); a second call with the same key updates the stored row.
type UpsertCredentialInput struct {
	ProviderID int64  `json:"provider_id" jsonschema:"owning provider identifier"`
	Type       string `json:"type" jsonschema:"credential type, e.g. license or certification"`
	Issuer     string `json:"issuer" jsonschema:"issuing body"`
	Number     string `json:"number" jsonschema:"credential number"`
	ExpiryDate string `json:"expiry_date" jsonschema:"YYYY-MM-DD expiry date"`
}

// UpsertCredentialResult represents the MCP tool output for a credential
// upsert.
type UpsertCredentialResult struct {
	Credential CredentialPayload `json:"credential" jsonschema:"the created or updated credential record"`
}

// UpsertCredentialTool defines the MCP tool schema for credential upserts.
func UpsertCredentialTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "add_or_update_credential",
		Description: "Adds a credential for a provider or updates the existing one with the same type, issuer and number. Status is derived from the expiry date.",
	}
}

// UpsertCredentialHandler executes a credential upsert request.
func UpsertCredentialHandler(eng Engine) mcp.ToolHandlerFor[UpsertCredentialInput, UpsertCredentialResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input UpsertCredentialInput) (*mcp.CallToolResult, UpsertCredentialResult, error) {
		cred, err := eng.UpsertCredential(ctx, input.ProviderID, input.Type, input.Issuer, input.Number, input.ExpiryDate)
		if err != nil {
			return nil, UpsertCredentialResult{}, err
		}
		return nil, UpsertCredentialResult{Credential: credentialPayload(cred)}, nil
	}
}

// ListExpiringInput represents the MCP tool input for the expiry-risk
// report.
type ListExpiringInput struct {
	WindowDays int    `json:"window_days" jsonschema:"report credentials expiring within this many days from today"`
	Dept       string `json:"dept,omitempty" jsonschema:"optional exact-match department filter"`
	Location   string `json:"location,omitempty" jsonschema:"optional case-insensitive location substring filter"`
}

// ExpiringItem is one row of the expiry-risk report.
type ExpiringItem struct {
	Provider     ProviderPayload   `json:"provider" jsonschema:"the owning provider"`
	Credential   CredentialPayload `json:"credential" jsonschema:"the expiring credential"`
	DaysToExpiry int               `json:"days_to_expiry" jsonschema:"whole days from today until expiry"`
	RiskScore    int               `json:"risk_score" jsonschema:"risk bucket: 3 under 30 days, 2 under 60, 1 otherwise"`
}

// ListExpiringResult represents the MCP tool output for the expiry-risk
// report, ordered soonest-expiring first.
type ListExpiringResult struct {
	Items []ExpiringItem `json:"items" jsonschema:"expiring credentials, soonest first"`
}

// ListExpiringTool defines the MCP tool schema for the expiry-risk report.
func ListExpiringTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_expiring_credentials",
		Description: "Lists active credentials expiring within a window of days, with days-to-expiry and a 1-3 risk score, optionally filtered by dept and location.",
	}
}

// ListExpiringHandler executes an expiry-risk report request.
func ListExpiringHandler(eng Engine) mcp.ToolHandlerFor[ListExpiringInput, ListExpiringResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ListExpiringInput) (*mcp.CallToolResult, ListExpiringResult, error) {
		rows, err := eng.ListExpiring(ctx, input.WindowDays, input.Dept, input.Location)
		if err != nil {
			return nil, ListExpiringResult{}, err
		}

		result := ListExpiringResult{Items: make([]ExpiringItem, 0, len(rows))}
		for i := range rows {
			row := &rows[i]
			result.Items = append(result.Items, ExpiringItem{
				Provider:     providerPayload(&row.Provider),
				Credential:   credentialPayload(&row.Credential),
				DaysToExpiry: row.DaysToExpiry,
				RiskScore:    row.RiskScore,
			})
		}
		return nil, result, nil
	}
}
