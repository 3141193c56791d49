package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// SyncProviderInput represents the MCP tool input for syncing a provider
// from the external registry.
type SyncProviderInput struct {
	NPI string `json:"npi" jsonschema:"10-digit national provider identifier to look up"`
}

// SyncProviderResult represents the MCP tool output for a provider sync.
type SyncProviderResult struct {
	Provider ProviderPayload `json:"provider" jsonschema:"the created or updated provider record"`
}

// SyncProviderTool defines the MCP tool schema for syncing a provider.
func SyncProviderTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "sync_provider_from_npi",
		Description: "Looks up an NPI in the external registry and creates or updates the matching local provider record.",
	}
}

// SyncProviderHandler executes a provider sync request.
func SyncProviderHandler(eng Engine) mcp.ToolHandlerFor[SyncProviderInput, SyncProviderResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SyncProviderInput) (*mcp.CallToolResult, SyncProviderResult, error) {
		provider, err := eng.SyncProviderIdentity(ctx, input.NPI)
		if err != nil {
			return nil, SyncProviderResult{}, err
		}
		return nil, SyncProviderResult{Provider: providerPayload(provider)}, nil
	}
}

// ProviderSnapshotInput represents the MCP tool input for a provider
// snapshot. At least one of provider_id and npi must be set.
type ProviderSnapshotInput struct {
	ProviderID int64  `json:"provider_id,omitempty" jsonschema:"local provider identifier"`
	NPI        string `json:"npi,omitempty" jsonschema:"national provider identifier"`
}

// ProviderSnapshotResult represents the MCP tool output for a provider
// snapshot: the provider with every credential and alert that references it.
type ProviderSnapshotResult struct {
	Provider    ProviderPayload     `json:"provider" jsonschema:"the resolved provider record"`
	Credentials []CredentialPayload `json:"credentials" jsonschema:"all credentials owned by the provider"`
	Alerts      []AlertPayload      `json:"alerts" jsonschema:"all alerts raised for the provider"`
}

// ProviderSnapshotTool defines the MCP tool schema for a provider snapshot.
func ProviderSnapshotTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_provider_snapshot",
		Description: "Returns a provider with all of its credentials and alerts, resolved by provider_id or npi.",
	}
}

// ProviderSnapshotHandler executes a provider snapshot request.
func ProviderSnapshotHandler(eng Engine) mcp.ToolHandlerFor[ProviderSnapshotInput, ProviderSnapshotResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ProviderSnapshotInput) (*mcp.CallToolResult, ProviderSnapshotResult, error) {
		snap, err := eng.GetProviderSnapshot(ctx, input.ProviderID, input.NPI)
		if err != nil {
			return nil, ProviderSnapshotResult{}, err
		}

		result := ProviderSnapshotResult{
			Provider:    providerPayload(&snap.Provider),
			Credentials: make([]CredentialPayload, 0, len(snap.Credentials)),
			Alerts:      make([]AlertPayload, 0, len(snap.Alerts)),
		}
		for i := range snap.Credentials {
			result.Credentials = append(result.Credentials, credentialPayload(&snap.Credentials[i]))
		}
		for i := range snap.Alerts {
			result.Alerts = append(result.Alerts, alertPayload(&snap.Alerts[i]))
		}
		return nil, result, nil
	}
}
