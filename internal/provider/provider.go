package provider

import (
	"context"

	"template-pipeline/internal/template"
)

// Provider is the outbound template message delivery port.
type Provider interface {
	Send(ctx context.Context, msg *template.RenderedMessage) (*ProviderResponse, error)
}

// ProviderResponse stores provider call metadata for audit and persistence.
type ProviderResponse struct {
	StatusCode int
	Body       string
	MessageID  string
}
