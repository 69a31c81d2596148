package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"template-pipeline/internal/template"
)

const (
	defaultGraphBaseURL = "https://graph.facebook.com/v19.0"
	defaultGraphTimeout = 10 * time.Second
)

// GraphProvider delivers rendered template messages through the WhatsApp
// Cloud API messages endpoint.
type GraphProvider struct {
	client        *resty.Client
	baseURL       string
	phoneNumberID string
	accessToken   string
}

func NewGraphProvider(baseURL, phoneNumberID, accessToken string) (*GraphProvider, error) {
	client := resty.New()
	client.SetTimeout(defaultGraphTimeout)
	client.SetRetryCount(0)

	return NewGraphProviderWithClient(baseURL, phoneNumberID, accessToken, client)
}

func NewGraphProviderWithClient(baseURL, phoneNumberID, accessToken string, client *resty.Client) (*GraphProvider, error) {
	trimmedBase := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmedBase == "" {
		trimmedBase = defaultGraphBaseURL
	}
	if _, err := url.ParseRequestURI(trimmedBase); err != nil {
		return nil, fmt.Errorf("invalid graph api base url: %w", err)
	}
	if strings.TrimSpace(phoneNumberID) == "" {
		return nil, fmt.Errorf("phone number id is required")
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultGraphTimeout)
	}
	client.SetRetryCount(0)

	return &GraphProvider{
		client:        client,
		baseURL:       trimmedBase,
		phoneNumberID: strings.TrimSpace(phoneNumberID),
		accessToken:   strings.TrimSpace(accessToken),
	}, nil
}

// graphSendResponse is the success body of POST /{phone_number_id}/messages.
type graphSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// graphErrorResponse is the Graph API error envelope.
type graphErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (p *GraphProvider) Send(ctx context.Context, msg *template.RenderedMessage) (*ProviderResponse, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}
	if msg == nil {
		return nil, fmt.Errorf("rendered message is required")
	}

	endpoint := fmt.Sprintf("%s/%s/messages", p.baseURL, p.phoneNumberID)

	response, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(p.accessToken).
		SetBody(msg).
		Post(endpoint)
	if err != nil {
		return nil, &ProviderError{
			Message:   "graph api request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &ProviderError{
			Message:   "graph api returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &ProviderResponse{
			StatusCode: statusCode,
			Body:       responseBody,
			MessageID:  graphMessageID(responseBody),
		}, nil
	}

	return nil, &ProviderError{
		StatusCode: statusCode,
		Message:    graphErrorMessage(statusCode, responseBody),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func graphErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("graph api returned status %d", statusCode)

	var envelope graphErrorResponse
	if err := json.Unmarshal([]byte(body), &envelope); err == nil && envelope.Error.Message != "" {
		return fmt.Sprintf("%s: %s", base, envelope.Error.Message)
	}
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}

func graphMessageID(body string) string {
	var parsed graphSendResponse
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return ""
	}
	if len(parsed.Messages) == 0 {
		return ""
	}
	return strings.TrimSpace(parsed.Messages[0].ID)
}
