package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"

	"template-pipeline/internal/domain"
)

// GraphTelemetrySource pulls per-template delivery telemetry from the Graph
// API template analytics endpoint.
type GraphTelemetrySource struct {
	client        *resty.Client
	baseURL       string
	phoneNumberID string
	accessToken   string
}

func NewGraphTelemetrySource(baseURL, phoneNumberID, accessToken string) (*GraphTelemetrySource, error) {
	client := resty.New()
	client.SetTimeout(defaultGraphTimeout)
	client.SetRetryCount(0)

	return NewGraphTelemetrySourceWithClient(baseURL, phoneNumberID, accessToken, client)
}

func NewGraphTelemetrySourceWithClient(baseURL, phoneNumberID, accessToken string, client *resty.Client) (*GraphTelemetrySource, error) {
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

	return &GraphTelemetrySource{
		client:        client,
		baseURL:       trimmedBase,
		phoneNumberID: strings.TrimSpace(phoneNumberID),
		accessToken:   strings.TrimSpace(accessToken),
	}, nil
}

// graphAnalyticsResponse is the body of GET /{phone_number_id}/template_analytics.
type graphAnalyticsResponse struct {
	Data []struct {
		Sent         int64   `json:"sent"`
		DeliveryRate float64 `json:"delivery_rate"`
		ReadRate     float64 `json:"read_rate"`
		ResponseRate float64 `json:"response_rate"`
		BlockRate    float64 `json:"block_rate"`
		ReportRate   float64 `json:"report_rate"`
	} `json:"data"`
}

// Fetch returns the latest telemetry reading for a template. An analytics
// response with no data rows yields a zero snapshot, which the scorer treats
// as carrying no signal.
func (s *GraphTelemetrySource) Fetch(ctx context.Context, templateName string) (domain.QualityMetricsSnapshot, error) {
	if s == nil || s.client == nil {
		return domain.QualityMetricsSnapshot{}, fmt.Errorf("telemetry source is not initialized")
	}
	if strings.TrimSpace(templateName) == "" {
		return domain.QualityMetricsSnapshot{}, fmt.Errorf("template name is required")
	}

	endpoint := fmt.Sprintf("%s/%s/template_analytics", s.baseURL, s.phoneNumberID)

	response, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(s.accessToken).
		SetQueryParam("template", templateName).
		Get(endpoint)
	if err != nil {
		return domain.QualityMetricsSnapshot{}, &ProviderError{
			Message:   "graph api analytics request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return domain.QualityMetricsSnapshot{}, &ProviderError{
			StatusCode: statusCode,
			Message:    graphErrorMessage(statusCode, responseBody),
			Transient:  isTransientHTTPStatus(statusCode),
		}
	}

	var parsed graphAnalyticsResponse
	if err := json.Unmarshal([]byte(responseBody), &parsed); err != nil {
		return domain.QualityMetricsSnapshot{}, fmt.Errorf("failed to decode analytics response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return domain.QualityMetricsSnapshot{TemplateName: templateName}, nil
	}

	row := parsed.Data[0]
	return domain.QualityMetricsSnapshot{
		TemplateName: templateName,
		DeliveryRate: row.DeliveryRate,
		ReadRate:     row.ReadRate,
		ResponseRate: row.ResponseRate,
		BlockRate:    row.BlockRate,
		ReportRate:   row.ReportRate,
		TotalSent:    row.Sent,
	}, nil
}
