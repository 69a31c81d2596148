package queue

import (
	"fmt"
	"strings"

	"template-pipeline/internal/domain"
)

// SendMessage is the broker payload for template send processing.
type SendMessage struct {
	SendID        string          `json:"sendId"`
	CorrelationID string          `json:"correlationId,omitempty"`
	TemplateName  string          `json:"templateName"`
	Recipient     string          `json:"recipient"`
	Category      domain.Category `json:"category"`
	Attempt       int             `json:"attempt"`
}

func (m SendMessage) Validate() error {
	if strings.TrimSpace(m.SendID) == "" {
		return fmt.Errorf("sendId is required")
	}
	if strings.TrimSpace(m.TemplateName) == "" {
		return fmt.Errorf("templateName is required")
	}
	if strings.TrimSpace(m.Recipient) == "" {
		return fmt.Errorf("recipient is required")
	}
	if !m.Category.IsValid() {
		return fmt.Errorf("invalid category %q", m.Category)
	}
	if m.Attempt < 1 {
		return fmt.Errorf("attempt must be at least 1")
	}
	return nil
}
