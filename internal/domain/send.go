package domain

import (
	"fmt"
	"strings"
	"time"
)

// SendStatus represents the lifecycle state of a send.
type SendStatus string

const (
	SendStatusAccepted     SendStatus = "ACCEPTED"
	SendStatusQueued       SendStatus = "QUEUED"
	SendStatusSending      SendStatus = "SENDING"
	SendStatusSent         SendStatus = "SENT"
	SendStatusFallbackSent SendStatus = "FALLBACK_SENT"
	SendStatusFailed       SendStatus = "FAILED"
)

func (s SendStatus) String() string { return string(s) }

func (s SendStatus) IsValid() bool {
	switch s {
	case SendStatusAccepted, SendStatusQueued, SendStatusSending,
		SendStatusSent, SendStatusFallbackSent, SendStatusFailed:
		return true
	}
	return false
}

func ParseSendStatusFromString(s string) (SendStatus, error) {
	st := SendStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid send status %q", ErrValidation, s)
	}
	return st, nil
}

// Send is one requested template delivery to a single recipient. Values maps
// placeholder ordinals to the caller-supplied substitution values.
type Send struct {
	ID                string
	CorrelationID     string
	TemplateName      string
	Recipient         string
	Values            map[int]string
	Status            SendStatus
	ProviderMessageID *string
	AttemptCount      int
	MaxRetries        int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (s *Send) Validate() error {
	if strings.TrimSpace(s.Recipient) == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if !ValidTemplateName(s.TemplateName) {
		return fmt.Errorf("%w: invalid template name %q", ErrValidation, s.TemplateName)
	}
	for ordinal := range s.Values {
		if ordinal < 1 {
			return fmt.Errorf("%w: value ordinals must be positive, got %d", ErrValidation, ordinal)
		}
	}
	return nil
}
