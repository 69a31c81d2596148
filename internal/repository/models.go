package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"template-pipeline/internal/domain"
)

// TemplateModel is the persistence model for the templates table. Components
// are stored as a JSONB document matching the provider wire schema.
type TemplateModel struct {
	Name       string          `gorm:"type:varchar(512);primaryKey"`
	Category   domain.Category `gorm:"type:varchar(20);not null"`
	Language   string          `gorm:"type:varchar(15);not null"`
	Components json.RawMessage `gorm:"type:jsonb;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (TemplateModel) TableName() string {
	return "templates"
}

// SendModel is the persistence model for the sends table. Values is the
// ordinal-to-value substitution map stored as JSONB.
type SendModel struct {
	ID                string            `gorm:"type:uuid;primaryKey"`
	CorrelationID     string            `gorm:"type:varchar(36);not null"`
	TemplateName      string            `gorm:"type:varchar(512);not null"`
	Recipient         string            `gorm:"type:varchar(32);not null"`
	Values            json.RawMessage   `gorm:"type:jsonb"`
	Status            domain.SendStatus `gorm:"type:varchar(20);not null"`
	ProviderMessageID *string           `gorm:"type:varchar(255)"`
	AttemptCount      int               `gorm:"not null;default:0"`
	MaxRetries        int               `gorm:"not null;default:3"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (SendModel) TableName() string {
	return "sends"
}

// DeliveryAttemptModel is the persistence model for delivery_attempts.
type DeliveryAttemptModel struct {
	ID             string  `gorm:"type:uuid;primaryKey"`
	SendID         string  `gorm:"type:uuid;not null"`
	AttemptNumber  int     `gorm:"not null"`
	StatusCode     *int    `gorm:"type:int"`
	ResponseBody   *string `gorm:"type:text"`
	Error          *string `gorm:"type:text"`
	Classification *string `gorm:"type:varchar(32)"`
	CreatedAt      time.Time
}

func (DeliveryAttemptModel) TableName() string {
	return "delivery_attempts"
}

// QualitySnapshotModel is the persistence model for quality_snapshots.
// Rows are insert-only; the latest row per template is the current verdict.
type QualitySnapshotModel struct {
	ID           string               `gorm:"type:uuid;primaryKey"`
	TemplateName string               `gorm:"type:varchar(512);not null"`
	DeliveryRate float64              `gorm:"not null"`
	ReadRate     float64              `gorm:"not null"`
	ResponseRate float64              `gorm:"not null"`
	BlockRate    float64              `gorm:"not null"`
	ReportRate   float64              `gorm:"not null"`
	TotalSent    int64                `gorm:"not null"`
	Score        float64              `gorm:"not null"`
	Status       domain.QualityStatus `gorm:"type:varchar(20);not null"`
	Guidance     string               `gorm:"type:text;not null"`
	CapturedAt   time.Time            `gorm:"type:timestamptz;not null"`
	CreatedAt    time.Time
}

func (QualitySnapshotModel) TableName() string {
	return "quality_snapshots"
}

func templateModelFromDomain(t *domain.Template) (*TemplateModel, error) {
	if t == nil {
		return nil, nil
	}

	components, err := json.Marshal(t.Components)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal template components: %w", err)
	}

	return &TemplateModel{
		Name:       t.Name,
		Category:   t.Category,
		Language:   t.Language,
		Components: components,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}, nil
}

func templateModelToDomain(m *TemplateModel) (*domain.Template, error) {
	if m == nil {
		return nil, nil
	}

	var components []domain.Component
	if len(m.Components) > 0 {
		if err := json.Unmarshal(m.Components, &components); err != nil {
			return nil, fmt.Errorf("failed to unmarshal template components: %w", err)
		}
	}

	return &domain.Template{
		Name:       m.Name,
		Category:   m.Category,
		Language:   m.Language,
		Components: components,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}, nil
}

func sendModelFromDomain(s *domain.Send) (*SendModel, error) {
	if s == nil {
		return nil, nil
	}

	var values json.RawMessage
	if s.Values != nil {
		encoded, err := json.Marshal(s.Values)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal send values: %w", err)
		}
		values = encoded
	}

	return &SendModel{
		ID:                s.ID,
		CorrelationID:     s.CorrelationID,
		TemplateName:      s.TemplateName,
		Recipient:         s.Recipient,
		Values:            values,
		Status:            s.Status,
		ProviderMessageID: s.ProviderMessageID,
		AttemptCount:      s.AttemptCount,
		MaxRetries:        s.MaxRetries,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}, nil
}

func sendModelToDomain(m *SendModel) (*domain.Send, error) {
	if m == nil {
		return nil, nil
	}

	var values map[int]string
	if len(m.Values) > 0 {
		if err := json.Unmarshal(m.Values, &values); err != nil {
			return nil, fmt.Errorf("failed to unmarshal send values: %w", err)
		}
	}

	return &domain.Send{
		ID:                m.ID,
		CorrelationID:     m.CorrelationID,
		TemplateName:      m.TemplateName,
		Recipient:         m.Recipient,
		Values:            values,
		Status:            m.Status,
		ProviderMessageID: m.ProviderMessageID,
		AttemptCount:      m.AttemptCount,
		MaxRetries:        m.MaxRetries,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}, nil
}

func attemptModelFromDomain(a *domain.DeliveryAttempt) *DeliveryAttemptModel {
	if a == nil {
		return nil
	}

	return &DeliveryAttemptModel{
		ID:             a.ID,
		SendID:         a.SendID,
		AttemptNumber:  a.AttemptNumber,
		StatusCode:     a.StatusCode,
		ResponseBody:   a.ResponseBody,
		Error:          a.Error,
		Classification: a.Classification,
		CreatedAt:      a.CreatedAt,
	}
}

func attemptModelToDomain(m *DeliveryAttemptModel) *domain.DeliveryAttempt {
	if m == nil {
		return nil
	}

	return &domain.DeliveryAttempt{
		ID:             m.ID,
		SendID:         m.SendID,
		AttemptNumber:  m.AttemptNumber,
		StatusCode:     m.StatusCode,
		ResponseBody:   m.ResponseBody,
		Error:          m.Error,
		Classification: m.Classification,
		CreatedAt:      m.CreatedAt,
	}
}

func snapshotModelToVerdict(m *QualitySnapshotModel) *domain.QualityVerdict {
	if m == nil {
		return nil
	}

	return &domain.QualityVerdict{
		TemplateName: m.TemplateName,
		Score:        m.Score,
		Status:       m.Status,
		Guidance:     m.Guidance,
		CapturedAt:   m.CapturedAt,
	}
}
