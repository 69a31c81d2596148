package queue

import (
	"context"
	"fmt"
	"strings"

	"template-pipeline/internal/domain"
)

// Publisher publishes send messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg SendMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg SendMessage) error

// Consumer consumes send messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

var supportedCategories = []domain.Category{
	domain.CategoryMarketing,
	domain.CategoryUtility,
	domain.CategoryAuthentication,
}

const (
	// queueMaxPriority is the RabbitMQ x-max-priority value for work queues.
	queueMaxPriority int32 = 3
)

// QueueName returns the category work queue name, e.g. marketing.
func QueueName(category domain.Category) string {
	return strings.ToLower(category.String())
}

// DLQName returns the dead-letter queue name for a category, e.g. dlq.marketing.
func DLQName(category domain.Category) string {
	return fmt.Sprintf("dlq.%s", QueueName(category))
}

// WorkQueueNames returns all category work queues (3 total).
func WorkQueueNames() []string {
	queues := make([]string, 0, len(supportedCategories))
	for _, category := range supportedCategories {
		queues = append(queues, QueueName(category))
	}
	return queues
}

// DLQNames returns all dead-letter queues (3 total).
func DLQNames() []string {
	queues := make([]string, 0, len(supportedCategories))
	for _, category := range supportedCategories {
		queues = append(queues, DLQName(category))
	}
	return queues
}

// PriorityValue maps template category to RabbitMQ message priority.
// Authentication codes are the most time sensitive.
func PriorityValue(category domain.Category) uint8 {
	switch category {
	case domain.CategoryAuthentication:
		return 3
	case domain.CategoryUtility:
		return 2
	case domain.CategoryMarketing:
		return 1
	default:
		return 0
	}
}
