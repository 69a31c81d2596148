package domain

import "time"

// DeliveryAttempt records a single delivery attempt for a send, including
// the failure classification when the attempt did not succeed.
type DeliveryAttempt struct {
	ID             string
	SendID         string
	AttemptNumber  int
	StatusCode     *int
	ResponseBody   *string
	Error          *string
	Classification *string
	CreatedAt      time.Time
}
