package delivery

import (
	"net/http"
	"strings"
)

// FailureClass buckets a provider delivery failure for retry handling.
type FailureClass string

const (
	// ClassPaymentIssue marks authorization-class failures: the provider is
	// refusing sends at the account level (payment, token, permissions).
	ClassPaymentIssue FailureClass = "PAYMENT_ISSUE"

	// ClassTemplateInvalid marks failures where the provider rejected the
	// template name or content. Never retried.
	ClassTemplateInvalid FailureClass = "TEMPLATE_INVALID"

	// ClassTransient covers everything else, including unrecognized status
	// codes; handled by the generic retry branch.
	ClassTransient FailureClass = "TRANSIENT"
)

func (c FailureClass) String() string { return string(c) }

// Failure is one send failure reported by the transport.
type Failure struct {
	TemplateName string
	Recipient    string
	Attempt      int
	StatusCode   int
	Message      string
}

// Classify buckets a failure by its HTTP-like provider status. Unrecognized
// codes fall into the generic-retry class.
func Classify(f Failure) FailureClass {
	switch f.StatusCode {
	case http.StatusUnauthorized, http.StatusPaymentRequired, http.StatusForbidden:
		return ClassPaymentIssue
	case http.StatusNotFound:
		return ClassTemplateInvalid
	case http.StatusBadRequest:
		if strings.Contains(strings.ToLower(f.Message), "template") {
			return ClassTemplateInvalid
		}
		return ClassTransient
	default:
		return ClassTransient
	}
}
