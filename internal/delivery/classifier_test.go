package delivery

import "testing"

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		failure Failure
		want    FailureClass
	}{
		{name: "payment required", failure: Failure{StatusCode: 402}, want: ClassPaymentIssue},
		{name: "unauthorized", failure: Failure{StatusCode: 401}, want: ClassPaymentIssue},
		{name: "forbidden", failure: Failure{StatusCode: 403}, want: ClassPaymentIssue},
		{name: "template not found", failure: Failure{StatusCode: 404}, want: ClassTemplateInvalid},
		{
			name:    "bad request naming the template",
			failure: Failure{StatusCode: 400, Message: "Template name does not exist in the translation"},
			want:    ClassTemplateInvalid,
		},
		{
			name:    "bad request without template mention",
			failure: Failure{StatusCode: 400, Message: "malformed recipient"},
			want:    ClassTransient,
		},
		{name: "rate limited", failure: Failure{StatusCode: 429}, want: ClassTransient},
		{name: "server error", failure: Failure{StatusCode: 500}, want: ClassTransient},
		{name: "unrecognized code", failure: Failure{StatusCode: 418}, want: ClassTransient},
		{name: "no status code", failure: Failure{Message: "connection reset"}, want: ClassTransient},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Classify(tt.failure); got != tt.want {
				t.Fatalf("Classify(%+v) = %s, want %s", tt.failure, got, tt.want)
			}
		})
	}
}
