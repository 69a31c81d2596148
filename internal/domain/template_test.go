package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestParseCategoryFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Category
		wantErr bool
	}{
		{name: "valid uppercase", input: "MARKETING", want: CategoryMarketing},
		{name: "valid lowercase with spaces", input: " utility ", want: CategoryUtility},
		{name: "authentication", input: "authentication", want: CategoryAuthentication},
		{name: "invalid", input: "TRANSACTIONAL", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseCategoryFromString(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseCategoryFromString() error = %v, want ErrValidation", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseCategoryFromString() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseCategoryFromString() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestValidTemplateName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "simple", input: "order_update_v2", want: true},
		{name: "digits only", input: "2024", want: true},
		{name: "empty", input: "", want: false},
		{name: "uppercase", input: "Order_Update", want: false},
		{name: "hyphen", input: "order-update", want: false},
		{name: "space", input: "order update", want: false},
		{name: "too long", input: strings.Repeat("a", MaxTemplateNameLen+1), want: false},
		{name: "max length", input: strings.Repeat("a", MaxTemplateNameLen), want: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := ValidTemplateName(tt.input); got != tt.want {
				t.Fatalf("ValidTemplateName(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestHeaderFormatIsMedia(t *testing.T) {
	t.Parallel()

	if HeaderText.IsMedia() {
		t.Fatal("TEXT header should not be media")
	}
	for _, format := range []HeaderFormat{HeaderImage, HeaderVideo, HeaderDocument} {
		if !format.IsMedia() {
			t.Fatalf("%s header should be media", format)
		}
	}
}

func TestComponentHasText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		component Component
		want      bool
	}{
		{name: "body", component: Component{Type: ComponentBody}, want: true},
		{name: "footer", component: Component{Type: ComponentFooter}, want: true},
		{name: "text header", component: Component{Type: ComponentHeader, Format: HeaderText}, want: true},
		{name: "header without format defaults to text", component: Component{Type: ComponentHeader}, want: true},
		{name: "image header", component: Component{Type: ComponentHeader, Format: HeaderImage}, want: false},
		{name: "buttons", component: Component{Type: ComponentButtons}, want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.component.HasText(); got != tt.want {
				t.Fatalf("HasText() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTemplateComponentLookup(t *testing.T) {
	t.Parallel()

	tpl := &Template{
		Name:     "order_update",
		Category: CategoryUtility,
		Language: "en_US",
		Components: []Component{
			{Type: ComponentHeader, Format: HeaderText, Text: "Order update"},
			{Type: ComponentBody, Text: "Hi {{1}}, your order shipped."},
		},
	}

	body := tpl.Component(ComponentBody)
	if body == nil || body.Text != "Hi {{1}}, your order shipped." {
		t.Fatalf("Component(BODY) = %+v, want body component", body)
	}
	if tpl.Component(ComponentFooter) != nil {
		t.Fatal("Component(FOOTER) should be nil when absent")
	}
}

func TestSendValidate(t *testing.T) {
	t.Parallel()

	base := Send{
		TemplateName: "order_update",
		Recipient:    "+905551112233",
		Values:       map[int]string{1: "Ada"},
	}

	tests := []struct {
		name    string
		mutate  func(*Send)
		wantErr bool
	}{
		{
			name:   "valid send",
			mutate: func(s *Send) {},
		},
		{
			name: "missing recipient",
			mutate: func(s *Send) {
				s.Recipient = "  "
			},
			wantErr: true,
		},
		{
			name: "invalid template name",
			mutate: func(s *Send) {
				s.TemplateName = "Order Update"
			},
			wantErr: true,
		},
		{
			name: "non-positive ordinal",
			mutate: func(s *Send) {
				s.Values = map[int]string{0: "x"}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			send := base
			send.Values = map[int]string{1: "Ada"}
			tt.mutate(&send)

			err := send.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestQualityMetricsSnapshotValidate(t *testing.T) {
	t.Parallel()

	valid := QualityMetricsSnapshot{
		TemplateName: "order_update",
		DeliveryRate: 0.9,
		ReadRate:     0.5,
		ResponseRate: 0.1,
		BlockRate:    0.01,
		ReportRate:   0.001,
		TotalSent:    1200,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error = %v", err)
	}

	outOfRange := valid
	outOfRange.ReadRate = 1.2
	if err := outOfRange.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}

	negativeSent := valid
	negativeSent.TotalSent = -1
	if err := negativeSent.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}
}
