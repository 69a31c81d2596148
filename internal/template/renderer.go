package template

import (
	"fmt"
	"sort"
	"strings"

	"template-pipeline/internal/domain"
)

// Wire schema for the provider's /messages endpoint.

type RenderedMessage struct {
	MessagingProduct string           `json:"messaging_product"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Template         RenderedTemplate `json:"template"`
}

type RenderedTemplate struct {
	Name       string              `json:"name"`
	Language   Language            `json:"language"`
	Components []RenderedComponent `json:"components,omitempty"`
}

type Language struct {
	Code string `json:"code"`
}

type RenderedComponent struct {
	Type       string      `json:"type"`
	Parameters []Parameter `json:"parameters"`
}

type Parameter struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Image    *Media `json:"image,omitempty"`
	Video    *Media `json:"video,omitempty"`
	Document *Media `json:"document,omitempty"`
}

type Media struct {
	Link string `json:"link"`
}

// Render substitutes values into a validated template and builds the
// transport payload: one parameter block per component with at least one
// variable, in component order. Media headers always contribute a media
// parameter. A missing required ordinal fails with ErrRender naming every
// absent {ordinal, component} pair; unused extra keys are tolerated.
func Render(t *domain.Template, values map[int]string, to string) (*RenderedMessage, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: template is required", domain.ErrRender)
	}

	msg := &RenderedMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "template",
		Template: RenderedTemplate{
			Name:     t.Name,
			Language: Language{Code: t.Language},
		},
	}

	var missing []string
	for i := range t.Components {
		component := &t.Components[i]

		if component.Type == domain.ComponentHeader && component.Format.IsMedia() {
			msg.Template.Components = append(msg.Template.Components, RenderedComponent{
				Type:       strings.ToLower(string(component.Type)),
				Parameters: []Parameter{mediaParameter(component.Format, component.ExampleMedia)},
			})
			continue
		}

		if !component.HasText() {
			continue
		}

		ordinals := componentOrdinals(component.Text)
		if len(ordinals) == 0 {
			continue
		}

		parameters := make([]Parameter, 0, len(ordinals))
		for _, ordinal := range ordinals {
			value, ok := values[ordinal]
			if !ok {
				missing = append(missing,
					fmt.Sprintf("missing value for ordinal %d in component %s", ordinal, component.Type))
				continue
			}
			parameters = append(parameters, Parameter{Type: "text", Text: value})
		}

		msg.Template.Components = append(msg.Template.Components, RenderedComponent{
			Type:       strings.ToLower(string(component.Type)),
			Parameters: parameters,
		})
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrRender, strings.Join(missing, "; "))
	}

	return msg, nil
}

// PreviewComponent is one component's text with values substituted.
type PreviewComponent struct {
	Type domain.ComponentType `json:"type"`
	Text string               `json:"text"`
}

// Preview substitutes values textually for display purposes. Missing values
// render as empty strings rather than failing.
func Preview(t *domain.Template, values map[int]string) []PreviewComponent {
	if t == nil {
		return nil
	}

	preview := make([]PreviewComponent, 0, len(t.Components))
	for i := range t.Components {
		component := &t.Components[i]
		if !component.HasText() || component.Text == "" {
			continue
		}
		preview = append(preview, PreviewComponent{
			Type: component.Type,
			Text: substitute(component.Text, values),
		})
	}

	return preview
}

func substitute(text string, values map[int]string) string {
	placeholders := ScanPlaceholders(text)
	if len(placeholders) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	prev := 0
	for _, p := range placeholders {
		b.WriteString(text[prev:p.Offset])
		b.WriteString(values[p.Ordinal])
		prev = p.End()
	}
	b.WriteString(text[prev:])

	return b.String()
}

func componentOrdinals(text string) []int {
	seen := make(map[int]struct{})
	ordinals := make([]int, 0, 4)
	for _, p := range ScanPlaceholders(text) {
		if _, ok := seen[p.Ordinal]; ok {
			continue
		}
		seen[p.Ordinal] = struct{}{}
		ordinals = append(ordinals, p.Ordinal)
	}
	sort.Ints(ordinals)
	return ordinals
}

func mediaParameter(format domain.HeaderFormat, link string) Parameter {
	media := &Media{Link: link}
	switch format {
	case domain.HeaderVideo:
		return Parameter{Type: "video", Video: media}
	case domain.HeaderDocument:
		return Parameter{Type: "document", Document: media}
	default:
		return Parameter{Type: "image", Image: media}
	}
}
