package domain

import (
	"fmt"
	"strings"
	"time"
)

// Category represents the provider-side template category.
type Category string

const (
	CategoryMarketing      Category = "MARKETING"
	CategoryUtility        Category = "UTILITY"
	CategoryAuthentication Category = "AUTHENTICATION"
)

func (c Category) String() string { return string(c) }

func (c Category) IsValid() bool {
	switch c {
	case CategoryMarketing, CategoryUtility, CategoryAuthentication:
		return true
	}
	return false
}

func ParseCategoryFromString(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("%w: invalid category %q", ErrValidation, s)
	}
	return c, nil
}

// ComponentType represents one structural section of a template.
type ComponentType string

const (
	ComponentHeader  ComponentType = "HEADER"
	ComponentBody    ComponentType = "BODY"
	ComponentFooter  ComponentType = "FOOTER"
	ComponentButtons ComponentType = "BUTTONS"
)

func (t ComponentType) String() string { return string(t) }

func (t ComponentType) IsValid() bool {
	switch t {
	case ComponentHeader, ComponentBody, ComponentFooter, ComponentButtons:
		return true
	}
	return false
}

// HeaderFormat represents the header payload kind.
type HeaderFormat string

const (
	HeaderText     HeaderFormat = "TEXT"
	HeaderImage    HeaderFormat = "IMAGE"
	HeaderVideo    HeaderFormat = "VIDEO"
	HeaderDocument HeaderFormat = "DOCUMENT"
)

func (f HeaderFormat) String() string { return string(f) }

func (f HeaderFormat) IsValid() bool {
	switch f {
	case HeaderText, HeaderImage, HeaderVideo, HeaderDocument:
		return true
	}
	return false
}

// IsMedia reports whether the header carries media instead of text.
func (f HeaderFormat) IsMedia() bool {
	switch f {
	case HeaderImage, HeaderVideo, HeaderDocument:
		return true
	}
	return false
}

// ButtonType represents the kind of a template button.
type ButtonType string

const (
	ButtonQuickReply  ButtonType = "QUICK_REPLY"
	ButtonURL         ButtonType = "URL"
	ButtonPhoneNumber ButtonType = "PHONE_NUMBER"
)

func (t ButtonType) String() string { return string(t) }

func (t ButtonType) IsValid() bool {
	switch t {
	case ButtonQuickReply, ButtonURL, ButtonPhoneNumber:
		return true
	}
	return false
}

// IsCallToAction reports whether the button counts against the CTA limit.
func (t ButtonType) IsCallToAction() bool {
	return t == ButtonURL || t == ButtonPhoneNumber
}

// Button is a single template button.
type Button struct {
	Type        ButtonType `json:"type"`
	Text        string     `json:"text"`
	URL         string     `json:"url,omitempty"`
	PhoneNumber string     `json:"phone_number,omitempty"`
}

// Component is one ordered section of a template definition. Example holds
// the declared example value sets for this component's variables; for media
// headers it instead carries the example media reference.
type Component struct {
	Type         ComponentType `json:"type"`
	Format       HeaderFormat  `json:"format,omitempty"`
	Text         string        `json:"text,omitempty"`
	Buttons      []Button      `json:"buttons,omitempty"`
	Example      [][]string    `json:"example,omitempty"`
	ExampleMedia string        `json:"example_media,omitempty"`
}

// HasText reports whether this component type carries text content.
func (c Component) HasText() bool {
	switch c.Type {
	case ComponentBody, ComponentFooter:
		return true
	case ComponentHeader:
		return c.Format == "" || c.Format == HeaderText
	}
	return false
}

const (
	MaxTemplateNameLen = 512
	MaxHeaderTextLen   = 60
	MaxBodyTextLen     = 1024
	MaxFooterTextLen   = 60
	MaxButtonTextLen   = 25
	MaxButtons         = 3
	MaxQuickReplies    = 3
	MaxCallToActions   = 2
)

// Template is the core domain entity: a named, categorized, ordered set of
// components matching the provider's template wire schema.
type Template struct {
	Name       string      `json:"name"`
	Category   Category    `json:"category"`
	Language   string      `json:"language"`
	Components []Component `json:"components"`
	CreatedAt  time.Time   `json:"createdAt,omitempty"`
	UpdatedAt  time.Time   `json:"updatedAt,omitempty"`
}

// Component lookup by type; returns nil when absent.
func (t *Template) Component(componentType ComponentType) *Component {
	if t == nil {
		return nil
	}
	for i := range t.Components {
		if t.Components[i].Type == componentType {
			return &t.Components[i]
		}
	}
	return nil
}

// ValidTemplateName reports whether a name uses the provider charset:
// lowercase letters, digits and underscores, 1..512 characters.
func ValidTemplateName(name string) bool {
	if name == "" || len(name) > MaxTemplateNameLen {
		return false
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}
