package template

import (
	"fmt"
	"strings"

	"template-pipeline/internal/domain"
)

// ViolationCode identifies one validation rule.
type ViolationCode string

const (
	CodeNameInvalid           ViolationCode = "NAME_INVALID"
	CodeCategoryInvalid       ViolationCode = "CATEGORY_INVALID"
	CodeLanguageRequired      ViolationCode = "LANGUAGE_REQUIRED"
	CodeComponentTypeInvalid  ViolationCode = "COMPONENT_TYPE_INVALID"
	CodeBodyComponentRequired ViolationCode = "BODY_COMPONENT_REQUIRED"
	CodeTextRequired          ViolationCode = "TEXT_REQUIRED"
	CodeTextTooLong           ViolationCode = "TEXT_TOO_LONG"
	CodeMediaExampleRequired  ViolationCode = "MEDIA_EXAMPLE_REQUIRED"
	CodeHeaderFormatInvalid   ViolationCode = "HEADER_FORMAT_INVALID"
	CodeHeaderTooManyVars     ViolationCode = "HEADER_TOO_MANY_VARIABLES"
	CodeHeaderVarOrdinal      ViolationCode = "HEADER_VARIABLE_ORDINAL"
	CodeTooManyButtons        ViolationCode = "TOO_MANY_BUTTONS"
	CodeTooManyQuickReplies   ViolationCode = "TOO_MANY_QUICK_REPLIES"
	CodeTooManyCallToActions  ViolationCode = "TOO_MANY_CALL_TO_ACTIONS"
	CodeButtonTypeInvalid     ViolationCode = "BUTTON_TYPE_INVALID"
	CodeButtonTextRequired    ViolationCode = "BUTTON_TEXT_REQUIRED"
	CodeButtonTextTooLong     ViolationCode = "BUTTON_TEXT_TOO_LONG"
	CodeButtonURLRequired     ViolationCode = "BUTTON_URL_REQUIRED"
	CodeButtonPhoneRequired   ViolationCode = "BUTTON_PHONE_REQUIRED"
	CodeVariableMalformed     ViolationCode = "VARIABLE_MALFORMED"
	CodeVariableNonSequential ViolationCode = "VARIABLE_NON_SEQUENTIAL"
	CodeVariableAtStart       ViolationCode = "VARIABLE_AT_START"
	CodeVariableAtEnd         ViolationCode = "VARIABLE_AT_END"
	CodeVariableAdjacent      ViolationCode = "VARIABLE_ADJACENT"
	CodeExampleMissing        ViolationCode = "EXAMPLE_MISSING"
	CodeExampleCountMismatch  ViolationCode = "EXAMPLE_COUNT_MISMATCH"
)

// Violation is one broken rule. Component is the owning component type, or
// "TEMPLATE" for template-level rules.
type Violation struct {
	Component string        `json:"component"`
	Code      ViolationCode `json:"code"`
	Message   string        `json:"message"`
}

const templateLevel = "TEMPLATE"

// Violations is the accumulated result of a validation pass. Validation
// never short-circuits; a caller fixing a template sees the complete set.
type Violations []Violation

// Messages returns the violation messages in order.
func (vs Violations) Messages() []string {
	messages := make([]string, 0, len(vs))
	for _, v := range vs {
		messages = append(messages, v.Message)
	}
	return messages
}

// Err folds the violations into a single error wrapping class, or nil when
// the set is empty.
func (vs Violations) Err(class error) error {
	if len(vs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", class, strings.Join(vs.Messages(), "; "))
}

func (vs *Violations) add(component string, code ViolationCode, format string, args ...any) {
	*vs = append(*vs, Violation{
		Component: component,
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
	})
}

// ValidateStructure decides whether a template definition is sendable under
// the provider's wire format. All violations are accumulated and returned
// together.
func ValidateStructure(t *domain.Template) Violations {
	var violations Violations
	if t == nil {
		violations.add(templateLevel, CodeNameInvalid, "template is required")
		return violations
	}

	if !domain.ValidTemplateName(t.Name) {
		violations.add(templateLevel, CodeNameInvalid,
			"template name must use lowercase letters, digits and underscores (max %d chars)", domain.MaxTemplateNameLen)
	}
	if !t.Category.IsValid() {
		violations.add(templateLevel, CodeCategoryInvalid, "invalid category %q", t.Category)
	}
	if strings.TrimSpace(t.Language) == "" {
		violations.add(templateLevel, CodeLanguageRequired, "language code is required")
	}
	if t.Component(domain.ComponentBody) == nil {
		violations.add(templateLevel, CodeBodyComponentRequired, "template must declare a BODY component")
	}

	for i := range t.Components {
		component := &t.Components[i]
		switch component.Type {
		case domain.ComponentHeader:
			violations = append(violations, validateHeader(component)...)
		case domain.ComponentBody:
			violations = append(violations, validateText(component, domain.MaxBodyTextLen, true)...)
		case domain.ComponentFooter:
			violations = append(violations, validateText(component, domain.MaxFooterTextLen, true)...)
		case domain.ComponentButtons:
			violations = append(violations, validateButtons(component)...)
		default:
			violations.add(string(component.Type), CodeComponentTypeInvalid, "invalid component type %q", component.Type)
		}

		if component.HasText() {
			violations = append(violations, sequencingViolations(string(component.Type), component.Text)...)
		}
	}

	return violations
}

func validateHeader(c *domain.Component) Violations {
	var violations Violations
	name := string(c.Type)

	if c.Format != "" && !c.Format.IsValid() {
		violations.add(name, CodeHeaderFormatInvalid, "invalid header format %q", c.Format)
		return violations
	}

	if c.Format.IsMedia() {
		if strings.TrimSpace(c.ExampleMedia) == "" {
			violations.add(name, CodeMediaExampleRequired,
				"%s header requires an example media reference", c.Format)
		}
		return violations
	}

	violations = append(violations, validateText(c, domain.MaxHeaderTextLen, true)...)

	placeholders := ScanPlaceholders(c.Text)
	if len(placeholders) > 1 {
		violations.add(name, CodeHeaderTooManyVars,
			"header allows at most one variable, found %d", len(placeholders))
	}
	if len(placeholders) == 1 && placeholders[0].Ordinal != 1 {
		violations.add(name, CodeHeaderVarOrdinal,
			"header variable must be {{1}}, found {{%d}}", placeholders[0].Ordinal)
	}

	return violations
}

func validateText(c *domain.Component, maxLen int, required bool) Violations {
	var violations Violations
	name := string(c.Type)

	if c.Text == "" {
		if required {
			violations.add(name, CodeTextRequired, "%s text is required", strings.ToLower(name))
		}
		return violations
	}

	if length := len([]rune(c.Text)); length > maxLen {
		violations.add(name, CodeTextTooLong,
			"%s text exceeds %d characters (got %d)", strings.ToLower(name), maxLen, length)
	}

	return violations
}

func validateButtons(c *domain.Component) Violations {
	var violations Violations
	name := string(c.Type)

	if len(c.Buttons) > domain.MaxButtons {
		violations.add(name, CodeTooManyButtons,
			"at most %d buttons allowed, found %d", domain.MaxButtons, len(c.Buttons))
	}

	quickReplies := 0
	callToActions := 0
	for i, button := range c.Buttons {
		switch {
		case button.Type == domain.ButtonQuickReply:
			quickReplies++
		case button.Type.IsCallToAction():
			callToActions++
		default:
			violations.add(name, CodeButtonTypeInvalid, "button %d: invalid type %q", i, button.Type)
		}

		if strings.TrimSpace(button.Text) == "" {
			violations.add(name, CodeButtonTextRequired, "button %d: text is required", i)
		} else if length := len([]rune(button.Text)); length > domain.MaxButtonTextLen {
			violations.add(name, CodeButtonTextTooLong,
				"button %d: text exceeds %d characters (got %d)", i, domain.MaxButtonTextLen, length)
		}

		if button.Type == domain.ButtonURL && strings.TrimSpace(button.URL) == "" {
			violations.add(name, CodeButtonURLRequired, "button %d: url buttons require a url", i)
		}
		if button.Type == domain.ButtonPhoneNumber && strings.TrimSpace(button.PhoneNumber) == "" {
			violations.add(name, CodeButtonPhoneRequired, "button %d: phone buttons require a phone number", i)
		}
	}

	if quickReplies > domain.MaxQuickReplies {
		violations.add(name, CodeTooManyQuickReplies,
			"at most %d quick-reply buttons allowed, found %d", domain.MaxQuickReplies, quickReplies)
	}
	if callToActions > domain.MaxCallToActions {
		violations.add(name, CodeTooManyCallToActions,
			"at most %d call-to-action buttons allowed, found %d", domain.MaxCallToActions, callToActions)
	}

	return violations
}

// sequencingViolations applies the variable-sequencing invariant to one
// text-bearing component:
//  1. ordinals are contiguous starting at 1,
//  2. text does not open with a variable,
//  3. text does not close with a variable,
//  4. no two variables are adjacent,
//  5. ordinal tokens contain only decimal digits.
func sequencingViolations(component string, text string) Violations {
	var violations Violations

	for _, token := range scanBraceTokens(text) {
		if !allDigits(token.Content) {
			violations.add(component, CodeVariableMalformed,
				"malformed variable token %q at offset %d: ordinals must contain only digits",
				token.Raw, token.Offset)
		}
	}

	placeholders := ScanPlaceholders(text)
	if len(placeholders) == 0 {
		return violations
	}

	for i, p := range placeholders {
		if p.Ordinal != i+1 {
			violations.add(component, CodeVariableNonSequential,
				"variables must be sequential: expected {{%d}}, found {{%d}}", i+1, p.Ordinal)
		}
	}

	if placeholders[0].Offset == 0 {
		violations.add(component, CodeVariableAtStart, "text cannot start with a variable")
	}
	if placeholders[len(placeholders)-1].End() == len(text) {
		violations.add(component, CodeVariableAtEnd, "text cannot end with a variable")
	}

	for i := 1; i < len(placeholders); i++ {
		if placeholders[i].Offset == placeholders[i-1].End() {
			violations.add(component, CodeVariableAdjacent,
				"variables {{%d}} and {{%d}} are adjacent: separator text is required",
				placeholders[i-1].Ordinal, placeholders[i].Ordinal)
		}
	}

	return violations
}
