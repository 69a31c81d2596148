package template

import "template-pipeline/internal/domain"

// ValidateExamples checks that every component declaring variables carries a
// matching example: an outer list of value sets, each set's length equal to
// the component's variable count. It runs independently of the structural
// validator so both error classes surface together.
func ValidateExamples(t *domain.Template) Violations {
	var violations Violations
	if t == nil {
		return violations
	}

	for i := range t.Components {
		component := &t.Components[i]
		if !component.HasText() {
			continue
		}

		variableCount := VariableCount(component.Text)
		if variableCount == 0 {
			continue
		}

		name := string(component.Type)
		if len(component.Example) == 0 {
			violations.add(name, CodeExampleMissing,
				"%s declares %d variable(s) but no example values", name, variableCount)
			continue
		}

		for setIndex, set := range component.Example {
			if len(set) != variableCount {
				violations.add(name, CodeExampleCountMismatch,
					"%s example set %d has %d value(s), want %d",
					name, setIndex, len(set), variableCount)
			}
		}
	}

	return violations
}
