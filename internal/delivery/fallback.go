package delivery

import (
	"fmt"
	"strings"

	"template-pipeline/internal/domain"
)

// FallbackMapping maps template names to pre-approved substitutes. It is
// configured before sends occur and validated acyclic at construction, so
// the send path never has to guard against substitution loops.
type FallbackMapping struct {
	substitutes map[string]string
}

// NewFallbackMapping validates the name→name pairs and the absence of
// cycles (including self-mappings) and returns an immutable mapping.
func NewFallbackMapping(pairs map[string]string) (*FallbackMapping, error) {
	substitutes := make(map[string]string, len(pairs))
	for original, substitute := range pairs {
		original = strings.TrimSpace(original)
		substitute = strings.TrimSpace(substitute)
		if !domain.ValidTemplateName(original) {
			return nil, fmt.Errorf("%w: invalid fallback source template name %q", domain.ErrValidation, original)
		}
		if !domain.ValidTemplateName(substitute) {
			return nil, fmt.Errorf("%w: invalid fallback target template name %q", domain.ErrValidation, substitute)
		}
		substitutes[original] = substitute
	}

	for start := range substitutes {
		visited := map[string]struct{}{start: {}}
		current := start
		for {
			next, ok := substitutes[current]
			if !ok {
				break
			}
			if _, seen := visited[next]; seen {
				return nil, fmt.Errorf("%w: template %q reaches itself through the fallback chain", domain.ErrFallbackCycle, next)
			}
			visited[next] = struct{}{}
			current = next
		}
	}

	return &FallbackMapping{substitutes: substitutes}, nil
}

// Resolve returns the substitute template for name, if one is configured.
func (m *FallbackMapping) Resolve(name string) (string, bool) {
	if m == nil {
		return "", false
	}
	substitute, ok := m.substitutes[name]
	return substitute, ok
}

// Len returns the number of configured pairs.
func (m *FallbackMapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.substitutes)
}

// ParsePairs parses an "original:substitute,original2:substitute2" list, the
// form the mapping arrives in from configuration.
func ParsePairs(raw string) (map[string]string, error) {
	pairs := make(map[string]string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return pairs, nil
	}

	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
			return nil, fmt.Errorf("%w: invalid fallback pair %q, want original:substitute", domain.ErrValidation, entry)
		}
		pairs[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}

	return pairs, nil
}
