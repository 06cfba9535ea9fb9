package netguard

import (
	"fmt"
	"strings"
)

// ReferenceValidator validates the namespace segment of a lib:// or
// context:// implementation locator — the part that would have been a
// hostname in the teacher's SSRF-focused HostValidator. There is no
// network host here (lib/context references never resolve over the
// network — see DESIGN.md), so this validates the namespace is a legal,
// non-traversing identifier instead of resolving and checking IPs.
type ReferenceValidator struct {
	blockedNamespaces []string
}

// NewReferenceValidator creates a new reference validator with default
// blocked namespaces.
func NewReferenceValidator() *ReferenceValidator {
	return &ReferenceValidator{
		blockedNamespaces: []string{
			"",
			".",
			"..",
		},
	}
}

// Validate checks that namespace (the first path segment of a lib:// or
// context:// locator) is a legal, non-traversing identifier.
func (v *ReferenceValidator) Validate(namespace string) error {
	if namespace == "" {
		return fmt.Errorf("reference namespace is required")
	}

	normalized := strings.ToLower(strings.TrimSpace(namespace))

	for _, blocked := range v.blockedNamespaces {
		if normalized == blocked {
			return fmt.Errorf("reference namespace %q is not allowed", namespace)
		}
	}

	if strings.ContainsAny(namespace, "\\") || strings.Contains(namespace, "..") {
		return fmt.Errorf("reference namespace %q must not contain path-traversal sequences", namespace)
	}

	return nil
}

// GetBlockedExamples returns examples of blocked namespaces.
func (v *ReferenceValidator) GetBlockedExamples() []string {
	return []string{
		"\"\" (empty namespace)",
		". (current directory)",
		".. (parent directory traversal)",
	}
}
