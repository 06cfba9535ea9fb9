package netguard

import (
	"fmt"
	"strings"
)

// SchemeValidator validates the scheme of a function implementation
// locator: lib://, context://, or a relative file path (no scheme at
// all). Anything else — in particular file://, which would bypass the
// manifest-relative containment check entirely — is rejected.
type SchemeValidator struct {
	allowedSchemes map[string]bool
}

// NewSchemeValidator creates a new scheme validator.
func NewSchemeValidator() *SchemeValidator {
	return &SchemeValidator{
		allowedSchemes: map[string]bool{
			"lib":     true,
			"context": true,
			"":        true, // relative path, resolved against the manifest dir
		},
	}
}

// Validate checks that scheme is one a function implementation locator is
// allowed to carry.
func (v *SchemeValidator) Validate(scheme string) error {
	normalized := strings.ToLower(strings.TrimSpace(scheme))
	if !v.allowedSchemes[normalized] {
		return fmt.Errorf("scheme %q is not allowed for an implementation locator (only lib://, context://, or a relative path)", scheme)
	}
	return nil
}

// GetBlockedSchemes returns examples of schemes the validator rejects.
func (v *SchemeValidator) GetBlockedSchemes() []string {
	return []string{
		"file://",   // would bypass manifest-relative containment
		"http://",   // fetching implementations over the network is out of scope
		"https://",
		"ftp://",
		"jdbc://",
	}
}
