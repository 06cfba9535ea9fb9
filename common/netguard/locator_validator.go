// Package netguard validates function implementation locators before a
// manifest is accepted by the coordinator (SPEC_FULL.md §2.E). It is
// grounded on the teacher's cmd/http-worker/security validators, which
// performed scheme/host/path checks to stop a worker from being SSRF'd
// into fetching an attacker-controlled URL; the same three-stage shape
// (scheme, then reference/containment, then path) is repurposed here to
// stop a manifest's implementation_location field from pointing outside
// the package the manifest ships with.
package netguard

import (
	"fmt"
	"path/filepath"
	"strings"
)

// LocatorValidator orchestrates all validations for a function
// implementation locator.
type LocatorValidator struct {
	schemeValidator      *SchemeValidator
	referenceValidator   *ReferenceValidator
	pathValidator        *PathValidator
	containmentValidator *ContainmentValidator
}

// NewLocatorValidator creates a new locator validator with all checks.
func NewLocatorValidator() *LocatorValidator {
	return &LocatorValidator{
		schemeValidator:      NewSchemeValidator(),
		referenceValidator:   NewReferenceValidator(),
		pathValidator:        NewPathValidator(),
		containmentValidator: NewContainmentValidator(),
	}
}

// Validate performs comprehensive validation on a function's
// implementation_location field. manifestDir is only consulted for
// relative (scheme-less) locators.
func (v *LocatorValidator) Validate(locator string, manifestDir string) error {
	scheme, rest := splitScheme(locator)

	if err := v.schemeValidator.Validate(scheme); err != nil {
		return fmt.Errorf("scheme validation failed: %w", err)
	}

	switch scheme {
	case "lib", "context":
		namespace := rest
		if idx := strings.Index(rest, "/"); idx >= 0 {
			namespace = rest[:idx]
		}
		if err := v.referenceValidator.Validate(namespace); err != nil {
			return fmt.Errorf("reference validation failed: %w", err)
		}
		if err := v.pathValidator.Validate(rest); err != nil {
			return fmt.Errorf("path validation failed: %w", err)
		}
	default: // relative file path
		if err := v.pathValidator.Validate(locator); err != nil {
			return fmt.Errorf("path validation failed: %w", err)
		}
		if filepath.IsAbs(locator) {
			return fmt.Errorf("implementation locator %q must be relative to the manifest directory", locator)
		}
		resolved := filepath.Join(manifestDir, filepath.FromSlash(locator))
		if err := v.containmentValidator.Validate(resolved, manifestDir); err != nil {
			return fmt.Errorf("containment validation failed: %w", err)
		}
	}

	return nil
}

// splitScheme splits "lib://math/add" into ("lib", "math/add"); a
// locator with no "://" returns ("", locator) unchanged.
func splitScheme(locator string) (scheme, rest string) {
	idx := strings.Index(locator, "://")
	if idx < 0 {
		return "", locator
	}
	return locator[:idx], locator[idx+3:]
}

// Report summarizes all validation rules, mirroring the teacher's
// ValidationReport.
type Report struct {
	AllowedSchemes      []string `json:"allowed_schemes"`
	BlockedSchemes      []string `json:"blocked_schemes"`
	BlockedNamespaces   []string `json:"blocked_namespaces"`
	BlockedPathPatterns []string `json:"blocked_path_patterns"`
}

// GetReport returns a summary of all validation rules.
func (v *LocatorValidator) GetReport() Report {
	return Report{
		AllowedSchemes:      []string{"lib", "context", "(relative path)"},
		BlockedSchemes:      v.schemeValidator.GetBlockedSchemes(),
		BlockedNamespaces:   v.referenceValidator.GetBlockedExamples(),
		BlockedPathPatterns: v.pathValidator.GetBlockedExamples(),
	}
}
