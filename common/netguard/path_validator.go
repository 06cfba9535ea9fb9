package netguard

import (
	"fmt"
	"strings"
)

// PathValidator validates the path component of an implementation
// locator for the same encoded/literal traversal patterns the teacher's
// PathValidator blocked in request URLs, reused here against manifest
// implementation paths.
type PathValidator struct {
	blockedPatterns []string
}

// NewPathValidator creates a new path validator.
func NewPathValidator() *PathValidator {
	return &PathValidator{
		blockedPatterns: []string{
			"file://",
			"../",
			"..\\",
			"/etc/",
			"/proc/",
			"/sys/",
			"c:/",
			"c:\\",
			"\\\\.\\pipe\\",
		},
	}
}

// Validate checks if path contains dangerous patterns.
func (v *PathValidator) Validate(path string) error {
	if path == "" {
		return nil
	}

	normalized := strings.ToLower(path)

	for _, pattern := range v.blockedPatterns {
		if strings.Contains(normalized, pattern) {
			return fmt.Errorf("path contains blocked pattern %q (security risk: escape attempt)", pattern)
		}
	}

	if v.containsEncodedAttack(normalized) {
		return fmt.Errorf("path contains encoded attack patterns (security risk)")
	}

	return nil
}

// containsEncodedAttack detects URL-encoded path traversal attempts that
// could slip past a literal "../" check.
func (v *PathValidator) containsEncodedAttack(path string) bool {
	encodedPatterns := []string{
		"%2e%2e/",
		"%2e%2e%2f",
		"..%2f",
		"%2e%2e\\",
		"%2e%2e%5c",
		"..%5c",
	}

	for _, pattern := range encodedPatterns {
		if strings.Contains(path, pattern) {
			return true
		}
	}

	return false
}

// GetBlockedExamples returns examples of blocked path patterns.
func (v *PathValidator) GetBlockedExamples() []string {
	return []string{
		"file:///etc/passwd (local file access)",
		"../../../etc/passwd (path traversal)",
		"/etc/shadow (system file access)",
		"/proc/self/environ (process info)",
		"c:/windows/system32 (Windows system)",
	}
}
