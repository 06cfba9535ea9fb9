package netguard

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ContainmentValidator replaces the teacher's IPValidator: instead of
// classifying an IP address as loopback/private/link-local to stop SSRF,
// it classifies a resolved file-backed implementation path as inside or
// outside the manifest's own directory, to stop a relative path (however
// many "..") from escaping the package the manifest ships with.
type ContainmentValidator struct{}

// NewContainmentValidator creates a new containment validator.
func NewContainmentValidator() *ContainmentValidator {
	return &ContainmentValidator{}
}

// Validate checks that resolvedPath, once joined against manifestDir and
// cleaned, still has manifestDir as a prefix.
func (v *ContainmentValidator) Validate(resolvedPath, manifestDir string) error {
	if resolvedPath == "" {
		return fmt.Errorf("resolved path is empty")
	}

	cleanDir := filepath.Clean(manifestDir)
	cleanPath := filepath.Clean(resolvedPath)

	rel, err := filepath.Rel(cleanDir, cleanPath)
	if err != nil {
		return fmt.Errorf("path %q is blocked (not resolvable relative to manifest directory %q): %w", resolvedPath, manifestDir, err)
	}

	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path %q is blocked (escapes manifest directory %q)", resolvedPath, manifestDir)
	}

	return nil
}

// GetBlockedCategories returns examples of blocked containment escapes,
// mirroring the teacher's category-labeled example map.
func (v *ContainmentValidator) GetBlockedCategories() map[string][]string {
	return map[string][]string{
		"Parent traversal": {
			"../../../etc/passwd (escapes manifest directory)",
			"../sibling-flow/impl.so (reaches outside the manifest package)",
		},
	}
}
