// Package security guards the paths built from user-supplied model and map
// names and the run directories read back from the record table.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateName checks that name can be used as a single path element, such
// as a model or map name that becomes a directory.
func ValidateName(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%s name must not be empty", kind)
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid %s name %q", kind, name)
	}
	return nil
}

// WithinDirectory reports an error when filePath, once cleaned, is not dir
// itself or below it. It is purely lexical and never touches the disk.
func WithinDirectory(filePath, dir string) error {
	return checkRel(filepath.Clean(filePath), filepath.Clean(dir), filePath, dir)
}

// ValidatePathWithinDirectory is WithinDirectory for paths on the real
// filesystem: both paths are made absolute and symlinks are resolved, so a
// link inside safeDir pointing elsewhere is rejected.
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	absSafeDir, err := filepath.Abs(safeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory path: %w", err)
	}

	canonicalPath := absPath
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		canonicalPath = resolved
	} else {
		// The path does not exist yet: resolve the nearest existing parent
		// so /safe/link-to-etc/newfile is still caught.
		checkPath := absPath
		for {
			parentDir := filepath.Dir(checkPath)
			if parentDir == checkPath {
				break
			}
			if resolved, err := filepath.EvalSymlinks(parentDir); err == nil {
				relToParent, _ := filepath.Rel(parentDir, absPath)
				canonicalPath = filepath.Join(resolved, relToParent)
				break
			}
			checkPath = parentDir
		}
	}

	canonicalSafeDir, err := filepath.EvalSymlinks(absSafeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory symlinks: %w", err)
	}
	return checkRel(canonicalPath, canonicalSafeDir, filePath, safeDir)
}

func checkRel(path, dir, origPath, origDir string) error {
	relPath, err := filepath.Rel(dir, path)
	if err != nil {
		return fmt.Errorf("path is outside safe directory: %w", err)
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) || filepath.IsAbs(relPath) {
		return fmt.Errorf("path traversal detected: %s attempts to escape %s", origPath, origDir)
	}
	return nil
}
