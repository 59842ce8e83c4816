package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/cgreduce/internal/config"
	"github.com/hpungsan/cgreduce/internal/db"
	"github.com/hpungsan/cgreduce/internal/errors"
)

// outputExtensions are the accepted extensions of reduced model files.
var outputExtensions = map[string]bool{".pdb": true, ".red": true}

// ValidateOutputPath checks a path a reduced model is about to be written to
// on behalf of a tool client. It checks:
// 1. Path traversal (.. sequences)
// 2. Extension (.pdb or .red)
// 3. Directory restrictions (file must be DIRECTLY in <home>/outputs or allowed_paths - no subdirectories)
// 4. Symlink safety (parent dir and file must not be symlinks)
//
// The "no subdirectories" rule removes races where an intermediate directory
// is swapped for a symlink between validation and open. O_NOFOLLOW covers
// the final component.
func ValidateOutputPath(path string, cfg *config.Config) error {
	if path == "" {
		return errors.NewInvalidRequest("output_path is required")
	}

	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	if !outputExtensions[strings.ToLower(filepath.Ext(cleaned))] {
		return errors.NewInvalidRequest("path must have .pdb or .red extension")
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	// Unsafe paths skip directory checks but NOT symlink checks.
	if cfg != nil && cfg.AllowUnsafePaths {
		return rejectSymlink(absPath, "path must not be a symlink")
	}

	allowedDirs, err := getAllowedDirs(cfg)
	if err != nil {
		return err
	}

	parentDir := filepath.Dir(absPath)
	if !isDirectlyInAllowedDir(parentDir, allowedDirs) {
		return errors.NewInvalidRequest(
			fmt.Sprintf("file must be directly in an allowed directory (no subdirectories); allowed: %v",
				allowedDirs))
	}

	if err := rejectSymlink(parentDir, "parent directory must not be a symlink"); err != nil {
		return err
	}
	return rejectSymlink(absPath, "path must not be a symlink")
}

// ValidateInputPath checks a file a tool client asks to read (structure,
// catalog or parameter table). It checks:
// 1. Path traversal (.. sequences)
// 2. Directory restrictions (file must be inside <home>, data_dir or allowed_paths)
// 3. Symlink safety (file must not be a symlink, and its real location must
//    stay inside the allowed directories)
//
// A path that does not exist passes so the reduction reports FILE_NOT_FOUND.
func ValidateInputPath(path string, cfg *config.Config) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}

	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	// Unsafe paths skip directory checks but NOT symlink checks.
	if cfg != nil && cfg.AllowUnsafePaths {
		return rejectSymlink(absPath, "path must not be a symlink")
	}

	roots, err := getReadRoots(cfg)
	if err != nil {
		return err
	}
	if !isWithinAnyDir(absPath, roots) {
		return errors.NewInvalidRequest(
			fmt.Sprintf("file must be inside an allowed directory; allowed: %v", roots))
	}

	if err := rejectSymlink(absPath, "path must not be a symlink"); err != nil {
		return err
	}

	realParent, err := filepath.EvalSymlinks(filepath.Dir(absPath))
	if err != nil {
		// Missing parent: the read fails later with FILE_NOT_FOUND.
		return nil
	}
	if !isWithinAnyDir(filepath.Join(realParent, filepath.Base(absPath)), roots) {
		return errors.NewInvalidRequest("path resolves outside the allowed directories")
	}
	return nil
}

func rejectSymlink(path, msg string) error {
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest(msg)
	}
	return nil
}

// getAllowedDirs returns the list of allowed directories (absolute, cleaned).
// Existing symlinked entries are resolved so they match their real target.
func getAllowedDirs(cfg *config.Config) ([]string, error) {
	defaultDir, err := DefaultOutputsDir()
	if err != nil {
		return nil, err
	}
	dirs := []string{defaultDir}

	if cfg != nil {
		for _, p := range cfg.AllowedPaths {
			if filepath.IsAbs(p) {
				dirs = append(dirs, filepath.Clean(p))
			}
		}
	}

	result := make([]string, 0, len(dirs))
	for _, d := range dirs {
		abs, err := filepath.Abs(filepath.Clean(d))
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid allowed path: %v", err))
		}

		if info, err := os.Lstat(abs); err == nil && info.Mode()&os.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(abs)
			if err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve symlink in allowed path: %v", err))
			}
			abs = resolved
		}
		result = append(result, abs)
	}

	return result, nil
}

// getReadRoots returns the directories tool clients may read from: <home>,
// data_dir and absolute allowed_paths entries. Existing entries are listed
// both as given and resolved.
func getReadRoots(cfg *config.Config) ([]string, error) {
	home, err := config.HomeDir()
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to get home directory: %w", err))
	}
	dirs := []string{home}
	if cfg != nil {
		if cfg.DataDir != "" {
			dirs = append(dirs, cfg.DataDir)
		}
		for _, p := range cfg.AllowedPaths {
			if filepath.IsAbs(p) {
				dirs = append(dirs, p)
			}
		}
	}

	seen := make(map[string]bool)
	var result []string
	add := func(d string) {
		if !seen[d] {
			seen[d] = true
			result = append(result, d)
		}
	}
	for _, d := range dirs {
		abs, err := filepath.Abs(filepath.Clean(d))
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid allowed path: %v", err))
		}
		add(abs)
		if resolved, err := filepath.EvalSymlinks(abs); err == nil {
			add(resolved)
		}
	}
	return result, nil
}

// isWithinAnyDir reports whether path is one of dirs or below one of them.
func isWithinAnyDir(path string, dirs []string) bool {
	for _, dir := range dirs {
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// isDirectlyInAllowedDir checks if parentDir exactly matches one of the allowed directories.
func isDirectlyInAllowedDir(parentDir string, allowedDirs []string) bool {
	parentDir = filepath.Clean(parentDir)
	for _, dir := range allowedDirs {
		if parentDir == filepath.Clean(dir) {
			return true
		}
	}
	return false
}

// DefaultOutputsDir returns the default output directory (<home>/outputs).
func DefaultOutputsDir() (string, error) {
	home, err := config.HomeDir()
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to get home directory: %w", err))
	}
	return filepath.Join(home, db.OutputsDirName), nil
}

// containsTraversal checks if path contains ".." directory traversal.
func containsTraversal(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	// Also check for forward slashes on all platforms (e.g., user input)
	if filepath.Separator != '/' {
		for _, part := range strings.Split(path, "/") {
			if part == ".." {
				return true
			}
		}
	}
	return false
}

// SanitizeForFilename sanitizes a string for safe use in a filename.
func SanitizeForFilename(s string) string {
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")
	s = strings.ReplaceAll(s, "..", "-")

	var result strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 {
			result.WriteRune(r)
		}
	}
	s = result.String()

	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")

	if s == "" {
		s = "unnamed"
	}
	return s
}
