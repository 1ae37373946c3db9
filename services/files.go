package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrArtifactNotFound is returned when no downloaded file can be located
var ErrArtifactNotFound = errors.New("artifact not found")

var (
	templateField = regexp.MustCompile(`%\([^)]*\)[a-z]`)
	extUnsafe     = regexp.MustCompile(`[^a-z0-9]`)
)

// Partial files left behind by the engine while it works
var skippedExtensions = []string{".part", ".ytdl", ".temp"}

// SanitizeExtension lowercases an extension and strips anything that is not
// a letter or digit. An empty result falls back to the default container.
func SanitizeExtension(ext string) string {
	ext = extUnsafe.ReplaceAllString(strings.ToLower(strings.TrimPrefix(ext, ".")), "")
	if ext == "" {
		return DefaultContainer
	}
	return ext
}

// ArtifactFileName returns the public name of an artifact: the job id plus
// the sanitized extension of the file the engine produced
func ArtifactFileName(jobID, producedPath string) string {
	return jobID + "." + SanitizeExtension(filepath.Ext(producedPath))
}

// FindProducedFile locates the newest completed file matching an output template
func FindProducedFile(outputTemplate string) (string, error) {
	pattern := templateField.ReplaceAllString(globEscape(outputTemplate), "*")

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("search %s: %w", pattern, err)
	}

	var newest string
	var newestMod int64
	for _, match := range matches {
		if isPartial(match) {
			continue
		}
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		if mod := info.ModTime().UnixNano(); newest == "" || mod > newestMod {
			newest, newestMod = match, mod
		}
	}

	if newest == "" {
		return "", fmt.Errorf("no file matches %s: %w", pattern, ErrArtifactNotFound)
	}
	return newest, nil
}

// ValidateArtifactPath checks that path is a file inside root
func ValidateArtifactPath(root, path string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path %s is outside %s", path, root)
	}
	return nil
}

// GetContentType returns the MIME type for a video artifact
func GetContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	case ".mov":
		return "video/quicktime"
	default:
		return "application/octet-stream"
	}
}

func isPartial(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, skipped := range skippedExtensions {
		if ext == skipped {
			return true
		}
	}
	return false
}

// globEscape escapes glob metacharacters outside the template fields
func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
