package services

import (
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dhowden/tag"
)

// matches the " [job id]" suffix the worker adds to engine output names
var jobSuffix = regexp.MustCompile(`\s*\[[^\]]*\]$`)

// ArtifactTitle returns the title stored in the artifact's container tags,
// falling back to the title encoded in the name the engine originally wrote
func ArtifactTitle(path, producedName string) string {
	if title := readTagTitle(path); title != "" {
		return title
	}
	return titleFromName(producedName)
}

func readTagTitle(path string) string {
	file, err := os.Open(path)
	if err != nil {
		log.Printf("Warning: Could not open artifact %s: %v", path, err)
		return ""
	}
	defer file.Close()

	meta, err := tag.ReadFrom(file)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(meta.Title())
}

// titleFromName turns "Some_Video [id].mp4" into "Some Video"
func titleFromName(name string) string {
	base := filepath.Base(name)
	title := strings.TrimSuffix(base, filepath.Ext(base))
	title = jobSuffix.ReplaceAllString(title, "")
	title = strings.TrimSpace(strings.ReplaceAll(title, "_", " "))
	if title == "." || title == string(filepath.Separator) {
		return ""
	}
	return title
}
