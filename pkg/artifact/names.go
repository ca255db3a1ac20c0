package artifact

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/araddon/dateparse"
	"github.com/gosimple/slug"
)

// DateLayout is the date disambiguator format.
const DateLayout = "2006-01-02"

const untitled = "untitled"

var dashRuns = regexp.MustCompile(`-{2,}`)

// safeExt matches extensions that are usable verbatim in a file name.
var safeExt = regexp.MustCompile(`^\.[^\s/\\:\x00-\x1f\x7f]+$`)

// Slugify lowercases name and collapses every run of non-alphanumeric
// characters into a single '-'. Underscores are reserved for the date and
// sequence separators of artifact names.
func Slugify(name string) string {
	s := slug.Make(name)
	s = strings.ReplaceAll(s, "_", "-")
	s = dashRuns.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return untitled
	}
	return s
}

// ArtifactDate picks the date disambiguator of a campaign record: the last
// send time when present, the creation time otherwise.
func ArtifactDate(lastRun, created string) (string, error) {
	raw := strings.TrimSpace(lastRun)
	if raw == "" {
		raw = strings.TrimSpace(created)
	}
	if raw == "" {
		return "", fmt.Errorf("record has neither last_run_date nor created_date")
	}

	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return "", fmt.Errorf("parse date %q: %w", raw, err)
	}
	return t.Format(DateLayout), nil
}

// splitName separates a file name into its slugified stem and its
// extension ("Q3 Report.PDF" -> "q3-report", ".PDF"). The extension is kept
// as is unless it would be unsafe in a path, in which case it is slugified.
func splitName(name string) (stem, ext string) {
	name = strings.TrimSpace(name)
	ext = filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if base == "" {
		// ".htaccess" style names have no stem.
		base, ext = name, ""
	}
	if ext != "" && !safeExt.MatchString(ext) {
		ext = strings.ToLower(Slugify(strings.TrimPrefix(ext, ".")))
		if ext == untitled {
			ext = ""
		}
		if ext != "" {
			ext = "." + ext
		}
	}
	return Slugify(base), ext
}

// folderSegment makes an upstream folder label usable as one directory name.
func folderSegment(folder string) string {
	folder = strings.TrimSpace(folder)
	folder = strings.NewReplacer("/", "-", `\`, "-").Replace(folder)
	switch folder {
	case "", ".":
		return ""
	case "..":
		return "_"
	}
	return folder
}

// candidate builds the n-th candidate path; n == 0 has no suffix.
func candidate(dir, stem, ext string, n int) string {
	if n == 0 {
		return filepath.Join(dir, stem+ext)
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, n, ext))
}
