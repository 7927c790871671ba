package diff

import (
	"path/filepath"
	"strings"

	"github.com/reviewloop/pkg/models"
)

// FilterOptions controls which parsed files survive into the review.
type FilterOptions struct {
	Include  []string // allowlist globs; empty means every file is a candidate
	Exclude  []string // denylist globs, applied after and overriding Include
	MaxFiles int      // cap on surviving files, zero means no cap
}

// binaryExtensions lists file suffixes that are never worth sending to the
// model. Kept short on purpose; the globs handle project-specific noise.
var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
	".webp": true, ".pdf": true, ".zip": true, ".tar": true, ".gz": true,
	".jar": true, ".exe": true, ".dll": true, ".so": true, ".dylib": true,
	".bin": true, ".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
	".mp3": true, ".mp4": true, ".class": true, ".pyc": true, ".o": true,
}

// FilterFiles applies, in order: binary skip, include globs, exclude globs,
// and the max-files cap. Original diff order is preserved throughout.
func FilterFiles(files []*models.DiffFile, opts FilterOptions) []*models.DiffFile {
	result := make([]*models.DiffFile, 0, len(files))

	for _, f := range files {
		if binaryExtensions[strings.ToLower(filepath.Ext(f.Path))] {
			continue
		}
		if len(opts.Include) > 0 && !matchesAny(opts.Include, f.Path) {
			continue
		}
		if len(opts.Exclude) > 0 && matchesAny(opts.Exclude, f.Path) {
			continue
		}
		result = append(result, f)
	}

	if opts.MaxFiles > 0 && len(result) > opts.MaxFiles {
		result = result[:opts.MaxFiles]
	}
	return result
}

// matchesAny reports whether the path matches at least one glob. Patterns
// are tried against the full relative path and against the base filename,
// so "*.go" catches "internal/diff/parser.go" and dotfiles match normally.
func matchesAny(patterns []string, path string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if ok, err := filepath.Match(pattern, path); err == nil && ok {
			return true
		}
		if ok, err := filepath.Match(pattern, base); err == nil && ok {
			return true
		}
	}
	return false
}
