package diff

import (
	"strings"

	"github.com/reviewloop/pkg/models"
)

// FlattenLimits bounds the single cross-file diff rendered for global
// context. Per-file caps mirror the numbered rendering; MaxTotalLines is an
// additional budget across all files (zero means unlimited).
type FlattenLimits struct {
	NumberingLimits
	MaxTotalLines int
}

// FlattenDiff renders one plain, unnumbered diff across all filtered files.
// Rendering stops the instant the total budget is exhausted, mid-hunk or
// mid-file. No comment ever anchors to this text, so no position
// bookkeeping happens here.
func FlattenDiff(files []*models.DiffFile, limits FlattenLimits) string {
	var b strings.Builder
	total := 0

	write := func(line string) bool {
		if limits.MaxTotalLines > 0 && total >= limits.MaxTotalLines {
			return false
		}
		b.WriteString(line)
		b.WriteByte('\n')
		total++
		return true
	}

	for _, file := range files {
		if !write("File: " + file.Path) {
			return b.String()
		}
		for hi, hunk := range file.Hunks {
			if limits.MaxHunksPerFile > 0 && hi >= limits.MaxHunksPerFile {
				break
			}
			if !write(hunk.Header) {
				return b.String()
			}
			for li, line := range hunk.Lines {
				if limits.MaxLinesPerHunk > 0 && li >= limits.MaxLinesPerHunk {
					break
				}
				if !write(line.Content) {
					return b.String()
				}
			}
		}
	}
	return b.String()
}
