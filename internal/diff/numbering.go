package diff

import (
	"fmt"
	"strings"

	"github.com/reviewloop/pkg/models"
)

// NumberingLimits bounds how much of one file's diff is rendered for the
// model. Zero values mean unlimited.
type NumberingLimits struct {
	MaxHunksPerFile int
	MaxLinesPerHunk int
}

// LineMeta records, for every line actually rendered, where that line lives
// in the model-facing view, in the true diff, and in the new file.
//
// Position and DiffPosition are maintained as two independent counters over
// a single walk of the hunks. They must never be derived from each other:
// once truncation skips lines, Position stays contiguous for the model while
// DiffPosition keeps counting the real diff.
type LineMeta struct {
	Position       int    // 1-based index among rendered lines, headers included
	DiffPosition   int    // 1-based index among all lines of the true diff
	Reviewable     bool   // add/normal content line eligible to anchor a comment
	HunkIndex      int    // which hunk this line belongs to
	Content        string // raw line text, marker included
	FileLineNumber int    // new-file line number; zero for headers and deletions
}

// NumberedPatch is the bounded, line-numbered rendering of one file's diff
// plus the bookkeeping needed to map model line references back to file
// lines.
type NumberedPatch struct {
	Path  string
	Lines []string         // rendered "position: content" lines, in order
	Meta  map[int]LineMeta // keyed by virtual position
	Hunks map[int][]int    // hunk index -> ordered virtual positions in it
}

// Text returns the rendered patch as shown to the model.
func (p *NumberedPatch) Text() string {
	return strings.Join(p.Lines, "\n")
}

const noNewlineMarker = `\`

// BuildNumberedPatch walks the file's hunks once, emitting up to the capped
// number of hunks and lines per hunk. The virtual position advances only for
// emitted lines; the diff position advances for every real line, emitted or
// not, so anchors computed downstream stay valid under truncation.
func BuildNumberedPatch(file *models.DiffFile, limits NumberingLimits) *NumberedPatch {
	patch := &NumberedPatch{
		Path:  file.Path,
		Meta:  make(map[int]LineMeta),
		Hunks: make(map[int][]int),
	}

	position := 0
	diffPosition := 0

	emit := func(hunkIndex int, content string, reviewable bool, fileLine int) {
		position++
		meta := LineMeta{
			Position:       position,
			DiffPosition:   diffPosition,
			Reviewable:     reviewable,
			HunkIndex:      hunkIndex,
			Content:        content,
			FileLineNumber: fileLine,
		}
		patch.Meta[position] = meta
		patch.Hunks[hunkIndex] = append(patch.Hunks[hunkIndex], position)
		patch.Lines = append(patch.Lines, fmt.Sprintf("%d: %s", position, content))
	}

	for hi, hunk := range file.Hunks {
		if limits.MaxHunksPerFile > 0 && hi >= limits.MaxHunksPerFile {
			break
		}

		diffPosition++
		emit(hi, hunk.Header, false, 0)

		for li, line := range hunk.Lines {
			diffPosition++
			if limits.MaxLinesPerHunk > 0 && li >= limits.MaxLinesPerHunk {
				// Skipped by the per-hunk cap: counts toward the true diff,
				// never rendered.
				continue
			}
			emit(hi, line.Content, isReviewable(line), line.NewNumber)
		}
	}

	return patch
}

// isReviewable reports whether a line may anchor a comment: added or
// unchanged content only, and never the "no trailing newline" marker.
func isReviewable(line models.DiffLine) bool {
	if line.Type != models.LineAdd && line.Type != models.LineNormal {
		return false
	}
	return !strings.HasPrefix(line.Content, noNewlineMarker)
}
