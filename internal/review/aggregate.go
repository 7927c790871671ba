package review

import (
	"fmt"
	"sort"

	"github.com/reviewloop/internal/diff"
	"github.com/reviewloop/pkg/models"
)

// scoredComment keeps the finding's priority and arrival order alongside
// the resolved comment so the overflow cap can drop lowest priority first
// while the survivors keep their original order.
type scoredComment struct {
	comment  models.PublishedComment
	priority models.Priority
	index    int
}

// aggregate resolves every finding against its file's numbered patch,
// deduplicates collisions across both passes, and caps the batch size.
// Inline findings whose start cannot anchor anywhere in their hunk are
// silently dropped; global findings that cannot anchor (no file, no line,
// unknown file, or unresolvable position) are returned separately so the
// summary body can still surface them.
func aggregate(results []fileResult, globalFindings []models.ReviewFinding, maxComments int) ([]models.PublishedComment, []models.ReviewFinding) {
	patches := make(map[string]*diff.NumberedPatch, len(results))
	for i := range results {
		patches[results[i].Path] = results[i].Patch
	}

	var scored []scoredComment
	seen := make(map[string]bool)

	// add reports whether the finding anchored; a dedup hit still counts as
	// anchored.
	add := func(path string, patch *diff.NumberedPatch, finding models.ReviewFinding) bool {
		comment, ok := resolveComment(path, patch, finding)
		if !ok {
			return false
		}
		key := fmt.Sprintf("%s:%d:%d:%s", comment.Path, comment.StartLine, comment.Line, comment.Body)
		if seen[key] {
			return true
		}
		seen[key] = true
		scored = append(scored, scoredComment{comment, finding.Priority, len(scored)})
		return true
	}

	for _, result := range results {
		for _, finding := range result.Findings {
			add(result.Path, result.Patch, finding)
		}
	}

	var unanchored []models.ReviewFinding
	for _, finding := range globalFindings {
		if finding.File != "" && finding.LineNumber != 0 {
			if patch, ok := patches[finding.File]; ok && add(finding.File, patch, finding) {
				continue
			}
		}
		unanchored = append(unanchored, finding)
	}

	if maxComments > 0 && len(scored) > maxComments {
		sort.SliceStable(scored, func(i, j int) bool {
			return scored[i].priority > scored[j].priority
		})
		scored = scored[:maxComments]
		sort.SliceStable(scored, func(i, j int) bool {
			return scored[i].index < scored[j].index
		})
	}

	comments := make([]models.PublishedComment, len(scored))
	for i, s := range scored {
		comments[i] = s.comment
	}
	return comments, unanchored
}

// resolveComment maps one finding onto file-line anchors. The start is
// resolved forward; a range end is resolved backward and only kept when it
// lands strictly after the start, otherwise the comment collapses to a
// single line.
func resolveComment(path string, patch *diff.NumberedPatch, finding models.ReviewFinding) (models.PublishedComment, bool) {
	start, ok := patch.ResolveCommentPosition(finding.LineNumber)
	if !ok {
		return models.PublishedComment{}, false
	}

	comment := models.PublishedComment{
		Path: path,
		Body: finding.Priority.Badge() + " " + finding.Comment,
		Line: start,
		Side: models.SideRight,
	}

	if finding.EndLineNumber > 0 {
		if end, ok := patch.ResolveEndPosition(finding.EndLineNumber); ok && end > start {
			comment.StartLine = start
			comment.StartSide = models.SideRight
			comment.Line = end
		}
	}
	return comment, true
}
