package diff

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/reviewloop/pkg/models"
)

// Parser parses unified diff output into structured data.
type Parser struct{}

// NewParser creates a new diff parser.
func NewParser() *Parser {
	return &Parser{}
}

var (
	fileHeaderRe = regexp.MustCompile(`^diff --git (?:a/)?(\S+) (?:b/)?(\S+)`)
	hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)
)

// Parse splits a raw unified diff into files, hunks and typed lines.
// Malformed or headerless fragments are skipped rather than failing the
// whole diff, files that end up with zero hunks are dropped, and empty
// input yields an empty list.
func (p *Parser) Parse(diffText string) []*models.DiffFile {
	if strings.TrimSpace(diffText) == "" {
		return nil
	}

	var result []*models.DiffFile
	for _, fragment := range splitByFile(diffText) {
		file := p.parseFileDiff(fragment)
		if file != nil && len(file.Hunks) > 0 {
			result = append(result, file)
		}
	}
	return result
}

// splitByFile cuts a multi-file diff at each "diff --git" boundary.
// Text before the first boundary has no file header and is discarded.
func splitByFile(diffText string) []string {
	parts := strings.Split(diffText, "\ndiff --git ")

	result := make([]string, 0, len(parts))
	for i, part := range parts {
		if i == 0 {
			if !strings.HasPrefix(part, "diff --git ") {
				continue
			}
		} else {
			part = "diff --git " + part
		}
		result = append(result, part)
	}
	return result
}

func (p *Parser) parseFileDiff(fragment string) *models.DiffFile {
	lines := strings.Split(fragment, "\n")
	if len(lines) == 0 {
		return nil
	}

	matches := fileHeaderRe.FindStringSubmatch(lines[0])
	if len(matches) < 3 {
		return nil
	}
	file := &models.DiffFile{Path: stripPathPrefix(matches[2])}

	var hunk *models.DiffHunk
	var oldNum, newNum int

	flush := func() {
		if hunk != nil {
			file.Hunks = append(file.Hunks, *hunk)
			hunk = nil
		}
	}

	for _, line := range lines[1:] {
		if hm := hunkHeaderRe.FindStringSubmatch(line); hm != nil {
			flush()
			oldStart, _ := strconv.Atoi(hm[1])
			oldCount := atoiDefault(hm[2], 1)
			newStart, _ := strconv.Atoi(hm[3])
			newCount := atoiDefault(hm[4], 1)
			hunk = &models.DiffHunk{
				Header:   line,
				OldStart: oldStart,
				OldCount: oldCount,
				NewStart: newStart,
				NewCount: newCount,
			}
			oldNum = oldStart
			newNum = newStart
			continue
		}

		if hunk == nil {
			// Preamble lines (index, ---, +++, mode changes) before the
			// first hunk header.
			continue
		}

		switch {
		case strings.HasPrefix(line, "+"):
			hunk.Lines = append(hunk.Lines, models.DiffLine{
				Content:   line,
				Type:      models.LineAdd,
				NewNumber: newNum,
			})
			newNum++
		case strings.HasPrefix(line, "-"):
			hunk.Lines = append(hunk.Lines, models.DiffLine{
				Content:   line,
				Type:      models.LineDelete,
				OldNumber: oldNum,
			})
			oldNum++
		case strings.HasPrefix(line, " "):
			hunk.Lines = append(hunk.Lines, models.DiffLine{
				Content:   line,
				Type:      models.LineNormal,
				OldNumber: oldNum,
				NewNumber: newNum,
			})
			oldNum++
			newNum++
		case strings.HasPrefix(line, `\`):
			// "\ No newline at end of file" belongs to the hunk body but
			// advances neither side.
			hunk.Lines = append(hunk.Lines, models.DiffLine{
				Content: line,
				Type:    models.LineNormal,
			})
		default:
			// Empty context lines lose their leading space in some diff
			// producers; treat a fully empty line inside a hunk as context.
			if line == "" {
				continue
			}
		}
	}
	flush()

	return file
}

func stripPathPrefix(path string) string {
	path = strings.TrimPrefix(path, "a/")
	path = strings.TrimPrefix(path, "b/")
	return path
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
