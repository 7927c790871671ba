package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reviewloop/internal/diff"
	"github.com/reviewloop/pkg/models"
)

func testPR() *models.PullRequest {
	return &models.PullRequest{
		Number: 12,
		Title:  "Harden retry loop",
		Body:   "Adds jitter. Fixes #3.",
	}
}

func TestGoalPromptIncludesContext(t *testing.T) {
	b := NewBuilder("a careful reviewer")
	prompt := b.GoalPrompt(testPR(),
		[]string{"add jitter\n\nlong body ignored", "cap delay"},
		[]models.Issue{{Number: 3, Title: "Retries hammer the API", Body: "details"}},
		"# myproject\nA thing.",
		[]string{"main.go", "retry.go"},
	)

	assert.Contains(t, prompt, "a careful reviewer")
	assert.Contains(t, prompt, "Harden retry loop")
	assert.Contains(t, prompt, "- add jitter\n", "only the first commit line is embedded")
	assert.NotContains(t, prompt, "long body ignored")
	assert.Contains(t, prompt, "Linked issue #3: Retries hammer the API")
	assert.Contains(t, prompt, "# myproject")
	assert.Contains(t, prompt, `{"goal": "...", "context": "..."}`)
}

func TestGlobalPromptEmbedsGoalAndDiff(t *testing.T) {
	b := NewBuilder("a reviewer")
	prompt := b.GlobalPrompt(testPR(), "reduce retry pressure", "File: a.go\n@@ -1 +1 @@\n+x")

	assert.Contains(t, prompt, "Stated goal: reduce retry pressure")
	assert.Contains(t, prompt, "```diff\nFile: a.go")
	assert.Contains(t, prompt, `"findings"`)

	// Without a goal the section disappears entirely.
	prompt = b.GlobalPrompt(testPR(), "", "x")
	assert.NotContains(t, prompt, "Stated goal:")
}

func TestInlinePromptEmbedsSharedFraming(t *testing.T) {
	file := &models.DiffFile{
		Path: "retry.go",
		Hunks: []models.DiffHunk{
			{Header: "@@ -1 +1 @@", Lines: []models.DiffLine{
				{Content: "+x := 1", Type: models.LineAdd, NewNumber: 1},
			}},
		},
	}
	patch := diff.BuildNumberedPatch(file, diff.NumberingLimits{})

	b := NewBuilder("a reviewer")
	prompt := b.InlinePrompt(patch, "reduce retry pressure", "Touches the retry loop only.",
		[]models.ReviewFinding{{Comment: "delay constant duplicated"}})

	assert.Contains(t, prompt, "Goal of the change: reduce retry pressure")
	assert.Contains(t, prompt, "Change-set summary: Touches the retry loop only.")
	assert.Contains(t, prompt, "- delay constant duplicated")
	assert.Contains(t, prompt, "File: retry.go")
	assert.Contains(t, prompt, "1: @@ -1 +1 @@")
	assert.Contains(t, prompt, "2: +x := 1")
	assert.True(t, strings.Contains(prompt, `"reviews"`))
}
