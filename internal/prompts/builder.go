package prompts

import (
	"fmt"
	"strings"

	"github.com/reviewloop/internal/diff"
	"github.com/reviewloop/pkg/models"
)

// Builder assembles the three prompt kinds the pipeline sends to the model.
// Every prompt pins the expected JSON shape so parsing stays predictable.
type Builder struct {
	Persona string
}

// NewBuilder creates a prompt builder with the configured review persona.
func NewBuilder(persona string) *Builder {
	return &Builder{Persona: persona}
}

// GoalPrompt asks for a short goal statement anchoring the review, given
// everything known about the change before any diff analysis.
func (b *Builder) GoalPrompt(pr *models.PullRequest, commits []string, issues []models.Issue, readme string, tree []string) string {
	var p strings.Builder
	fmt.Fprintf(&p, "You are %s preparing to review a pull request.\n\n", b.Persona)
	fmt.Fprintf(&p, "Title: %s\n\nDescription:\n%s\n\n", pr.Title, pr.Body)

	if len(commits) > 0 {
		p.WriteString("Commit messages:\n")
		for _, msg := range commits {
			fmt.Fprintf(&p, "- %s\n", firstLine(msg))
		}
		p.WriteString("\n")
	}
	for _, issue := range issues {
		fmt.Fprintf(&p, "Linked issue #%d: %s\n%s\n\n", issue.Number, issue.Title, clip(issue.Body, 1200))
	}
	if readme != "" {
		fmt.Fprintf(&p, "Repository README (excerpt):\n%s\n\n", clip(readme, 1500))
	}
	if len(tree) > 0 {
		fmt.Fprintf(&p, "Repository layout (%d files, excerpt):\n%s\n\n", len(tree), strings.Join(head(tree, 40), "\n"))
	}

	p.WriteString(`State the author's goal in one or two sentences, plus any context a reviewer should keep in mind.
Respond with JSON only: {"goal": "...", "context": "..."}`)
	return p.String()
}

// GlobalPrompt asks for a change-set-wide summary and cross-file findings
// over the flattened diff.
func (b *Builder) GlobalPrompt(pr *models.PullRequest, goal, flatDiff string) string {
	var p strings.Builder
	fmt.Fprintf(&p, "You are %s reviewing an entire change set at once.\n\n", b.Persona)
	fmt.Fprintf(&p, "Title: %s\n\nDescription:\n%s\n\n", pr.Title, pr.Body)
	if goal != "" {
		fmt.Fprintf(&p, "Stated goal: %s\n\n", goal)
	}
	fmt.Fprintf(&p, "Complete diff (may be truncated for size):\n```diff\n%s\n```\n\n", flatDiff)

	p.WriteString(`Summarize what this change does, then list findings that only show up across files
(inconsistent naming, duplicated logic, missing call-site updates). Line numbers are not
available in this view; name the file instead.
Respond with JSON only:
{"summary": "...", "findings": [{"file": "path", "comment": "...", "priority": "low|medium|high"}]}`)
	return p.String()
}

// InlinePrompt asks for line-anchored findings on one file's numbered
// patch. The global summary and goal are embedded so every inline review
// shares the same framing; the prompt cannot be built before both are
// resolved.
func (b *Builder) InlinePrompt(patch *diff.NumberedPatch, goal, globalSummary string, globalFindings []models.ReviewFinding) string {
	var p strings.Builder
	fmt.Fprintf(&p, "You are %s reviewing one file from a larger change set.\n\n", b.Persona)
	if goal != "" {
		fmt.Fprintf(&p, "Goal of the change: %s\n\n", goal)
	}
	if globalSummary != "" {
		fmt.Fprintf(&p, "Change-set summary: %s\n\n", globalSummary)
	}
	if len(globalFindings) > 0 {
		p.WriteString("Cross-file observations already noted:\n")
		for _, f := range globalFindings {
			fmt.Fprintf(&p, "- %s\n", f.Comment)
		}
		p.WriteString("\n")
	}

	fmt.Fprintf(&p, "File: %s\n", patch.Path)
	fmt.Fprintf(&p, "Diff with line numbers (N: marks each visible line):\n```\n%s\n```\n\n", patch.Text())

	p.WriteString(`Report genuine problems only: bugs, security issues, races, broken error handling,
misleading names. Do not restate the diff or praise the code. Reference lines by the
N: numbers shown above. Use endLineNumber only when a finding spans a range.
Respond with JSON only:
{"reviews": [{"lineNumber": N, "endLineNumber": N, "comment": "...", "priority": "low|medium|high", "category": "..."}]}`)
	return p.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

func head(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
