package models

import "strings"

// LineType classifies a single diff line by its leading marker.
type LineType string

const (
	LineAdd    LineType = "add"
	LineDelete LineType = "del"
	LineNormal LineType = "normal"
)

// DiffLine is one line of a hunk body. Content keeps the raw text including
// its leading +/-/space marker. OldNumber/NewNumber are 1-based line numbers
// in the old/new file and are zero when the diff format supplies none
// (added lines have no old number, deleted lines no new number).
type DiffLine struct {
	Content   string
	Type      LineType
	OldNumber int
	NewNumber int
}

// DiffHunk is a contiguous block of changes delimited by an @@ header.
type DiffHunk struct {
	Header   string // the @@ ... @@ line, verbatim
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []DiffLine
}

// DiffFile holds all hunks of one file in a unified diff. Path is normalized
// with the conventional a/ and b/ prefixes stripped.
type DiffFile struct {
	Path  string
	Hunks []DiffHunk
}

// PullRequest carries the metadata the review pipeline needs from the
// hosting platform.
type PullRequest struct {
	Number     int
	Title      string
	Body       string
	HeadSHA    string
	BaseSHA    string
	BaseBranch string
}

// Issue is a linked issue referenced from a pull request description.
type Issue struct {
	Number int
	Title  string
	Body   string
}

// Event kinds for incoming webhook/trigger payloads.
const (
	EventComment = "comment"
	EventPush    = "push"
)

// ReviewEvent is the incoming event a review run is triggered from.
type ReviewEvent struct {
	Kind        string
	PullRequest int // PR/MR number; zero when the event is not on a pull request
	CommentID   int64
	CommentBody string
	Author      string
}

// Priority buckets for review findings, ordered so higher is more severe.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
)

// NormalizePriority maps a model-supplied priority string onto a bucket.
// "critical" collapses into high; anything unrecognized lands on medium.
func NormalizePriority(raw string) Priority {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low", "info", "minor":
		return PriorityLow
	case "high", "critical", "blocker":
		return PriorityHigh
	case "medium", "warning":
		return PriorityMedium
	default:
		return PriorityMedium
	}
}

// String returns the canonical bucket name.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	default:
		return "medium"
	}
}

// Badge returns the severity marker prefixed to published comment bodies.
func (p Priority) Badge() string {
	switch p {
	case PriorityHigh:
		return "🔴"
	case PriorityLow:
		return "🟢"
	default:
		return "🟡"
	}
}

// ReviewFinding is a single model finding before anchor resolution.
// LineNumber and EndLineNumber refer to virtual positions in the numbered
// patch the model was shown, not file line numbers.
type ReviewFinding struct {
	File          string // set by the global pass; empty for per-file findings
	LineNumber    int
	EndLineNumber int // zero when the finding covers a single line
	Comment       string
	Priority      Priority
	Category      string
}

// Comment sides on the hosting platform. Reviews anchor to the new file
// version only, so everything published uses SideRight.
const SideRight = "RIGHT"

// PublishedComment is a fully resolved, line-anchored review comment ready
// to be sent to the hosting platform. StartLine/StartSide are populated only
// for multi-line ranges.
type PublishedComment struct {
	Path      string
	Body      string
	Line      int
	Side      string
	StartLine int
	StartSide string
}

// ReviewResult is the aggregated outcome of one review run.
type ReviewResult struct {
	Summary  string
	Comments []PublishedComment
}
