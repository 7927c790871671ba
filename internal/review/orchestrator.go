package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/reviewloop/internal/ai"
	"github.com/reviewloop/internal/config"
	"github.com/reviewloop/internal/diff"
	"github.com/reviewloop/internal/hosting"
	"github.com/reviewloop/internal/logging"
	"github.com/reviewloop/internal/prompts"
	"github.com/reviewloop/internal/retry"
	"github.com/reviewloop/pkg/models"
)

// State is the terminal state of one review run.
type State string

const (
	StateSkipped   State = "skipped"
	StatePublished State = "published"
	StateFallback  State = "fallback_comment"
	StateDryRun    State = "dry_run"
)

// Outcome reports what a run produced.
type Outcome struct {
	State    State
	Summary  string
	Comments []models.PublishedComment
}

// Orchestrator drives the review pipeline: trigger check, context fetch,
// global pass, bounded-concurrency inline pass, aggregation and
// publish-with-fallback. The hosting and model collaborators are injected
// so tests substitute stubs.
type Orchestrator struct {
	cfg    *config.Config
	host   hosting.Provider
	model  ai.Provider
	prompt *prompts.Builder
	parser *diff.Parser
	logger *logging.ReviewLogger
}

// New wires an orchestrator from its collaborators.
func New(cfg *config.Config, host hosting.Provider, model ai.Provider, logger *logging.ReviewLogger) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		host:   host,
		model:  model,
		prompt: prompts.NewBuilder(cfg.Persona),
		parser: diff.NewParser(),
		logger: logger,
	}
}

// Run executes the full pipeline for one event. A trigger mismatch is a
// clean skip, not an error. Once the trigger matched, the run ends in a
// published review, a fallback summary comment, or an error only when the
// platform itself was unreachable after all retries.
func (o *Orchestrator) Run(ctx context.Context, event models.ReviewEvent, ref hosting.PullRequestRef) (*Outcome, error) {
	if !o.triggered(event) {
		o.logger.Log("event on %s did not match trigger %q, skipping", ref, o.cfg.Trigger)
		return &Outcome{State: StateSkipped}, nil
	}
	o.logger.LogSection(fmt.Sprintf("review triggered on %s by %s", ref, event.Author))

	if event.CommentID != 0 {
		// Best-effort acknowledgment of the triggering comment.
		err := retry.Do(ctx, o.cfg.HostRetry(), o.logger, func() error {
			return o.host.AddReaction(ctx, ref, event.CommentID)
		})
		if err != nil {
			o.logger.Log("reaction failed (ignored): %v", err)
		}
	}

	var pr *models.PullRequest
	err := retry.Do(ctx, o.cfg.HostRetry(), o.logger, func() error {
		var err error
		pr, err = o.host.GetPullRequest(ctx, ref)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetching pull request %s: %w", ref, err)
	}

	var diffText string
	err = retry.Do(ctx, o.cfg.HostRetry(), o.logger, func() error {
		var err error
		diffText, err = o.host.GetDiff(ctx, ref)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetching diff for %s: %w", ref, err)
	}

	files := o.parser.Parse(diffText)
	if len(files) == 0 {
		return nil, fmt.Errorf("empty diff for %s", ref)
	}
	files = diff.FilterFiles(files, diff.FilterOptions{
		Include:  o.cfg.Filters.Include,
		Exclude:  o.cfg.Filters.Exclude,
		MaxFiles: o.cfg.Filters.MaxFiles,
	})
	o.logger.Log("reviewing %d files after filtering", len(files))

	rc := o.fetchContext(ctx, ref, pr)

	// The inline pass embeds the goal and the global summary in every
	// prompt, so both must be resolved first, even when they resolve to
	// empty strings.
	summary, globalFindings := o.globalPass(ctx, pr, rc.Goal, files)
	results := o.inlinePass(ctx, files, rc.Goal, summary, globalFindings)

	comments, unanchored := aggregate(results, globalFindings, o.cfg.Limits.MaxComments)
	body := o.reviewBody(pr, rc.Goal, summary, unanchored, len(comments))

	if o.cfg.DryRun {
		o.logger.LogSection("dry run, nothing published")
		o.logger.Log("review body:\n%s", body)
		for _, c := range comments {
			o.logger.Log("%s:%d %s", c.Path, c.Line, c.Body)
		}
		return &Outcome{State: StateDryRun, Summary: body, Comments: comments}, nil
	}

	state := o.publish(ctx, ref, pr.HeadSHA, body, comments)
	return &Outcome{State: state, Summary: body, Comments: comments}, nil
}

// triggered checks the incoming event: only a comment on a pull request
// whose text contains the trigger token starts a review.
func (o *Orchestrator) triggered(event models.ReviewEvent) bool {
	if event.Kind != models.EventComment || event.PullRequest == 0 {
		return false
	}
	return strings.Contains(event.CommentBody, o.cfg.Trigger)
}

// completeWithRetry sends one prompt to the model under the model retry
// policy, logging the full exchange.
func (o *Orchestrator) completeWithRetry(ctx context.Context, stage, prompt string) (string, error) {
	o.logger.LogRequest(stage, o.model.Name(), prompt)
	var raw string
	err := retry.Do(ctx, o.cfg.ModelRetry(), o.logger, func() error {
		var err error
		raw, err = o.model.Complete(ctx, prompt)
		return err
	})
	if err != nil {
		return "", err
	}
	o.logger.LogResponse(stage, raw)
	return raw, nil
}

// reviewBody composes the summary body posted with the review (and reused
// verbatim by the fallback comment). Global findings that could not anchor
// to a line surface here instead of being lost.
func (o *Orchestrator) reviewBody(pr *models.PullRequest, goal, summary string, unanchored []models.ReviewFinding, commentCount int) string {
	var b strings.Builder
	b.WriteString("## Automated review\n\n")
	if goal != "" {
		fmt.Fprintf(&b, "**Goal:** %s\n\n", goal)
	}
	if summary != "" {
		b.WriteString(summary)
		b.WriteString("\n\n")
	} else {
		fmt.Fprintf(&b, "Reviewed %q.\n\n", pr.Title)
	}
	if len(unanchored) > 0 {
		b.WriteString("Cross-file observations:\n")
		for _, f := range unanchored {
			if f.File != "" {
				fmt.Fprintf(&b, "- %s `%s`: %s\n", f.Priority.Badge(), f.File, f.Comment)
			} else {
				fmt.Fprintf(&b, "- %s %s\n", f.Priority.Badge(), f.Comment)
			}
		}
		b.WriteString("\n")
	}
	if commentCount > 0 {
		fmt.Fprintf(&b, "%d line comment(s) attached.\n", commentCount)
	} else {
		b.WriteString("No line-level findings.\n")
	}
	return b.String()
}
