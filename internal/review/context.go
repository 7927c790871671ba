package review

import (
	"context"
	"regexp"
	"strconv"

	"github.com/reviewloop/internal/hosting"
	"github.com/reviewloop/internal/retry"
	"github.com/reviewloop/pkg/models"
)

// reviewContext is everything gathered before any diff analysis. Every
// field degrades to its zero value on failure; context fetch is never
// fatal.
type reviewContext struct {
	Commits []string
	Issues  []models.Issue
	Readme  string
	Tree    []string
	Goal    string
}

// fetchContext gathers commits, linked issues and repository snippets, then
// asks the model for a short goal statement anchoring the review.
func (o *Orchestrator) fetchContext(ctx context.Context, ref hosting.PullRequestRef, pr *models.PullRequest) *reviewContext {
	rc := &reviewContext{}

	err := retry.Do(ctx, o.cfg.HostRetry(), o.logger, func() error {
		var err error
		rc.Commits, err = o.host.ListCommitMessages(ctx, ref)
		return err
	})
	if err != nil {
		o.logger.Log("commit messages unavailable (ignored): %v", err)
		rc.Commits = nil
	}

	for _, ir := range parseIssueRefs(pr.Body, ref.Owner, ref.Repo) {
		var issue *models.Issue
		err := retry.Do(ctx, o.cfg.HostRetry(), o.logger, func() error {
			var err error
			issue, err = o.host.GetIssue(ctx, ir.Owner, ir.Repo, ir.Number)
			return err
		})
		if err != nil {
			o.logger.Log("linked issue %s/%s#%d unavailable (ignored): %v", ir.Owner, ir.Repo, ir.Number, err)
			continue
		}
		rc.Issues = append(rc.Issues, *issue)
	}

	err = retry.Do(ctx, o.cfg.HostRetry(), o.logger, func() error {
		var err error
		rc.Readme, err = o.host.GetFileContent(ctx, ref, "README.md", pr.HeadSHA)
		return err
	})
	if err != nil {
		o.logger.Log("readme unavailable (ignored): %v", err)
		rc.Readme = ""
	}

	err = retry.Do(ctx, o.cfg.HostRetry(), o.logger, func() error {
		var err error
		rc.Tree, err = o.host.ListFileTree(ctx, ref, pr.HeadSHA)
		return err
	})
	if err != nil {
		o.logger.Log("file tree unavailable (ignored): %v", err)
		rc.Tree = nil
	}

	rc.Goal = o.goalStatement(ctx, pr, rc)
	return rc
}

// goalStatement asks the model what the change is trying to achieve. Any
// failure, including a malformed response, degrades to an empty goal.
func (o *Orchestrator) goalStatement(ctx context.Context, pr *models.PullRequest, rc *reviewContext) string {
	prompt := o.prompt.GoalPrompt(pr, rc.Commits, rc.Issues, rc.Readme, rc.Tree)
	raw, err := o.completeWithRetry(ctx, "goal", prompt)
	if err != nil {
		o.logger.Log("goal statement unavailable (ignored): %v", err)
		return ""
	}
	goal, err := parseGoalResponse(raw)
	if err != nil {
		o.logger.Log("goal response unparseable (ignored): %v", err)
		return ""
	}
	return goal
}

// issueRef locates a linked issue, possibly in another repository.
type issueRef struct {
	Owner  string
	Repo   string
	Number int
}

var (
	issueURLRe       = regexp.MustCompile(`https?://[^/\s]+/([\w.-]+)/([\w.-]+)/(?:-/)?issues/(\d+)`)
	issueQualifiedRe = regexp.MustCompile(`([\w.-]+)/([\w.-]+)#(\d+)`)
	issueBareRe      = regexp.MustCompile(`(?:^|[\s(])#(\d+)\b`)
)

// parseIssueRefs extracts linked-issue references from a PR description in
// the three supported forms: full URL, owner/repo#N, and bare #N resolved
// against the current repository. Duplicates collapse to one reference.
func parseIssueRefs(body, defaultOwner, defaultRepo string) []issueRef {
	var refs []issueRef
	seen := make(map[issueRef]bool)
	add := func(r issueRef) {
		if r.Number > 0 && !seen[r] {
			seen[r] = true
			refs = append(refs, r)
		}
	}

	for _, m := range issueURLRe.FindAllStringSubmatch(body, -1) {
		n, _ := strconv.Atoi(m[3])
		add(issueRef{Owner: m[1], Repo: m[2], Number: n})
	}
	for _, m := range issueQualifiedRe.FindAllStringSubmatch(body, -1) {
		n, _ := strconv.Atoi(m[3])
		add(issueRef{Owner: m[1], Repo: m[2], Number: n})
	}
	for _, m := range issueBareRe.FindAllStringSubmatch(body, -1) {
		n, _ := strconv.Atoi(m[1])
		add(issueRef{Owner: defaultOwner, Repo: defaultRepo, Number: n})
	}
	return refs
}
