package hosting

import (
	"context"
	"fmt"

	"github.com/reviewloop/pkg/models"
)

// PullRequestRef identifies one pull/merge request on the hosting platform.
type PullRequestRef struct {
	Owner  string
	Repo   string
	Number int
}

func (r PullRequestRef) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}

// Provider is the code-hosting collaborator consumed by the review
// pipeline. One capability per call; implementations wrap their platform
// errors in StatusError so retry classification can see HTTP status codes.
type Provider interface {
	// GetPullRequest fetches title, description and head/base SHAs.
	GetPullRequest(ctx context.Context, ref PullRequestRef) (*models.PullRequest, error)

	// GetDiff returns the full unified diff text of the change set.
	GetDiff(ctx context.Context, ref PullRequestRef) (string, error)

	// ListCommitMessages returns the messages of all commits on the PR,
	// following pagination.
	ListCommitMessages(ctx context.Context, ref PullRequestRef) ([]string, error)

	// GetIssue fetches a linked issue's title and body.
	GetIssue(ctx context.Context, owner, repo string, number int) (*models.Issue, error)

	// GetFileContent returns the content of one file at the given ref.
	GetFileContent(ctx context.Context, ref PullRequestRef, path, sha string) (string, error)

	// ListFileTree returns repository file paths at the given ref.
	ListFileTree(ctx context.Context, ref PullRequestRef, sha string) ([]string, error)

	// CreateReview posts one review carrying the summary body and the full
	// line-anchored comment batch against the head commit.
	CreateReview(ctx context.Context, ref PullRequestRef, headSHA, body string, comments []models.PublishedComment) error

	// CreateComment posts a plain comment on the PR thread. Used as the
	// publish fallback.
	CreateComment(ctx context.Context, ref PullRequestRef, body string) error

	// AddReaction reacts to the triggering comment to acknowledge the run.
	AddReaction(ctx context.Context, ref PullRequestRef, commentID int64) error

	// Name identifies the platform for logging.
	Name() string
}

// StatusError wraps a hosting-platform API failure with its HTTP status
// code so the retry layer can classify it.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("hosting API error (HTTP %d): %s", e.Code, e.Message)
}

// HTTPStatusCode exposes the status for retry classification.
func (e *StatusError) HTTPStatusCode() int {
	return e.Code
}
