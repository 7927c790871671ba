package github

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/go-github/v68/github"
	"golang.org/x/time/rate"

	"github.com/reviewloop/internal/hosting"
	"github.com/reviewloop/pkg/models"
)

// Client implements hosting.Provider against the GitHub REST API.
type Client struct {
	gh      *github.Client
	limiter *rate.Limiter
}

// New builds an authenticated GitHub client. The client-side limiter keeps
// bursts of inline-pass calls under GitHub's secondary rate limits; hard
// 429s are still surfaced to the retry layer.
func New(token string) *Client {
	return &Client{
		gh:      github.NewClient(nil).WithAuthToken(token),
		limiter: rate.NewLimiter(rate.Limit(5), 10),
	}
}

// Name identifies the platform.
func (c *Client) Name() string { return "github" }

// GetPullRequest fetches PR metadata.
func (c *Client) GetPullRequest(ctx context.Context, ref hosting.PullRequestRef) (*models.PullRequest, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	pr, resp, err := c.gh.PullRequests.Get(ctx, ref.Owner, ref.Repo, ref.Number)
	if err != nil {
		return nil, wrapError(resp, err)
	}
	return &models.PullRequest{
		Number:     ref.Number,
		Title:      pr.GetTitle(),
		Body:       pr.GetBody(),
		HeadSHA:    pr.GetHead().GetSHA(),
		BaseSHA:    pr.GetBase().GetSHA(),
		BaseBranch: pr.GetBase().GetRef(),
	}, nil
}

// GetDiff fetches the raw unified diff of the PR.
func (c *Client) GetDiff(ctx context.Context, ref hosting.PullRequestRef) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	diff, resp, err := c.gh.PullRequests.GetRaw(ctx, ref.Owner, ref.Repo, ref.Number,
		github.RawOptions{Type: github.Diff})
	if err != nil {
		return "", wrapError(resp, err)
	}
	return diff, nil
}

// ListCommitMessages pages through the PR's commits.
func (c *Client) ListCommitMessages(ctx context.Context, ref hosting.PullRequestRef) ([]string, error) {
	var messages []string
	opts := &github.ListOptions{PerPage: 100}
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		commits, resp, err := c.gh.PullRequests.ListCommits(ctx, ref.Owner, ref.Repo, ref.Number, opts)
		if err != nil {
			return nil, wrapError(resp, err)
		}
		for _, commit := range commits {
			messages = append(messages, commit.GetCommit().GetMessage())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return messages, nil
}

// GetIssue fetches a linked issue.
func (c *Client) GetIssue(ctx context.Context, owner, repo string, number int) (*models.Issue, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	issue, resp, err := c.gh.Issues.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, wrapError(resp, err)
	}
	return &models.Issue{
		Number: number,
		Title:  issue.GetTitle(),
		Body:   issue.GetBody(),
	}, nil
}

// GetFileContent returns the decoded content of one file at a ref.
func (c *Client) GetFileContent(ctx context.Context, ref hosting.PullRequestRef, path, sha string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	file, _, resp, err := c.gh.Repositories.GetContents(ctx, ref.Owner, ref.Repo, path,
		&github.RepositoryContentGetOptions{Ref: sha})
	if err != nil {
		return "", wrapError(resp, err)
	}
	if file == nil {
		return "", &hosting.StatusError{Code: http.StatusNotFound, Message: path + " is not a file"}
	}
	content, err := file.GetContent()
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", path, err)
	}
	return content, nil
}

// ListFileTree returns the repository tree paths at a ref.
func (c *Client) ListFileTree(ctx context.Context, ref hosting.PullRequestRef, sha string) ([]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	tree, resp, err := c.gh.Git.GetTree(ctx, ref.Owner, ref.Repo, sha, true)
	if err != nil {
		return nil, wrapError(resp, err)
	}
	paths := make([]string, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		if entry.GetType() == "blob" {
			paths = append(paths, entry.GetPath())
		}
	}
	return paths, nil
}

// CreateReview posts one review with the full comment batch. Comments
// anchor by new-file line number and side; multi-line ranges add
// start_line/start_side.
func (c *Client) CreateReview(ctx context.Context, ref hosting.PullRequestRef, headSHA, body string, comments []models.PublishedComment) error {
	draft := make([]*github.DraftReviewComment, 0, len(comments))
	for _, comment := range comments {
		dc := &github.DraftReviewComment{
			Path: github.Ptr(comment.Path),
			Body: github.Ptr(comment.Body),
			Line: github.Ptr(comment.Line),
			Side: github.Ptr(comment.Side),
		}
		if comment.StartLine > 0 {
			dc.StartLine = github.Ptr(comment.StartLine)
			dc.StartSide = github.Ptr(comment.StartSide)
		}
		draft = append(draft, dc)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, resp, err := c.gh.PullRequests.CreateReview(ctx, ref.Owner, ref.Repo, ref.Number,
		&github.PullRequestReviewRequest{
			CommitID: github.Ptr(headSHA),
			Body:     github.Ptr(body),
			Event:    github.Ptr("COMMENT"),
			Comments: draft,
		})
	return wrapError(resp, err)
}

// CreateComment posts a plain comment on the PR thread.
func (c *Client) CreateComment(ctx context.Context, ref hosting.PullRequestRef, body string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, resp, err := c.gh.Issues.CreateComment(ctx, ref.Owner, ref.Repo, ref.Number,
		&github.IssueComment{Body: github.Ptr(body)})
	return wrapError(resp, err)
}

// AddReaction acknowledges the triggering comment with an eyes reaction.
func (c *Client) AddReaction(ctx context.Context, ref hosting.PullRequestRef, commentID int64) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, resp, err := c.gh.Reactions.CreateIssueCommentReaction(ctx, ref.Owner, ref.Repo, commentID, "eyes")
	return wrapError(resp, err)
}

// wrapError converts go-github errors into StatusError so the retry layer
// can classify 429/5xx responses.
func wrapError(resp *github.Response, err error) error {
	if err == nil {
		return nil
	}
	if resp != nil && resp.Response != nil {
		return &hosting.StatusError{Code: resp.StatusCode, Message: err.Error()}
	}
	return err
}
