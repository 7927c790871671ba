package gitlab

import (
	"context"
	"fmt"
	"strings"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/reviewloop/internal/hosting"
	"github.com/reviewloop/pkg/models"
)

// Client implements hosting.Provider against the GitLab API. Merge request
// IIDs play the role of pull request numbers.
type Client struct {
	gl *gitlab.Client
}

// New builds an authenticated GitLab client. baseURL may be empty for
// gitlab.com.
func New(baseURL, token string) (*Client, error) {
	opts := []gitlab.ClientOptionFunc{}
	if baseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(baseURL))
	}
	gl, err := gitlab.NewClient(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing gitlab client: %w", err)
	}
	return &Client{gl: gl}, nil
}

// Name identifies the platform.
func (c *Client) Name() string { return "gitlab" }

func pid(ref hosting.PullRequestRef) string {
	return ref.Owner + "/" + ref.Repo
}

// GetPullRequest fetches MR metadata.
func (c *Client) GetPullRequest(ctx context.Context, ref hosting.PullRequestRef) (*models.PullRequest, error) {
	mr, resp, err := c.gl.MergeRequests.GetMergeRequest(pid(ref), ref.Number, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, wrapError(resp, err)
	}
	pr := &models.PullRequest{
		Number:     ref.Number,
		Title:      mr.Title,
		Body:       mr.Description,
		HeadSHA:    mr.SHA,
		BaseBranch: mr.TargetBranch,
	}
	if mr.DiffRefs != (gitlab.MergeRequest{}.DiffRefs) {
		pr.HeadSHA = mr.DiffRefs.HeadSha
		pr.BaseSHA = mr.DiffRefs.BaseSha
	}
	return pr, nil
}

// GetDiff reassembles a unified diff from the MR's per-file diffs.
func (c *Client) GetDiff(ctx context.Context, ref hosting.PullRequestRef) (string, error) {
	var b strings.Builder
	opts := &gitlab.ListMergeRequestDiffsOptions{}
	opts.PerPage = 100
	for {
		diffs, resp, err := c.gl.MergeRequests.ListMergeRequestDiffs(pid(ref), ref.Number, opts, gitlab.WithContext(ctx))
		if err != nil {
			return "", wrapError(resp, err)
		}
		for _, d := range diffs {
			fmt.Fprintf(&b, "diff --git a/%s b/%s\n", d.OldPath, d.NewPath)
			fmt.Fprintf(&b, "--- a/%s\n+++ b/%s\n", d.OldPath, d.NewPath)
			b.WriteString(d.Diff)
			if !strings.HasSuffix(d.Diff, "\n") {
				b.WriteByte('\n')
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return b.String(), nil
}

// ListCommitMessages pages through the MR's commits.
func (c *Client) ListCommitMessages(ctx context.Context, ref hosting.PullRequestRef) ([]string, error) {
	var messages []string
	opts := &gitlab.GetMergeRequestCommitsOptions{}
	opts.PerPage = 100
	for {
		commits, resp, err := c.gl.MergeRequests.GetMergeRequestCommits(pid(ref), ref.Number, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, wrapError(resp, err)
		}
		for _, commit := range commits {
			messages = append(messages, commit.Message)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return messages, nil
}

// GetIssue fetches a linked issue by project and IID.
func (c *Client) GetIssue(ctx context.Context, owner, repo string, number int) (*models.Issue, error) {
	issue, resp, err := c.gl.Issues.GetIssue(owner+"/"+repo, number, gitlab.WithContext(ctx))
	if err != nil {
		return nil, wrapError(resp, err)
	}
	return &models.Issue{Number: number, Title: issue.Title, Body: issue.Description}, nil
}

// GetFileContent returns the raw content of one file at a ref.
func (c *Client) GetFileContent(ctx context.Context, ref hosting.PullRequestRef, path, sha string) (string, error) {
	raw, resp, err := c.gl.RepositoryFiles.GetRawFile(pid(ref), path,
		&gitlab.GetRawFileOptions{Ref: gitlab.Ptr(sha)}, gitlab.WithContext(ctx))
	if err != nil {
		return "", wrapError(resp, err)
	}
	return string(raw), nil
}

// ListFileTree returns the repository tree paths at a ref.
func (c *Client) ListFileTree(ctx context.Context, ref hosting.PullRequestRef, sha string) ([]string, error) {
	var paths []string
	opts := &gitlab.ListTreeOptions{
		Ref:       gitlab.Ptr(sha),
		Recursive: gitlab.Ptr(true),
	}
	opts.PerPage = 100
	for {
		nodes, resp, err := c.gl.Repositories.ListTree(pid(ref), opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, wrapError(resp, err)
		}
		for _, node := range nodes {
			if node.Type == "blob" {
				paths = append(paths, node.Path)
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return paths, nil
}

// CreateReview posts each comment as a positioned discussion on the new
// file, then the summary as an MR note. The note goes last: when a
// discussion fails mid-batch the caller's fallback posts the summary
// instead, and posting it here first would leave the author with two
// copies. GitLab positions carry a single new_line, so multi-line ranges
// anchor at their end line.
func (c *Client) CreateReview(ctx context.Context, ref hosting.PullRequestRef, headSHA, body string, comments []models.PublishedComment) error {
	mr, resp, err := c.gl.MergeRequests.GetMergeRequest(pid(ref), ref.Number, nil, gitlab.WithContext(ctx))
	if err != nil {
		return wrapError(resp, err)
	}
	if mr.DiffRefs == (gitlab.MergeRequest{}.DiffRefs) {
		return &hosting.StatusError{Code: 422, Message: "merge request has no diff refs"}
	}

	for _, comment := range comments {
		opts := &gitlab.CreateMergeRequestDiscussionOptions{
			Body: gitlab.Ptr(comment.Body),
			Position: &gitlab.PositionOptions{
				BaseSHA:      gitlab.Ptr(mr.DiffRefs.BaseSha),
				StartSHA:     gitlab.Ptr(mr.DiffRefs.StartSha),
				HeadSHA:      gitlab.Ptr(mr.DiffRefs.HeadSha),
				NewPath:      gitlab.Ptr(comment.Path),
				OldPath:      gitlab.Ptr(comment.Path),
				PositionType: gitlab.Ptr("text"),
				NewLine:      gitlab.Ptr(comment.Line),
			},
		}
		if _, resp, err := c.gl.Discussions.CreateMergeRequestDiscussion(pid(ref), ref.Number, opts, gitlab.WithContext(ctx)); err != nil {
			return wrapError(resp, err)
		}
	}

	_, resp, err = c.gl.Notes.CreateMergeRequestNote(pid(ref), ref.Number,
		&gitlab.CreateMergeRequestNoteOptions{Body: gitlab.Ptr(body)}, gitlab.WithContext(ctx))
	return wrapError(resp, err)
}

// CreateComment posts a plain note on the MR thread.
func (c *Client) CreateComment(ctx context.Context, ref hosting.PullRequestRef, body string) error {
	_, resp, err := c.gl.Notes.CreateMergeRequestNote(pid(ref), ref.Number,
		&gitlab.CreateMergeRequestNoteOptions{Body: gitlab.Ptr(body)}, gitlab.WithContext(ctx))
	return wrapError(resp, err)
}

// AddReaction acknowledges the triggering note with an award emoji.
func (c *Client) AddReaction(ctx context.Context, ref hosting.PullRequestRef, commentID int64) error {
	_, resp, err := c.gl.AwardEmoji.CreateMergeRequestAwardEmojiOnNote(pid(ref), ref.Number, int(commentID),
		&gitlab.CreateAwardEmojiOptions{Name: "eyes"}, gitlab.WithContext(ctx))
	return wrapError(resp, err)
}

// wrapError converts client-go errors into StatusError so the retry layer
// can classify 429/5xx responses.
func wrapError(resp *gitlab.Response, err error) error {
	if err == nil {
		return nil
	}
	if resp != nil && resp.Response != nil {
		return &hosting.StatusError{Code: resp.StatusCode, Message: err.Error()}
	}
	return err
}
