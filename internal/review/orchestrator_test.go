package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewloop/internal/config"
	"github.com/reviewloop/internal/hosting"
	"github.com/reviewloop/pkg/models"
)

const twoFileDiff = `diff --git a/a.go b/a.go
--- a/a.go
+++ b/a.go
@@ -0,0 +1,2 @@
+alpha
+beta
diff --git a/b.go b/b.go
--- a/b.go
+++ b/b.go
@@ -0,0 +1,1 @@
+gamma
`

// stubHost is a scriptable hosting.Provider. Zero-value methods succeed
// with benign data; override the function fields to inject failures.
type stubHost struct {
	mu sync.Mutex

	diff            string
	createReviewErr error
	createReview    []capturedReview
	comments        []string
	reactions       []int64
	prErr           error

	fileContentErr   error
	fileContentCalls int
	treeErr          error
	treeCalls        int
	reactionErr      error
	reactionCalls    int
}

type capturedReview struct {
	headSHA  string
	body     string
	comments []models.PublishedComment
}

func (s *stubHost) GetPullRequest(ctx context.Context, ref hosting.PullRequestRef) (*models.PullRequest, error) {
	if s.prErr != nil {
		return nil, s.prErr
	}
	return &models.PullRequest{
		Number:  ref.Number,
		Title:   "Add parsing",
		Body:    "Implements parsing.",
		HeadSHA: "headsha",
	}, nil
}

func (s *stubHost) GetDiff(ctx context.Context, ref hosting.PullRequestRef) (string, error) {
	return s.diff, nil
}

func (s *stubHost) ListCommitMessages(ctx context.Context, ref hosting.PullRequestRef) ([]string, error) {
	return []string{"add parser"}, nil
}

func (s *stubHost) GetIssue(ctx context.Context, owner, repo string, number int) (*models.Issue, error) {
	return nil, &hosting.StatusError{Code: 404, Message: "no such issue"}
}

func (s *stubHost) GetFileContent(ctx context.Context, ref hosting.PullRequestRef, path, sha string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileContentCalls++
	if s.fileContentErr != nil {
		return "", s.fileContentErr
	}
	return "", &hosting.StatusError{Code: 404, Message: "no readme"}
}

func (s *stubHost) ListFileTree(ctx context.Context, ref hosting.PullRequestRef, sha string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.treeCalls++
	if s.treeErr != nil {
		return nil, s.treeErr
	}
	return []string{"a.go", "b.go"}, nil
}

func (s *stubHost) CreateReview(ctx context.Context, ref hosting.PullRequestRef, headSHA, body string, comments []models.PublishedComment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createReviewErr != nil {
		return s.createReviewErr
	}
	s.createReview = append(s.createReview, capturedReview{headSHA, body, comments})
	return nil
}

func (s *stubHost) CreateComment(ctx context.Context, ref hosting.PullRequestRef, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments = append(s.comments, body)
	return nil
}

func (s *stubHost) AddReaction(ctx context.Context, ref hosting.PullRequestRef, commentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reactionCalls++
	if s.reactionErr != nil {
		return s.reactionErr
	}
	s.reactions = append(s.reactions, commentID)
	return nil
}

func (s *stubHost) Name() string { return "stub" }

// stubModel routes on prompt content: the goal, global and per-file inline
// prompts each get a scripted response. Must be safe for concurrent calls.
type stubModel struct {
	goal     string
	global   string
	inline   map[string]string // file path -> raw response
	inlineMu sync.Mutex
	calls    map[string]int
}

func (m *stubModel) Complete(ctx context.Context, prompt string) (string, error) {
	m.inlineMu.Lock()
	defer m.inlineMu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}

	switch {
	case strings.Contains(prompt, "preparing to review"):
		m.calls["goal"]++
		return m.goal, nil
	case strings.Contains(prompt, "reviewing an entire change set"):
		m.calls["global"]++
		return m.global, nil
	default:
		for path, response := range m.inline {
			if strings.Contains(prompt, "File: "+path+"\n") {
				m.calls["inline:"+path]++
				if response == "FAIL" {
					return "", errors.New("invalid request body")
				}
				return response, nil
			}
		}
		return "", fmt.Errorf("unexpected prompt: %.80s", prompt)
	}
}

func (m *stubModel) Name() string { return "stub-model" }

func testConfig() *config.Config {
	cfg := &config.Config{
		Provider: "github",
		Trigger:  "/review",
		Persona:  "a pragmatic senior engineer",
	}
	cfg.Limits.Concurrency = 2
	cfg.Retry.MaxAttempts = 1
	cfg.Retry.BaseDelayMS = 1
	cfg.Retry.MaxDelayMS = 1
	return cfg
}

func triggerEvent() models.ReviewEvent {
	return models.ReviewEvent{
		Kind:        models.EventComment,
		PullRequest: 7,
		CommentID:   99,
		CommentBody: "please /review this",
		Author:      "alice",
	}
}

func testRef() hosting.PullRequestRef {
	return hosting.PullRequestRef{Owner: "me", Repo: "app", Number: 7}
}

func defaultModel() *stubModel {
	return &stubModel{
		goal:   `{"goal": "tighten parsing"}`,
		global: `{"summary": "Adds two small files.", "findings": []}`,
		inline: map[string]string{
			"a.go": `{"reviews": [{"lineNumber": 2, "endLineNumber": 3, "comment": "validate input", "priority": "high"}]}`,
			"b.go": `{"reviews": [{"lineNumber": 2, "comment": "unused value", "priority": "low"}]}`,
		},
	}
}

func TestRunSkipsWithoutTrigger(t *testing.T) {
	host := &stubHost{diff: twoFileDiff}
	o := New(testConfig(), host, defaultModel(), nil)

	cases := []models.ReviewEvent{
		{Kind: models.EventComment, PullRequest: 7, CommentBody: "looks good to me"},
		{Kind: models.EventPush, PullRequest: 7, CommentBody: "/review"},
		{Kind: models.EventComment, PullRequest: 0, CommentBody: "/review"},
	}
	for _, event := range cases {
		outcome, err := o.Run(context.Background(), event, testRef())
		require.NoError(t, err)
		assert.Equal(t, StateSkipped, outcome.State)
	}
	assert.Empty(t, host.createReview, "nothing may be published on a skip")
	assert.Empty(t, host.reactions)
}

func TestRunPublishesResolvedComments(t *testing.T) {
	host := &stubHost{diff: twoFileDiff}
	model := defaultModel()
	o := New(testConfig(), host, model, nil)

	outcome, err := o.Run(context.Background(), triggerEvent(), testRef())
	require.NoError(t, err)
	assert.Equal(t, StatePublished, outcome.State)

	require.Len(t, host.createReview, 1)
	published := host.createReview[0]
	assert.Equal(t, "headsha", published.headSHA)
	assert.Contains(t, published.body, "## Automated review")
	assert.Contains(t, published.body, "tighten parsing")
	assert.Contains(t, published.body, "Adds two small files.")

	require.Len(t, published.comments, 2)

	first := published.comments[0]
	assert.Equal(t, "a.go", first.Path)
	assert.Equal(t, 1, first.StartLine)
	assert.Equal(t, models.SideRight, first.StartSide)
	assert.Equal(t, 2, first.Line)
	assert.Equal(t, models.SideRight, first.Side)
	assert.Equal(t, "🔴 validate input", first.Body)

	second := published.comments[1]
	assert.Equal(t, "b.go", second.Path)
	assert.Equal(t, 1, second.Line)
	assert.Zero(t, second.StartLine)
	assert.Equal(t, "🟢 unused value", second.Body)

	assert.Equal(t, []int64{99}, host.reactions, "triggering comment gets acknowledged")
	assert.Equal(t, 1, model.calls["goal"])
	assert.Equal(t, 1, model.calls["global"])
}

func TestRunFallsBackToPlainComment(t *testing.T) {
	host := &stubHost{
		diff:            twoFileDiff,
		createReviewErr: &hosting.StatusError{Code: 422, Message: "position rejected"},
	}
	o := New(testConfig(), host, defaultModel(), nil)

	outcome, err := o.Run(context.Background(), triggerEvent(), testRef())
	require.NoError(t, err, "publish failure never surfaces as a run error")
	assert.Equal(t, StateFallback, outcome.State)

	require.Len(t, host.comments, 1, "fallback fires exactly once")
	assert.Equal(t, outcome.Summary, host.comments[0], "fallback reuses the review body verbatim")
}

func TestRunOneFailingFileDoesNotAbortSiblings(t *testing.T) {
	host := &stubHost{diff: twoFileDiff}
	model := defaultModel()
	model.inline["a.go"] = "FAIL"
	o := New(testConfig(), host, model, nil)

	outcome, err := o.Run(context.Background(), triggerEvent(), testRef())
	require.NoError(t, err)
	assert.Equal(t, StatePublished, outcome.State)

	require.Len(t, outcome.Comments, 1, "only the healthy file contributes")
	assert.Equal(t, "b.go", outcome.Comments[0].Path)
}

func TestRunEmptyDiffIsAnError(t *testing.T) {
	host := &stubHost{diff: ""}
	o := New(testConfig(), host, defaultModel(), nil)

	_, err := o.Run(context.Background(), triggerEvent(), testRef())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty diff")
}

func TestRunPullRequestFetchFailureIsFatal(t *testing.T) {
	host := &stubHost{
		diff:  twoFileDiff,
		prErr: &hosting.StatusError{Code: 403, Message: "forbidden"},
	}
	o := New(testConfig(), host, defaultModel(), nil)

	_, err := o.Run(context.Background(), triggerEvent(), testRef())
	require.Error(t, err)

	var se *hosting.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 403, se.Code)
}

func TestRunDryRunPublishesNothing(t *testing.T) {
	host := &stubHost{diff: twoFileDiff}
	cfg := testConfig()
	cfg.DryRun = true
	o := New(cfg, host, defaultModel(), nil)

	outcome, err := o.Run(context.Background(), triggerEvent(), testRef())
	require.NoError(t, err)
	assert.Equal(t, StateDryRun, outcome.State)
	assert.Len(t, outcome.Comments, 2)
	assert.Empty(t, host.createReview)
	assert.Empty(t, host.comments)
}

func TestRunSkipGlobalPass(t *testing.T) {
	host := &stubHost{diff: twoFileDiff}
	model := defaultModel()
	cfg := testConfig()
	cfg.SkipGlobalPass = true
	o := New(cfg, host, model, nil)

	outcome, err := o.Run(context.Background(), triggerEvent(), testRef())
	require.NoError(t, err)
	assert.Equal(t, StatePublished, outcome.State)
	assert.Zero(t, model.calls["global"])
	assert.NotContains(t, outcome.Summary, "Adds two small files.")
}

func TestRunRetriesContextFetchesAndReaction(t *testing.T) {
	host := &stubHost{
		diff:           twoFileDiff,
		fileContentErr: &hosting.StatusError{Code: 503, Message: "flaky"},
		treeErr:        &hosting.StatusError{Code: 503, Message: "flaky"},
		reactionErr:    &hosting.StatusError{Code: 503, Message: "flaky"},
	}
	cfg := testConfig()
	cfg.Retry.MaxAttempts = 3
	o := New(cfg, host, defaultModel(), nil)

	outcome, err := o.Run(context.Background(), triggerEvent(), testRef())
	require.NoError(t, err, "exhausted context fetches degrade, never fail the run")
	assert.Equal(t, StatePublished, outcome.State)

	assert.Equal(t, 3, host.reactionCalls, "reaction retries like any platform call")
	assert.Equal(t, 3, host.fileContentCalls, "readme fetch retries like any platform call")
	assert.Equal(t, 3, host.treeCalls, "tree fetch retries like any platform call")
}

func TestRunUnanchorableGlobalFindingsSurfaceInBody(t *testing.T) {
	host := &stubHost{diff: twoFileDiff}
	model := defaultModel()
	model.global = `{"summary": "ok", "findings": [
		{"file": "deleted.go", "lineNumber": 2, "comment": "stale reference", "priority": "high"},
		{"comment": "naming drifts between packages", "priority": "low"}
	]}`
	model.inline = map[string]string{
		"a.go": `{"reviews": []}`,
		"b.go": `{"reviews": []}`,
	}
	o := New(testConfig(), host, model, nil)

	outcome, err := o.Run(context.Background(), triggerEvent(), testRef())
	require.NoError(t, err)
	assert.Empty(t, outcome.Comments)

	assert.Contains(t, outcome.Summary, "Cross-file observations:")
	assert.Contains(t, outcome.Summary, "🔴 `deleted.go`: stale reference")
	assert.Contains(t, outcome.Summary, "🟢 naming drifts between packages")
}

func TestRunGlobalFindingsAnchorThroughPatches(t *testing.T) {
	host := &stubHost{diff: twoFileDiff}
	model := defaultModel()
	model.global = `{"summary": "ok", "findings": [
		{"file": "b.go", "lineNumber": 2, "comment": "cross-file drift", "priority": "medium"}
	]}`
	model.inline = map[string]string{
		"a.go": `{"reviews": []}`,
		"b.go": `{"reviews": []}`,
	}
	o := New(testConfig(), host, model, nil)

	outcome, err := o.Run(context.Background(), triggerEvent(), testRef())
	require.NoError(t, err)
	require.Len(t, outcome.Comments, 1)
	assert.Equal(t, "b.go", outcome.Comments[0].Path)
	assert.Equal(t, 1, outcome.Comments[0].Line)
	assert.Equal(t, "🟡 cross-file drift", outcome.Comments[0].Body)
}
