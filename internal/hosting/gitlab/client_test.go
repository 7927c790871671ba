package gitlab

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewloop/internal/hosting"
	"github.com/reviewloop/pkg/models"
)

const mrJSON = `{
	"iid": 7,
	"title": "Add parser",
	"description": "",
	"sha": "headsha",
	"target_branch": "main",
	"diff_refs": {"base_sha": "base", "start_sha": "start", "head_sha": "headsha"}
}`

// fakeGitLab records the order of write calls against the MR endpoints.
type fakeGitLab struct {
	mu            sync.Mutex
	calls         []string
	discussionErr int // HTTP status to fail discussions with; zero means succeed
}

func (f *fakeGitLab) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.EscapedPath()
		switch {
		case r.Method == http.MethodGet && strings.Contains(path, "/merge_requests/7"):
			fmt.Fprint(w, mrJSON)
		case r.Method == http.MethodPost && strings.HasSuffix(path, "/discussions"):
			f.mu.Lock()
			f.calls = append(f.calls, "discussion")
			f.mu.Unlock()
			if f.discussionErr != 0 {
				w.WriteHeader(f.discussionErr)
				fmt.Fprint(w, `{"message": "line_code invalid"}`)
				return
			}
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"id": "d1", "notes": []}`)
		case r.Method == http.MethodPost && strings.HasSuffix(path, "/notes"):
			f.mu.Lock()
			f.calls = append(f.calls, "note")
			f.mu.Unlock()
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"id": 1, "body": "summary"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message": "404 Not Found"}`)
		}
	}
}

func newTestClient(t *testing.T, fake *fakeGitLab) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	client, err := New(srv.URL, "token")
	require.NoError(t, err)
	return client
}

func testComments() []models.PublishedComment {
	return []models.PublishedComment{
		{Path: "a.go", Body: "🔴 validate input", Line: 2, Side: models.SideRight},
		{Path: "b.go", Body: "🟢 unused value", Line: 1, Side: models.SideRight},
	}
}

func TestCreateReviewPostsSummaryNoteLast(t *testing.T) {
	fake := &fakeGitLab{}
	client := newTestClient(t, fake)
	ref := hosting.PullRequestRef{Owner: "me", Repo: "app", Number: 7}

	err := client.CreateReview(context.Background(), ref, "headsha", "summary body", testComments())
	require.NoError(t, err)

	assert.Equal(t, []string{"discussion", "discussion", "note"}, fake.calls,
		"the summary note must follow every discussion")
}

func TestCreateReviewFailedDiscussionSkipsSummaryNote(t *testing.T) {
	// The caller's fallback posts the summary after a failed publish; posting
	// the note before the discussions would duplicate it.
	fake := &fakeGitLab{discussionErr: http.StatusBadRequest}
	client := newTestClient(t, fake)
	ref := hosting.PullRequestRef{Owner: "me", Repo: "app", Number: 7}

	err := client.CreateReview(context.Background(), ref, "headsha", "summary body", testComments())
	require.Error(t, err)

	var se *hosting.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Code)

	assert.Equal(t, []string{"discussion"}, fake.calls,
		"no summary note may be posted once a discussion failed")
}
