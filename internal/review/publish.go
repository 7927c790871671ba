package review

import (
	"context"

	"github.com/reviewloop/internal/hosting"
	"github.com/reviewloop/internal/retry"
	"github.com/reviewloop/pkg/models"
)

// publish posts one review with the full comment batch. When that fails
// after its retries, the summary body is posted as a plain comment on the
// thread so the author still receives feedback. The fallback fires at most
// once and never raises an error to the caller; a run that reached this
// point only goes silent when the platform itself is unreachable.
func (o *Orchestrator) publish(ctx context.Context, ref hosting.PullRequestRef, headSHA, body string, comments []models.PublishedComment) State {
	err := retry.Do(ctx, o.cfg.HostRetry(), o.logger, func() error {
		return o.host.CreateReview(ctx, ref, headSHA, body, comments)
	})
	if err == nil {
		o.logger.Log("published review with %d comments on %s", len(comments), ref)
		return StatePublished
	}
	o.logger.LogError("publish", err)

	fbErr := retry.Do(ctx, o.cfg.HostRetry(), o.logger, func() error {
		return o.host.CreateComment(ctx, ref, body)
	})
	if fbErr != nil {
		o.logger.LogError("publish fallback", fbErr)
	} else {
		o.logger.Log("posted summary as fallback comment on %s", ref)
	}
	return StateFallback
}
