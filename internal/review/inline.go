package review

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/reviewloop/internal/diff"
	"github.com/reviewloop/pkg/models"
)

// fileResult pairs one file's numbered patch with whatever findings its
// inline review produced. A failed or unparseable review leaves Findings
// empty; the patch is kept so global findings can still anchor to the file.
type fileResult struct {
	Path     string
	Patch    *diff.NumberedPatch
	Findings []models.ReviewFinding
}

// globalPass sends the flattened cross-file diff to the model and parses a
// summary plus cross-file findings. Skippable by configuration; any failure
// degrades to an empty summary and the pipeline continues.
func (o *Orchestrator) globalPass(ctx context.Context, pr *models.PullRequest, goal string, files []*models.DiffFile) (string, []models.ReviewFinding) {
	if o.cfg.SkipGlobalPass {
		return "", nil
	}

	flat := diff.FlattenDiff(files, diff.FlattenLimits{
		NumberingLimits: o.numberingLimits(),
		MaxTotalLines:   o.cfg.Limits.GlobalDiffLines,
	})

	raw, err := o.completeWithRetry(ctx, "global", o.prompt.GlobalPrompt(pr, goal, flat))
	if err != nil {
		o.logger.Log("global pass unavailable (ignored): %v", err)
		return "", nil
	}
	summary, findings, err := parseGlobalResponse(raw)
	if err != nil {
		o.logger.Log("global response unparseable (ignored): %v", err)
		return "", nil
	}
	o.logger.Log("global pass: %d cross-file findings", len(findings))
	return summary, findings
}

// inlinePass reviews every filtered file concurrently under the configured
// concurrency cap. Each task owns exactly results[i]; nothing is written
// concurrently, and the returned slice preserves original file order so
// aggregation stays deterministic. One file's exhausted retries or parse
// failure yields zero findings for that file only and never aborts
// siblings.
func (o *Orchestrator) inlinePass(ctx context.Context, files []*models.DiffFile, goal, summary string, globalFindings []models.ReviewFinding) []fileResult {
	results := make([]fileResult, len(files))
	limits := o.numberingLimits()

	sem := semaphore.NewWeighted(int64(o.cfg.Limits.Concurrency))
	g, gctx := errgroup.WithContext(ctx)

	for i, file := range files {
		i, file := i, file
		patch := diff.BuildNumberedPatch(file, limits)
		results[i] = fileResult{Path: file.Path, Patch: patch}

		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return nil
			}
			defer sem.Release(1)

			raw, err := o.completeWithRetry(gctx, "inline:"+file.Path,
				o.prompt.InlinePrompt(patch, goal, summary, globalFindings))
			if err != nil {
				o.logger.Log("inline review of %s failed (ignored): %v", file.Path, err)
				return nil
			}
			findings, err := parseInlineResponse(raw)
			if err != nil {
				o.logger.Log("inline response for %s unparseable (ignored): %v", file.Path, err)
				return nil
			}
			results[i].Findings = findings
			return nil
		})
	}

	// Tasks never return errors; Wait only synchronizes completion.
	_ = g.Wait()
	return results
}

func (o *Orchestrator) numberingLimits() diff.NumberingLimits {
	return diff.NumberingLimits{
		MaxHunksPerFile: o.cfg.Limits.MaxHunksPerFile,
		MaxLinesPerHunk: o.cfg.Limits.MaxLinesPerHunk,
	}
}
