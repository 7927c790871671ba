package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/reviewloop/internal/ai/langchain"
	"github.com/reviewloop/internal/config"
	"github.com/reviewloop/internal/hosting"
	githubhost "github.com/reviewloop/internal/hosting/github"
	gitlabhost "github.com/reviewloop/internal/hosting/gitlab"
	"github.com/reviewloop/internal/logging"
	"github.com/reviewloop/internal/review"
	"github.com/reviewloop/pkg/models"
)

// ReviewCommand returns the review command.
func ReviewCommand() *cli.Command {
	return &cli.Command{
		Name:      "review",
		Usage:     "Review a pull/merge request",
		ArgsUsage: "PR_URL",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"d"},
				Usage:   "Run the full pipeline without posting anything",
			},
			&cli.StringFlag{
				Name:    "event",
				Aliases: []string{"e"},
				Usage:   "Load the triggering event from a JSON `FILE` instead of simulating one",
			},
			&cli.StringFlag{
				Name:  "trigger",
				Usage: "Override the configured trigger token",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Overall deadline for the run",
				Value: 10 * time.Minute,
			},
		},
		Action: runReview,
	}
}

func runReview(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: PR URL")
	}
	prURL := c.Args().Get(0)

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if c.Bool("dry-run") {
		cfg.DryRun = true
	}
	if trigger := c.String("trigger"); trigger != "" {
		cfg.Trigger = trigger
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	provider, ref, err := parsePullRequestURL(prURL)
	if err != nil {
		return err
	}
	if provider != "" {
		cfg.Provider = provider
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
	defer cancel()

	host, err := createHostingProvider(cfg)
	if err != nil {
		return err
	}
	model, err := langchain.New(ctx, langchain.Options{
		Backend:     cfg.AI.Backend,
		Model:       cfg.AI.Model,
		APIKey:      cfg.AI.APIKey,
		Temperature: cfg.AI.Temperature,
	})
	if err != nil {
		return fmt.Errorf("failed to create model provider: %w", err)
	}

	event, err := loadEvent(c.String("event"), ref, cfg.Trigger)
	if err != nil {
		return err
	}

	logger := logging.NewReviewLogger("")
	defer logger.Close()

	outcome, err := review.New(cfg, host, model, logger).Run(ctx, event, ref)
	if err != nil {
		return err
	}

	fmt.Printf("Review finished: %s (%d comments)\n", outcome.State, len(outcome.Comments))
	if cfg.DryRun && outcome.Summary != "" {
		fmt.Println("\n" + outcome.Summary)
	}
	return nil
}

func createHostingProvider(cfg *config.Config) (hosting.Provider, error) {
	switch cfg.Provider {
	case "github":
		return githubhost.New(cfg.GitHub.Token), nil
	case "gitlab":
		return gitlabhost.New(cfg.GitLab.URL, cfg.GitLab.Token)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

// loadEvent reads the triggering event from a JSON file, or synthesizes a
// matching comment event for local simulation when no file is given.
func loadEvent(path string, ref hosting.PullRequestRef, trigger string) (models.ReviewEvent, error) {
	if path == "" {
		return models.ReviewEvent{
			Kind:        models.EventComment,
			PullRequest: ref.Number,
			CommentBody: trigger,
			Author:      "local",
		}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return models.ReviewEvent{}, fmt.Errorf("reading event file: %w", err)
	}
	var event models.ReviewEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return models.ReviewEvent{}, fmt.Errorf("parsing event file: %w", err)
	}
	return event, nil
}

var (
	githubURLRe = regexp.MustCompile(`github\.com/([\w.-]+)/([\w.-]+)/pull/(\d+)`)
	gitlabURLRe = regexp.MustCompile(`https?://[^/\s]+/([\w.-]+)/([\w.-]+)/-/merge_requests/(\d+)`)
)

// parsePullRequestURL extracts the provider and reference from a PR/MR URL.
func parsePullRequestURL(url string) (string, hosting.PullRequestRef, error) {
	if m := githubURLRe.FindStringSubmatch(url); m != nil {
		n, _ := strconv.Atoi(m[3])
		return "github", hosting.PullRequestRef{Owner: m[1], Repo: m[2], Number: n}, nil
	}
	if m := gitlabURLRe.FindStringSubmatch(url); m != nil {
		n, _ := strconv.Atoi(m[3])
		return "gitlab", hosting.PullRequestRef{Owner: m[1], Repo: m[2], Number: n}, nil
	}
	return "", hosting.PullRequestRef{}, fmt.Errorf("unrecognized pull request URL: %s", url)
}
