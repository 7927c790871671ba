package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/reviewloop/internal/retry"
)

// Config is the immutable configuration for one review run. It is
// constructed once at startup and passed by parameter into every component;
// nothing reads the environment after load.
type Config struct {
	Provider string `koanf:"provider"` // "github" or "gitlab"
	Trigger  string `koanf:"trigger"`  // token a PR comment must contain
	Persona  string `koanf:"persona"`  // review voice embedded in prompts

	DryRun         bool `koanf:"dry_run"`
	SkipGlobalPass bool `koanf:"skip_global_pass"`

	Filters struct {
		Include  []string `koanf:"include"`
		Exclude  []string `koanf:"exclude"`
		MaxFiles int      `koanf:"max_files"`
	} `koanf:"filters"`

	Limits struct {
		MaxHunksPerFile int `koanf:"max_hunks_per_file"`
		MaxLinesPerHunk int `koanf:"max_lines_per_hunk"`
		GlobalDiffLines int `koanf:"global_diff_lines"`
		MaxComments     int `koanf:"max_comments"`
		Concurrency     int `koanf:"concurrency"`
	} `koanf:"limits"`

	Retry struct {
		MaxAttempts int `koanf:"max_attempts"`
		BaseDelayMS int `koanf:"base_delay_ms"`
		MaxDelayMS  int `koanf:"max_delay_ms"`
	} `koanf:"retry"`

	GitHub struct {
		Token string `koanf:"token"`
	} `koanf:"github"`

	GitLab struct {
		URL   string `koanf:"url"`
		Token string `koanf:"token"`
	} `koanf:"gitlab"`

	AI struct {
		Backend     string  `koanf:"backend"`
		Model       string  `koanf:"model"`
		APIKey      string  `koanf:"api_key"`
		Temperature float64 `koanf:"temperature"`
	} `koanf:"ai"`
}

const envPrefix = "REVIEWLOOP_"

// envKeyAliases maps environment keys whose leaf names themselves contain
// underscores; the generic underscore-to-dot rewrite would split them.
var envKeyAliases = map[string]string{
	"dry_run":                   "dry_run",
	"skip_global_pass":          "skip_global_pass",
	"ai_api_key":                "ai.api_key",
	"filters_max_files":         "filters.max_files",
	"limits_max_hunks_per_file": "limits.max_hunks_per_file",
	"limits_max_lines_per_hunk": "limits.max_lines_per_hunk",
	"limits_global_diff_lines":  "limits.global_diff_lines",
	"limits_max_comments":       "limits.max_comments",
	"retry_max_attempts":        "retry.max_attempts",
	"retry_base_delay_ms":       "retry.base_delay_ms",
	"retry_max_delay_ms":        "retry.max_delay_ms",
}

// Load reads configuration in order of precedence: defaults, an optional
// TOML file, then REVIEWLOOP_ environment variables (REVIEWLOOP_AI_API_KEY
// maps to ai.api_key).
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	k.Load(confmap.Provider(map[string]interface{}{
		"provider":                  "github",
		"trigger":                   "/review",
		"persona":                   "a pragmatic senior engineer",
		"filters.max_files":         50,
		"limits.max_hunks_per_file": 20,
		"limits.max_lines_per_hunk": 200,
		"limits.global_diff_lines":  1500,
		"limits.max_comments":       30,
		"limits.concurrency":        4,
		"retry.max_attempts":        4,
		"retry.base_delay_ms":       1000,
		"retry.max_delay_ms":        30000,
		"ai.backend":                "googleai",
		"ai.model":                  "gemini-2.5-flash",
		"ai.temperature":            0.2,
	}, "."), nil)

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", configPath, err)
		}
	} else {
		for _, path := range []string{"./reviewloop.toml", "$HOME/.reviewloop.toml"} {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		if mapped, ok := envKeyAliases[s]; ok {
			return mapped
		}
		return strings.Replace(s, "_", ".", -1)
	}), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return &cfg, nil
}

// Validate is the pre-flight check: a missing required secret aborts the
// run before any network call is made.
func (c *Config) Validate() error {
	switch c.Provider {
	case "github":
		if c.GitHub.Token == "" {
			return fmt.Errorf("github token is required (REVIEWLOOP_GITHUB_TOKEN)")
		}
	case "gitlab":
		if c.GitLab.Token == "" {
			return fmt.Errorf("gitlab token is required (REVIEWLOOP_GITLAB_TOKEN)")
		}
	default:
		return fmt.Errorf("unsupported provider: %q", c.Provider)
	}

	if c.AI.APIKey == "" {
		return fmt.Errorf("model api key is required (REVIEWLOOP_AI_API_KEY)")
	}
	if c.Trigger == "" {
		return fmt.Errorf("trigger token must not be empty")
	}
	if c.Limits.Concurrency < 1 {
		return fmt.Errorf("limits.concurrency must be at least 1")
	}
	return nil
}

// HostRetry returns the retry policy for hosting-platform calls.
func (c *Config) HostRetry() retry.Config {
	cfg := retry.DefaultConfig()
	c.applyRetry(&cfg)
	return cfg
}

// ModelRetry returns the retry policy for model calls.
func (c *Config) ModelRetry() retry.Config {
	cfg := retry.LLMConfig()
	c.applyRetry(&cfg)
	return cfg
}

func (c *Config) applyRetry(cfg *retry.Config) {
	if c.Retry.MaxAttempts > 0 {
		cfg.MaxAttempts = c.Retry.MaxAttempts
	}
	if c.Retry.BaseDelayMS > 0 {
		cfg.BaseDelay = time.Duration(c.Retry.BaseDelayMS) * time.Millisecond
	}
	if c.Retry.MaxDelayMS > 0 {
		cfg.MaxDelay = time.Duration(c.Retry.MaxDelayMS) * time.Millisecond
	}
}

// Init writes a commented sample configuration file.
func Init(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists at %s", path)
	}

	sample := `# reviewloop configuration

provider = "github"
trigger = "/review"
persona = "a pragmatic senior engineer"

[filters]
include = []
exclude = ["vendor/*", "*.lock"]
max_files = 50

[limits]
max_hunks_per_file = 20
max_lines_per_hunk = 200
global_diff_lines = 1500
max_comments = 30
concurrency = 4

[github]
token = "your-github-token"

[ai]
backend = "googleai"
model = "gemini-2.5-flash"
api_key = "your-api-key"
temperature = 0.2
`
	return os.WriteFile(path, []byte(sample), 0o644)
}
