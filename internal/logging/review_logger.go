package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReviewLogger manages logging for a single review invocation: structured
// console output via zerolog plus a verbatim transcript file holding full
// prompts and responses for later inspection. All methods are safe on a nil
// receiver so components can log unconditionally.
type ReviewLogger struct {
	reviewID string
	log      zerolog.Logger
	file     *os.File
	start    time.Time
	mu       sync.Mutex
}

// NewReviewLogger starts logging for a new review run. reviewID may be
// empty, in which case a fresh id is assigned. The transcript file lives
// under review_logs/; failure to create it degrades to console-only logging
// rather than failing the run.
func NewReviewLogger(reviewID string) *ReviewLogger {
	if reviewID == "" {
		reviewID = uuid.NewString()[:8]
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	logger := &ReviewLogger{
		reviewID: reviewID,
		log:      zerolog.New(console).With().Timestamp().Str("review_id", reviewID).Logger(),
		start:    time.Now(),
	}

	if err := os.MkdirAll("review_logs", 0o755); err == nil {
		name := fmt.Sprintf("review_%s_%s.log", reviewID, time.Now().Format("20060102_150405"))
		if f, err := os.Create(filepath.Join("review_logs", name)); err == nil {
			logger.file = f
		}
	}
	if logger.file == nil {
		logger.log.Warn().Msg("transcript file unavailable, logging to console only")
	}

	return logger
}

// ReviewID returns the id assigned to this run.
func (r *ReviewLogger) ReviewID() string {
	if r == nil {
		return ""
	}
	return r.reviewID
}

// Log writes a formatted info message to console and transcript.
func (r *ReviewLogger) Log(format string, args ...interface{}) {
	if r == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	r.log.Info().Dur("elapsed", time.Since(r.start).Round(time.Millisecond)).Msg(msg)
	r.writeTranscript(msg)
}

// LogError writes an error with the pipeline stage it occurred in.
func (r *ReviewLogger) LogError(stage string, err error) {
	if r == nil {
		return
	}
	r.log.Error().Err(err).Str("stage", stage).Msg("stage failed")
	r.writeTranscript(fmt.Sprintf("ERROR in %s: %v", stage, err))
}

// LogSection writes a visual separator into the transcript.
func (r *ReviewLogger) LogSection(title string) {
	if r == nil {
		return
	}
	sep := strings.Repeat("=", 72)
	r.log.Info().Msg(title)
	r.writeTranscript(sep + "\n= " + title + "\n" + sep)
}

// LogRequest records a full model prompt in the transcript; the console
// only sees its size.
func (r *ReviewLogger) LogRequest(stage, model, prompt string) {
	if r == nil {
		return
	}
	r.log.Info().Str("stage", stage).Str("model", model).Int("prompt_chars", len(prompt)).Msg("model request")
	r.writeTranscript(fmt.Sprintf("REQUEST [%s] model=%s\n--- PROMPT START ---\n%s\n--- PROMPT END ---", stage, model, prompt))
}

// LogResponse records a raw model response in the transcript.
func (r *ReviewLogger) LogResponse(stage, response string) {
	if r == nil {
		return
	}
	r.log.Info().Str("stage", stage).Int("response_chars", len(response)).Msg("model response")
	r.writeTranscript(fmt.Sprintf("RESPONSE [%s]\n--- RESPONSE START ---\n%s\n--- RESPONSE END ---", stage, response))
}

// Close finalizes the transcript file.
func (r *ReviewLogger) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file != nil {
		fmt.Fprintf(r.file, "review completed, total duration %v\n", time.Since(r.start).Round(time.Millisecond))
		r.file.Close()
		r.file = nil
	}
}

func (r *ReviewLogger) writeTranscript(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return
	}
	elapsed := time.Since(r.start).Round(time.Millisecond)
	fmt.Fprintf(r.file, "[%s] [+%v] %s\n", time.Now().Format("15:04:05.000"), elapsed, msg)
}
