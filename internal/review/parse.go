package review

import (
	"strings"

	"github.com/reviewloop/internal/llm"
	"github.com/reviewloop/pkg/models"
)

// findingPayload is the wire shape of one model finding, shared by the
// inline and global response documents.
type findingPayload struct {
	File          string `json:"file"`
	LineNumber    int    `json:"lineNumber"`
	EndLineNumber int    `json:"endLineNumber"`
	Comment       string `json:"comment"`
	Priority      string `json:"priority"`
	Category      string `json:"category"`
}

func (f findingPayload) toFinding() models.ReviewFinding {
	return models.ReviewFinding{
		File:          f.File,
		LineNumber:    f.LineNumber,
		EndLineNumber: f.EndLineNumber,
		Comment:       strings.TrimSpace(f.Comment),
		Priority:      models.NormalizePriority(f.Priority),
		Category:      f.Category,
	}
}

// parseInlineResponse parses the per-file response shape:
// {"reviews": [...]}. Findings with empty comments are dropped.
func parseInlineResponse(raw string) ([]models.ReviewFinding, error) {
	var payload struct {
		Reviews []findingPayload `json:"reviews"`
	}
	if err := llm.DecodeResponse(raw, &payload); err != nil {
		return nil, err
	}

	findings := make([]models.ReviewFinding, 0, len(payload.Reviews))
	for _, item := range payload.Reviews {
		finding := item.toFinding()
		if finding.Comment == "" {
			continue
		}
		findings = append(findings, finding)
	}
	return findings, nil
}

// parseGlobalResponse parses the global-pass shape:
// {"summary": "...", "findings": [...]}, accepting the legacy
// crossFileFindings key when findings is absent.
func parseGlobalResponse(raw string) (string, []models.ReviewFinding, error) {
	var payload struct {
		Summary           string           `json:"summary"`
		Findings          []findingPayload `json:"findings"`
		CrossFileFindings []findingPayload `json:"crossFileFindings"`
	}
	if err := llm.DecodeResponse(raw, &payload); err != nil {
		return "", nil, err
	}

	items := payload.Findings
	if len(items) == 0 {
		items = payload.CrossFileFindings
	}

	findings := make([]models.ReviewFinding, 0, len(items))
	for _, item := range items {
		finding := item.toFinding()
		if finding.Comment == "" {
			continue
		}
		findings = append(findings, finding)
	}
	return strings.TrimSpace(payload.Summary), findings, nil
}

// parseGoalResponse parses the goal-statement shape:
// {"goal": "...", "context": "..."}. The context field folds into the goal
// when present.
func parseGoalResponse(raw string) (string, error) {
	var payload struct {
		Goal    string `json:"goal"`
		Context string `json:"context"`
	}
	if err := llm.DecodeResponse(raw, &payload); err != nil {
		return "", err
	}

	goal := strings.TrimSpace(payload.Goal)
	if extra := strings.TrimSpace(payload.Context); extra != "" && goal != "" {
		goal += " (" + extra + ")"
	}
	return goal, nil
}
