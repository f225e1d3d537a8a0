package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kerntest/tester/types"
)

// Summary is the machine-readable record of a run.
type Summary struct {
	RunID     string        `yaml:"run_id"`
	Mode      types.Mode    `yaml:"mode"`
	Output    string        `yaml:"output"`
	Status    string        `yaml:"status"`
	StartTime time.Time     `yaml:"start_time"`
	Duration  string        `yaml:"duration"`
	Total     int           `yaml:"total"`
	Passed    int           `yaml:"passed"`
	Failed    int           `yaml:"failed"`
	Cases     []CaseSummary `yaml:"cases"`
}

type CaseSummary struct {
	Index    int    `yaml:"index"`
	Status   string `yaml:"status"`
	Duration string `yaml:"duration"`
	ExitCode int    `yaml:"exit_code"`
	Lines    int    `yaml:"lines"`
	TimedOut bool   `yaml:"timed_out,omitempty"`
	Marker   string `yaml:"marker,omitempty"`
	Detail   string `yaml:"detail,omitempty"`
}

// NewSummary converts a run result into its summary.
func NewSummary(result *types.RunResult) *Summary {
	s := &Summary{
		RunID:     result.RunID,
		Mode:      result.Mode,
		Output:    result.Output,
		Status:    string(result.Status),
		StartTime: result.Stats.StartTime,
		Duration:  result.Duration.String(),
		Total:     result.Stats.Total,
		Passed:    result.Stats.Passed,
		Failed:    result.Stats.Failed,
		Cases:     make([]CaseSummary, 0, len(result.Cases)),
	}
	for _, c := range result.Cases {
		s.Cases = append(s.Cases, CaseSummary{
			Index:    c.Index,
			Status:   string(c.Status),
			Duration: c.Duration.String(),
			ExitCode: c.ExitCode,
			Lines:    c.Lines,
			TimedOut: c.TimedOut,
			Marker:   c.MatchedMarker,
			Detail:   FailureExcerpt(c),
		})
	}
	return s
}

// WriteSummary writes the YAML summary of result to path.
func WriteSummary(path string, result *types.RunResult) error {
	data, err := yaml.Marshal(NewSummary(result))
	if err != nil {
		return fmt.Errorf("failed to encode run summary: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write run summary %s: %w", path, err)
	}
	return nil
}

// ReadSummary loads a summary written by WriteSummary.
func ReadSummary(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run summary %s: %w", path, err)
	}
	var s Summary
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse run summary %s: %w", path, err)
	}
	return &s, nil
}
