// Package compare checks a candidate result log against the reference log,
// block by block.
package compare

import (
	"fmt"
	"io"
	"sort"

	"github.com/google/go-cmp/cmp"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/kerntest/tester/resultlog"
)

// Verdict classifies one test index.
type Verdict string

const (
	VerdictIdentical        Verdict = "identical"
	VerdictDiffers          Verdict = "differs"
	VerdictMissingCandidate Verdict = "missing_candidate"
	VerdictMissingReference Verdict = "missing_reference"
)

// CaseComparison is the verdict for a single index.
type CaseComparison struct {
	Index   int
	Verdict Verdict
	Diff    string // -reference +candidate, set when the blocks differ
}

// Report holds the comparison of two logs, ordered by index.
type Report struct {
	Candidate string
	Reference string
	Cases     []CaseComparison
}

// Matches reports whether every block is present in both logs and identical.
func (r *Report) Matches() bool {
	for _, c := range r.Cases {
		if c.Verdict != VerdictIdentical {
			return false
		}
	}
	return true
}

// Mismatches returns the indices that are not identical.
func (r *Report) Mismatches() []int {
	var out []int
	for _, c := range r.Cases {
		if c.Verdict != VerdictIdentical {
			out = append(out, c.Index)
		}
	}
	return out
}

// Blocks compares parsed logs. When an index occurs more than once in a log,
// the last block wins. An incomplete block is compared with its partial content
// and always differs from a complete one.
func Blocks(candidate, reference []resultlog.Block) []CaseComparison {
	cand := index(candidate)
	ref := index(reference)

	seen := make(map[int]struct{}, len(cand)+len(ref))
	var indices []int
	for _, m := range []map[int]resultlog.Block{cand, ref} {
		for i := range m {
			if _, ok := seen[i]; !ok {
				seen[i] = struct{}{}
				indices = append(indices, i)
			}
		}
	}
	sort.Ints(indices)

	out := make([]CaseComparison, 0, len(indices))
	for _, i := range indices {
		c, inCand := cand[i]
		r, inRef := ref[i]
		switch {
		case !inCand:
			out = append(out, CaseComparison{Index: i, Verdict: VerdictMissingCandidate})
		case !inRef:
			out = append(out, CaseComparison{Index: i, Verdict: VerdictMissingReference})
		default:
			if diff := cmp.Diff(r, c); diff != "" {
				out = append(out, CaseComparison{Index: i, Verdict: VerdictDiffers, Diff: diff})
			} else {
				out = append(out, CaseComparison{Index: i, Verdict: VerdictIdentical})
			}
		}
	}
	return out
}

func index(blocks []resultlog.Block) map[int]resultlog.Block {
	m := make(map[int]resultlog.Block, len(blocks))
	for _, b := range blocks {
		m[b.Index] = b
	}
	return m
}

// Files parses and compares two result logs.
func Files(candidatePath, referencePath string) (*Report, error) {
	cand, err := resultlog.ReadFile(candidatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read candidate log: %w", err)
	}
	ref, err := resultlog.ReadFile(referencePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference log: %w", err)
	}
	return &Report{
		Candidate: candidatePath,
		Reference: referencePath,
		Cases:     Blocks(cand, ref),
	}, nil
}

// Print renders the report as a table, followed by the diff of every block
// that differs.
func Print(out io.Writer, r *Report) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle(fmt.Sprintf("Compare %s against %s", r.Candidate, r.Reference))
	t.AppendHeader(table.Row{"Test", "Verdict"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Test", Align: text.AlignRight},
	})
	for _, c := range r.Cases {
		t.AppendRow(table.Row{fmt.Sprintf("TEST%d", c.Index), getVerdictString(c.Verdict)})
	}
	t.AppendFooter(table.Row{"TOTAL", fmt.Sprintf("%d of %d differ", len(r.Mismatches()), len(r.Cases))})
	t.SetStyle(table.StyleLight)
	t.Render()

	for _, c := range r.Cases {
		if c.Verdict == VerdictDiffers {
			fmt.Fprintf(out, "\nTEST%d (-reference +candidate):\n%s", c.Index, c.Diff)
		}
	}
}

func getVerdictString(v Verdict) string {
	switch v {
	case VerdictIdentical:
		return "✓ identical"
	case VerdictDiffers:
		return "✗ differs"
	case VerdictMissingCandidate:
		return "✗ missing in candidate"
	default:
		return "✗ missing in reference"
	}
}
