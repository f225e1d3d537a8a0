package types

// Mode selects which build variant of the test artifact is produced and
// where its output log is written.
type Mode string

const (
	// ModeCandidate tests the implementation under development.
	ModeCandidate Mode = "candidate"
	// ModeReference builds against the known-correct implementation and
	// produces the baseline output.
	ModeReference Mode = "reference"
)

const (
	CandidateOutputFile  = "test_outputs.txt"
	ReferenceOutputFile  = "ref_outputs.txt"
	CandidateSummaryFile = "test_summary.yaml"
	ReferenceSummaryFile = "ref_summary.yaml"
)

// ModeFromRef maps the --ref flag onto a Mode.
func ModeFromRef(ref bool) Mode {
	if ref {
		return ModeReference
	}
	return ModeCandidate
}

func (m Mode) String() string {
	return string(m)
}

// IsValid returns true if the mode is one of the known modes
func (m Mode) IsValid() bool {
	return m == ModeCandidate || m == ModeReference
}

// OutputFilename returns the fixed log file name for the mode.
// Candidate and reference names never collide.
func (m Mode) OutputFilename() string {
	if m == ModeReference {
		return ReferenceOutputFile
	}
	return CandidateOutputFile
}

// SummaryFilename returns the file name of the machine-readable run summary.
func (m Mode) SummaryFilename() string {
	if m == ModeReference {
		return ReferenceSummaryFile
	}
	return CandidateSummaryFile
}

// Label is the short human label printed on the console ("REF" / "My").
func (m Mode) Label() string {
	if m == ModeReference {
		return "REF"
	}
	return "My"
}
