package runner

import (
	"strings"

	"github.com/acarl005/stripansi"
)

// Detector flags captured lines that signal a failed case. Matching is a
// literal substring search, so the absence of a marker only means no crash or
// assertion was detected.
type Detector struct {
	markers []string
}

// NewDetector builds a detector for the given markers. Empty markers are
// ignored; with no usable markers the defaults are used.
func NewDetector(markers []string) *Detector {
	cleaned := make([]string, 0, len(markers))
	for _, m := range markers {
		if m != "" {
			cleaned = append(cleaned, m)
		}
	}
	if len(cleaned) == 0 {
		cleaned = append(cleaned, DefaultFailureMarkers...)
	}
	return &Detector{markers: cleaned}
}

// Match returns the first marker found in line. ANSI escape sequences are
// stripped first so colourised output still matches.
func (d *Detector) Match(line string) (string, bool) {
	plain := line
	if strings.Contains(line, "\x1b[") {
		plain = stripansi.Strip(line)
	}
	for _, m := range d.markers {
		if strings.Contains(plain, m) {
			return m, true
		}
	}
	return "", false
}

// Markers returns a copy of the configured markers.
func (d *Detector) Markers() []string {
	out := make([]string, len(d.markers))
	copy(out, d.markers)
	return out
}
