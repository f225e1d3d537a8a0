package resultlog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

var startDelimiterRegex = regexp.MustCompile(`^-----TEST(\d+)-----$`)

// Block is the parsed content of one test case block.
type Block struct {
	Index    int
	Lines    []string // Captured lines without trailing newlines
	Complete bool     // The end delimiter was seen
}

// Parse splits a result log into its blocks, in file order.
//
// The writer emits a newline before every delimiter, so a single trailing empty
// line inside a block is an artifact of the format and is dropped. Text outside
// of blocks is ignored. A block that is interrupted by the next start delimiter
// or by EOF is returned with Complete=false.
func Parse(r io.Reader) ([]Block, error) {
	var (
		blocks  []Block
		current *Block
	)

	closeCurrent := func(complete bool) {
		if current == nil {
			return
		}
		if n := len(current.Lines); n > 0 && current.Lines[n-1] == "" {
			current.Lines = current.Lines[:n-1]
		}
		current.Complete = complete
		blocks = append(blocks, *current)
		current = nil
	}

	br := bufio.NewReader(r)
	for {
		raw, err := br.ReadString('\n')
		if len(raw) > 0 || err == nil {
			line := strings.TrimRight(raw, "\r\n")
			switch {
			case startDelimiterRegex.MatchString(line):
				closeCurrent(false)
				idx, convErr := strconv.Atoi(startDelimiterRegex.FindStringSubmatch(line)[1])
				if convErr != nil {
					return nil, fmt.Errorf("invalid block index in %q: %w", line, convErr)
				}
				current = &Block{Index: idx, Lines: []string{}}
			case line == EndDelimiter && current != nil:
				closeCurrent(true)
			case current != nil:
				current.Lines = append(current.Lines, line)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read result log: %w", err)
		}
	}
	closeCurrent(false)
	return blocks, nil
}

// ReadFile parses the result log at path.
func ReadFile(path string) ([]Block, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open result log %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}
