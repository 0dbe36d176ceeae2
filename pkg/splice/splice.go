// Package splice provides stackable input streams for configuration parsers.
//
// A parser pulls its input through the Source contract (one byte, one bounded
// line, close). A directive handler can splice rows produced at parse time into
// that input with Stack.Inject: the rows are read next, exactly as if they had
// appeared in the file where the directive was found, and reading resumes the
// suspended stream once they are exhausted. Injected rows may trigger further
// injections; the Stack unwinds them in last-in-first-out order.
package splice

import (
	"errors"
	"fmt"
)

// Source is the pull contract shared by file-backed and virtual streams.
//
// ReadByte and ReadLine return io.EOF once no more input is available.
type Source interface {
	// ReadByte reads the next byte of input.
	ReadByte() (byte, error)

	// ReadLine reads the next line into buf without its line feed.
	// At most len(buf)-1 bytes are delivered and buf[n] is set to 0.
	// isPrefix reports that the line did not fit and continues on the next call.
	ReadLine(buf []byte) (n int, isPrefix bool, err error)

	// Close marks the source as exhausted and releases its resources.
	Close() error

	// Name identifies the source in diagnostics.
	Name() string

	// Line returns the 1-based number of the line being read, 0 before the first read.
	Line() int
}

var (
	// ErrConsistency reports misuse of a stream or stack that leaves no sensible
	// way to continue. Callers should abort the current parse.
	ErrConsistency = errors.New("splice: consistency violation")

	// ErrMaxDepth is returned when an injection would exceed the configured stack depth.
	ErrMaxDepth = errors.New("splice: maximum injection depth exceeded")
)

func consistencyError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConsistency, fmt.Sprintf(format, args...))
}

// Position locates the input currently being read.
type Position struct {
	Name  string `json:"name" yaml:"name"`
	Line  int    `json:"line" yaml:"line"`
	Depth int    `json:"depth,omitempty" yaml:"depth,omitempty"`
	ID    string `json:"id,omitempty" yaml:"id,omitempty"`
}

// String formats the position as name:line.
func (p Position) String() string {
	if p.Line <= 0 {
		return p.Name
	}
	return fmt.Sprintf("%s:%d", p.Name, p.Line)
}
