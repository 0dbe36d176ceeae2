package splice

import (
	"io"
)

// VirtualStream reads rows from memory as if they were lines of a file.
// Every row is followed by a line feed, so a virtual stream never ends in
// the middle of a line.
type VirtualStream struct {
	name   string
	rows   []string
	row    int // current row, len(rows) once exhausted
	col    int // bytes of the current row already read
	length int // len(rows[row]) plus its line feed, 0 past the last row
	lines  lineCounter
}

// NewVirtualStream creates a stream over a copy of rows.
// Rows must not contain their line terminator; an empty slice yields a stream
// that is exhausted from the first read.
func NewVirtualStream(name string, rows []string) *VirtualStream {
	s := &VirtualStream{
		name: name,
		rows: append([]string(nil), rows...),
	}
	s.length = s.rowLength(0)
	return s
}

func (s *VirtualStream) rowLength(i int) int {
	if i >= len(s.rows) {
		return 0
	}
	return len(s.rows[i]) + 1
}

// ReadByte returns the next byte, or io.EOF when all rows have been read.
func (s *VirtualStream) ReadByte() (byte, error) {
	for s.col >= s.length {
		if s.row >= len(s.rows) {
			return 0, io.EOF
		}
		s.row++
		s.col = 0
		s.length = s.rowLength(s.row)
	}

	b := byte('\n')
	if s.col < len(s.rows[s.row]) {
		b = s.rows[s.row][s.col]
	}
	s.col++
	s.lines.observe(b)
	return b, nil
}

// ReadLine reads the next row, or the next part of it when buf is too small.
func (s *VirtualStream) ReadLine(buf []byte) (int, bool, error) {
	return readLine(s, buf)
}

func (s *VirtualStream) lineEnds() bool {
	if s.row < len(s.rows) && s.col == s.length-1 {
		s.col++
		s.lines.observe('\n')
		return true
	}
	return false
}

// Close moves the cursor past the last row. It is idempotent and never fails.
func (s *VirtualStream) Close() error {
	s.row = len(s.rows)
	s.length = 0
	s.col = s.length
	return nil
}

// Name returns the label the stream was created with.
func (s *VirtualStream) Name() string {
	return s.name
}

// Line returns the number of the row being read.
func (s *VirtualStream) Line() int {
	return s.lines.line
}

// Len returns the total number of rows.
func (s *VirtualStream) Len() int {
	return len(s.rows)
}

// Remaining returns the number of rows not yet completely read.
func (s *VirtualStream) Remaining() int {
	if s.row >= len(s.rows) {
		return 0
	}
	n := len(s.rows) - s.row
	if s.col >= s.length {
		n--
	}
	return n
}

// Exhausted reports whether every row has been read.
func (s *VirtualStream) Exhausted() bool {
	return s.Remaining() == 0
}

// Ensure VirtualStream implements Source
var _ Source = (*VirtualStream)(nil)
