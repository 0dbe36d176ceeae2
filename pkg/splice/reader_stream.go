package splice

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// ReaderStream is a Source over an io.Reader, typically a configuration file.
type ReaderStream struct {
	name   string
	br     *bufio.Reader
	closer io.Closer
	closed bool
	lines  lineCounter
}

// NewReaderStream creates a stream reading from r.
// If r implements io.Closer it is closed together with the stream.
func NewReaderStream(name string, r io.Reader) *ReaderStream {
	s := &ReaderStream{
		name: name,
		br:   bufio.NewReader(r),
	}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// OpenFile opens a configuration file as a stream named after its path.
func OpenFile(path string) (*ReaderStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	return NewReaderStream(path, f), nil
}

// ReadByte returns the next byte of the underlying reader.
func (s *ReaderStream) ReadByte() (byte, error) {
	if s.closed {
		return 0, io.EOF
	}
	b, err := s.br.ReadByte()
	if err != nil {
		return 0, err
	}
	s.lines.observe(b)
	return b, nil
}

// ReadLine reads the next line, or the next part of it when buf is too small.
// A final line without a line feed is returned as a complete line.
func (s *ReaderStream) ReadLine(buf []byte) (int, bool, error) {
	return readLine(s, buf)
}

func (s *ReaderStream) lineEnds() bool {
	if s.closed {
		return true
	}
	p, err := s.br.Peek(1)
	if err == io.EOF {
		return true
	}
	if err != nil || p[0] != '\n' {
		return false
	}
	_, _ = s.br.ReadByte()
	s.lines.observe('\n')
	return true
}

// Close closes the underlying reader once. Later reads return io.EOF.
func (s *ReaderStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// Name returns the stream name, the file path for OpenFile.
func (s *ReaderStream) Name() string {
	return s.name
}

// Line returns the number of the line being read.
func (s *ReaderStream) Line() int {
	return s.lines.line
}

// Ensure ReaderStream implements Source
var _ Source = (*ReaderStream)(nil)
