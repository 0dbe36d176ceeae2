package splice

import (
	"fmt"
	"io"
	"log"

	"github.com/google/uuid"
)

// Stack is the active-stream slot of a parsing context.
//
// Reads are served by the most recently pushed stream. When that stream is
// exhausted it is closed and popped, and the read continues with the stream
// that was active before it. Only the bottom stream reports io.EOF.
// A Stack is not safe for concurrent use.
type Stack struct {
	frames   []frame
	maxDepth int
	newID    func() string
	logger   *log.Logger
	closed   bool
	stats    Stats
}

type frame struct {
	src Source
	id  string
}

// Stats counts stack activity.
type Stats struct {
	// Injected is the number of streams pushed on top of the base stream.
	Injected int `json:"injected" yaml:"injected"`

	// Exhausted is the number of streams popped after running out of input.
	Exhausted int `json:"exhausted" yaml:"exhausted"`

	// MaxDepth is the largest number of frames stacked at once.
	MaxDepth int `json:"maxDepth" yaml:"max_depth"`
}

// Option configures a Stack.
type Option func(*Stack)

// WithMaxDepth limits the number of stacked frames, the base stream included.
// Zero means no limit.
func WithMaxDepth(n int) Option {
	return func(s *Stack) {
		s.maxDepth = n
	}
}

// WithIDGenerator sets the function naming frames in positions and logs.
func WithIDGenerator(fn func() string) Option {
	return func(s *Stack) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithLogger logs every push and pop to l.
func WithLogger(l *log.Logger) Option {
	return func(s *Stack) {
		s.logger = l
	}
}

// NewStack creates a stack reading from base.
func NewStack(base Source, opts ...Option) *Stack {
	s := &Stack{
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if base != nil {
		s.frames = append(s.frames, frame{src: base, id: s.newID()})
		s.stats.MaxDepth = 1
	}
	return s
}

// Push suspends the active stream and makes src the active one.
func (s *Stack) Push(src Source) error {
	if src == nil {
		return consistencyError("push of nil source")
	}
	if s.closed {
		return consistencyError("push of %q on closed stack", src.Name())
	}
	if s.maxDepth > 0 && len(s.frames) >= s.maxDepth {
		return fmt.Errorf("%w: pushing %q at depth %d", ErrMaxDepth, src.Name(), s.maxDepth)
	}

	f := frame{src: src, id: s.newID()}
	s.frames = append(s.frames, f)
	s.stats.Injected++
	if len(s.frames) > s.stats.MaxDepth {
		s.stats.MaxDepth = len(s.frames)
	}
	s.logf("push %q depth=%d id=%s", src.Name(), len(s.frames), f.id)
	return nil
}

// Inject splices rows into the input at the current read position.
// The rows are read next, followed by the rest of the suspended stream.
// label names the injected stream in diagnostics.
func (s *Stack) Inject(rows []string, label string) (*VirtualStream, error) {
	vs := NewVirtualStream(label, rows)
	if err := s.Push(vs); err != nil {
		return nil, err
	}
	return vs, nil
}

func (s *Stack) top() (frame, error) {
	if s.closed {
		return frame{}, consistencyError("read on closed stack")
	}
	if len(s.frames) == 0 {
		return frame{}, consistencyError("read on stack without input")
	}
	return s.frames[len(s.frames)-1], nil
}

// pop discards the exhausted top frame. It reports false for the bottom frame,
// which stays in place so that it keeps answering io.EOF.
func (s *Stack) pop() bool {
	n := len(s.frames)
	if n < 2 {
		return false
	}
	f := s.frames[n-1]
	s.frames[n-1] = frame{}
	s.frames = s.frames[:n-1]
	s.stats.Exhausted++

	if err := f.src.Close(); err != nil {
		s.logf("close %q id=%s: %v", f.src.Name(), f.id, err)
	}
	resumed := s.frames[n-2].src
	s.logf("pop %q id=%s resume %q at line %d", f.src.Name(), f.id, resumed.Name(), resumed.Line())
	return true
}

// ReadByte reads the next byte, unwinding exhausted streams as needed.
func (s *Stack) ReadByte() (byte, error) {
	for {
		f, err := s.top()
		if err != nil {
			return 0, err
		}
		b, err := f.src.ReadByte()
		if err == io.EOF && s.pop() {
			continue
		}
		return b, err
	}
}

// ReadLine reads the next line from the active stream. When the active stream
// is exhausted before delivering a byte, the call is forwarded to the stream
// it suspended, so io.EOF is only returned once the base stream is exhausted.
func (s *Stack) ReadLine(buf []byte) (int, bool, error) {
	for {
		f, err := s.top()
		if err != nil {
			return 0, false, err
		}
		n, isPrefix, err := f.src.ReadLine(buf)
		if err == io.EOF && n == 0 && s.pop() {
			continue
		}
		return n, isPrefix, err
	}
}

// Close closes every stacked stream, the active one first, and returns the
// first error. Reads and pushes on a closed stack fail with ErrConsistency.
func (s *Stack) Close() error {
	if s.closed {
		return nil
	}
	var firstErr error
	for i := len(s.frames) - 1; i >= 0; i-- {
		if err := s.frames[i].src.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.frames = nil
	s.closed = true
	return firstErr
}

// Name returns the name of the active stream.
func (s *Stack) Name() string {
	if len(s.frames) == 0 {
		return ""
	}
	return s.frames[len(s.frames)-1].src.Name()
}

// Line returns the line number of the active stream.
func (s *Stack) Line() int {
	if len(s.frames) == 0 {
		return 0
	}
	return s.frames[len(s.frames)-1].src.Line()
}

// Current returns the active stream, or nil when the stack is empty.
func (s *Stack) Current() Source {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1].src
}

// Depth returns the number of stacked streams.
func (s *Stack) Depth() int {
	return len(s.frames)
}

// Position returns the position of the active stream.
func (s *Stack) Position() Position {
	if len(s.frames) == 0 {
		return Position{}
	}
	return s.position(len(s.frames) - 1)
}

// Trace returns the positions of all stacked streams, the active one first.
// The entries after the first tell where each injection took place.
func (s *Stack) Trace() []Position {
	out := make([]Position, 0, len(s.frames))
	for i := len(s.frames) - 1; i >= 0; i-- {
		out = append(out, s.position(i))
	}
	return out
}

func (s *Stack) position(i int) Position {
	f := s.frames[i]
	return Position{
		Name:  f.src.Name(),
		Line:  f.src.Line(),
		Depth: i + 1,
		ID:    f.id,
	}
}

// Stats returns the activity counters.
func (s *Stack) Stats() Stats {
	return s.stats
}

func (s *Stack) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf("splice: "+format, args...)
	}
}

// Ensure Stack implements Source
var _ Source = (*Stack)(nil)
