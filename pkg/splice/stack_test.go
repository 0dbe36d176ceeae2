package splice

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"
)

// lineReader reads complete lines from a Stack so tests can inject between lines.
type lineReader struct {
	t     *testing.T
	stack *Stack
	buf   []byte
}

func newLineReader(t *testing.T, stack *Stack, size int) *lineReader {
	return &lineReader{t: t, stack: stack, buf: make([]byte, size)}
}

func (r *lineReader) next() (string, bool) {
	r.t.Helper()
	var line []byte
	for {
		n, isPrefix, err := r.stack.ReadLine(r.buf)
		if err == io.EOF {
			return string(line), len(line) > 0
		}
		if err != nil {
			r.t.Fatalf("ReadLine failed: %v", err)
		}
		line = append(line, r.buf[:n]...)
		if !isPrefix {
			return string(line), true
		}
	}
}

func newTestStack(input string, opts ...Option) *Stack {
	seq := 0
	opts = append([]Option{WithIDGenerator(func() string {
		seq++
		return fmt.Sprintf("f%d", seq)
	})}, opts...)
	return NewStack(NewReaderStream("main.conf", strings.NewReader(input)), opts...)
}

func TestStackInjectScenario(t *testing.T) {
	stack := newTestStack("A\nB\n")
	r := newLineReader(t, stack, 64)

	var got []string
	for {
		line, ok := r.next()
		if !ok {
			break
		}
		got = append(got, line)
		if line == "A" {
			if _, err := stack.Inject([]string{"X", "Y"}, "Exec (main.conf:1)"); err != nil {
				t.Fatalf("Inject failed: %v", err)
			}
		}
	}

	want := []string{"A", "X", "Y", "B"}
	if !equalLines(got, want) {
		t.Errorf("lines = %q, want %q", got, want)
	}

	// End of input is sticky.
	if _, _, err := stack.ReadLine(make([]byte, 8)); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
	if stack.Depth() != 1 {
		t.Errorf("Depth = %d, want 1", stack.Depth())
	}
}

func TestStackInjectEmptyRows(t *testing.T) {
	stack := newTestStack("A\nB\n")
	r := newLineReader(t, stack, 64)

	var got []string
	for {
		line, ok := r.next()
		if !ok {
			break
		}
		got = append(got, line)
		if line == "A" {
			if _, err := stack.Inject(nil, "empty"); err != nil {
				t.Fatalf("Inject failed: %v", err)
			}
		}
	}

	want := []string{"A", "B"}
	if !equalLines(got, want) {
		t.Errorf("lines = %q, want %q", got, want)
	}

	stats := stack.Stats()
	if stats.Injected != 1 || stats.Exhausted != 1 || stats.MaxDepth != 2 {
		t.Errorf("Stats = %+v, want 1 injected, 1 exhausted, max depth 2", stats)
	}
}

func TestStackInjectReadByte(t *testing.T) {
	stack := newTestStack("A\nB\n")

	b, err := stack.ReadByte()
	if err != nil || b != 'A' {
		t.Fatalf("ReadByte = %q, %v, want 'A'", b, err)
	}
	if b, err = stack.ReadByte(); err != nil || b != '\n' {
		t.Fatalf("ReadByte = %q, %v, want line feed", b, err)
	}

	if _, err := stack.Inject([]string{"X", "Y"}, "rows"); err != nil {
		t.Fatalf("Inject failed: %v", err)
	}

	if got := readBytes(t, stack); got != "X\nY\nB\n" {
		t.Errorf("bytes = %q, want %q", got, "X\nY\nB\n")
	}
	if stack.Line() != 2 {
		t.Errorf("Line = %d, want 2", stack.Line())
	}
}

func TestStackInjectMidLine(t *testing.T) {
	stack := newTestStack("abcdef\nB\n")
	buf := make([]byte, 4)

	n, isPrefix, err := stack.ReadLine(buf)
	if err != nil || string(buf[:n]) != "abc" || !isPrefix {
		t.Fatalf("ReadLine = %q, %v, %v, want prefix %q", buf[:n], isPrefix, err, "abc")
	}

	if _, err := stack.Inject([]string{"X"}, "rows"); err != nil {
		t.Fatalf("Inject failed: %v", err)
	}

	// The suspended stream resumes where it stopped, nothing is skipped.
	got := readLines(t, stack, 16)
	want := []string{"X", "def", "B"}
	if !equalLines(got, want) {
		t.Errorf("lines = %q, want %q", got, want)
	}
}

func TestStackNestedInjection(t *testing.T) {
	stack := newTestStack("A\nB\nC\n")
	r := newLineReader(t, stack, 64)

	injections := map[string][]string{
		"A":  {"R1", "R2", "R3"},
		"R1": {"N1", "N2"},
		"N2": {"M1"},
		"R2": nil,
	}

	var got []string
	for {
		line, ok := r.next()
		if !ok {
			break
		}
		got = append(got, line)
		if rows, ok := injections[line]; ok {
			if _, err := stack.Inject(rows, "inject "+line); err != nil {
				t.Fatalf("Inject failed: %v", err)
			}
		}
	}

	want := []string{"A", "R1", "N1", "N2", "M1", "R2", "R3", "B", "C"}
	if !equalLines(got, want) {
		t.Errorf("lines = %q, want %q", got, want)
	}

	stats := stack.Stats()
	if stats.Injected != 4 || stats.Exhausted != 4 {
		t.Errorf("Stats = %+v, want 4 injected and 4 exhausted", stats)
	}
	if stats.MaxDepth != 4 {
		t.Errorf("MaxDepth = %d, want 4", stats.MaxDepth)
	}
}

func TestStackPositions(t *testing.T) {
	stack := newTestStack("first\nsecond\nthird\n")
	r := newLineReader(t, stack, 64)

	if line, _ := r.next(); line != "first" {
		t.Fatalf("line = %q, want first", line)
	}
	if line, _ := r.next(); line != "second" {
		t.Fatalf("line = %q, want second", line)
	}
	if got := stack.Position().String(); got != "main.conf:2" {
		t.Errorf("Position = %q, want main.conf:2", got)
	}

	if _, err := stack.Inject([]string{"x1", "x2"}, "Exec (main.conf:2)"); err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	r.next()
	r.next()

	trace := stack.Trace()
	if len(trace) != 2 {
		t.Fatalf("Trace has %d entries, want 2", len(trace))
	}
	if got := trace[0]; got.Name != "Exec (main.conf:2)" || got.Line != 2 || got.Depth != 2 || got.ID != "f2" {
		t.Errorf("trace[0] = %+v", got)
	}
	if got := trace[1]; got.Name != "main.conf" || got.Line != 2 || got.Depth != 1 || got.ID != "f1" {
		t.Errorf("trace[1] = %+v", got)
	}

	// The line after the injected block keeps its own number.
	if line, _ := r.next(); line != "third" {
		t.Fatalf("line = %q, want third", line)
	}
	if got := stack.Position().String(); got != "main.conf:3" {
		t.Errorf("Position = %q, want main.conf:3", got)
	}
}

func TestStackDeepNestingUnwindsInOneRead(t *testing.T) {
	stack := newTestStack("A\nB\n")
	r := newLineReader(t, stack, 64)
	r.next()

	const depth = 10000
	for i := 0; i < depth; i++ {
		if _, err := stack.Inject(nil, "empty"); err != nil {
			t.Fatalf("Inject %d failed: %v", i, err)
		}
	}
	if stack.Depth() != depth+1 {
		t.Errorf("Depth = %d, want %d", stack.Depth(), depth+1)
	}

	if line, _ := r.next(); line != "B" {
		t.Errorf("line = %q, want B", line)
	}
	if stack.Stats().Exhausted != depth {
		t.Errorf("Exhausted = %d, want %d", stack.Stats().Exhausted, depth)
	}
}

func TestStackMaxDepth(t *testing.T) {
	stack := newTestStack("A\n", WithMaxDepth(2))

	if _, err := stack.Inject([]string{"x"}, "one"); err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	_, err := stack.Inject([]string{"y"}, "two")
	if !errors.Is(err, ErrMaxDepth) {
		t.Fatalf("expected ErrMaxDepth, got %v", err)
	}

	got := readLines(t, stack, 16)
	if !equalLines(got, []string{"x", "A"}) {
		t.Errorf("lines = %q, want [x A]", got)
	}
}

func TestStackConsistency(t *testing.T) {
	t.Run("no input", func(t *testing.T) {
		stack := NewStack(nil)
		if _, _, err := stack.ReadLine(make([]byte, 8)); !errors.Is(err, ErrConsistency) {
			t.Errorf("expected ErrConsistency, got %v", err)
		}
		if _, err := stack.ReadByte(); !errors.Is(err, ErrConsistency) {
			t.Errorf("expected ErrConsistency, got %v", err)
		}
	})

	t.Run("nil push", func(t *testing.T) {
		stack := newTestStack("A\n")
		if err := stack.Push(nil); !errors.Is(err, ErrConsistency) {
			t.Errorf("expected ErrConsistency, got %v", err)
		}
	})

	t.Run("closed stack", func(t *testing.T) {
		stack := newTestStack("A\n")
		if _, err := stack.Inject([]string{"x"}, "rows"); err != nil {
			t.Fatalf("Inject failed: %v", err)
		}
		if err := stack.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		if err := stack.Close(); err != nil {
			t.Fatalf("second Close failed: %v", err)
		}
		if _, _, err := stack.ReadLine(make([]byte, 8)); !errors.Is(err, ErrConsistency) {
			t.Errorf("expected ErrConsistency on read, got %v", err)
		}
		if _, err := stack.Inject([]string{"y"}, "rows"); !errors.Is(err, ErrConsistency) {
			t.Errorf("expected ErrConsistency on inject, got %v", err)
		}
		if stack.Current() != nil {
			t.Error("expected no current stream after close")
		}
	})
}

func TestStackPopClosesExhaustedStream(t *testing.T) {
	stack := newTestStack("A\n")
	inner := NewReaderStream("inner.conf", io.NopCloser(strings.NewReader("i1\n")))
	if err := stack.Push(inner); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if stack.Current() != Source(inner) {
		t.Error("expected pushed stream to be current")
	}

	got := readLines(t, stack, 16)
	if !equalLines(got, []string{"i1", "A"}) {
		t.Errorf("lines = %q, want [i1 A]", got)
	}
	if !inner.closed {
		t.Error("expected popped stream to be closed")
	}
}

func TestStackLogger(t *testing.T) {
	var out bytes.Buffer
	stack := newTestStack("A\n", WithLogger(log.New(&out, "", 0)))

	if _, err := stack.Inject([]string{"x"}, "rows"); err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	readLines(t, stack, 16)

	logged := out.String()
	if !strings.Contains(logged, `splice: push "rows" depth=2 id=f2`) {
		t.Errorf("missing push log: %q", logged)
	}
	if !strings.Contains(logged, `splice: pop "rows" id=f2 resume "main.conf" at line 0`) {
		t.Errorf("missing pop log: %q", logged)
	}
}

func TestStackImplementsInterface(t *testing.T) {
	var _ Source = (*Stack)(nil)
}
