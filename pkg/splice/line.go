package splice

import "io"

// lineCounter numbers lines as their first byte is read.
type lineCounter struct {
	line    int
	midLine bool
}

func (c *lineCounter) observe(b byte) {
	if !c.midLine {
		c.line++
		c.midLine = true
	}
	if b == '\n' {
		c.midLine = false
	}
}

// lineSource is a single stream that can read a bounded line on its own.
type lineSource interface {
	ReadByte() (byte, error)

	// lineEnds consumes the next byte if it is a line feed. It reports whether
	// the current line is complete, either by that line feed or by end of input.
	lineEnds() bool
}

// readLine implements Source.ReadLine for a single stream.
func readLine(src lineSource, buf []byte) (int, bool, error) {
	switch len(buf) {
	case 0:
		return 0, false, io.ErrShortBuffer
	case 1:
		buf[0] = 0
		return 0, true, nil
	}

	n := 0
	for n < len(buf)-1 {
		b, err := src.ReadByte()
		if err != nil {
			buf[n] = 0
			if err == io.EOF && n > 0 {
				return n, false, nil
			}
			return n, false, err
		}
		if b == '\n' {
			buf[n] = 0
			return n, false, nil
		}
		buf[n] = b
		n++
	}

	buf[n] = 0
	return n, !src.lineEnds(), nil
}
