// Package rows provides producers of the rows spliced into configuration input.
//
// A producer is called once per injection event and returns every row up
// front; rows carry no line terminator.
package rows

import (
	"context"
	"strings"
)

// Producer produces the ordered rows for one injection.
type Producer interface {
	// Produce returns the rows to inject.
	Produce(ctx context.Context) ([]string, error)
}

// ProducerFunc adapts a function to the Producer interface.
type ProducerFunc func(ctx context.Context) ([]string, error)

// Produce calls f.
func (f ProducerFunc) Produce(ctx context.Context) ([]string, error) {
	return f(ctx)
}

// Static produces a fixed list of rows.
type Static []string

// Produce returns a copy of the rows.
func (s Static) Produce(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]string(nil), s...), nil
}

// SplitLines splits text into rows. Line feeds and carriage returns are
// removed and a final line feed does not produce an empty row.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// JoinColumns joins the column values of one result row with single spaces.
func JoinColumns(cols []string) string {
	return strings.Join(cols, " ")
}

// Ensure implementations satisfy Producer
var (
	_ Producer = ProducerFunc(nil)
	_ Producer = Static(nil)
)
