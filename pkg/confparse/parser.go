// Package confparse reads configuration input through a splice.Stack and
// dispatches directive lines to handlers that may inject more input.
//
// It is intentionally minimal: a line is either a directive, whose first word
// names a registered handler, or plain text that is recorded verbatim together
// with the position it was read from.
package confparse

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/grokify/omnistorage"

	"github.com/grokify/configsplice/pkg/rows"
	"github.com/grokify/configsplice/pkg/splice"
)

// DefaultLineBuffer is the default size of the line read buffer.
const DefaultLineBuffer = 8192

// Handler handles one directive.
type Handler func(ctx context.Context, p *Parser, d Directive) error

// Line is a plain line of configuration.
type Line struct {
	Text string          `json:"text" yaml:"text"`
	Pos  splice.Position `json:"pos" yaml:"pos"`
}

// Result holds everything read by Parse.
type Result struct {
	Lines      []Line       `json:"lines" yaml:"lines"`
	Directives []Directive  `json:"directives,omitempty" yaml:"directives,omitempty"`
	Stats      splice.Stats `json:"stats" yaml:"stats"`
}

// Parser reads lines from a stack and dispatches directives.
// A Parser is not safe for concurrent use.
type Parser struct {
	stack      *splice.Stack
	handlers   map[string]Handler
	registry   *rows.Registry
	storage    omnistorage.Backend
	owned      omnistorage.Backend
	lineBuffer int
	logger     *log.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithLineBuffer sets the size of the buffer lines are read through.
// Longer lines are read in several chunks and joined. Values below 2 are ignored.
func WithLineBuffer(n int) Option {
	return func(p *Parser) {
		if n >= 2 {
			p.lineBuffer = n
		}
	}
}

// WithRegistry sets the named producers available to the Splice directive.
func WithRegistry(r *rows.Registry) Option {
	return func(p *Parser) {
		p.registry = r
	}
}

// WithStorage sets the backend SpliceFile reads from until a SpliceStorage
// directive selects another one. The caller keeps ownership of b.
func WithStorage(b omnistorage.Backend) Option {
	return func(p *Parser) {
		p.storage = b
	}
}

// WithLogger logs dispatched directives to l.
func WithLogger(l *log.Logger) Option {
	return func(p *Parser) {
		p.logger = l
	}
}

// NewParser creates a parser reading from stack with no handlers registered.
func NewParser(stack *splice.Stack, opts ...Option) *Parser {
	p := &Parser{
		stack:      stack,
		handlers:   map[string]Handler{},
		lineBuffer: DefaultLineBuffer,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle registers h for the directive name. Names are case-insensitive and a
// later registration replaces an earlier one. A nil h removes the handler.
func (p *Parser) Handle(name string, h Handler) {
	key := strings.ToLower(name)
	if h == nil {
		delete(p.handlers, key)
		return
	}
	p.handlers[key] = h
}

// Stack returns the stack the parser reads from.
func (p *Parser) Stack() *splice.Stack {
	return p.stack
}

// Registry returns the named producers, or nil.
func (p *Parser) Registry() *rows.Registry {
	return p.registry
}

// Storage returns the backend selected for SpliceFile, or nil.
func (p *Parser) Storage() omnistorage.Backend {
	return p.storage
}

// Inject splices rows into the input right after the directive being handled.
func (p *Parser) Inject(rows []string, label string) error {
	_, err := p.stack.Inject(rows, label)
	return err
}

// Parse reads the stack to the end of the base stream.
// The first error aborts the parse; the lines read so far are still returned.
func (p *Parser) Parse(ctx context.Context) (*Result, error) {
	defer p.releaseStorage()

	res := &Result{}
	buf := make([]byte, p.lineBuffer)

	for {
		if err := ctx.Err(); err != nil {
			res.Stats = p.stack.Stats()
			return res, err
		}

		text, pos, err := p.readLine(buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			res.Stats = p.stack.Stats()
			return res, fmt.Errorf("reading %s: %w", p.stack.Position(), err)
		}

		d, ok := p.directive(text, pos)
		if !ok {
			res.Lines = append(res.Lines, Line{Text: text, Pos: pos})
			continue
		}

		res.Directives = append(res.Directives, d)
		if p.logger != nil {
			p.logger.Printf("confparse: %s: %s %s", d.Pos, d.Name, d.Args)
		}
		if err := p.handlers[strings.ToLower(d.Name)](ctx, p, d); err != nil {
			res.Stats = p.stack.Stats()
			return res, &DirectiveError{Pos: d.Pos, Directive: d.Name, Err: err}
		}
	}

	res.Stats = p.stack.Stats()
	return res, nil
}

// readLine reads one complete line, joining chunks that did not fit in buf.
// The position is taken after the first chunk, when the line has been counted.
func (p *Parser) readLine(buf []byte) (string, splice.Position, error) {
	n, isPrefix, err := p.stack.ReadLine(buf)
	if err != nil {
		return "", splice.Position{}, err
	}
	pos := p.stack.Position()
	if !isPrefix {
		return string(buf[:n]), pos, nil
	}

	var sb strings.Builder
	sb.Write(buf[:n])
	for isPrefix {
		n, isPrefix, err = p.stack.ReadLine(buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", pos, err
		}
		sb.Write(buf[:n])
	}
	return sb.String(), pos, nil
}

func (p *Parser) directive(text string, pos splice.Position) (Directive, bool) {
	name, args := splitDirective(text)
	if name == "" {
		return Directive{}, false
	}
	if _, ok := p.handlers[strings.ToLower(name)]; !ok {
		return Directive{}, false
	}
	return Directive{Name: name, Args: args, Raw: text, Pos: pos}, true
}

// useStorage makes b the backend for SpliceFile. The parser closes b once
// the parse ends or another backend replaces it.
func (p *Parser) useStorage(b omnistorage.Backend) {
	p.releaseStorage()
	p.storage = b
	p.owned = b
}

func (p *Parser) releaseStorage() {
	if p.owned == nil {
		return
	}
	if err := p.owned.Close(); err != nil && p.logger != nil {
		p.logger.Printf("confparse: closing storage: %v", err)
	}
	if p.storage == p.owned {
		p.storage = nil
	}
	p.owned = nil
}
