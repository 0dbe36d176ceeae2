package confparse

import (
	"fmt"
	"strings"

	"github.com/grokify/configsplice/pkg/splice"
)

// Directive is a directive line split into its name and arguments.
type Directive struct {
	// Name is the directive name as written.
	Name string `json:"name" yaml:"name"`

	// Args is the rest of the line with surrounding space removed.
	Args string `json:"args,omitempty" yaml:"args,omitempty"`

	// Raw is the whole line.
	Raw string `json:"raw" yaml:"raw"`

	// Pos is where the directive was read.
	Pos splice.Position `json:"pos" yaml:"pos"`
}

// Label names the stream injected by d, e.g. "Exec (main.conf:12)".
func Label(d Directive) string {
	return fmt.Sprintf("%s (%s)", d.Name, d.Pos)
}

// DirectiveError reports a failed directive.
type DirectiveError struct {
	Pos       splice.Position
	Directive string
	Err       error
}

func (e *DirectiveError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Pos, e.Directive, e.Err)
}

func (e *DirectiveError) Unwrap() error {
	return e.Err
}

func splitDirective(line string) (name, args string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", ""
	}
	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return line, ""
	}
	return line[:i], strings.TrimSpace(line[i+1:])
}

// unquote strips one pair of matching double or single quotes.
func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
