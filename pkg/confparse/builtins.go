package confparse

import (
	"context"
	"fmt"

	"github.com/grokify/omnistorage/backend/file"

	"github.com/grokify/configsplice/pkg/rows"
)

// Built-in directive names.
const (
	DirectiveExec          = "Exec"
	DirectiveSpliceStorage = "SpliceStorage"
	DirectiveSpliceFile    = "SpliceFile"
	DirectiveSplice        = "Splice"
)

// RegisterBuiltins registers the built-in directives:
//
//	Exec <command line>    inject the lines printed by a shell command
//	SpliceStorage <root>   read SpliceFile paths below root
//	SpliceFile <path>      inject the rows stored at path
//	Splice <name>          inject the rows of a registered source
func RegisterBuiltins(p *Parser) {
	p.Handle(DirectiveExec, handleExec)
	p.Handle(DirectiveSpliceStorage, handleSpliceStorage)
	p.Handle(DirectiveSpliceFile, handleSpliceFile)
	p.Handle(DirectiveSplice, handleSplice)
}

func handleExec(ctx context.Context, p *Parser, d Directive) error {
	if d.Args == "" {
		return fmt.Errorf("command line is required")
	}
	return produceAndInject(ctx, p, d, rows.Shell(d.Args))
}

func handleSpliceStorage(ctx context.Context, p *Parser, d Directive) error {
	root := unquote(d.Args)
	if root == "" {
		return fmt.Errorf("storage root is required")
	}
	p.useStorage(file.New(file.Config{Root: root}))
	return nil
}

func handleSpliceFile(ctx context.Context, p *Parser, d Directive) error {
	path := unquote(d.Args)
	if path == "" {
		return fmt.Errorf("path is required")
	}
	if p.storage == nil {
		return fmt.Errorf("storage is not configured")
	}
	return produceAndInject(ctx, p, d, &rows.Storage{Backend: p.storage, Path: path})
}

func handleSplice(ctx context.Context, p *Parser, d Directive) error {
	name := unquote(d.Args)
	if name == "" {
		return fmt.Errorf("source name is required")
	}
	if p.registry == nil {
		return fmt.Errorf("unknown source %q: no sources configured", name)
	}
	src, ok := p.registry.Get(name)
	if !ok {
		return fmt.Errorf("unknown source %q", name)
	}
	return produceAndInject(ctx, p, d, src)
}

func produceAndInject(ctx context.Context, p *Parser, d Directive, src rows.Producer) error {
	out, err := src.Produce(ctx)
	if err != nil {
		return err
	}
	return p.Inject(out, Label(d))
}
