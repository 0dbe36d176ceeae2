package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/grokify/omnistorage"

	"github.com/grokify/configsplice/pkg/config"
	"github.com/grokify/configsplice/pkg/confparse"
	"github.com/grokify/configsplice/pkg/rows"
	"github.com/grokify/configsplice/pkg/splice"
)

const stdinName = "-"

// session holds what every parse of one command run shares.
type session struct {
	cfg      *config.Config
	storage  omnistorage.Backend
	registry *rows.Registry
	logger   *log.Logger
}

func openSession(logger *log.Logger) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	s := &session{cfg: cfg, storage: cfg.OpenStorage(), logger: logger}
	s.registry, err = cfg.Registry(s.storage)
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) Close() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
}

func openInput(path string) (splice.Source, error) {
	if path == stdinName {
		return splice.NewReaderStream("<stdin>", os.Stdin), nil
	}
	return splice.OpenFile(path)
}

// parse expands the configuration at path.
func (s *session) parse(ctx context.Context, path string) (*confparse.Result, error) {
	base, err := openInput(path)
	if err != nil {
		return nil, err
	}

	stack := splice.NewStack(base,
		splice.WithMaxDepth(s.cfg.Parse.MaxDepth),
		splice.WithLogger(s.logger),
	)
	defer func() { _ = stack.Close() }()

	p := confparse.NewParser(stack,
		confparse.WithLineBuffer(s.cfg.Parse.LineBuffer),
		confparse.WithRegistry(s.registry),
		confparse.WithStorage(s.storage),
		confparse.WithLogger(s.logger),
	)
	confparse.RegisterBuiltins(p)

	res, err := p.Parse(ctx)
	if err != nil && s.logger != nil {
		for _, pos := range stack.Trace() {
			s.logger.Printf("  at %s (depth %d)", pos, pos.Depth)
		}
	}
	return res, err
}
