package rows

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Command produces one row per line printed by an external command.
type Command struct {
	// Name is the program to run.
	Name string

	// Args are passed to the program.
	Args []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env entries are appended to the current environment.
	Env []string

	// Timeout bounds the run time. Zero means no limit beyond the context.
	Timeout time.Duration
}

// Shell returns a command running cmdline through sh -c.
func Shell(cmdline string) *Command {
	return &Command{
		Name: "sh",
		Args: []string{"-c", cmdline},
	}
}

// Produce runs the command and splits its standard output into rows.
// A non-zero exit status is an error carrying the command's standard error.
func (c *Command) Produce(ctx context.Context) ([]string, error) {
	if strings.TrimSpace(c.Name) == "" {
		return nil, fmt.Errorf("command name is required")
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	// #nosec G204 -- commands come from trusted configuration files.
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.WaitDelay = time.Second
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("running %s: %w: %s", c.Name, err, msg)
		}
		return nil, fmt.Errorf("running %s: %w", c.Name, err)
	}

	return SplitLines(stdout.String()), nil
}

// Ensure Command implements Producer
var _ Producer = (*Command)(nil)
