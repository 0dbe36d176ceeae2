package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/grokify/configsplice/pkg/confparse"
)

var expandCmd = &cobra.Command{
	Use:   "expand",
	Short: "Print a configuration with all injections applied",
	Long: `Expand a configuration file and print the result.

Directive lines are replaced by the lines they inject. The text format
prints one configuration line per output line; json and yaml print every
line with its position together with the directives and stack counters.

Examples:
  # Expand to stdout
  configsplice expand -i httpd.conf

  # Read from stdin and prefix each line with name:line
  cat httpd.conf | configsplice expand -i - --annotate

  # Write YAML and regenerate whenever the input changes
  configsplice expand -i httpd.conf -o expanded.yaml --format yaml --watch`,
	RunE: runExpand,
}

var (
	inputPath     string
	outputPath    string
	outputFormat  string
	annotate      bool
	watchMode     bool
	watchDebounce time.Duration
)

func init() {
	rootCmd.AddCommand(expandCmd)

	expandCmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input configuration file, - for stdin (required)")
	expandCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (default: stdout)")
	expandCmd.Flags().StringVarP(&outputFormat, "format", "f", "", "Output format: text, json or yaml (default: auto-detect from extension)")
	expandCmd.Flags().BoolVarP(&annotate, "annotate", "a", false, "Prefix text output lines with name:line")
	expandCmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "Watch the input and storage root and re-expand on change")
	expandCmd.Flags().DurationVar(&watchDebounce, "debounce", 0, "Debounce interval for watch mode (default: watch.debounce_ms)")

	if err := expandCmd.MarkFlagRequired("input"); err != nil {
		panic(fmt.Sprintf("failed to mark input flag required: %v", err))
	}
}

func runExpand(cmd *cobra.Command, args []string) error {
	if watchMode {
		return runExpandWatch(cmd)
	}
	return doExpand(cmd)
}

func doExpand(cmd *cobra.Command) error {
	s, err := openSession(newLogger(cmd))
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.parse(cmd.Context(), inputPath)
	if err != nil {
		return err
	}

	format, err := expandFormat()
	if err != nil {
		return err
	}
	out, err := renderResult(res, format, annotate || s.cfg.Output.Annotate)
	if err != nil {
		return fmt.Errorf("generating output: %w", err)
	}

	if outputPath == "" {
		_, err = fmt.Fprint(cmd.OutOrStdout(), out)
		return err
	}
	if err := os.WriteFile(outputPath, []byte(out), 0600); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	cmd.Printf("Wrote %d lines (%d injections) to %s\n", len(res.Lines), res.Stats.Injected, outputPath)
	return nil
}

func expandFormat() (string, error) {
	format := strings.ToLower(outputFormat)
	if format == "" && outputPath != "" {
		switch strings.ToLower(filepath.Ext(outputPath)) {
		case ".json":
			format = "json"
		case ".yaml", ".yml":
			format = "yaml"
		}
	}
	switch format {
	case "":
		return "text", nil
	case "text", "json", "yaml":
		return format, nil
	default:
		return "", fmt.Errorf("unsupported format: %s (use text, json, or yaml)", outputFormat)
	}
}

func renderResult(res *confparse.Result, format string, annotate bool) (string, error) {
	switch format {
	case "json":
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data) + "\n", nil
	case "yaml":
		data, err := yaml.Marshal(res)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	var sb strings.Builder
	for _, line := range res.Lines {
		if annotate {
			sb.WriteString(line.Pos.String())
			sb.WriteString(": ")
		}
		sb.WriteString(line.Text)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

func runExpandWatch(cmd *cobra.Command) error {
	if outputPath == "" {
		return fmt.Errorf("--output is required for watch mode")
	}
	if inputPath == stdinName {
		return fmt.Errorf("watch mode needs an input file")
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	debounce := watchDebounce
	if debounce <= 0 {
		debounce = cfg.DebounceInterval()
	}

	cmd.Println("Starting watch mode...")
	if err := doExpand(cmd); err != nil {
		cmd.Printf("Initial expansion failed: %v\n", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace files, so the directory is watched instead of the file.
	absInput, err := filepath.Abs(inputPath)
	if err != nil {
		return fmt.Errorf("input path error: %w", err)
	}
	if err := watcher.Add(filepath.Dir(absInput)); err != nil {
		return fmt.Errorf("adding input to watcher: %w", err)
	}
	cmd.Printf("Watching file: %s\n", inputPath)

	if root := strings.TrimSpace(cfg.Storage.Root); root != "" {
		err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return watcher.Add(path)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("walking storage root: %w", err)
		}
		cmd.Printf("Watching storage: %s\n", root)
	}

	absOutput, _ := filepath.Abs(outputPath)
	inputDir := filepath.Dir(absInput)

	cmd.Println("Press Ctrl+C to stop")

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-cmd.Context().Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			name, _ := filepath.Abs(event.Name)
			if name == absOutput {
				continue
			}
			// Other files next to the input are not read.
			if filepath.Dir(name) == inputDir && name != absInput && !underRoot(name, cfg.Storage.Root) {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounce, func() {
				cmd.Printf("\nFile changed: %s\n", event.Name)
				if err := doExpand(cmd); err != nil {
					cmd.Printf("Expansion failed: %v\n", err)
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			cmd.Printf("Watcher error: %v\n", err)
		}
	}
}

func underRoot(path, root string) bool {
	root = strings.TrimSpace(root)
	if root == "" {
		return false
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
