package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/grokify/configsplice/pkg/config"
)

var version = "0.1.0"

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "configsplice",
	Short: "Expand configuration files with injected lines",
	Long: `configsplice reads line-oriented configuration files and expands the
directives that splice generated lines into the input.

Directive output is read as if it had been written in place of the
directive, and reading resumes right after the directive once it is
exhausted. Injected lines may contain further directives.

Built-in directives:
  Exec <command line>    lines printed by a shell command
  SpliceStorage <root>   select the directory SpliceFile reads from
  SpliceFile <path>      rows stored in a text or NDJSON file
  Splice <name>          rows of a source defined in the config file

Examples:
  # Print the expanded configuration
  configsplice expand -i httpd.conf

  # Show where every line came from
  configsplice expand -i httpd.conf --annotate

  # Check several files
  configsplice check conf.d/*.conf`,
	Version: version,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Settings file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "V", false, "Log directives and injections to stderr")
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func newLogger(cmd *cobra.Command) *log.Logger {
	if !verbose {
		return nil
	}
	return log.New(cmd.ErrOrStderr(), "", log.Ltime)
}
