package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check [file]...",
	Short: "Check that configuration files expand without errors",
	Long: `Expand each configuration file and report whether it succeeded.

Failures name the position of the failing directive, including the
injected stream it was read from.

Examples:
  # Check a single file
  configsplice check httpd.conf

  # Check several files with details
  configsplice check conf.d/*.conf --details`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

var detailsCheck bool

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().BoolVarP(&detailsCheck, "details", "d", false, "Show per-file line and injection counts")
}

func runCheck(cmd *cobra.Command, args []string) error {
	s, err := openSession(newLogger(cmd))
	if err != nil {
		return err
	}
	defer s.Close()

	totalLines := 0
	totalErrors := 0
	validFiles := 0

	for _, file := range args {
		res, err := s.parse(cmd.Context(), file)
		if err != nil {
			cmd.Printf("FAIL %s: %v\n", filepath.Base(file), err)
			totalErrors++
			continue
		}

		validFiles++
		totalLines += len(res.Lines)

		if detailsCheck {
			cmd.Printf("OK   %s (%d lines)\n", filepath.Base(file), len(res.Lines))
			cmd.Printf("     directives: %d\n", len(res.Directives))
			cmd.Printf("     injections: %d, max depth: %d\n", res.Stats.Injected, res.Stats.MaxDepth)
		} else {
			cmd.Printf("OK   %s\n", filepath.Base(file))
		}
	}

	cmd.Printf("\nCheck Summary:\n")
	cmd.Printf("  Files: %d valid, %d invalid, %d total\n", validFiles, totalErrors, len(args))
	cmd.Printf("  Lines: %d total\n", totalLines)

	if totalErrors > 0 {
		return fmt.Errorf("%d file(s) failed", totalErrors)
	}

	cmd.Printf("\nAll files valid.\n")
	return nil
}
