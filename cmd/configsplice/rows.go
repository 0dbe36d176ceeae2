package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/grokify/omnistorage/backend/file"
	"github.com/spf13/cobra"

	"github.com/grokify/configsplice/pkg/rows"
)

var rowsCmd = &cobra.Command{
	Use:   "rows",
	Short: "Manage stored and named rows",
}

var rowsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Store rows for SpliceFile",
	Long: `Store rows in NDJSON format below the storage root.

Rows are read from stdin, one per line, or from the output of --command.
Paths ending in .ndjson.gz are gzip-compressed.

Examples:
  # Store the lines of a file
  configsplice rows export -o vhosts.ndjson --storage ./rows < vhosts.txt

  # Store the output of a command
  configsplice rows export -o modules.ndjson.gz --command "ls /etc/httpd/modules"`,
	Args: cobra.NoArgs,
	RunE: runRowsExport,
}

var rowsShowCmd = &cobra.Command{
	Use:   "show <source>",
	Short: "Print the rows of a named source",
	Args:  cobra.ExactArgs(1),
	RunE:  runRowsShow,
}

var rowsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the named sources",
	Args:  cobra.NoArgs,
	RunE:  runRowsList,
}

var (
	exportPath    string
	exportRoot    string
	exportCommand string
)

func init() {
	rootCmd.AddCommand(rowsCmd)
	rowsCmd.AddCommand(rowsExportCmd, rowsShowCmd, rowsListCmd)

	rowsExportCmd.Flags().StringVarP(&exportPath, "output", "o", "", "Path below the storage root (.ndjson or .ndjson.gz, required)")
	rowsExportCmd.Flags().StringVar(&exportRoot, "storage", "", "Storage root (default: storage.root)")
	rowsExportCmd.Flags().StringVar(&exportCommand, "command", "", "Shell command whose output lines are stored")

	if err := rowsExportCmd.MarkFlagRequired("output"); err != nil {
		panic(fmt.Sprintf("failed to mark output flag required: %v", err))
	}
}

func runRowsExport(cmd *cobra.Command, args []string) error {
	root := exportRoot
	if root == "" {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		root = strings.TrimSpace(cfg.Storage.Root)
	}
	if root == "" {
		return fmt.Errorf("--storage or storage.root is required")
	}

	var out []string
	if exportCommand != "" {
		var err error
		out, err = rows.Shell(exportCommand).Produce(cmd.Context())
		if err != nil {
			return err
		}
	} else {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		out = rows.SplitLines(string(data))
	}

	backend := file.New(file.Config{Root: root})
	defer func() { _ = backend.Close() }()

	w, err := rows.NewStorageWriter(cmd.Context(), backend, exportPath)
	if err != nil {
		return err
	}
	for _, row := range out {
		if err := w.WriteRow(row); err != nil {
			_ = w.Close()
			return err
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", exportPath, err)
	}

	cmd.Printf("Stored %d rows in %s\n", w.Count(), exportPath)
	return nil
}

func runRowsShow(cmd *cobra.Command, args []string) error {
	s, err := openSession(newLogger(cmd))
	if err != nil {
		return err
	}
	defer s.Close()

	src, ok := s.registry.Get(args[0])
	if !ok {
		return fmt.Errorf("unknown source %q", args[0])
	}
	out, err := src.Produce(cmd.Context())
	if err != nil {
		return err
	}
	for _, row := range out {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), row); err != nil {
			return err
		}
	}
	return nil
}

func runRowsList(cmd *cobra.Command, args []string) error {
	s, err := openSession(newLogger(cmd))
	if err != nil {
		return err
	}
	defer s.Close()

	for _, name := range s.registry.Names() {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
			return err
		}
	}
	return nil
}
