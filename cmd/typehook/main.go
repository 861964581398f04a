package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	flagDB     string
	flagFormat string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "typehook",
	Short:         "Type-checking extensions driven by Risor scripts",
	Long:          "typehook checks Java sources with a tree-sitter reference checker and lets Risor extension scripts resolve, silence or reroute what the checker reports.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if flagFormat == "" {
			flagFormat = defaultFormat(os.Stdout.Fd())
		}
		return validateFormat(flagFormat)
	},
	// No Run; prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "report database path, relative paths resolve against the repo root")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "", "output format: json|text (default: text on a terminal, json otherwise)")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(pointsCmd)
	rootCmd.AddCommand(reportCmd)
}

// defaultFormat picks text for terminals and json for pipes.
func defaultFormat(fd uintptr) string {
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return "text"
	}
	return "json"
}

// outputResult writes result to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(os.Stdout, result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the report database path, or "" when no report
// is written. The --db flag wins over the project file.
func resolveDBPath(repoRoot string, cfg *Config) string {
	db := flagDB
	base := repoRoot
	if db == "" && cfg != nil && cfg.DB != "" {
		db = cfg.DB
		base = cfg.Dir
	}
	if db == "" || filepath.IsAbs(db) {
		return db
	}
	return filepath.Join(base, db)
}
