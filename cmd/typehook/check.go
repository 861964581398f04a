package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/typehook"
	"github.com/jward/typehook/internal/diag"
	"github.com/jward/typehook/internal/javahost"
	"github.com/jward/typehook/internal/store"
)

var (
	flagExt        []string
	flagScriptsDir string
	flagConfig     string
	flagDebug      bool
	flagWatch      bool
	flagForce      bool
)

var checkCmd = &cobra.Command{
	Use:   "check [files or directories...]",
	Short: "Type-check Java sources with extension scripts",
	Long:  "Checks each Java file as its own compilation unit. Extension scripts run once per unit; diagnostics are printed and, with --db, recorded.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().StringArrayVar(&flagExt, "ext", nil, "extension script (repeatable, loaded in order)")
	checkCmd.Flags().StringVar(&flagScriptsDir, "scripts-dir", "", "directory relative script paths and imports resolve against")
	checkCmd.Flags().StringVar(&flagConfig, "config", "", "project file (default: nearest "+ConfigFile+")")
	checkCmd.Flags().BoolVar(&flagDebug, "debug", false, "log dynamic-resolution decisions to stderr")
	checkCmd.Flags().BoolVar(&flagWatch, "watch", false, "re-check files when they or the scripts change")
	checkCmd.Flags().BoolVar(&flagForce, "force", false, "re-check files whose report is up to date")
}

// checkOptions is the resolved configuration of one check run.
type checkOptions struct {
	scripts    []string
	scriptsDir string
	debug      bool
	force      bool
	logWriter  io.Writer
}

func runCheck(cmd *cobra.Command, args []string) error {
	start := time.Now()

	cfg, err := loadProjectConfig()
	if err != nil {
		return outputError("check", err)
	}
	opts := resolveCheckOptions(cfg)

	files, err := collectFiles(args)
	if err != nil {
		return outputError("check", err)
	}

	var st *store.Store
	cwd, _ := os.Getwd()
	if dbPath := resolveDBPath(findRepoRoot(cwd), cfg); dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return outputError("check", fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err))
		}
		if st, err = openStore(dbPath); err != nil {
			return outputError("check", err)
		}
		defer st.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	units, err := checkFiles(ctx, opts, st, files)
	if err != nil {
		return outputError("check", err)
	}
	if err := outputResult(CLIResult{Command: "check", Results: units}); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Checked %d file(s) in %s\n", len(files), time.Since(start).Round(time.Millisecond))

	if flagWatch {
		opts.force = true
		watched := append(append([]string(nil), files...), scriptPaths(opts)...)
		fmt.Fprintf(os.Stderr, "Watching %d file(s), press Ctrl-C to stop\n", len(watched))
		return watchFiles(ctx, watched, func(changed string) {
			// A changed script affects every unit.
			targets := files
			if isSource(files, changed) {
				targets = []string{changed}
			}
			units, err := checkFiles(ctx, opts, st, targets)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				return
			}
			_ = outputResult(CLIResult{Command: "check", Results: units})
		})
	}

	if n := countErrors(units); n > 0 {
		errorHandled = true
		return fmt.Errorf("%d error(s)", n)
	}
	return nil
}

func loadProjectConfig() (*Config, error) {
	path := flagConfig
	if path == "" {
		found, err := FindConfig(".")
		if err != nil {
			return nil, err
		}
		if found == "" {
			return nil, nil
		}
		path = found
	}
	return LoadConfig(path)
}

// resolveCheckOptions merges the project file with the flags. Flags win.
func resolveCheckOptions(cfg *Config) checkOptions {
	opts := checkOptions{
		scripts:    flagExt,
		scriptsDir: flagScriptsDir,
		debug:      flagDebug,
		force:      flagForce,
		logWriter:  os.Stderr,
	}
	if cfg == nil {
		return opts
	}
	if len(opts.scripts) == 0 {
		for _, s := range cfg.Scripts {
			if cfg.ScriptsDir == "" {
				s = cfg.resolve(s)
			}
			opts.scripts = append(opts.scripts, s)
		}
	}
	if opts.scriptsDir == "" {
		opts.scriptsDir = cfg.resolve(cfg.ScriptsDir)
	}
	opts.debug = opts.debug || cfg.Debug
	return opts
}

func openStore(dbPath string) (*store.Store, error) {
	st, err := store.NewStore(dbPath)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// collectFiles expands directories into the Java files below them.
func collectFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("not found: %s", arg)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() && path != arg && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if !d.IsDir() && javahost.IsJavaFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", arg, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

func scriptPaths(opts checkOptions) []string {
	out := make([]string, len(opts.scripts))
	for i, s := range opts.scripts {
		if opts.scriptsDir != "" && !filepath.IsAbs(s) {
			s = filepath.Join(opts.scriptsDir, s)
		}
		out[i] = s
	}
	return out
}

// readScripts loads script sources for hashing. Unreadable scripts are
// left out; Setup reports them.
func readScripts(opts checkOptions) map[string][]byte {
	out := make(map[string][]byte, len(opts.scripts))
	for _, p := range scriptPaths(opts) {
		if data, err := os.ReadFile(p); err == nil {
			out[p] = data
		}
	}
	return out
}

func checkFiles(ctx context.Context, opts checkOptions, st *store.Store, files []string) ([]CLIUnit, error) {
	scripts := readScripts(opts)
	units := make([]CLIUnit, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return units, err
		}
		u, err := checkFile(ctx, opts, st, scripts, f)
		if err != nil {
			return units, err
		}
		units = append(units, u)
	}
	return units, nil
}

// checkFile checks one file as its own unit with a fresh Extension.
func checkFile(ctx context.Context, opts checkOptions, st *store.Store, scripts map[string][]byte, path string) (CLIUnit, error) {
	unit := CLIUnit{Path: path, Unit: path}
	src, err := os.ReadFile(path)
	if err != nil {
		return unit, fmt.Errorf("reading %s: %w", path, err)
	}

	hash := store.ComputeHash(src, scripts)
	if st != nil && !opts.force {
		unchanged, err := st.Unchanged(path, hash)
		if err != nil {
			return unit, err
		}
		if unchanged {
			unit.Skipped = true
			return unit, nil
		}
	}

	extOpts := []typehook.Option{
		typehook.WithUnitID(path),
		typehook.WithScripts(opts.scripts...),
		typehook.WithDebug(opts.debug),
		typehook.WithLogWriter(opts.logWriter),
	}
	if opts.scriptsDir != "" {
		extOpts = append(extOpts, typehook.WithScriptsDir(opts.scriptsDir))
	}
	var batch *store.Batch
	if st != nil {
		batch = store.NewBatch(path, path, hash)
		extOpts = append(extOpts, typehook.WithReporter(batch))
	}

	ext := typehook.New(extOpts...)
	// A failed setup leaves the extension disabled; the file is still
	// checked, with every extension point neutral.
	_ = ext.Setup(ctx)
	unit.Disabled = ext.Disabled()

	var hostOpts []javahost.Option
	if batch != nil {
		hostOpts = append(hostOpts, javahost.WithReporter(batch))
	}
	res, err := javahost.New(ext, hostOpts...).CheckSource(ctx, path, src)
	if err != nil {
		return unit, err
	}
	ext.Finish(ctx)

	unit.Classes, unit.Methods, unit.Calls = res.Classes, res.Methods, res.Calls
	unit.Markers = len(ext.Marked())
	unit.Generated = len(ext.Generated())
	unit.Diagnostics = append(toCLIDiagnostics(ext.Diagnostics()), toCLIDiagnostics(res.Diagnostics)...)

	if batch != nil {
		batch.Unit.Classes, batch.Unit.Methods, batch.Unit.Calls = res.Classes, res.Methods, res.Calls
		batch.Unit.Disabled = unit.Disabled
		batch.AddMarkers(ext.Marked())
		batch.AddGenerated(ext.Generated())
		if _, err := st.Commit(batch); err != nil {
			return unit, err
		}
	}
	return unit, nil
}

func toCLIDiagnostics(ds []diag.Diagnostic) []CLIDiagnostic {
	out := make([]CLIDiagnostic, len(ds))
	for i, d := range ds {
		out[i] = CLIDiagnostic{
			Severity: string(d.Severity),
			Kind:     string(d.Kind),
			Point:    d.Point,
			Message:  d.Message,
			Line:     d.Line,
			Col:      d.Col,
		}
	}
	return out
}

func countErrors(units []CLIUnit) int {
	n := 0
	for _, u := range units {
		n += u.Errors()
	}
	return n
}

func isSource(files []string, path string) bool {
	for _, f := range files {
		if filepath.Clean(f) == filepath.Clean(path) {
			return true
		}
	}
	return false
}
