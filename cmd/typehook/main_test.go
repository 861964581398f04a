package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindRepoRoot_DirectGitDir(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}

	got := findRepoRoot(root)
	assert.Equal(t, root, got)
}

func TestFindRepoRoot_NestedSubdirectory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	deep := filepath.Join(root, "sub", "deep")
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatal(err)
	}

	got := findRepoRoot(deep)
	assert.Equal(t, root, got)
}

func TestFindRepoRoot_NoGitAncestor(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	got := findRepoRoot(dir)
	assert.Equal(t, dir, got)
}

// --- Project file ---

func TestParseConfig(t *testing.T) {
	t.Parallel()
	cfg, err := ParseConfig([]byte(`
scripts:
  - builders.risor
  - console.risor
scripts_dir: ext
debug: true
db: .typehook/report.db
`), "/proj/typehook.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"builders.risor", "console.risor"}, cfg.Scripts)
	assert.Equal(t, "ext", cfg.ScriptsDir)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "/proj", cfg.Dir)
	assert.Equal(t, "/proj/ext", cfg.resolve(cfg.ScriptsDir))
	assert.Equal(t, "/abs/x.risor", cfg.resolve("/abs/x.risor"))
}

func TestParseConfig_Invalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data string
		want string
	}{
		{"empty script", "scripts: [\"\"]", "empty path"},
		{"duplicate script", "scripts: [a.risor, a.risor]", "listed twice"},
		{"bad yaml", "scripts: [", "parsing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.data), "typehook.yaml")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFindConfig_WalksUp(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFile), []byte("scripts: []\n"), 0o644))
	deep := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	got, err := FindConfig(deep)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ConfigFile), got)
}

func TestResolveDBPath(t *testing.T) {
	// Mutates flagDB; not parallel.
	old := flagDB
	t.Cleanup(func() { flagDB = old })

	flagDB = ""
	assert.Equal(t, "", resolveDBPath("/repo", nil))
	assert.Equal(t, "/proj/r.db", resolveDBPath("/repo", &Config{DB: "r.db", Dir: "/proj"}))

	flagDB = "out/r.db"
	assert.Equal(t, "/repo/out/r.db", resolveDBPath("/repo", &Config{DB: "r.db", Dir: "/proj"}))

	flagDB = "/abs/r.db"
	assert.Equal(t, "/abs/r.db", resolveDBPath("/repo", nil))
}

func TestValidateFormat(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
	assert.Error(t, validateFormat("xml"))
}

func TestDefaultFormat_NotATerminal(t *testing.T) {
	t.Parallel()
	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, "json", defaultFormat(f.Fd()))
}

// --- check ---

const boxSource = `class Box {
    String label() {
        return magic;
    }
}
`

const magicScript = `
unresolvedVariable(func(ctx, v) {
	if v.Name() == "magic" {
		ctx.make_dynamic(v, "java.lang.String")
	}
})
`

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCollectFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b", "B.java"), "class B {}")
	writeFile(t, filepath.Join(dir, "A.java"), "class A {}")
	writeFile(t, filepath.Join(dir, "notes.txt"), "")
	writeFile(t, filepath.Join(dir, ".cache", "C.java"), "class C {}")

	files, err := collectFiles([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "A.java"),
		filepath.Join(dir, "b", "B.java"),
	}, files)

	_, err = collectFiles([]string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func TestCheckFiles_WithoutScripts(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := writeFile(t, filepath.Join(dir, "Box.java"), boxSource)

	units, err := checkFiles(context.Background(), checkOptions{logWriter: io.Discard}, nil, []string{src})
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, 1, units[0].Classes)
	assert.Equal(t, 1, units[0].Methods)
	require.Len(t, units[0].Diagnostics, 1)
	assert.Equal(t, "cannot find symbol: variable magic", units[0].Diagnostics[0].Message)
	assert.Equal(t, 3, units[0].Diagnostics[0].Line)
	assert.Equal(t, 1, countErrors(units))
}

func TestCheckFiles_ScriptAndStore(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := writeFile(t, filepath.Join(dir, "Box.java"), boxSource)
	script := writeFile(t, filepath.Join(dir, "ext", "magic.risor"), magicScript)

	st, err := openStore(filepath.Join(dir, "report.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	opts := checkOptions{scripts: []string{script}, logWriter: io.Discard}
	ctx := context.Background()

	units, err := checkFiles(ctx, opts, st, []string{src})
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.False(t, units[0].Skipped)
	assert.False(t, units[0].Disabled)
	assert.Empty(t, units[0].Diagnostics)
	assert.Equal(t, 1, units[0].Markers)

	// Same source and scripts: the recorded report is reused.
	units, err = checkFiles(ctx, opts, st, []string{src})
	require.NoError(t, err)
	assert.True(t, units[0].Skipped)

	opts.force = true
	units, err = checkFiles(ctx, opts, st, []string{src})
	require.NoError(t, err)
	assert.False(t, units[0].Skipped)

	detail, err := unitDetail(st, src)
	require.NoError(t, err)
	assert.Equal(t, src, detail.Path)
	assert.Equal(t, 0, detail.Errors)
	require.Len(t, detail.Markers, 1)
	assert.Equal(t, "variable", detail.Markers[0].Kind)
	assert.Equal(t, "magic", detail.Markers[0].Text)
	assert.Equal(t, "java.lang.String", detail.Markers[0].Type)

	summaries, err := unitSummaries(st)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].Markers)

	_, err = unitDetail(st, filepath.Join(dir, "Other.java"))
	assert.Error(t, err)
}

func TestCheckFiles_BrokenScriptDisablesExtension(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := writeFile(t, filepath.Join(dir, "Box.java"), boxSource)
	script := writeFile(t, filepath.Join(dir, "broken.risor"), "unresolvedVariable(func(ctx, v) {")

	units, err := checkFiles(context.Background(), checkOptions{scripts: []string{script}, logWriter: io.Discard}, nil, []string{src})
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.True(t, units[0].Disabled)
	// The setup failure plus the unresolved variable.
	assert.GreaterOrEqual(t, countErrors(units), 2)
}

// --- text output ---

func TestOutputResultText_Units(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	err := outputResultText(&buf, CLIResult{Command: "check", Results: []CLIUnit{
		{Path: "A.java", Diagnostics: []CLIDiagnostic{
			{Severity: "error", Kind: "type", Message: "cannot find symbol: variable x", Line: 3, Col: 16},
			{Severity: "warning", Kind: "handler", Point: "finish", Message: "scope left open"},
		}},
		{Path: "B.java", Skipped: true},
	}})
	require.NoError(t, err)
	assert.Equal(t, "A.java:3:16: error: cannot find symbol: variable x\n"+
		"A.java: warning: [finish] scope left open\n"+
		"2 file(s), 1 error(s), 1 unchanged\n", buf.String())
}

func TestOutputResultText_Points(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, outputResultText(&buf, CLIResult{Command: "points", Results: listPoints()}))
	out := buf.String()
	assert.Contains(t, out, "POINT")
	assert.Contains(t, out, "methodNotFound")
	assert.Contains(t, out, "accumulate")
}

func TestOutputResultText_Detail(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	detail := CLIUnitDetail{
		CLIUnitSummary: CLIUnitSummary{ID: 1, Unit: "A.java", Path: "A.java", CheckedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		Markers:        []CLIMarker{{Kind: "property", Text: "out", Type: "java.io.PrintStream", Line: 2, Col: 9}},
		Generated:      []CLIGenerated{{Name: "println", ReturnType: "void"}, {Name: "later", Deferred: true}},
	}
	require.NoError(t, outputResultText(&buf, CLIResult{Command: "report", Results: detail}))
	out := buf.String()
	assert.Contains(t, out, "Unit: A.java")
	assert.Contains(t, out, "Checked: 2026-01-02 03:04:05")
	assert.Contains(t, out, "java.io.PrintStream")
	assert.Contains(t, out, "  void println")
	assert.Contains(t, out, "  (deferred) later")
}

func TestOutputResultText_Unsupported(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	assert.Error(t, outputResultText(&buf, CLIResult{Results: 42}))
}

func TestListPoints(t *testing.T) {
	t.Parallel()
	points := listPoints()
	require.Len(t, points, 16)
	for _, p := range points {
		if p.Name == "missingMethod" {
			assert.Equal(t, "accumulate", p.Policy)
			assert.Equal(t, []string{"methodNotFound"}, p.Aliases)
			return
		}
	}
	t.Fatal("missingMethod not listed")
}
