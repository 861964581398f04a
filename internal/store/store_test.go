package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/typehook/internal/ast"
	"github.com/jward/typehook/internal/diag"
	"github.com/jward/typehook/internal/synth"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

// commitTestUnit commits a batch with one error and one warning for path.
func commitTestUnit(t *testing.T, s *Store, unit, path, hash string) int64 {
	t.Helper()
	b := NewBatch(unit, path, hash)
	b.Unit.Classes, b.Unit.Methods, b.Unit.Calls = 1, 2, 3
	b.Report(diag.Diagnostic{Unit: unit, Severity: diag.SeverityError, Kind: diag.KindType, Message: "cannot find symbol", Line: 3, Col: 9})
	b.Report(diag.Diagnostic{Unit: unit, Severity: diag.SeverityWarning, Kind: diag.KindHandler, Point: "finish", Message: "1 handler scope(s) still open at end of unit"})
	id, err := s.Commit(b)
	require.NoError(t, err)
	require.Positive(t, id)
	return id
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for _, table := range []string{"units", "diagnostics", "dynamic_markers", "generated_methods"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
}

func TestMigrate_WALMode(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	var mode string
	err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode)
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)
}

// =============================================================================
// Batches
// =============================================================================

func TestCommit_RoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	b := NewBatch("Main.java", "/src/Main.java", "h1")
	b.Unit.CheckedAt = time.Now().Truncate(time.Second)

	factory := synth.NewFactory()
	fixed := factory.Fixed("out", ast.TypeOf("java.io.PrintStream"))
	deferred := factory.Deferred("size", func() (*ast.Type, error) { return ast.Int, nil })
	b.AddGenerated([]synth.Descriptor{fixed, deferred})

	v := ast.NewVariableExpr("out", ast.Pos{Line: 4, Col: 5}, "out")
	v.Meta().Put(ast.DynamicResolution, ast.TypeOf("java.io.PrintStream"))
	p := ast.NewAttributeExpr("cfg.@name", ast.Pos{Line: 6, Col: 1}, ast.TypeOf("Config"), "name")
	b.AddMarkers([]ast.Node{v, p})
	b.Report(diag.Diagnostic{Unit: "Main.java", Severity: diag.SeverityError, Kind: diag.KindResultShape, Point: "missingMethod", Message: "bad result"})

	id, err := s.Commit(b)
	require.NoError(t, err)
	assert.Equal(t, id, b.Unit.ID)

	rec, err := s.Record(id)
	require.NoError(t, err)
	assert.Equal(t, "Main.java", rec.Unit.Unit)
	assert.Equal(t, "/src/Main.java", rec.Unit.Path)
	assert.Equal(t, "h1", rec.Unit.Hash)

	require.Len(t, rec.Diagnostics, 1)
	assert.Equal(t, diag.KindResultShape, rec.Diagnostics[0].Kind)
	assert.Equal(t, "missingMethod", rec.Diagnostics[0].Point)
	assert.Equal(t, "Main.java", rec.Diagnostics[0].Unit)

	require.Len(t, rec.Markers, 2)
	assert.Equal(t, "variable", rec.Markers[0].NodeKind)
	assert.Equal(t, "java.io.PrintStream", rec.Markers[0].TypeName)
	assert.Equal(t, 4, rec.Markers[0].Line)
	assert.Equal(t, "attribute", rec.Markers[1].NodeKind)
	assert.Empty(t, rec.Markers[1].TypeName)

	require.Len(t, rec.Generated, 2)
	assert.Equal(t, fixed.ID, rec.Generated[0].DescriptorID)
	assert.Equal(t, "java.io.PrintStream", rec.Generated[0].ReturnType)
	assert.False(t, rec.Generated[0].Deferred)
	assert.Equal(t, "int", rec.Generated[1].ReturnType)
	assert.True(t, rec.Generated[1].Deferred)
}

func TestCommit_ReplacesEarlierUnitForPath(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	first := commitTestUnit(t, s, "a-1", "/src/A.java", "h1")
	second := commitTestUnit(t, s, "a-2", "/src/A.java", "h2")
	assert.NotEqual(t, first, second)

	u, err := s.UnitByPath("/src/A.java")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "a-2", u.Unit)

	diags, err := s.DiagnosticsByUnit(first)
	require.NoError(t, err)
	assert.Empty(t, diags, "child rows of the replaced unit should cascade")
}

func TestBatch_ReportIsConcurrencySafe(t *testing.T) {
	t.Parallel()

	b := NewBatch("u", "/u.java", "")
	done := make(chan struct{})
	for range 8 {
		go func() {
			defer func() { done <- struct{}{} }()
			for range 50 {
				b.Report(diag.Diagnostic{Message: "x"})
			}
		}()
	}
	for range 8 {
		<-done
	}
	assert.Len(t, b.Diagnostics, 400)
}

// =============================================================================
// Queries
// =============================================================================

func TestUnitByPath_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	u, err := s.UnitByPath("/nope.java")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestSummaries(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	commitTestUnit(t, s, "b", "/src/B.java", "h")
	commitTestUnit(t, s, "a", "/src/A.java", "h")

	sums, err := s.Summaries()
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, "/src/A.java", sums[0].Path)
	assert.Equal(t, "a", sums[0].Unit.Unit)
	assert.Equal(t, 1, sums[0].Errors)
	assert.Equal(t, 1, sums[0].Warnings)
	assert.Equal(t, 0, sums[0].Markers)
	assert.Equal(t, 3, sums[0].Calls)
}

func TestDeleteUnitsByPath(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	id := commitTestUnit(t, s, "a", "/src/A.java", "h")
	n, err := s.DeleteUnitsByPath("/src/A.java")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	diags, err := s.DiagnosticsByUnit(id)
	require.NoError(t, err)
	assert.Empty(t, diags)

	_, err = s.Record(id)
	require.Error(t, err)
}

// =============================================================================
// Hashing
// =============================================================================

func TestComputeHash_Deterministic(t *testing.T) {
	t.Parallel()

	scripts := map[string][]byte{"a.risor": []byte("setup(func(ctx) {})"), "b.risor": []byte("")}
	h1 := ComputeHash([]byte("class A {}"), scripts)
	h2 := ComputeHash([]byte("class A {}"), map[string][]byte{"b.risor": []byte(""), "a.risor": []byte("setup(func(ctx) {})")})
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestComputeHash_Changes(t *testing.T) {
	t.Parallel()

	base := ComputeHash([]byte("class A {}"), nil)
	assert.NotEqual(t, base, ComputeHash([]byte("class B {}"), nil))
	assert.NotEqual(t, base, ComputeHash([]byte("class A {}"), map[string][]byte{"x.risor": nil}))
}

func TestUnchanged(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	ok, err := s.Unchanged("/src/A.java", "h")
	require.NoError(t, err)
	assert.False(t, ok)

	commitTestUnit(t, s, "a", "/src/A.java", "h")
	ok, err = s.Unchanged("/src/A.java", "h")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Unchanged("/src/A.java", "other")
	require.NoError(t, err)
	assert.False(t, ok)
}
