package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jward/typehook/internal/ast"
	"github.com/jward/typehook/internal/diag"
	"github.com/jward/typehook/internal/synth"
)

// Batch buffers the report of one unit in memory while the unit is being
// checked. It is a diag.Reporter, so an Extension and a host checker can
// both report into it; Store.Commit writes it in one transaction.
type Batch struct {
	mu sync.Mutex // guards Diagnostics

	Unit        Unit
	Diagnostics []diag.Diagnostic
	Markers     []Marker
	Generated   []GeneratedMethod
}

var _ diag.Reporter = (*Batch)(nil)

// NewBatch starts a batch for the unit checked from path.
func NewBatch(unit, path, hash string) *Batch {
	return &Batch{Unit: Unit{Unit: unit, Path: path, Hash: hash}}
}

// Report buffers d.
func (b *Batch) Report(d diag.Diagnostic) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Diagnostics = append(b.Diagnostics, d)
}

// AddMarkers records the nodes handlers declared dynamic.
func (b *Batch) AddMarkers(nodes []ast.Node) {
	for _, n := range nodes {
		m := Marker{NodeKind: nodeKind(n), Text: n.Text()}
		if t, ok := ast.DynamicType(n); ok {
			m.TypeName = t.String()
		}
		p := n.Position()
		m.Line, m.Col = p.Line, p.Col
		b.Markers = append(b.Markers, m)
	}
}

// AddGenerated records synthetic methods. Deferred return types are
// resolved once, here.
func (b *Batch) AddGenerated(ds []synth.Descriptor) {
	for _, d := range ds {
		b.Generated = append(b.Generated, GeneratedMethod{
			DescriptorID: d.ID,
			Name:         d.Name,
			ReturnType:   d.ReturnType().String(),
			Deferred:     d.IsDeferred(),
		})
	}
}

func nodeKind(n ast.Node) string {
	switch n := n.(type) {
	case *ast.VariableExpr:
		return "variable"
	case *ast.PropertyExpr:
		if n.Attribute {
			return "attribute"
		}
		return "property"
	case *ast.MethodCall:
		return "call"
	}
	return "node"
}

// Commit inserts the batch within a single transaction. Earlier units
// recorded for the same path are replaced. The unit row is inserted first
// and its real ID is written into every child row.
func (s *Store) Commit(b *Batch) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("store: commit: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM units WHERE path = ?", b.Unit.Path); err != nil {
		return 0, fmt.Errorf("store: commit: replace %s: %w", b.Unit.Path, err)
	}

	u := b.Unit
	if u.CheckedAt.IsZero() {
		u.CheckedAt = time.Now()
	}
	unitID, err := insertUnitTx(tx, &u)
	if err != nil {
		return 0, fmt.Errorf("store: commit: unit %q: %w", u.Unit, err)
	}

	b.mu.Lock()
	diags := append([]diag.Diagnostic(nil), b.Diagnostics...)
	b.mu.Unlock()
	for _, d := range diags {
		if _, err := tx.Exec(
			`INSERT INTO diagnostics (unit_id, severity, kind, point, message, line, col)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			unitID, string(d.Severity), string(d.Kind), nullString(d.Point), d.Message, d.Line, d.Col,
		); err != nil {
			return 0, fmt.Errorf("store: commit: diagnostic: %w", err)
		}
	}

	for _, m := range b.Markers {
		if _, err := tx.Exec(
			`INSERT INTO dynamic_markers (unit_id, node_kind, text, type_name, line, col)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			unitID, m.NodeKind, m.Text, m.TypeName, m.Line, m.Col,
		); err != nil {
			return 0, fmt.Errorf("store: commit: marker %q: %w", m.Text, err)
		}
	}

	for _, g := range b.Generated {
		if _, err := tx.Exec(
			`INSERT INTO generated_methods (unit_id, descriptor_id, name, return_type, deferred)
			 VALUES (?, ?, ?, ?, ?)`,
			unitID, int64(g.DescriptorID), g.Name, g.ReturnType, g.Deferred,
		); err != nil {
			return 0, fmt.Errorf("store: commit: generated method %q: %w", g.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}
	b.Unit.ID = unitID
	return unitID, nil
}

func insertUnitTx(tx *sql.Tx, u *Unit) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO units (unit, path, hash, classes, methods, calls, disabled, checked_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Unit, u.Path, u.Hash, u.Classes, u.Methods, u.Calls, u.Disabled, u.CheckedAt,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	u.ID = id
	return id, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
