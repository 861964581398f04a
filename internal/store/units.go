package store

import (
	"database/sql"
	"fmt"

	"github.com/jward/typehook/internal/diag"
)

// --- Unit operations ---

// UnitByPath returns the most recent unit recorded for path, or nil.
func (s *Store) UnitByPath(path string) (*Unit, error) {
	u := &Unit{}
	err := s.db.QueryRow(
		`SELECT id, unit, path, hash, classes, methods, calls, disabled, checked_at
		 FROM units WHERE path = ? ORDER BY id DESC LIMIT 1`, path,
	).Scan(&u.ID, &u.Unit, &u.Path, &u.Hash, &u.Classes, &u.Methods, &u.Calls, &u.Disabled, &u.CheckedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: unit by path: %w", err)
	}
	return u, nil
}

// Summaries lists every unit with its error, warning and marker counts,
// ordered by path.
func (s *Store) Summaries() ([]*UnitSummary, error) {
	rows, err := s.db.Query(`
		SELECT u.id, u.unit, u.path, u.hash, u.classes, u.methods, u.calls, u.disabled, u.checked_at,
		  (SELECT COUNT(*) FROM diagnostics d WHERE d.unit_id = u.id AND d.severity IN ('error', 'fatal')),
		  (SELECT COUNT(*) FROM diagnostics d WHERE d.unit_id = u.id AND d.severity = 'warning'),
		  (SELECT COUNT(*) FROM dynamic_markers m WHERE m.unit_id = u.id)
		FROM units u ORDER BY u.path, u.id`)
	if err != nil {
		return nil, fmt.Errorf("store: summaries: %w", err)
	}
	defer rows.Close()
	var out []*UnitSummary
	for rows.Next() {
		us := &UnitSummary{}
		if err := rows.Scan(&us.ID, &us.Unit.Unit, &us.Path, &us.Hash, &us.Classes, &us.Methods, &us.Calls,
			&us.Disabled, &us.CheckedAt, &us.Errors, &us.Warnings, &us.Markers); err != nil {
			return nil, fmt.Errorf("store: scan summary: %w", err)
		}
		out = append(out, us)
	}
	return out, rows.Err()
}

// DiagnosticsByUnit returns the diagnostics of a unit in report order.
func (s *Store) DiagnosticsByUnit(unitID int64) ([]diag.Diagnostic, error) {
	rows, err := s.db.Query(
		`SELECT u.unit, d.severity, d.kind, d.point, d.message, d.line, d.col
		 FROM diagnostics d JOIN units u ON u.id = d.unit_id
		 WHERE d.unit_id = ? ORDER BY d.id`, unitID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: diagnostics by unit: %w", err)
	}
	defer rows.Close()
	var out []diag.Diagnostic
	for rows.Next() {
		var d diag.Diagnostic
		var point sql.NullString
		if err := rows.Scan(&d.Unit, &d.Severity, &d.Kind, &point, &d.Message, &d.Line, &d.Col); err != nil {
			return nil, fmt.Errorf("store: scan diagnostic: %w", err)
		}
		d.Point = point.String
		out = append(out, d)
	}
	return out, rows.Err()
}

// MarkersByUnit returns the dynamic markers of a unit in marking order.
func (s *Store) MarkersByUnit(unitID int64) ([]*Marker, error) {
	rows, err := s.db.Query(
		`SELECT id, unit_id, node_kind, text, type_name, line, col
		 FROM dynamic_markers WHERE unit_id = ? ORDER BY id`, unitID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: markers by unit: %w", err)
	}
	defer rows.Close()
	var out []*Marker
	for rows.Next() {
		m := &Marker{}
		if err := rows.Scan(&m.ID, &m.UnitID, &m.NodeKind, &m.Text, &m.TypeName, &m.Line, &m.Col); err != nil {
			return nil, fmt.Errorf("store: scan marker: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GeneratedByUnit returns the generated methods of a unit in creation
// order.
func (s *Store) GeneratedByUnit(unitID int64) ([]*GeneratedMethod, error) {
	rows, err := s.db.Query(
		`SELECT id, unit_id, descriptor_id, name, return_type, deferred
		 FROM generated_methods WHERE unit_id = ? ORDER BY descriptor_id`, unitID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: generated by unit: %w", err)
	}
	defer rows.Close()
	var out []*GeneratedMethod
	for rows.Next() {
		g := &GeneratedMethod{}
		if err := rows.Scan(&g.ID, &g.UnitID, &g.DescriptorID, &g.Name, &g.ReturnType, &g.Deferred); err != nil {
			return nil, fmt.Errorf("store: scan generated method: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// DeleteUnitsByPath removes every unit recorded for path. Child rows go
// with them through ON DELETE CASCADE.
func (s *Store) DeleteUnitsByPath(path string) (int64, error) {
	res, err := s.db.Exec("DELETE FROM units WHERE path = ?", path)
	if err != nil {
		return 0, fmt.Errorf("store: delete units: %w", err)
	}
	return res.RowsAffected()
}

// Record loads everything stored for the unit with the given row ID.
func (s *Store) Record(unitID int64) (*Record, error) {
	r := &Record{}
	err := s.db.QueryRow(
		`SELECT id, unit, path, hash, classes, methods, calls, disabled, checked_at
		 FROM units WHERE id = ?`, unitID,
	).Scan(&r.Unit.ID, &r.Unit.Unit, &r.Unit.Path, &r.Unit.Hash, &r.Unit.Classes, &r.Unit.Methods,
		&r.Unit.Calls, &r.Unit.Disabled, &r.Unit.CheckedAt)
	if err != nil {
		return nil, fmt.Errorf("store: record %d: %w", unitID, err)
	}
	if r.Diagnostics, err = s.DiagnosticsByUnit(unitID); err != nil {
		return nil, err
	}
	if r.Markers, err = s.MarkersByUnit(unitID); err != nil {
		return nil, err
	}
	if r.Generated, err = s.GeneratedByUnit(unitID); err != nil {
		return nil, err
	}
	return r, nil
}
