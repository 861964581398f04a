package store

import (
	"time"

	"github.com/jward/typehook/internal/diag"
)

// Report domain types

type Unit struct {
	ID        int64
	Unit      string
	Path      string
	Hash      string
	Classes   int
	Methods   int
	Calls     int
	Disabled  bool
	CheckedAt time.Time
}

// Marker is a reference a handler declared dynamic.
type Marker struct {
	ID       int64
	UnitID   int64
	NodeKind string // variable, property, attribute, call
	Text     string
	TypeName string
	Line     int
	Col      int
}

type GeneratedMethod struct {
	ID           int64
	UnitID       int64
	DescriptorID uint64
	Name         string
	ReturnType   string
	Deferred     bool
}

// UnitSummary is one row of the report listing.
type UnitSummary struct {
	Unit
	Errors   int
	Warnings int
	Markers  int
}

// Record is everything stored for one unit.
type Record struct {
	Unit        Unit
	Diagnostics []diag.Diagnostic
	Markers     []*Marker
	Generated   []*GeneratedMethod
}
