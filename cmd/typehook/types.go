package main

import "time"

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
}

// CLIUnit is the outcome of checking one file.
type CLIUnit struct {
	Path        string          `json:"path"`
	Unit        string          `json:"unit,omitempty"`
	Skipped     bool            `json:"skipped,omitempty"`
	Disabled    bool            `json:"disabled,omitempty"`
	Classes     int             `json:"classes"`
	Methods     int             `json:"methods"`
	Calls       int             `json:"calls"`
	Markers     int             `json:"markers"`
	Generated   int             `json:"generated"`
	Diagnostics []CLIDiagnostic `json:"diagnostics,omitempty"`
}

// Errors counts error and fatal diagnostics.
func (u CLIUnit) Errors() int {
	n := 0
	for _, d := range u.Diagnostics {
		if d.Severity == "error" || d.Severity == "fatal" {
			n++
		}
	}
	return n
}

// CLIDiagnostic is a JSON-friendly diagnostic.
type CLIDiagnostic struct {
	Severity string `json:"severity"`
	Kind     string `json:"kind"`
	Point    string `json:"point,omitempty"`
	Message  string `json:"message"`
	Line     int    `json:"line,omitempty"`
	Col      int    `json:"col,omitempty"`
}

// CLIPoint describes one extension point.
type CLIPoint struct {
	Name    string   `json:"name"`
	Policy  string   `json:"policy"`
	Aliases []string `json:"aliases,omitempty"`
}

// CLIUnitSummary is one row of the report listing.
type CLIUnitSummary struct {
	ID        int64     `json:"id"`
	Unit      string    `json:"unit"`
	Path      string    `json:"path"`
	Errors    int       `json:"errors"`
	Warnings  int       `json:"warnings"`
	Markers   int       `json:"markers"`
	Disabled  bool      `json:"disabled,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// CLIUnitDetail is the full report of one unit.
type CLIUnitDetail struct {
	CLIUnitSummary
	Diagnostics []CLIDiagnostic `json:"diagnostics"`
	Markers     []CLIMarker     `json:"dynamic_markers"`
	Generated   []CLIGenerated  `json:"generated_methods"`
}

// CLIMarker is a JSON-friendly dynamic marker.
type CLIMarker struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
	Type string `json:"type,omitempty"`
	Line int    `json:"line"`
	Col  int    `json:"col"`
}

// CLIGenerated is a JSON-friendly generated method.
type CLIGenerated struct {
	Name       string `json:"name"`
	ReturnType string `json:"return_type"`
	Deferred   bool   `json:"deferred,omitempty"`
}
