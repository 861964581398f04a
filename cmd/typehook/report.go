package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/typehook/internal/store"
)

var flagUnit string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show recorded check results",
	Long:  "Lists every unit in the report database, or with --unit the diagnostics, dynamic markers and generated methods recorded for one file.",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&flagUnit, "unit", "", "show the detail of the unit checked from this path")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadProjectConfig()
	if err != nil {
		return outputError("report", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return outputError("report", fmt.Errorf("getting cwd: %w", err))
	}
	dbPath := resolveDBPath(findRepoRoot(cwd), cfg)
	if dbPath == "" {
		return outputError("report", fmt.Errorf("no report database: pass --db or set db in %s", ConfigFile))
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return outputError("report", fmt.Errorf("database not found: %s (run 'typehook check --db %s' first)", dbPath, dbPath))
	}

	st, err := openStore(dbPath)
	if err != nil {
		return outputError("report", err)
	}
	defer st.Close()

	if flagUnit != "" {
		detail, err := unitDetail(st, flagUnit)
		if err != nil {
			return outputError("report", err)
		}
		return outputResult(CLIResult{Command: "report", Results: *detail})
	}

	summaries, err := unitSummaries(st)
	if err != nil {
		return outputError("report", err)
	}
	return outputResult(CLIResult{Command: "report", Results: summaries})
}

func unitSummaries(st *store.Store) ([]CLIUnitSummary, error) {
	rows, err := st.Summaries()
	if err != nil {
		return nil, err
	}
	out := make([]CLIUnitSummary, len(rows))
	for i, r := range rows {
		out[i] = toCLIUnitSummary(r.Unit, r.Errors, r.Warnings, r.Markers)
	}
	return out, nil
}

func unitDetail(st *store.Store, path string) (*CLIUnitDetail, error) {
	u, err := st.UnitByPath(path)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("no unit recorded for %s", path)
	}
	rec, err := st.Record(u.ID)
	if err != nil {
		return nil, err
	}

	diags := toCLIDiagnostics(rec.Diagnostics)
	var errs, warns int
	for _, d := range diags {
		switch d.Severity {
		case "error", "fatal":
			errs++
		case "warning":
			warns++
		}
	}

	detail := &CLIUnitDetail{
		CLIUnitSummary: toCLIUnitSummary(rec.Unit, errs, warns, len(rec.Markers)),
		Diagnostics:    diags,
		Markers:        make([]CLIMarker, len(rec.Markers)),
		Generated:      make([]CLIGenerated, len(rec.Generated)),
	}
	for i, m := range rec.Markers {
		detail.Markers[i] = CLIMarker{Kind: m.NodeKind, Text: m.Text, Type: m.TypeName, Line: m.Line, Col: m.Col}
	}
	for i, g := range rec.Generated {
		detail.Generated[i] = CLIGenerated{Name: g.Name, ReturnType: g.ReturnType, Deferred: g.Deferred}
	}
	return detail, nil
}

func toCLIUnitSummary(u store.Unit, errs, warns, markers int) CLIUnitSummary {
	return CLIUnitSummary{
		ID:        u.ID,
		Unit:      u.Unit,
		Path:      u.Path,
		Errors:    errs,
		Warnings:  warns,
		Markers:   markers,
		Disabled:  u.Disabled,
		CheckedAt: u.CheckedAt,
	}
}
