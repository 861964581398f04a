package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// formatUnitsText prints check results compiler-style, one
// "file:line:col: severity: message" line per diagnostic.
func formatUnitsText(w io.Writer, units []CLIUnit) {
	var errs, skipped int
	for _, u := range units {
		if u.Skipped {
			skipped++
			continue
		}
		if u.Disabled {
			fmt.Fprintf(w, "%s: extension disabled\n", u.Path)
		}
		for _, d := range u.Diagnostics {
			loc := u.Path
			if d.Line > 0 {
				loc = fmt.Sprintf("%s:%d:%d", u.Path, d.Line, d.Col)
			}
			if d.Point != "" {
				fmt.Fprintf(w, "%s: %s: [%s] %s\n", loc, d.Severity, d.Point, d.Message)
			} else {
				fmt.Fprintf(w, "%s: %s: %s\n", loc, d.Severity, d.Message)
			}
		}
		errs += u.Errors()
	}
	fmt.Fprintf(w, "%d file(s), %d error(s)", len(units), errs)
	if skipped > 0 {
		fmt.Fprintf(w, ", %d unchanged", skipped)
	}
	fmt.Fprintln(w)
}

// formatPointsText formats CLIPoint results as aligned columns.
func formatPointsText(w io.Writer, points []CLIPoint) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "POINT\tPOLICY\tALIASES")
	for _, p := range points {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, p.Policy, strings.Join(p.Aliases, ","))
	}
	tw.Flush()
}

// formatSummariesText formats CLIUnitSummary results as aligned columns.
func formatSummariesText(w io.Writer, rows []CLIUnitSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPATH\tERRORS\tWARNINGS\tMARKERS\tCHECKED")
	for _, r := range rows {
		path := r.Path
		if r.Disabled {
			path += " (disabled)"
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%s\n",
			r.ID, path, r.Errors, r.Warnings, r.Markers, r.CheckedAt.Format("2006-01-02 15:04:05"))
	}
	tw.Flush()
}

// formatUnitDetailText formats CLIUnitDetail as readable text.
func formatUnitDetailText(w io.Writer, d CLIUnitDetail) {
	fmt.Fprintf(w, "Unit: %s\n", d.Unit)
	fmt.Fprintf(w, "Path: %s\n", d.Path)
	fmt.Fprintf(w, "Checked: %s\n", d.CheckedAt.Format("2006-01-02 15:04:05"))
	if d.Disabled {
		fmt.Fprintln(w, "Extension: disabled")
	}
	fmt.Fprintln(w)

	if len(d.Diagnostics) > 0 {
		fmt.Fprintln(w, "Diagnostics:")
		for _, diag := range d.Diagnostics {
			fmt.Fprintf(w, "  %d:%d %s %s\n", diag.Line, diag.Col, diag.Severity, diag.Message)
		}
		fmt.Fprintln(w)
	}

	if len(d.Markers) > 0 {
		fmt.Fprintln(w, "Dynamic:")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  KIND\tTEXT\tTYPE\tLINE")
		for _, m := range d.Markers {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%d\n", m.Kind, m.Text, m.Type, m.Line)
		}
		tw.Flush()
		fmt.Fprintln(w)
	}

	if len(d.Generated) > 0 {
		fmt.Fprintln(w, "Generated methods:")
		for _, g := range d.Generated {
			ret := g.ReturnType
			if g.Deferred {
				ret = "(deferred)"
			}
			fmt.Fprintf(w, "  %s %s\n", ret, g.Name)
		}
	}
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLIUnit:
		formatUnitsText(w, v)
	case []CLIPoint:
		formatPointsText(w, v)
	case []CLIUnitSummary:
		formatSummariesText(w, v)
	case CLIUnitDetail:
		formatUnitDetailText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
