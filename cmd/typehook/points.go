package main

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/jward/typehook"
)

var pointsCmd = &cobra.Command{
	Use:   "points",
	Short: "List extension points and their aggregation policies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return outputResult(CLIResult{Command: "points", Results: listPoints()})
	},
}

func listPoints() []CLIPoint {
	aliases := make(map[typehook.Point][]string)
	for name, p := range typehook.Aliases() {
		aliases[p] = append(aliases[p], name)
	}

	points := typehook.Points()
	out := make([]CLIPoint, len(points))
	for i, p := range points {
		as := aliases[p]
		sort.Strings(as)
		out[i] = CLIPoint{Name: p.String(), Policy: p.Policy().String(), Aliases: as}
	}
	return out
}
