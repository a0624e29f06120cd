package commands

import (
	"fmt"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compile a JSON Schema into a per-array diff strategy summary",
	Long: `plan compiles --schema into a Plan and prints, for every array
pointer the schema governs, the chosen strategy (primary_key, unique, or
lcs) and its primary key field when applicable. Pass --json for a raw
pointer-to-plan JSON document instead of the rendered table.`,
	RunE: runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
	plan, err := compilePlanFromFlags()
	if err != nil {
		return err
	}

	entries := plan.Entries()
	if jsonOutput {
		out, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		return writeOutput(out)
	}

	pointers := make([]string, 0, len(entries))
	for p := range entries {
		pointers = append(pointers, p)
	}
	sort.Strings(pointers)

	var b strings.Builder
	fmt.Fprintf(&b, "%-40s %-12s %s\n", "POINTER", "STRATEGY", "PRIMARY KEY")
	for _, p := range pointers {
		ap := entries[p]
		fmt.Fprintf(&b, "%-40s %-12s %s\n", p, ap.Strategy.String(), ap.PrimaryKey)
	}
	if len(pointers) == 0 {
		b.WriteString("(no array entries found in schema)\n")
	}
	return writeOutput([]byte(strings.TrimRight(b.String(), "\n")))
}
