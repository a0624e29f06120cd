package commands

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/kvardanyan/schemadiff"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"
)

var targetPointer string

var structuredCmd = &cobra.Command{
	Use:   "structured --schema FILE --target POINTER SRC DST",
	Short: "Split a diff into a parent diff and per-primary-key child diffs",
	Long: `structured compiles --schema into a Plan, computes the patch between
SRC and DST, and splits it around --target (the pointer to a primary-key
array) into one diff for everything outside the array and one diff per
array element, keyed by its primary key. Pass --json for the raw
StructuredDiff document instead of rendered unified diffs.`,
	Args: cobra.ExactArgs(2),
	RunE: runStructured,
}

func init() {
	structuredCmd.Flags().StringVar(&targetPointer, "target", "", "JSON Pointer to the primary-key array to split on")
	_ = structuredCmd.MarkFlagRequired("target")
}

func runStructured(cmd *cobra.Command, args []string) error {
	plan, err := compilePlanFromFlags()
	if err != nil {
		return err
	}

	src, err := readDocument(args[0])
	if err != nil {
		return err
	}
	dst, err := readDocument(args[1])
	if err != nil {
		return err
	}

	sd, err := schemadiff.StructuredDiff(src, dst, plan, targetPointer, nil)
	if err != nil {
		return fmt.Errorf("computing structured diff: %w", err)
	}

	if jsonOutput {
		out, err := json.MarshalIndent(sd, "", "  ")
		if err != nil {
			return err
		}
		return writeOutput(out)
	}

	var b strings.Builder
	b.WriteString("=== parent ===\n")
	b.WriteString(renderUnifiedBlock("parent", sd.ParentDiff))

	keys := make([]string, 0, len(sd.ChildDiffs))
	for k := range sd.ChildDiffs {
		keys = append(keys, k)
	}
	sortStringsStable(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "=== %s ===\n", k)
		b.WriteString(renderUnifiedBlock(k, sd.ChildDiffs[k]))
	}
	return writeOutput([]byte(strings.TrimRight(b.String(), "\n")))
}

// renderUnifiedBlock turns a ChildBlock's pre-computed LineRecords into a
// difflib-rendered unified diff: the records are split back into before/after
// line lists, and difflib computes the hunks over those two lists.
func renderUnifiedBlock(label string, block *schemadiff.ChildBlock) string {
	if block == nil {
		return "(no change)\n"
	}
	var aLines, bLines []string
	for _, lr := range block.UnifiedLines {
		switch lr.Kind {
		case schemadiff.LineRemoved:
			aLines = append(aLines, lr.Content)
		case schemadiff.LineAdded:
			bLines = append(bLines, lr.Content)
		default:
			aLines = append(aLines, lr.Content)
			bLines = append(bLines, lr.Content)
		}
	}
	ud := difflib.UnifiedDiff{
		A:        aLines,
		B:        bLines,
		FromFile: label + " (before)",
		ToFile:   label + " (after)",
		Context:  3,
	}
	out, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return fmt.Sprintf("(failed to render diff: %v)\n", err)
	}
	if out == "" {
		return "(no change)\n"
	}
	return out
}

func sortStringsStable(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
