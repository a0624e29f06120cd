package commands

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/kvardanyan/schemadiff"
	"github.com/spf13/cobra"
)

var diffCmd = &cobra.Command{
	Use:   "diff --schema FILE SRC DST",
	Short: "Compute the RFC 6902 patch between two JSON documents",
	Long: `diff compiles --schema into a Plan and uses it to produce the patch
transforming SRC into DST, applying the primary-key/unique/LCS strategy
chosen for each array pointer. The patch's remove/replace operations carry
an additional oldValue field alongside the standard RFC 6902 members.`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func runDiff(cmd *cobra.Command, args []string) error {
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

	patch, err := schemadiff.CreatePatch(src, dst, plan)
	if err != nil {
		return fmt.Errorf("computing patch: %w", err)
	}

	out, err := json.MarshalIndent(patch, "", "  ")
	if err != nil {
		return err
	}
	return writeOutput(out)
}
