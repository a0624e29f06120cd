package commands

import (
	"fmt"
	"os"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/kvardanyan/schemadiff"
	"github.com/spf13/cobra"
)

var manifestPath string

// batchJob is one entry of a --manifest file: a schema plus a src/dst pair
// to diff, each processed under its own stamped run id.
type batchJob struct {
	Schema string `json:"schema"`
	Src    string `json:"src"`
	Dst    string `json:"dst"`
}

var batchCmd = &cobra.Command{
	Use:   "batch --manifest FILE",
	Short: "Diff many schema/src/dst triples from a manifest file, concurrently",
	Long: `batch reads a JSON array of {"schema","src","dst"} entries from
--manifest and runs diff over each one concurrently, stamping every job's
diagnostics and result with a run id so output from concurrent jobs stays
distinguishable when aggregated.`,
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVar(&manifestPath, "manifest", "", "path to the batch manifest JSON file")
	_ = batchCmd.MarkFlagRequired("manifest")
	RootCmd.AddCommand(batchCmd)
}

type batchResult struct {
	RunID string          `json:"run_id"`
	Job   batchJob        `json:"job"`
	Patch schemadiff.Patch `json:"patch,omitempty"`
	Error string          `json:"error,omitempty"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}
	var jobs []batchJob
	if err := json.Unmarshal(raw, &jobs); err != nil {
		return fmt.Errorf("decoding manifest: %w", err)
	}

	results := make([]batchResult, len(jobs))
	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job batchJob) {
			defer wg.Done()
			results[i] = runBatchJob(job)
		}(i, job)
	}
	wg.Wait()

	out, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	return writeOutput(out)
}

func runBatchJob(job batchJob) batchResult {
	runID := uuid.NewString()
	res := batchResult{RunID: runID, Job: job}

	schemaRaw, err := os.ReadFile(job.Schema)
	if err != nil {
		res.Error = fmt.Sprintf("reading schema: %v", err)
		return res
	}
	var schema map[string]any
	if err := json.Unmarshal(schemaRaw, &schema); err != nil {
		res.Error = fmt.Sprintf("decoding schema: %v", err)
		return res
	}

	plan, err := schemadiff.CompilePlan(schema, schemadiff.CompileOptions{})
	if err != nil {
		res.Error = fmt.Sprintf("compiling plan: %v", err)
		return res
	}
	for _, d := range plan.Diagnostics {
		fmt.Fprintf(os.Stderr, "schemadiff[%s]: diagnostic: %v\n", runID, d)
	}

	src, err := readDocument(job.Src)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	dst, err := readDocument(job.Dst)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	patch, err := schemadiff.CreatePatch(src, dst, plan)
	if err != nil {
		res.Error = fmt.Sprintf("computing patch: %v", err)
		return res
	}
	res.Patch = patch
	return res
}
