package commands

import (
	"fmt"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/kvardanyan/schemadiff"
)

// readSchema loads and decodes the --schema flag's file into the plain
// map[string]any shape CompilePlan expects.
func readSchema() (map[string]any, error) {
	if schemaPath == "" {
		return nil, fmt.Errorf("--schema is required")
	}
	raw, err := os.ReadFile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("reading schema: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding schema: %w", err)
	}
	return out, nil
}

// readDocument loads and decodes a JSON document file passed as a
// positional argument (the diff/structured subcommands' SRC/DST).
func readDocument(path string) (any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return out, nil
}

// parseKeyOverrides turns repeated --keys pointer=field flags into the map
// CompileOptions.PrimaryKeyMap expects.
func parseKeyOverrides(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(raw))
	for _, kv := range raw {
		idx := strings.IndexByte(kv, '=')
		if idx < 0 {
			return nil, fmt.Errorf("invalid --keys entry %q, expected pointer=field", kv)
		}
		out[kv[:idx]] = kv[idx+1:]
	}
	return out, nil
}

// compilePlanFromFlags resolves the schema file and the --keys/--base flags
// into a compiled Plan, shared by diff.go and structured.go.
func compilePlanFromFlags() (*schemadiff.Plan, error) {
	schema, err := readSchema()
	if err != nil {
		return nil, err
	}
	keys, err := parseKeyOverrides(keyOverride)
	if err != nil {
		return nil, err
	}
	plan, err := schemadiff.CompilePlan(schema, schemadiff.CompileOptions{
		PrimaryKeyMap: keys,
		BasePath:      basePath,
	})
	if err != nil {
		return nil, err
	}
	for _, d := range plan.Diagnostics {
		fmt.Fprintf(os.Stderr, "schemadiff: diagnostic: %v\n", d)
	}
	return plan, nil
}

// writeOutput sends data to --output's file when set, else to stdout.
func writeOutput(data []byte) error {
	if outputPath == "" {
		_, err := os.Stdout.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(outputPath, data, 0o644)
}
