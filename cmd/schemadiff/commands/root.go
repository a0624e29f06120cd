package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	schemaPath  string
	keyOverride []string
	basePath    string
	outputPath  string
	jsonOutput  bool
	cfgFile     string
)

// RootCmd is the base command for the schemadiff CLI. Every subcommand is a
// thin wrapper over the in-memory package API (CompilePlan/CreatePatch/
// StructuredDiff) — no file format or transport logic lives in the library
// itself, only here at the edge.
var RootCmd = &cobra.Command{
	Use:   "schemadiff",
	Short: "Schema-guided structured JSON diff and patch tool",
	Long: `schemadiff compiles a per-array diff strategy from a JSON Schema and
uses it to produce readable, round-trippable patches between two JSON
documents, optionally split into a parent diff and per-primary-key child
diffs for a designated array.`,
}

// Execute runs the root command, printing any error to stderr and exiting
// non-zero on failure.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "schemadiff: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.schemadiff.yaml)")
	RootCmd.PersistentFlags().StringVar(&schemaPath, "schema", "", "path to the JSON Schema file")
	RootCmd.PersistentFlags().StringArrayVar(&keyOverride, "keys", nil, "primary key override 'pointer=field', repeatable")
	RootCmd.PersistentFlags().StringVar(&basePath, "base", "", "restrict the compiled plan to entries under this pointer")
	RootCmd.PersistentFlags().StringVarP(&outputPath, "output", "o", "", "write output to this file instead of stdout")
	RootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit raw JSON instead of a rendered summary")

	_ = viper.BindPFlag("schema", RootCmd.PersistentFlags().Lookup("schema"))
	_ = viper.BindPFlag("base", RootCmd.PersistentFlags().Lookup("base"))

	RootCmd.AddCommand(planCmd)
	RootCmd.AddCommand(diffCmd)
	RootCmd.AddCommand(structuredCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".schemadiff")
		viper.SetConfigType("yaml")
	}
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
	schemaPath = viper.GetString("schema")
	basePath = viper.GetString("base")
}
