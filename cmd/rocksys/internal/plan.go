package internal

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coolyjg/rust-rocksdb-spdk/internal/build"
)

var planJSON bool

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the resolved build without running it",
	Args:  cobra.NoArgs,
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().BoolVar(&planJSON, "json", false, "Print the plan as JSON")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p := build.New(cfg, build.Options{}).Plan()
	out := cmd.OutOrStdout()
	if planJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}
	printPlan(out, p)
	return nil
}

func printPlan(w io.Writer, p *build.Plan) {
	features := make([]string, len(p.Features))
	for i, f := range p.Features {
		features[i] = string(f)
	}
	fmt.Fprintf(w, "target:   %s (%s)\n", p.Target, p.Family)
	fmt.Fprintf(w, "features: %s\n", strings.Join(features, ","))
	printLibrary(w, &p.RocksDB)
	if p.Snappy != nil {
		printLibrary(w, p.Snappy)
	}
	fmt.Fprintf(w, "bindings: %s\n", strings.Join(p.Bindings.Headers, " "))
}

func printLibrary(w io.Writer, lib *build.Library) {
	if lib.Prebuilt {
		fmt.Fprintf(w, "%s: prebuilt\n", lib.Name)
	} else {
		fmt.Fprintf(w, "%s: from source, %d files\n", lib.Name, len(lib.Archive.Files))
	}
	for _, d := range lib.Directives {
		fmt.Fprintf(w, "  %s\n", d)
	}
	for _, d := range lib.Libs {
		fmt.Fprintf(w, "  %s\n", d)
	}
}
