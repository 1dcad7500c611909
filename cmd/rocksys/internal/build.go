package internal

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coolyjg/rust-rocksdb-spdk/internal/build"
)

var buildForce bool

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the native libraries",
	Long: `Build runs the whole pipeline: SPDK when enabled, the RocksDB submodule
check, the bindings, RocksDB and snappy. Link directives are printed to
stdout, one per line, prefixed with "rocksys:".`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().BoolVarP(&buildForce, "force", "f", false, "Rebuild archives even when they are up to date")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	b := build.New(cfg, build.Options{Stdout: cmd.OutOrStdout(), Force: buildForce})
	res, err := b.Run(cmd.Context())
	if err != nil {
		return err
	}
	for _, a := range res.Archives {
		fmt.Fprintf(cmd.ErrOrStderr(), "built %s\n", a)
	}
	return nil
}
