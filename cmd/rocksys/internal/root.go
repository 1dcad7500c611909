package internal

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/qiniu/x/log"
	"github.com/spf13/cobra"

	"github.com/coolyjg/rust-rocksdb-spdk/internal/config"
	"github.com/coolyjg/rust-rocksdb-spdk/internal/diag"
)

var (
	verbose    bool
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "rocksys",
	Short: "rocksys builds RocksDB for cgo",
	Long: `rocksys compiles the bundled RocksDB and snappy sources, or links prebuilt
copies, generates cgo bindings for the RocksDB C API and prints the link
directives of the result. With the spdk feature it also builds SPDK.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetOutputLevel(log.Ldebug)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file (default $ROCKSYS_CONFIG or rocksys.hcl in the root)")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorLine(err))
		os.Exit(1)
	}
}

// errorLine formats a fatal error as "rocksys: <step>: <error>".
func errorLine(err error) string {
	return fmt.Sprintf("rocksys: %s: %v", diag.Step(err), err)
}

func loadConfig() (*config.Config, error) {
	return config.Load(config.OS(), configFile)
}
