package internal

import (
	"github.com/spf13/cobra"

	"github.com/coolyjg/rust-rocksdb-spdk/internal/build"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch the RocksDB submodule when it is missing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return build.New(cfg, build.Options{}).Sync(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
