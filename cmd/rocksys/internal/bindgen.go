package internal

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coolyjg/rust-rocksdb-spdk/internal/build"
)

var bindgenCmd = &cobra.Command{
	Use:   "bindgen",
	Short: "Generate the cgo bindings only",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		set, err := build.New(cfg, build.Options{}).Bindings()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), set.Path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(bindgenCmd)
}
