// Command rocksys builds RocksDB, and optionally SPDK, for cgo consumers.
package main

import "github.com/coolyjg/rust-rocksdb-spdk/cmd/rocksys/internal"

func main() {
	internal.Execute()
}
