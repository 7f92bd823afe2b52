//go:build cgo_sqlite

package store

import (
	_ "github.com/mattn/go-sqlite3"
)

// Build with -tags cgo_sqlite to link mattn/go-sqlite3 instead of the pure
// Go driver, e.g. when a platform lacks a usable cgo-free build but does
// have a C toolchain.
const driverName = "sqlite3"
