//go:build !cgo_sqlite

package store

import (
	_ "modernc.org/sqlite"
)

// Default build: modernc.org/sqlite (pure Go, no cgo).
const driverName = "sqlite"
