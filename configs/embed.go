// Package configs provides the embedded starter config template written
// by `recall init`.
package configs

import _ "embed"

// Template is the commented YAML skeleton written to the global config
// path the first time `recall init` runs without one already present.
//
//go:embed recall.yaml
var Template string
