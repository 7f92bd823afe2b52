// Command recall is a single-process, single-file hybrid document search
// engine: lexical (BM25), semantic (vector), and weighted-hybrid retrieval
// over a locally ingested corpus.
package main

import (
	"os"

	"github.com/recall-db/recall/cmd/recall/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
