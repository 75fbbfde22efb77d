// Command apotheosis is a thin CLI driver over the HNSW fingerprint
// index. It exists only to exercise internal/index.IndexFacade from the
// command line; the index semantics it calls into live entirely in
// internal/hnsw, internal/persist, and internal/index.
package main

import (
	"fmt"
	"os"

	"github.com/fsvxavier/apotheosis/cmd/apotheosis/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
