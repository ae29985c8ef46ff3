// Command snapstream inspects topics and caches and mirrors topics through
// the dispatch engine.
//
//	snapstream topic events -o -2 -k '^user-'
//	snapstream cache counts --stats
//	snapstream mirror events --to events-copy --cache events
package main

import (
	"context"
	"fmt"
	"os"

	apperrors "github.com/kbukum/snapstream/errors"
)

func main() {
	root := newRootCmd(&cli{})
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "snapstream:", err)
		os.Exit(apperrors.ExitCode(err))
	}
}
