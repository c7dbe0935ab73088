package observe

import (
	"errors"
	"fmt"
)

// ErrFlushStorm is returned (wrapped in a W010 error) when a flush keeps
// producing new work past the scheduler's iteration limit.
var ErrFlushStorm = errors.New("weave: flush did not settle")

func stormSubject(sources, writes int) string {
	return fmt.Sprintf("%d sources and %d writes still queued", sources, writes)
}
