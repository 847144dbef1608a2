package workload

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/ordmap/internal/oplog"
)

// Sentinel errors.
var (
	// ErrDivergence means the tree disagreed with the reference map.
	ErrDivergence = errors.New("tree diverged from reference map")
	// ErrHeightBound means the tree grew taller than 2*log2(n+1).
	ErrHeightBound = errors.New("tree height exceeds red-black bound")
	// ErrRunFailed is reported by Runner.Ready once a run has stopped on an error.
	ErrRunFailed = errors.New("workload run failed")
)

// DivergenceError describes the first operation whose result differed from
// the reference map.
type DivergenceError struct {
	Seq  int
	Op   oplog.Op
	Want string
	Got  string
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("op #%d %s: want %s, got %s", e.Seq, e.Op, e.Want, e.Got)
}

func (e *DivergenceError) Unwrap() error {
	return ErrDivergence
}
