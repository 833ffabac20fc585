// internal/rules/counter.go
package rules

import (
	"sync/atomic"

	"github.com/solatis/regcheck/internal/types"
)

// Counter hands out finding ids. It is owned by the caller: reset it before
// each independent project run when stable ids are wanted, or share one
// across runs for ids that stay unique for the life of the process.
type Counter struct {
	n atomic.Int64
}

// NewCounter returns a counter whose first id is F-0001.
func NewCounter() *Counter {
	return &Counter{}
}

// Next returns the next finding id.
func (c *Counter) Next() string {
	return types.FormatFindingID(c.n.Add(1))
}

// Reset restarts numbering at F-0001.
func (c *Counter) Reset() {
	c.n.Store(0)
}

// Issued returns how many ids have been handed out since the last reset.
func (c *Counter) Issued() int64 {
	return c.n.Load()
}
