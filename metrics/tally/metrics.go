package tally

import (
	"github.com/FabioFlo/asd-platform-sub001/metrics"
	tally "github.com/uber-go/tally/v4"
)

type Counter struct {
	Counter tally.Counter
}

var _ metrics.Counter = (*Counter)(nil)

func (c *Counter) Inc(delta int64) {
	c.Counter.Inc(delta)
}

// Scope hands out metrics.Counter instances backed by a tally scope.
type Scope struct {
	scope tally.Scope
}

func NewScope(s tally.Scope) *Scope {
	if s == nil {
		panic("scope is mandatory")
	}
	return &Scope{scope: s}
}

// Counter returns the counter registered under name, tagged with tags.
func (s *Scope) Counter(name string, tags map[string]string) metrics.Counter {
	scope := s.scope
	if len(tags) > 0 {
		scope = scope.Tagged(tags)
	}
	return &Counter{Counter: scope.Counter(name)}
}
