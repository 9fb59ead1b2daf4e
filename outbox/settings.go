package outbox

import (
	"time"
)

const (
	defaultPollingInterval      time.Duration = time.Second * 3
	defaultMaxEventsPerInterval int           = -1
	defaultMaxEventsPerBatch    int           = 100
)

// Settings holds the relay configuration.
type Settings struct {
	PollingInterval      time.Duration // interval between database pollings
	MaxEventsPerInterval int           // maximum number of events processed in each iteration (-1 = unlimited)
	MaxEventsPerBatch    int           // maximum number of events per batch
}

// validateSettings sets defaults if needed.
func validateSettings(s *Settings) {
	if s.PollingInterval <= 0 {
		s.PollingInterval = defaultPollingInterval
	}
	if s.MaxEventsPerInterval == 0 || s.MaxEventsPerInterval < -1 {
		s.MaxEventsPerInterval = defaultMaxEventsPerInterval
	}
	if s.MaxEventsPerBatch <= 0 {
		s.MaxEventsPerBatch = defaultMaxEventsPerBatch
	}
}
