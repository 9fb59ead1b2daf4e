package sweep

import (
	"errors"
	"time"
)

const (
	defaultWindow    time.Duration = 30 * 24 * time.Hour
	defaultInterval  time.Duration = time.Hour
	defaultBatchSize int           = 100
)

// Settings holds the sweep configuration.
type Settings struct {
	Window    time.Duration // how long before expiry a record becomes EXPIRING_SOON
	Interval  time.Duration // time between two sweeps
	BatchSize int           // records read per batch
}

// validateSettings sets defaults where needed.
func validateSettings(s *Settings) error {
	if s.Window < 0 {
		return errors.New("sweep window cannot be negative")
	}
	if s.Window == 0 {
		s.Window = defaultWindow
	}
	if s.Interval <= 0 {
		s.Interval = defaultInterval
	}
	if s.BatchSize <= 0 {
		s.BatchSize = defaultBatchSize
	}
	return nil
}
