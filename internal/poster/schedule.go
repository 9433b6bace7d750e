package poster

import (
	"time"

	"github.com/cyderes/facebook-auto-poster/internal/config"
)

// Schedule decides when the next run is due: a fixed interval when one is
// configured, otherwise once a day at the configured local time.
type Schedule struct {
	interval time.Duration
	hour     int
	minute   int
}

// NewSchedule builds a schedule from the poster configuration
func NewSchedule(cfg config.PosterConfig) (Schedule, error) {
	if cfg.Interval > 0 {
		return Schedule{interval: cfg.Interval}, nil
	}
	hour, minute, err := config.ParsePostTime(cfg.PostTime)
	if err != nil {
		return Schedule{}, err
	}
	return Schedule{hour: hour, minute: minute}, nil
}

// Next returns the first run time strictly after now
func (s Schedule) Next(now time.Time) time.Time {
	if s.interval > 0 {
		return now.Add(s.interval)
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
