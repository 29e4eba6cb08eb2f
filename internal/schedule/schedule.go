package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

// Schedule is either a cron expression or a fixed interval. The zero value
// never fires.
type Schedule struct {
	Cron     string
	Interval time.Duration
}

// Parse accepts a Go duration ("90s", "15m") or a cron expression
// ("*/10 * * * *", "@hourly"). An empty string yields the zero Schedule.
func Parse(raw string) (Schedule, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Schedule{}, nil
	}

	if d, err := time.ParseDuration(raw); err == nil {
		if d <= 0 {
			return Schedule{}, fmt.Errorf("interval must be positive: %s", raw)
		}
		return Schedule{Interval: d}, nil
	}

	if !gronx.New().IsValid(raw) {
		return Schedule{}, fmt.Errorf("invalid schedule: not a duration or cron expression: %s", raw)
	}
	return Schedule{Cron: raw}, nil
}

func (s Schedule) IsZero() bool {
	return s.Cron == "" && s.Interval <= 0
}

// Next returns the first firing strictly after t.
func (s Schedule) Next(t time.Time) (time.Time, bool) {
	switch {
	case s.Interval > 0:
		return t.Add(s.Interval), true
	case s.Cron != "":
		next, err := gronx.NextTickAfter(s.Cron, t, false)
		if err != nil {
			return time.Time{}, false
		}
		return next, true
	}
	return time.Time{}, false
}

// String returns a human-readable description.
func (s Schedule) String() string {
	switch {
	case s.Interval > 0:
		d := s.Interval
		switch {
		case d%time.Hour == 0:
			h := int(d.Hours())
			if h == 1 {
				return "Every hour"
			}
			return fmt.Sprintf("Every %d hours", h)
		case d%time.Minute == 0:
			m := int(d.Minutes())
			if m == 1 {
				return "Every minute"
			}
			return fmt.Sprintf("Every %d minutes", m)
		default:
			return "Every " + d.String()
		}
	case s.Cron != "":
		return s.Cron
	}
	return "Never"
}
