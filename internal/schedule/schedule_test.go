package schedule

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		raw     string
		want    Schedule
		wantErr bool
	}{
		{"", Schedule{}, false},
		{"  15m ", Schedule{Interval: 15 * time.Minute}, false},
		{"*/5 * * * *", Schedule{Cron: "*/5 * * * *"}, false},
		{"@hourly", Schedule{Cron: "@hourly"}, false},
		{"-1m", Schedule{}, true},
		{"every now and then", Schedule{}, true},
		{"* * *", Schedule{}, true},
	}
	for _, tt := range tests {
		got, err := Parse(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("Parse(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %+v, want %+v", tt.raw, got, tt.want)
		}
	}
}

func TestNextInterval(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	next, ok := Schedule{Interval: time.Minute}.Next(start)
	if !ok || !next.Equal(start.Add(time.Minute)) {
		t.Errorf("unexpected next: %v %v", next, ok)
	}
}

func TestNextCron(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 7, 30, 0, time.UTC)
	next, ok := Schedule{Cron: "*/10 * * * *"}.Next(start)
	if !ok {
		t.Fatal("expected a next tick")
	}
	if want := time.Date(2026, 3, 1, 10, 10, 0, 0, time.UTC); !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestNextZero(t *testing.T) {
	var s Schedule
	if !s.IsZero() {
		t.Fatal("zero schedule must report IsZero")
	}
	if _, ok := s.Next(time.Now()); ok {
		t.Error("zero schedule must never fire")
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		s    Schedule
		want string
	}{
		{Schedule{Interval: time.Hour}, "Every hour"},
		{Schedule{Interval: 3 * time.Hour}, "Every 3 hours"},
		{Schedule{Interval: time.Minute}, "Every minute"},
		{Schedule{Interval: 15 * time.Minute}, "Every 15 minutes"},
		{Schedule{Interval: 90 * time.Second}, "Every 1m30s"},
		{Schedule{Cron: "0 9 * * *"}, "0 9 * * *"},
		{Schedule{}, "Never"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("%+v.String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}
