package model

import (
	"fmt"
	"time"
)

// ScheduleKind distinguishes the two supported rotation timing policies.
type ScheduleKind string

const (
	ScheduleInterval ScheduleKind = "interval"
	ScheduleDaily    ScheduleKind = "daily"
)

// ScheduleSpec describes when rotations run. Build one with IntervalSchedule
// or DailySchedule; the zero value is not valid.
type ScheduleSpec struct {
	Kind     ScheduleKind
	Interval time.Duration  // Only for ScheduleInterval.
	Hour     int            // Only for ScheduleDaily.
	Minute   int            // Only for ScheduleDaily.
	Location *time.Location // Zone for ScheduleDaily; nil means the zone of "now".
}

// IntervalSchedule returns a spec that fires every d.
func IntervalSchedule(d time.Duration) (ScheduleSpec, error) {
	if d <= 0 {
		return ScheduleSpec{}, fmt.Errorf("interval must be positive, got %s", d)
	}
	return ScheduleSpec{Kind: ScheduleInterval, Interval: d}, nil
}

// DailySchedule returns a spec that fires once a day at hour:minute in loc.
func DailySchedule(hour, minute int, loc *time.Location) (ScheduleSpec, error) {
	if hour < 0 || hour > 23 {
		return ScheduleSpec{}, fmt.Errorf("hour must be in [0,23], got %d", hour)
	}
	if minute < 0 || minute > 59 {
		return ScheduleSpec{}, fmt.Errorf("minute must be in [0,59], got %d", minute)
	}
	return ScheduleSpec{Kind: ScheduleDaily, Hour: hour, Minute: minute, Location: loc}, nil
}

// DefaultSchedule is the fallback used when the schedule configuration cannot
// be read: daily at 02:00 local time.
func DefaultSchedule() ScheduleSpec {
	return ScheduleSpec{Kind: ScheduleDaily, Hour: 2, Minute: 0}
}

// NextRun returns the next trigger instant strictly after now for daily
// schedules, and now+interval for interval schedules.
func (s ScheduleSpec) NextRun(now time.Time) time.Time {
	if s.Kind == ScheduleInterval {
		return now.Add(s.Interval)
	}

	local := now
	if s.Location != nil {
		local = now.In(s.Location)
	}

	target := time.Date(local.Year(), local.Month(), local.Day(), s.Hour, s.Minute, 0, 0, local.Location())
	if !target.After(local) {
		target = time.Date(local.Year(), local.Month(), local.Day()+1, s.Hour, s.Minute, 0, 0, local.Location())
	}
	return target
}

// String renders the spec for logs.
func (s ScheduleSpec) String() string {
	if s.Kind == ScheduleInterval {
		return fmt.Sprintf("every %s", s.Interval)
	}
	zone := "local"
	if s.Location != nil {
		zone = s.Location.String()
	}
	return fmt.Sprintf("daily at %02d:%02d (%s)", s.Hour, s.Minute, zone)
}
