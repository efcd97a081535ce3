package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// specParser accepts 5-field cron expressions, 6-field expressions with a
// leading seconds column, and @descriptors such as @hourly or @every 10m.
var specParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSpec turns a schedule string into a cron schedule. It accepts cron
// expressions ("*/15 * * * *", "30 0 10 * * *"), descriptors ("@daily",
// "@every 10m") and plain Go durations ("15m", "1h30m"). Durations round up
// to whole seconds, the scheduler's resolution.
func ParseSpec(spec string) (cron.Schedule, error) {
	if spec == "" {
		return nil, fmt.Errorf("schedule spec is empty")
	}
	if sched, err := specParser.Parse(spec); err == nil {
		return sched, nil
	}
	duration, err := time.ParseDuration(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %q as cron expression or duration: %w", spec, err)
	}
	return cron.Every(duration), nil
}

// NextRun computes the first fire time after base for a schedule spec.
func NextRun(spec string, base time.Time) (time.Time, error) {
	sched, err := ParseSpec(spec)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(base), nil
}
