package models

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultTimezone is used when a schedule does not name one.
const DefaultTimezone = "UTC"

// cronPattern accepts exactly five space-separated fields
// (minute hour day-of-month month day-of-week), each "*", "*/N" or a number in range.
var cronPattern = regexp.MustCompile(
	`^(\*|\*/\d+|[0-5]?\d) (\*|\*/\d+|[01]?\d|2[0-3]) (\*|\*/\d+|[1-9]|[12]\d|3[01]) (\*|\*/\d+|[1-9]|1[0-2]) (\*|\*/\d+|[0-6])$`,
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

var (
	// ErrInvalidSchedule is returned when schedule validation fails
	ErrInvalidSchedule = errors.New("invalid schedule configuration")

	// ErrInvalidTimezone is returned for timezones the scheduler cannot load.
	ErrInvalidTimezone = errors.New("invalid timezone")
)

// MatchesCronSyntax reports whether expr has the strict five-field shape.
func MatchesCronSyntax(expr string) bool {
	return cronPattern.MatchString(expr)
}

// ValidateCronExpression checks the strict syntax and that the scheduler can parse it
// (for example "*/0" matches the syntax but has no valid step).
func ValidateCronExpression(expr string) error {
	if !MatchesCronSyntax(expr) {
		return fmt.Errorf("%w: cron expression %q must have 5 fields (minute hour day month weekday)", ErrInvalidSchedule, expr)
	}

	_, err := cronParser.Parse(expr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}

	return nil
}

// ResolveTimezone returns the timezone name to use, defaulting to UTC.
func ResolveTimezone(tz string) (string, error) {
	if tz == "" {
		return DefaultTimezone, nil
	}

	_, err := time.LoadLocation(tz)
	if err != nil {
		return "", fmt.Errorf("%w %q: %w", ErrInvalidTimezone, tz, err)
	}

	return tz, nil
}

// CronSpec builds the spec string understood by the scheduler, pinning the timezone.
func CronSpec(pattern, tz string) string {
	if tz == "" {
		tz = DefaultTimezone
	}

	return "CRON_TZ=" + tz + " " + pattern
}

// NextRun returns the next activation of pattern in tz after ref.
func NextRun(pattern, tz string, ref time.Time) (time.Time, error) {
	schedule, err := cron.ParseStandard(CronSpec(pattern, tz))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}

	return schedule.Next(ref), nil
}
