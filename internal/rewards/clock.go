package rewards

import "time"

// DateLayout is the calendar-day format used for session and challenge dates.
const DateLayout = "2006-01-02"

// Clock supplies the current time. Every day boundary the engine uses comes
// from here, normalized to UTC.
type Clock func() time.Time

func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

func (c Clock) Today() string {
	return c.Now().Format(DateLayout)
}

// NextStreakDays returns the daily activity streak after a session on today.
// Same day keeps the streak, the following day extends it, a gap restarts it.
func NextStreakDays(prev int, lastSession *string, today string) int {
	if lastSession == nil || *lastSession == "" {
		return 1
	}
	last, err := time.Parse(DateLayout, *lastSession)
	if err != nil {
		return 1
	}
	day, err := time.Parse(DateLayout, today)
	if err != nil {
		return 1
	}

	switch int(day.Sub(last).Hours() / 24) {
	case 0:
		return max(prev, 1)
	case 1:
		return prev + 1
	default:
		return 1
	}
}
