package xs

import (
	"time"
)

// NextSlot returns the earliest of the daily "HH:MM" times, in loc, that is
// strictly after now.
func NextSlot(now time.Time, times []string, loc *time.Location) (time.Time, error) {
	if len(times) == 0 {
		return time.Time{}, kindError(ErrValidation, "no default posting times configured")
	}
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)

	var best time.Time
	for _, t := range times {
		clock, err := time.Parse("15:04", t)
		if err != nil {
			return time.Time{}, kindError(ErrValidation, "invalid posting time %q (want HH:MM)", t)
		}
		for day := 0; day <= 1; day++ {
			candidate := time.Date(local.Year(), local.Month(), local.Day()+day, clock.Hour(), clock.Minute(), 0, 0, loc)
			if !candidate.After(now) {
				continue
			}
			if best.IsZero() || candidate.Before(best) {
				best = candidate
			}
			break
		}
	}
	return best, nil
}
