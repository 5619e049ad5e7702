package progression

import (
	"errors"
	"fmt"

	"shadowrank/internal/pkg/calendar"
)

// ErrInvalidTimeOrder is returned when a completion is dated before the last activity.
var ErrInvalidTimeOrder = errors.New("completion date precedes last activity")

// NextStreak applies the daily streak rules for an activity on today.
//
//   - no previous activity: streak starts at 1
//   - same day: unchanged
//   - the following day: +1
//   - any longer gap: reset to 1
//
// A today earlier than lastActive fails with ErrInvalidTimeOrder and the
// caller must not apply any update.
func NextStreak(lastActive *calendar.Date, today calendar.Date, current int) (int, calendar.Date, error) {
	if lastActive == nil {
		return 1, today, nil
	}

	switch gap := today.DaysSince(*lastActive); {
	case gap < 0:
		return current, *lastActive, fmt.Errorf("%w: last active %s, completion %s",
			ErrInvalidTimeOrder, lastActive, today)
	case gap == 0:
		return current, today, nil
	case gap == 1:
		return current + 1, today, nil
	default:
		return 1, today, nil
	}
}
