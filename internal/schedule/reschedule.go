package schedule

import (
	"fmt"
	"math"
	"time"
)

// DayWidth derives the pixels-per-day scale from the viewport width and
// the number of visible days, clamped to [min, max].
func DayWidth(viewportPx, visibleDays, min, max int) int {
	if visibleDays <= 0 {
		return min
	}
	w := viewportPx / visibleDays
	if w < min {
		return min
	}
	if w > max {
		return max
	}
	return w
}

// DayDelta converts a horizontal drag distance into a whole-day offset.
// A result of 0 means the drag is a no-op and must not reach persistence.
func DayDelta(pixelDelta float64, dayWidth int) int {
	if dayWidth <= 0 {
		return 0
	}
	return int(math.Round(pixelDelta / float64(dayWidth)))
}

// ShiftDueDate applies a day offset to a due date. The same mapping
// serves continuous drags and discrete calendar drops, where dayDelta is
// implied by the target cell instead of computed from pixels.
func ShiftDueDate(dueDate string, dayDelta int) (string, error) {
	due, err := time.Parse(dateLayout, dueDate)
	if err != nil {
		return "", fmt.Errorf("invalid due date %q: %w", dueDate, err)
	}
	return due.AddDate(0, 0, dayDelta).Format(dateLayout), nil
}

// DropDelta computes the implicit day offset of a calendar drop from the
// original due date to the target cell's date.
func DropDelta(dueDate, targetDate string) (int, error) {
	due, err := time.Parse(dateLayout, dueDate)
	if err != nil {
		return 0, fmt.Errorf("invalid due date %q: %w", dueDate, err)
	}
	target, err := time.Parse(dateLayout, targetDate)
	if err != nil {
		return 0, fmt.Errorf("invalid target date %q: %w", targetDate, err)
	}
	return daysBetween(due, target), nil
}
