package schedule

import (
	"time"

	"siteline/internal/domain"
)

// ConflictStatus flags a schedule collision with an external signal.
// Advisory only: a conflict never blocks an action.
type ConflictStatus string

const (
	ConflictNone    ConflictStatus = "none"
	ConflictWeather ConflictStatus = "weather"
	ConflictGPS     ConflictStatus = "gps"
	ConflictBoth    ConflictStatus = "both"
)

// detectConflict cross-references a sub-timeline against the weather
// forecast and crew presence. Weather: any task due on a day carrying a
// danger-severity alert. GPS: execution-phase sub-timelines only, when a
// crew list is supplied, nobody is on site, and the sub-timeline has work
// in progress or due today.
func detectConflict(sub *SubTimeline, forecast []domain.WeatherAlert, crew []domain.CrewMember, today time.Time) (ConflictStatus, string) {
	weather := false
	message := ""
	for _, t := range sub.Tasks {
		due, ok := taskDue(t)
		if !ok {
			continue
		}
		for _, alert := range forecast {
			if alert.Severity != "danger" {
				continue
			}
			d, err := time.Parse(dateLayout, alert.Date)
			if err != nil {
				continue
			}
			if day(d).Equal(day(due)) {
				weather = true
				message = alert.Message
				break
			}
		}
		if weather {
			break
		}
	}

	gps := false
	if sub.Phase == PhaseExecution && len(crew) > 0 && !anyOnSite(crew) && hasActiveWork(sub.Tasks, today) {
		gps = true
	}

	switch {
	case weather && gps:
		return ConflictBoth, message
	case weather:
		return ConflictWeather, message
	case gps:
		return ConflictGPS, "no crew on site"
	default:
		return ConflictNone, ""
	}
}

func anyOnSite(crew []domain.CrewMember) bool {
	for _, m := range crew {
		if m.OnSite {
			return true
		}
	}
	return false
}

func hasActiveWork(tasks []domain.Task, today time.Time) bool {
	for _, t := range tasks {
		if t.Status == "in_progress" {
			return true
		}
		if due, ok := taskDue(t); ok && day(due).Equal(day(today)) && t.Status != "completed" {
			return true
		}
	}
	return false
}
