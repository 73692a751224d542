package reconcile

import (
	"regexp"
	"strings"
	"time"

	"prepcal/internal/models"
)

// naiveLayout is the offset-less datetime form shared by Order timestamps and
// event datetimes written to the calendar.
const naiveLayout = "2006-01-02T15:04:05"

// offsetSuffix matches a trailing explicit UTC offset on a datetime string,
// e.g. "-08:00" or "Z". The calendar service adds one; Order timestamps never
// carry one.
var offsetSuffix = regexp.MustCompile(`([-+]\d{2}:\d{2}|Z)$`)

// SameOccurrence reports whether an existing calendar event represents the
// same delivery occurrence as the order. Both start timestamps are read as
// UTC instants after stripping any offset from the event's, and must be
// exactly equal. There is no tolerance window.
func SameOccurrence(order *models.Order, event *models.Event) bool {
	stripped := stripOffset(event.Start)
	eventStart, err := time.ParseInLocation(naiveLayout, stripped, time.UTC)
	if err != nil {
		return false
	}
	return eventStart.Equal(order.Start)
}

func stripOffset(datetime string) string {
	return offsetSuffix.ReplaceAllString(strings.TrimSpace(datetime), "")
}
