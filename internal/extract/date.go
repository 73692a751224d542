package extract

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// deliveryDateLayout matches the phrase FreshPrep puts after the delivery date
// marker, e.g. "Tuesday, March 5". The phrase carries no year.
const deliveryDateLayout = "Monday, January 2"

// ErrMalformedDate is returned when a delivery date phrase does not match the
// expected "weekday, month day" pattern.
var ErrMalformedDate = errors.New("malformed delivery date")

// NormalizeDeliveryDate converts a delivery date phrase plus an hour and minute
// into a UTC timestamp. The year is taken from the current UTC time, since the
// notification never states one. The caller pairs the result with an explicit
// timezone name when writing to the calendar.
func NormalizeDeliveryDate(phrase string, hour, minute int) (time.Time, error) {
	return normalizeDeliveryDateAt(phrase, hour, minute, time.Now())
}

// normalizeDeliveryDateAt is the clock-injected form; the year comes from now.
func normalizeDeliveryDateAt(phrase string, hour, minute int, now time.Time) (time.Time, error) {
	parsed, err := time.Parse(deliveryDateLayout, strings.TrimSpace(phrase))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, phrase)
	}
	return time.Date(now.UTC().Year(), parsed.Month(), parsed.Day(), hour, minute, 0, 0, time.UTC), nil
}
