package notification

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidTime = errors.New("invalid reservation date or time")

const (
	dateLayout        = "2006-01-02"
	displayDateLayout = "Monday, January 2, 2006"
)

var clockLayouts = []string{"3:04 PM", "3:04PM", "15:04"}

// ParseReservationTime combines a YYYY-MM-DD date and a "7:00 PM" style
// display time into an instant in loc. 24-hour "19:00" is accepted too.
func ParseReservationTime(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(date), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidTime, date)
	}

	c := strings.ToUpper(strings.TrimSpace(clock))
	for _, layout := range clockLayouts {
		t, err := time.Parse(layout, c)
		if err != nil {
			continue
		}
		return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
	}
	return time.Time{}, fmt.Errorf("%w: time %q", ErrInvalidTime, clock)
}

// FormatDate renders a YYYY-MM-DD date as "Friday, October 16, 2026".
// Unparseable input is returned unchanged.
func FormatDate(date string) string {
	d, err := time.Parse(dateLayout, strings.TrimSpace(date))
	if err != nil {
		return date
	}
	return d.Format(displayDateLayout)
}
