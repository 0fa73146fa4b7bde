package timewindow

import "time"

// DayWindow returns the UTC calendar day containing asOf as a half-open
// interval [start, end).
func DayWindow(asOf time.Time) (time.Time, time.Time) {
	t := asOf.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

// WeekStart returns midnight UTC of the Monday of the week containing asOf.
// Sunday belongs to the week started six days earlier.
func WeekStart(asOf time.Time) time.Time {
	start, _ := DayWindow(asOf)
	offset := int(start.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset += 7
	}
	return start.AddDate(0, 0, -offset)
}
