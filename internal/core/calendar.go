package core

import "time"

const (
	// DefaultCutoverHour is the local hour at which the operating day rolls over.
	DefaultCutoverHour = 3
	// DefaultArchiveWindow is how long after the cutover the archive is written.
	DefaultArchiveWindow = 10 * time.Minute

	DateLayout  = "2006-01-02"
	TimeLayout  = "15:04"
	MonthLayout = "2006-01"

	// EndOfDayTime is the time stamped on archived snapshots.
	EndOfDayTime = "23:59"
)

// Calendar resolves operating days for a given cutover hour.
type Calendar struct {
	CutoverHour   int
	ArchiveWindow time.Duration
}

// DefaultCalendar returns the 03:00 cutover with a ten minute archive window.
func DefaultCalendar() Calendar {
	return Calendar{CutoverHour: DefaultCutoverHour, ArchiveWindow: DefaultArchiveWindow}
}

// BusinessDay returns the operating date of now at local midnight.
// Timestamps before the cutover hour belong to the previous calendar day.
func (c Calendar) BusinessDay(now time.Time) time.Time {
	day := StartOfDay(now)
	if now.Hour() < c.CutoverHour {
		return day.AddDate(0, 0, -1)
	}
	return day
}

// InArchiveWindow reports whether now falls in [cutover:00, cutover:window].
// The bound is inclusive on the minute, so a ten minute window covers 03:00 to 03:10:59.
func (c Calendar) InArchiveWindow(now time.Time) bool {
	if now.Hour() != c.CutoverHour {
		return false
	}
	return time.Duration(now.Minute())*time.Minute <= c.ArchiveWindow
}

// BusinessDay resolves now with the default cutover.
func BusinessDay(now time.Time) time.Time {
	return DefaultCalendar().BusinessDay(now)
}

// InArchiveWindow checks now against the default window.
func InArchiveWindow(now time.Time) bool {
	return DefaultCalendar().InArchiveWindow(now)
}

// StartOfDay truncates t to local midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// MonthKey returns the YYYY-MM key of t.
func MonthKey(t time.Time) string {
	return t.Format(MonthLayout)
}

// PreviousMonthRange returns the first and last day of the calendar month before now.
func PreviousMonthRange(now time.Time) (from, to time.Time) {
	firstThisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	from = firstThisMonth.AddDate(0, -1, 0)
	to = firstThisMonth.AddDate(0, 0, -1)
	return from, to
}
