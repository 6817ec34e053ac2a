package main

import (
	"fmt"
	"time"
)

// ClassRecord is one scheduled class occurrence, either loaded from the
// history file or freshly scraped from a schedule page.
type ClassRecord struct {
	DayOfWeek  string // locale-capitalized, e.g. "Lun"
	Date       string // day.month as scraped, e.g. "12.05"
	Time       string // start time, duration suffix stripped, e.g. "09:00"
	Site       string // resolved site name from the site table
	ClassName  string
	Instructor string
	Start      time.Time // derived: current year + Date + Time
}

// IdentityKey is the stable identity of a class slot. It deliberately
// excludes the instructor so that an instructor swap on an otherwise
// identical slot keeps the same identity. Field order follows the sorted
// column names of the history table (Class, Date, Dow, Site, Time).
func (c ClassRecord) IdentityKey() string {
	return c.ClassName + c.Date + c.DayOfWeek + c.Site + c.Time
}

// RowKey is the exact-duplicate key: identity plus instructor.
func (c ClassRecord) RowKey() string {
	return c.IdentityKey() + "\x1f" + c.Instructor
}

// DaytimeBucket buckets the start hour into morning / midday / evening.
func (c ClassRecord) DaytimeBucket() string {
	switch h := c.Start.Hour(); {
	case h < 12:
		return "morning"
	case h < 17:
		return "midday"
	default:
		return "evening"
	}
}

// Slot is a short human-readable description of the class slot, used in
// logs and reports.
func (c ClassRecord) Slot() string {
	return fmt.Sprintf("%s %s %s %s %s", c.DayOfWeek, c.Date, c.Time, c.Site, c.ClassName)
}

// dayOf truncates a timestamp to its calendar date.
func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

const scrapeDatetimeLayout = "2006.2.1 15:04"

// ParseClassStart derives the absolute start timestamp from the scraped
// day.month date and start time, assuming the given year.
func ParseClassStart(year int, date, clock string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(scrapeDatetimeLayout, fmt.Sprintf("%d.%s %s", year, date, clock), loc)
}

// ParsedBooking is the structured content of one transactional booking email.
type ParsedBooking struct {
	ClassName   string
	Instructor  string
	Location    string
	Start       time.Time
	RawDatetime string // datetime substring as found in the email
}

// BookingAction is the semantic action carried by a booking email subject.
type BookingAction int

const (
	ActionUnknown BookingAction = iota
	ActionCancellation
	ActionWaitlist
	ActionConfirmed // promoted from waitlist
	ActionValidated // plain booking
)

func (a BookingAction) String() string {
	switch a {
	case ActionCancellation:
		return "cancellation"
	case ActionWaitlist:
		return "waitlist"
	case ActionConfirmed:
		return "confirmed"
	case ActionValidated:
		return "validated"
	default:
		return "unknown"
	}
}
