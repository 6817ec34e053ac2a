package main

import (
	"log"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"
)

const waitlistPrefix = "WAITLIST - "

// eventTimeLayout matches the seconds-precision prefix the match key
// compares; the calendar API appends the zone offset on read.
const eventTimeLayout = "2006-01-02T15:04:05"

// ClassToEvent builds the canonical calendar shape for a booked class.
// The marker description is the only authorization token the reconciler
// will later accept for deletion.
func ClassToEvent(cfg Config, name, instructor, location string, start time.Time) *calendar.Event {
	return &calendar.Event{
		Summary:     name + " (" + instructor + ")",
		Location:    cfg.LocationPrefix + location,
		Description: cfg.CalendarMarker,
		Start: &calendar.EventDateTime{
			DateTime: start.Format(eventTimeLayout),
			TimeZone: cfg.Timezone,
		},
		End: &calendar.EventDateTime{
			DateTime: start.Add(time.Hour).Format(eventTimeLayout),
			TimeZone: cfg.Timezone,
		},
	}
}

// EventMatchesClass compares two events on the exact-equality key:
// summary, location, and start datetime truncated to whole seconds.
func EventMatchesClass(event, class *calendar.Event) bool {
	if event.Summary != class.Summary || event.Location != class.Location {
		return false
	}
	if event.Start == nil || class.Start == nil {
		return false
	}
	return truncateToSeconds(event.Start.DateTime) == truncateToSeconds(class.Start.DateTime)
}

func truncateToSeconds(datetime string) string {
	if len(datetime) > len(eventTimeLayout) {
		return datetime[:len(eventTimeLayout)]
	}
	return datetime
}

func matchingEvents(upcoming []*calendar.Event, class *calendar.Event) []*calendar.Event {
	var matches []*calendar.Event
	for _, e := range upcoming {
		if EventMatchesClass(e, class) {
			matches = append(matches, e)
		}
	}
	return matches
}

// CalendarAPI is the narrow calendar operation set the reconciler needs.
type CalendarAPI interface {
	UpcomingEvents(since time.Time, marker string) ([]*calendar.Event, error)
	Insert(event *calendar.Event) (*calendar.Event, error)
	Delete(eventID string) error
}

// ActionOutcome counts what one booking email did to the calendar.
type ActionOutcome struct {
	Created  int
	Deleted  int
	Refused  int
	Stale    bool
	NoOp     bool
	Failures []string
}

// ApplyBookingAction reconciles one parsed booking against the fetched
// upcoming events. Returns the upcoming slice with any created events
// appended, so later messages in the same run match against them.
//
// Every path is idempotent: re-applying the same email finds its event
// (or its absence) already in place and does nothing.
func ApplyBookingAction(cal CalendarAPI, cfg Config, action BookingAction, booking ParsedBooking, upcoming []*calendar.Event, now time.Time) ([]*calendar.Event, ActionOutcome) {
	var outcome ActionOutcome

	// Strict boundary: a class starting exactly on the cutoff is stale.
	cutoff := now.AddDate(0, 0, -cfg.EventCutoffDays)
	if !booking.Start.After(cutoff) {
		log.Printf("class %q too old (%s), not editing calendar", booking.ClassName, booking.RawDatetime)
		outcome.Stale = true
		return upcoming, outcome
	}

	booked := ClassToEvent(cfg, booking.ClassName, booking.Instructor, booking.Location, booking.Start)
	waitlisted := ClassToEvent(cfg, waitlistPrefix+booking.ClassName, booking.Instructor, booking.Location, booking.Start)

	switch action {
	case ActionCancellation:
		for _, e := range matchingEvents(upcoming, booked) {
			deleteAuthorized(cal, cfg, e, &outcome)
		}

	case ActionWaitlist:
		if matches := matchingEvents(upcoming, waitlisted); len(matches) > 0 {
			log.Printf("waitlist event for %q already in calendar", booking.ClassName)
			outcome.NoOp = true
			break
		}
		upcoming = insertEvent(cal, waitlisted, upcoming, &outcome)

	case ActionConfirmed, ActionValidated:
		if action == ActionConfirmed {
			// Promotion: the waitlist placeholder goes first.
			for _, e := range matchingEvents(upcoming, waitlisted) {
				deleteAuthorized(cal, cfg, e, &outcome)
			}
		}
		if matches := matchingEvents(upcoming, booked); len(matches) > 0 {
			log.Printf("event for %q already in calendar", booking.ClassName)
			outcome.NoOp = true
			break
		}
		upcoming = insertEvent(cal, booked, upcoming, &outcome)

	default:
		log.Printf("unknown booking action for %q, skipping", booking.ClassName)
		outcome.NoOp = true
	}

	return upcoming, outcome
}

func insertEvent(cal CalendarAPI, event *calendar.Event, upcoming []*calendar.Event, outcome *ActionOutcome) []*calendar.Event {
	log.Printf("adding event to calendar: %s", event.Summary)
	created, err := cal.Insert(event)
	if err != nil {
		log.Printf("calendar insert error for %q: %v", event.Summary, err)
		outcome.Failures = append(outcome.Failures, err.Error())
		return upcoming
	}
	outcome.Created++
	return append(upcoming, created)
}

// deleteAuthorized deletes an event only when it carries the marker
// description. Anything else was not created by this tool and is left
// untouched.
func deleteAuthorized(cal CalendarAPI, cfg Config, event *calendar.Event, outcome *ActionOutcome) {
	if event.Description != cfg.CalendarMarker {
		log.Printf("refusing to delete %q: not an automatically generated event", event.Summary)
		outcome.Refused++
		return
	}
	log.Printf("deleting event: %s", event.Summary)
	if err := cal.Delete(event.Id); err != nil {
		log.Printf("calendar delete error for %q: %v", event.Summary, err)
		outcome.Failures = append(outcome.Failures, err.Error())
		return
	}
	outcome.Deleted++
}

// ClassifySubject maps a booking email subject onto its semantic action.
// The bool reports whether the subject is one of the known booking
// subjects at all.
func ClassifySubject(cfg Config, subject string) (BookingAction, bool) {
	known := false
	for _, s := range cfg.BookingSubjects {
		if subject == s {
			known = true
			break
		}
	}
	if !known {
		return ActionUnknown, false
	}
	switch {
	case strings.Contains(subject, cfg.CancelKeyword):
		return ActionCancellation, true
	case strings.Contains(subject, cfg.WaitlistKeyword):
		return ActionWaitlist, true
	case strings.Contains(subject, cfg.ConfirmKeyword):
		return ActionConfirmed, true
	default:
		return ActionValidated, true
	}
}
