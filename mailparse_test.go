package main

import (
	"errors"
	"testing"
	"time"
)

func bookingBody(sentence string) string {
	return `<html><body><p>Bonjour,</p><blockquote>` + sentence + `</blockquote><p>A bientôt</p></body></html>`
}

func TestParseBookingEmailFrench(t *testing.T) {
	body := bookingBody("Yoga Flow avec Alice M à 15 juillet 2026 18:30 dans l'espace Bastille.")

	booking, err := ParseBookingEmail(body, time.UTC)
	if err != nil {
		t.Fatalf("ParseBookingEmail failed: %v", err)
	}
	if booking.ClassName != "Yoga Flow" {
		t.Fatalf("unexpected class name %q", booking.ClassName)
	}
	if booking.Instructor != "Alice M" {
		t.Fatalf("unexpected instructor %q", booking.Instructor)
	}
	if booking.Location != "Bastille" {
		t.Fatalf("unexpected location %q", booking.Location)
	}
	want := time.Date(2026, time.July, 15, 18, 30, 0, 0, time.UTC)
	if !booking.Start.Equal(want) {
		t.Fatalf("unexpected start %v, want %v", booking.Start, want)
	}
	if booking.RawDatetime != "15 juillet 2026 18:30" {
		t.Fatalf("unexpected raw datetime %q", booking.RawDatetime)
	}
}

func TestParseBookingEmailFrenchAbbreviatedMonth(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Time
	}{
		{"3 janv. 2026 09:00", time.Date(2026, time.January, 3, 9, 0, 0, 0, time.UTC)},
		{"12 août 2026 19:15", time.Date(2026, time.August, 12, 19, 15, 0, 0, time.UTC)},
		{"1 déc. 2026 07:45", time.Date(2026, time.December, 1, 7, 45, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		body := bookingBody("Boxing avec Bob à " + tc.raw + " dans l'espace Pereire.")
		booking, err := ParseBookingEmail(body, time.UTC)
		if err != nil {
			t.Fatalf("ParseBookingEmail(%q) failed: %v", tc.raw, err)
		}
		if !booking.Start.Equal(tc.want) {
			t.Fatalf("datetime %q: got %v, want %v", tc.raw, booking.Start, tc.want)
		}
	}
}

func TestParseBookingEmailEnglish(t *testing.T) {
	body := bookingBody("Spin with Carol on 2 March 2026 08:00 at Vendome.")

	booking, err := ParseBookingEmail(body, time.UTC)
	if err != nil {
		t.Fatalf("ParseBookingEmail failed: %v", err)
	}
	if booking.ClassName != "Spin" || booking.Instructor != "Carol" || booking.Location != "Vendome" {
		t.Fatalf("unexpected parse: %+v", booking)
	}
	want := time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)
	if !booking.Start.Equal(want) {
		t.Fatalf("unexpected start %v", booking.Start)
	}
}

func TestParseBookingEmailEnglishAbbreviatedMonth(t *testing.T) {
	body := bookingBody("Spin with Carol on 2 Mar. 2026 08:00 at Vendome.")

	booking, err := ParseBookingEmail(body, time.UTC)
	if err != nil {
		t.Fatalf("ParseBookingEmail failed: %v", err)
	}
	if booking.Start.Month() != time.March {
		t.Fatalf("unexpected month %v", booking.Start.Month())
	}
}

func TestParseBookingEmailMissingConnector(t *testing.T) {
	body := bookingBody("Yoga Alice 15 juillet 2026 18:30 Bastille.")

	_, err := ParseBookingEmail(body, time.UTC)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
}

func TestParseBookingEmailBadDatetime(t *testing.T) {
	body := bookingBody("Yoga avec Alice à someday soon dans l'espace Bastille.")

	_, err := ParseBookingEmail(body, time.UTC)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if parseErr.Reason != "unparseable datetime" {
		t.Fatalf("unexpected reason %q", parseErr.Reason)
	}
}

func TestParseBookingEmailNoBlockquote(t *testing.T) {
	_, err := ParseBookingEmail("<html><body><p>nothing here</p></body></html>", time.UTC)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
}

// A parsed booking converted to a calendar event always matches itself
// on the three-field equality key.
func TestParsedBookingEventRoundTrip(t *testing.T) {
	cfg := Config{LocationPrefix: "R2 ", CalendarMarker: "marker", Timezone: "UTC"}
	body := bookingBody("Yoga avec Alice à 15 juillet 2026 18:30 dans l'espace Bastille.")

	booking, err := ParseBookingEmail(body, time.UTC)
	if err != nil {
		t.Fatalf("ParseBookingEmail failed: %v", err)
	}
	event := ClassToEvent(cfg, booking.ClassName, booking.Instructor, booking.Location, booking.Start)
	if !EventMatchesClass(event, event) {
		t.Fatal("event does not match itself")
	}
	if event.Summary != "Yoga (Alice)" {
		t.Fatalf("unexpected summary %q", event.Summary)
	}
	if event.Location != "R2 Bastille" {
		t.Fatalf("unexpected location %q", event.Location)
	}
}
