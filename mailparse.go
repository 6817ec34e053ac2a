package main

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// ParseError means one email body did not match the booking template.
// It is fatal for that message only; the run skips it and continues.
type ParseError struct {
	Reason string
	Text   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("booking email parse: %s in %q", e.Reason, e.Text)
}

// connector is one bilingual separator of the booking sentence template:
// "<class> {with|avec} <instructor> {on|à} <datetime> {at|dans l'espace} <location>."
// French is tried first, matching the studio's default locale.
type connector struct {
	french  string
	english string
}

var bookingConnectors = []connector{
	{" avec ", " with "},
	{" à ", " on "},
	{" dans l'espace ", " at "},
}

// The upstream source formats the datetime with either a full or an
// abbreviated (dotted) month name depending on locale mood.
var bookingDatetimeLayouts = []string{
	"2 January 2006 15:04",
	"2 Jan. 2006 15:04",
}

// frenchMonths maps French month tokens, full and abbreviated, to the
// English full names the time package understands.
var frenchMonths = map[string]string{
	"janvier": "January", "février": "February", "mars": "March",
	"avril": "April", "mai": "May", "juin": "June",
	"juillet": "July", "août": "August", "septembre": "September",
	"octobre": "October", "novembre": "November", "décembre": "December",
	"janv.": "January", "févr.": "February", "avr.": "April",
	"juil.": "July", "sept.": "September", "oct.": "October",
	"nov.": "November", "déc.": "December",
}

// ParseBookingEmail extracts the booked class from a decoded email body.
// The booking sentence lives in the first blockquote of the HTML body.
func ParseBookingEmail(htmlBody string, loc *time.Location) (ParsedBooking, error) {
	quoted, err := firstBlockquoteText(htmlBody)
	if err != nil {
		return ParsedBooking{}, err
	}
	text := strings.TrimSuffix(strings.TrimSpace(quoted), ".")

	name, rest, err := splitOnConnector(text, bookingConnectors[0])
	if err != nil {
		return ParsedBooking{}, err
	}
	instructor, rest, err := splitOnConnector(rest, bookingConnectors[1])
	if err != nil {
		return ParsedBooking{}, err
	}
	rawDatetime, location, err := splitOnConnector(rest, bookingConnectors[2])
	if err != nil {
		return ParsedBooking{}, err
	}

	start, err := parseBookingDatetime(rawDatetime, loc)
	if err != nil {
		return ParsedBooking{}, err
	}

	return ParsedBooking{
		ClassName:   name,
		Instructor:  instructor,
		Location:    location,
		Start:       start,
		RawDatetime: rawDatetime,
	}, nil
}

func splitOnConnector(text string, c connector) (left, right string, err error) {
	for _, sep := range []string{c.french, c.english} {
		if strings.Contains(text, sep) {
			parts := strings.SplitN(text, sep, 2)
			return parts[0], parts[1], nil
		}
	}
	return "", "", &ParseError{
		Reason: fmt.Sprintf("neither %q nor %q found", c.french, c.english),
		Text:   text,
	}
}

// parseBookingDatetime parses "15 juillet 2026 18:30" style strings,
// trying each known layout after translating a French month token.
func parseBookingDatetime(raw string, loc *time.Location) (time.Time, error) {
	fields := strings.Fields(raw)
	if len(fields) == 4 {
		if english, ok := frenchMonths[strings.ToLower(fields[1])]; ok {
			fields[1] = english
		}
	}
	normalized := strings.Join(fields, " ")

	for _, layout := range bookingDatetimeLayouts {
		if t, err := time.ParseInLocation(layout, normalized, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &ParseError{Reason: "unparseable datetime", Text: raw}
}

// firstBlockquoteText returns the text content of the first blockquote
// element in an HTML document.
func firstBlockquoteText(htmlBody string) (string, error) {
	root, err := html.Parse(strings.NewReader(htmlBody))
	if err != nil {
		return "", &ParseError{Reason: "invalid html body", Text: err.Error()}
	}
	quote := findFirst(root, "blockquote", "")
	if quote == nil {
		return "", &ParseError{Reason: "no blockquote found", Text: ""}
	}
	return collapseSpace(textContent(quote)), nil
}
