package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

var unreadLabels = []string{"UNREAD", "INBOX"}

// MailResult tracks what one mail-to-calendar run did.
type MailResult struct {
	Seen           int
	Unprocessed    int
	Parsed         int
	EventsCreated  int
	EventsDeleted  int
	DeletesRefused int
	Errors         []string
}

// RunMail executes the mail-to-calendar pipeline once: list unread
// messages, drop the ones already processed, and reconcile each booking
// email against the upcoming calendar events.
//
// A message enters the persisted read set only after it was handled (or
// recognized as irrelevant); parse and transport failures leave it out
// so the next run retries it. Retrying is safe because every calendar
// action no-ops when its effect is already in place.
func RunMail(cfg Config, db *sql.DB, mail MailAPI, cal CalendarAPI, now time.Time) (MailResult, error) {
	started := now
	var result MailResult

	known, err := LoadReadMessages(cfg.ReadMsgsPath)
	if err != nil {
		return result, fmt.Errorf("loading read messages: %v", err)
	}

	ids, err := mail.ListMessages(unreadLabels, cfg.MailMaxResults)
	if err != nil {
		return result, fmt.Errorf("listing messages: %v", err)
	}
	result.Seen = len(ids)

	fresh := FilterUnprocessed(ids, known)
	result.Unprocessed = len(fresh)
	log.Printf("mail: %d messages found, %d unknown", len(ids), len(fresh))

	cutoff := now.AddDate(0, 0, -cfg.EventCutoffDays)
	upcoming, err := cal.UpcomingEvents(cutoff, cfg.CalendarMarker)
	if err != nil {
		return result, fmt.Errorf("listing calendar events: %v", err)
	}
	log.Printf("mail: %d upcoming events found", len(upcoming))

	for _, id := range fresh {
		msg, err := mail.GetMessage(id)
		if err != nil {
			log.Printf("mail: fetching message %s: %v", id, err)
			result.Errors = append(result.Errors, err.Error())
			continue
		}

		if MessageHeader(msg, "From") != cfg.BookingSender {
			known[id] = struct{}{}
			continue
		}
		subject := MessageHeader(msg, "Subject")
		action, ok := ClassifySubject(cfg, subject)
		if !ok {
			known[id] = struct{}{}
			continue
		}
		log.Printf("mail: analyzing message: %s", subject)

		body, err := DecodeMessageBody(msg)
		if err != nil {
			log.Printf("mail: message %s: %v", id, err)
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		booking, err := ParseBookingEmail(body, cfg.Location)
		if err != nil {
			var parseErr *ParseError
			if errors.As(err, &parseErr) {
				log.Printf("mail: skipping message %s: %v", id, err)
			} else {
				log.Printf("mail: message %s: %v", id, err)
			}
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Parsed++
		log.Printf("mail: %s", strings.Join([]string{booking.Location, booking.RawDatetime, booking.Instructor, booking.ClassName, action.String()}, " - "))

		var outcome ActionOutcome
		upcoming, outcome = ApplyBookingAction(cal, cfg, action, booking, upcoming, now)
		result.EventsCreated += outcome.Created
		result.EventsDeleted += outcome.Deleted
		result.DeletesRefused += outcome.Refused
		result.Errors = append(result.Errors, outcome.Failures...)

		if err := mail.ModifyLabels(id, []string{cfg.ProcessedLabelID}, unreadLabels); err != nil {
			log.Printf("mail: relabeling message %s: %v", id, err)
			result.Errors = append(result.Errors, err.Error())
		}
		known[id] = struct{}{}
	}

	if err := SaveReadMessages(cfg.ReadMsgsPath, known); err != nil {
		return result, fmt.Errorf("saving read messages: %v", err)
	}

	err = RecordRun(db, RunRecord{
		Kind:           "mail",
		StartedAt:      started,
		FinishedAt:     time.Now().In(cfg.Location),
		MessagesSeen:   result.Seen,
		MessagesParsed: result.Parsed,
		EventsCreated:  result.EventsCreated,
		EventsDeleted:  result.EventsDeleted,
		DeletesRefused: result.DeletesRefused,
		Errors:         result.Errors,
	})
	if err != nil {
		log.Printf("mail: recording run: %v", err)
	}
	return result, nil
}

// FormatMailSummary returns a one-line human-readable summary.
func FormatMailSummary(result MailResult) string {
	msg := fmt.Sprintf("Processed %d of %d messages: %d parsed, %d events created, %d deleted, %d refused",
		result.Unprocessed, result.Seen, result.Parsed, result.EventsCreated, result.EventsDeleted, result.DeletesRefused)
	if len(result.Errors) > 0 {
		msg += fmt.Sprintf("\nWarnings:\n%s", strings.Join(result.Errors, "\n"))
	}
	return msg
}
