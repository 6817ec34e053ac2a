package main

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/slack-go/slack"
)

// PlanningResult tracks what one schedule-watch run did.
type PlanningResult struct {
	Scraped       int
	NewClasses    int
	Substitutions int
	Duplicates    int
	Notified      int
	Errors        []string
}

// RunPlanning executes the schedule-watch pipeline once: scrape the
// configured weeks and sites, reconcile against the persisted history,
// persist the merged set, and notify about new classes matching the
// watch rules.
func RunPlanning(cfg Config, db *sql.DB, mail MailAPI, slackAPI *slack.Client) (PlanningResult, error) {
	started := time.Now().In(cfg.Location)
	var result PlanningResult

	scraped, err := ScrapeWeeks(cfg, scheduleHTTPClient)
	if err != nil {
		return result, fmt.Errorf("scrape failed: %v", err)
	}
	result.Scraped = len(scraped)
	log.Printf("planning: scraped %d classes", len(scraped))

	// An empty scrape means the source gave us nothing; leave the
	// history exactly as it is rather than persisting a no-op merge.
	if len(scraped) == 0 {
		log.Printf("planning: empty scrape, history unchanged")
		recordPlanningRun(db, cfg, started, result)
		return result, nil
	}

	history, err := LoadHistory(cfg.HistoryPath, cfg.Location)
	if err != nil {
		return result, fmt.Errorf("loading history: %v", err)
	}

	rec := Reconcile(history, scraped)
	result.NewClasses = len(rec.NewFromWeb)
	result.Substitutions = len(rec.Substitutions)
	result.Duplicates = len(rec.Duplicates)

	for _, s := range rec.Substitutions {
		log.Printf("planning: instructor substitution at %s: %s -> %s", s.Slot.Slot(), s.OldInstructor, s.NewInstructor)
	}
	for _, d := range rec.Duplicates {
		var rows []string
		for _, r := range d.Rows {
			rows = append(rows, fmt.Sprintf("%s(%s)", r.Instructor, r.Origin))
		}
		log.Printf("WARNING: planning: unexplained duplicate at %s: %s", d.Slot.Slot(), strings.Join(rows, ", "))
	}

	if err := SaveHistory(cfg.HistoryPath, rec.Merged); err != nil {
		return result, fmt.Errorf("saving history: %v", err)
	}

	if err := RecordSubstitutions(db, rec.Substitutions, started); err != nil {
		log.Printf("planning: recording substitutions: %v", err)
		result.Errors = append(result.Errors, err.Error())
	}

	watched := FilterWatched(cfg.WatchRules, rec.NewFromWeb)
	log.Printf("planning: %d new classes, %d watched", len(rec.NewFromWeb), len(watched))
	if len(watched) > 0 {
		result.Notified = len(watched)
		result.Errors = append(result.Errors, Notify(cfg, mail, slackAPI, watched)...)
	}

	recordPlanningRun(db, cfg, started, result)
	return result, nil
}

func recordPlanningRun(db *sql.DB, cfg Config, started time.Time, result PlanningResult) {
	err := RecordRun(db, RunRecord{
		Kind:          "planning",
		StartedAt:     started,
		FinishedAt:    time.Now().In(cfg.Location),
		Scraped:       result.Scraped,
		NewClasses:    result.NewClasses,
		Substitutions: result.Substitutions,
		Duplicates:    result.Duplicates,
		Notified:      result.Notified,
		Errors:        result.Errors,
	})
	if err != nil {
		log.Printf("planning: recording run: %v", err)
	}
}

// FormatPlanningSummary returns a one-line human-readable summary.
func FormatPlanningSummary(result PlanningResult) string {
	msg := fmt.Sprintf("Scraped %d classes: %d new, %d substitutions, %d duplicates, %d notified",
		result.Scraped, result.NewClasses, result.Substitutions, result.Duplicates, result.Notified)
	if len(result.Errors) > 0 {
		msg += fmt.Sprintf("\nWarnings:\n%s", strings.Join(result.Errors, "\n"))
	}
	return msg
}
