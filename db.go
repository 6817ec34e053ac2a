package main

import (
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// The ledger records one row per pipeline run plus every instructor
// substitution the engine reports, so swap history survives log
// rotation. Ledger failures are logged by callers and never abort a run.

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		kind            TEXT NOT NULL,
		started_at      DATETIME NOT NULL,
		finished_at     DATETIME NOT NULL,
		scraped         INTEGER DEFAULT 0,
		new_classes     INTEGER DEFAULT 0,
		substitutions   INTEGER DEFAULT 0,
		duplicates      INTEGER DEFAULT 0,
		notified        INTEGER DEFAULT 0,
		messages_seen   INTEGER DEFAULT 0,
		messages_parsed INTEGER DEFAULT 0,
		events_created  INTEGER DEFAULT 0,
		events_deleted  INTEGER DEFAULT 0,
		deletes_refused INTEGER DEFAULT 0,
		errors          TEXT DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);

	CREATE TABLE IF NOT EXISTS substitutions (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		dow            TEXT NOT NULL,
		date           TEXT NOT NULL,
		time           TEXT NOT NULL,
		site           TEXT NOT NULL,
		class          TEXT NOT NULL,
		old_instructor TEXT NOT NULL,
		new_instructor TEXT NOT NULL,
		observed_at    DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_subs_observed_at ON substitutions(observed_at);
	`
	_, err = db.Exec(schema)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// RunRecord is one ledger row. Planning runs fill the class counters,
// mail runs fill the message/event counters.
type RunRecord struct {
	Kind           string // "planning" or "mail"
	StartedAt      time.Time
	FinishedAt     time.Time
	Scraped        int
	NewClasses     int
	Substitutions  int
	Duplicates     int
	Notified       int
	MessagesSeen   int
	MessagesParsed int
	EventsCreated  int
	EventsDeleted  int
	DeletesRefused int
	Errors         []string
}

func RecordRun(db *sql.DB, rec RunRecord) error {
	if db == nil {
		return nil
	}
	_, err := db.Exec(
		`INSERT INTO runs (kind, started_at, finished_at, scraped, new_classes, substitutions,
		                   duplicates, notified, messages_seen, messages_parsed,
		                   events_created, events_deleted, deletes_refused, errors)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Kind, rec.StartedAt, rec.FinishedAt, rec.Scraped, rec.NewClasses, rec.Substitutions,
		rec.Duplicates, rec.Notified, rec.MessagesSeen, rec.MessagesParsed,
		rec.EventsCreated, rec.EventsDeleted, rec.DeletesRefused, strings.Join(rec.Errors, "; "),
	)
	return err
}

func RecordSubstitutions(db *sql.DB, subs []Substitution, observedAt time.Time) error {
	if db == nil || len(subs) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO substitutions (dow, date, time, site, class, old_instructor, new_instructor, observed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range subs {
		if _, err := stmt.Exec(
			s.Slot.DayOfWeek, s.Slot.Date, s.Slot.Time, s.Slot.Site, s.Slot.ClassName,
			s.OldInstructor, s.NewInstructor, observedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RecentSubstitutions returns substitutions observed since the given
// time, newest first.
func RecentSubstitutions(db *sql.DB, since time.Time) ([]Substitution, error) {
	rows, err := db.Query(
		`SELECT dow, date, time, site, class, old_instructor, new_instructor
		 FROM substitutions WHERE observed_at >= ? ORDER BY observed_at DESC`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []Substitution
	for rows.Next() {
		var s Substitution
		if err := rows.Scan(&s.Slot.DayOfWeek, &s.Slot.Date, &s.Slot.Time, &s.Slot.Site,
			&s.Slot.ClassName, &s.OldInstructor, &s.NewInstructor); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}
