package main

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "r2cal-test.db")
	db, err := InitDB(dbPath)
	if err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRecordRun(t *testing.T) {
	db := newTestDB(t)
	started := time.Now().UTC().Truncate(time.Second)

	rec := RunRecord{
		Kind:          "planning",
		StartedAt:     started,
		FinishedAt:    started.Add(30 * time.Second),
		Scraped:       120,
		NewClasses:    4,
		Substitutions: 1,
		Duplicates:    0,
		Notified:      2,
		Errors:        []string{"slack notify error"},
	}
	if err := RecordRun(db, rec); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	var kind, errs string
	var scraped, notified int
	err := db.QueryRow(`SELECT kind, scraped, notified, errors FROM runs`).Scan(&kind, &scraped, &notified, &errs)
	if err != nil {
		t.Fatalf("querying runs failed: %v", err)
	}
	if kind != "planning" || scraped != 120 || notified != 2 {
		t.Fatalf("unexpected run row: kind=%s scraped=%d notified=%d", kind, scraped, notified)
	}
	if errs != "slack notify error" {
		t.Fatalf("unexpected errors column %q", errs)
	}
}

func TestRecordRunNilDBIsNoop(t *testing.T) {
	if err := RecordRun(nil, RunRecord{Kind: "mail"}); err != nil {
		t.Fatalf("nil db must be a no-op, got %v", err)
	}
	if err := RecordSubstitutions(nil, []Substitution{{}}, time.Now()); err != nil {
		t.Fatalf("nil db must be a no-op, got %v", err)
	}
}

func TestRecordAndQuerySubstitutions(t *testing.T) {
	db := newTestDB(t)
	observed := time.Now().UTC().Truncate(time.Second)

	subs := []Substitution{
		{
			Slot:          testClass(t, "Lun", "12.05", "09:00", "Bastille", "Yoga", "Bob"),
			OldInstructor: "Alice",
			NewInstructor: "Bob",
		},
		{
			Slot:          testClass(t, "Mar", "13.05", "18:00", "Pereire", "Boxing", "Dan"),
			OldInstructor: "Carol",
			NewInstructor: "Dan",
		},
	}
	if err := RecordSubstitutions(db, subs, observed); err != nil {
		t.Fatalf("RecordSubstitutions failed: %v", err)
	}

	got, err := RecentSubstitutions(db, observed.Add(-time.Minute))
	if err != nil {
		t.Fatalf("RecentSubstitutions failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 substitutions, got %d", len(got))
	}
	for _, s := range got {
		if s.OldInstructor == "" || s.NewInstructor == "" || s.Slot.Site == "" {
			t.Fatalf("incomplete substitution row: %+v", s)
		}
	}

	// Nothing before the window.
	older, err := RecentSubstitutions(db, observed.Add(time.Hour))
	if err != nil {
		t.Fatalf("RecentSubstitutions failed: %v", err)
	}
	if len(older) != 0 {
		t.Fatalf("expected no substitutions after cutoff, got %d", len(older))
	}
}
