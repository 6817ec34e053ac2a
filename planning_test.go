package main

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func planningTestConfig(t *testing.T, baseURL string) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		ScheduleBaseURL: baseURL,
		Sites:           map[string]string{"3": "Bastille"},
		Weeks:           1,
		OpenGymMarker:   "Open Gym",
		HistoryPath:     filepath.Join(dir, "all_classes.csv"),
		OutputDir:       filepath.Join(dir, "notifications"),
		NotifyTo:        "me@example.com",
		NotifyFrom:      "bot@example.com",
		NotifySubject:   "R2 Planning Update",
		LocationPrefix:  "R2 ",
		CalendarMarker:  "Automatically generated event by r2cal",
		EventCutoffDays: 30,
		Timezone:        "UTC",
		Location:        time.UTC,
		WatchRules: []WatchRule{
			{Field: "instructor", Values: []string{"Alice M"}},
		},
	}
}

func TestRunPlanningEndToEnd(t *testing.T) {
	page := schedulePageFixture(
		scheduleBlock("Yoga Flow", "Alice M", "9:00", "45 min") +
			scheduleBlock("Boxing", "Bob", "18:00", "60 min"),
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer server.Close()

	cfg := planningTestConfig(t, server.URL)
	mail := &fakeMail{}

	result, err := RunPlanning(cfg, nil, mail, nil)
	if err != nil {
		t.Fatalf("RunPlanning failed: %v", err)
	}
	if result.Scraped != 2 {
		t.Fatalf("expected 2 scraped classes, got %d", result.Scraped)
	}
	if result.NewClasses != 2 {
		t.Fatalf("expected 2 new classes on first run, got %d", result.NewClasses)
	}
	if result.Notified != 1 {
		t.Fatalf("expected 1 watched class notified, got %d", result.Notified)
	}
	if len(mail.sent) != 1 || mail.sent[0] != "R2 Planning Update" {
		t.Fatalf("notification email not sent: %v", mail.sent)
	}

	history, err := LoadHistory(cfg.HistoryPath, cfg.Location)
	if err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 rows persisted, got %d", len(history))
	}

	// The same scrape again: nothing new, nothing notified, no growth.
	second, err := RunPlanning(cfg, nil, mail, nil)
	if err != nil {
		t.Fatalf("second RunPlanning failed: %v", err)
	}
	if second.NewClasses != 0 || second.Notified != 0 {
		t.Fatalf("repeat scrape not idempotent: %+v", second)
	}
	if len(mail.sent) != 1 {
		t.Fatalf("expected no second email, got %v", mail.sent)
	}
	history, _ = LoadHistory(cfg.HistoryPath, cfg.Location)
	if len(history) != 2 {
		t.Fatalf("history grew on repeat scrape: %d rows", len(history))
	}
}

func TestRunPlanningAllPagesFailing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := planningTestConfig(t, server.URL)

	if _, err := RunPlanning(cfg, nil, &fakeMail{}, nil); err == nil {
		t.Fatal("expected error when every page fails")
	}

	// No history file must appear after a failed scrape.
	if _, err := LoadHistory(cfg.HistoryPath, cfg.Location); err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}
}

func TestFormatPlanningSummary(t *testing.T) {
	summary := FormatPlanningSummary(PlanningResult{
		Scraped: 120, NewClasses: 4, Substitutions: 1, Duplicates: 1, Notified: 2,
		Errors: []string{"slack down"},
	})
	for _, want := range []string{"120", "4 new", "1 substitutions", "2 notified", "slack down"} {
		if !strings.Contains(summary, want) {
			t.Fatalf("summary missing %q: %s", want, summary)
		}
	}
}
