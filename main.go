package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/slack-go/slack"
)

func main() {
	cfg := LoadConfig()

	db, err := InitDB(cfg.LedgerPath)
	if err != nil {
		// The ledger is telemetry; a broken ledger degrades, it
		// does not stop the pipelines.
		log.Printf("Failed to init run ledger: %v", err)
		db = nil
	} else {
		defer db.Close()
	}

	gmailClient, calClient, err := NewGoogleClients(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Google clients: %v", err)
	}

	var slackAPI *slack.Client
	if cfg.SlackConfigured() {
		slackAPI = slack.New(cfg.SlackBotToken)
	}

	mode := "run"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	switch mode {
	case "planning":
		runPlanningOnce(cfg, db, gmailClient, slackAPI)
	case "mail":
		runMailOnce(cfg, db, gmailClient, calClient)
	case "run":
		runMailOnce(cfg, db, gmailClient, calClient)
		runPlanningOnce(cfg, db, gmailClient, slackAPI)
	case "daemon":
		runDaemon(cfg, db, gmailClient, calClient, slackAPI)
	default:
		fmt.Fprintf(os.Stderr, "usage: r2cal [planning|mail|run|daemon]\n")
		os.Exit(2)
	}
}

func runPlanningOnce(cfg Config, db *sql.DB, mail MailAPI, slackAPI *slack.Client) {
	log.Printf("STARTING PLANNING CHECK")
	result, err := RunPlanning(cfg, db, mail, slackAPI)
	if err != nil {
		log.Printf("Planning check error: %v", err)
		return
	}
	log.Printf("Planning check finished: %s", FormatPlanningSummary(result))
}

func runMailOnce(cfg Config, db *sql.DB, mail MailAPI, cal CalendarAPI) {
	log.Printf("STARTING MAIL TO EVENTS")
	result, err := RunMail(cfg, db, mail, cal, time.Now().In(cfg.Location))
	if err != nil {
		log.Printf("Mail to events error: %v", err)
		return
	}
	log.Printf("Mail to events finished: %s", FormatMailSummary(result))
}

// runDaemon runs each pipeline on its own cron schedule. An empty
// schedule disables that pipeline.
func runDaemon(cfg Config, db *sql.DB, mail MailAPI, cal CalendarAPI, slackAPI *slack.Client) {
	planning := startSchedule("planning", cfg.PlanningSchedule, cfg, func() {
		runPlanningOnce(cfg, db, mail, slackAPI)
	})
	mailing := startSchedule("mail", cfg.MailSchedule, cfg, func() {
		runMailOnce(cfg, db, mail, cal)
	})
	if !planning && !mailing {
		log.Fatalf("daemon mode needs planning_schedule and/or mail_schedule")
	}
	select {}
}

// startSchedule parses a standard 5-field cron expression and runs fn on
// it in a goroutine. Examples: "0 * * * *" (hourly), "*/30 8-22 * * *"
// (every 30 minutes during the day).
func startSchedule(name, schedule string, cfg Config, fn func()) bool {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		log.Printf("%s pipeline disabled (no schedule set)", name)
		return false
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Printf("Invalid %s schedule '%s': %v, pipeline disabled", name, schedule, err)
		return false
	}
	log.Printf("%s pipeline scheduled (cron: %s)", name, schedule)

	go func() {
		for {
			now := time.Now().In(cfg.Location)
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next %s run at %s (in %s)", name, next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			time.Sleep(wait)
			fn()
		}
	}()
	return true
}
