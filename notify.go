package main

import (
	"fmt"
	"html/template"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/slack-go/slack"
)

var notificationTmpl = template.Must(template.New("notification").Parse(`<!DOCTYPE html>
<html><head><style>
table { border-collapse: collapse; font-family: Helvetica, Arial, sans-serif; }
th, td { border: 1px solid #ccc; padding: 6px 12px; text-align: left; }
th { background: #222; color: #fff; }
tr:nth-child(even) { background: #f4f4f4; }
</style></head><body>
<table>
<tr><th>Site</th><th>Class</th><th>Instructor</th><th>Datetime</th></tr>
{{- range .}}
<tr><td>{{.Site}}</td><td>{{.ClassName}}</td><td>{{.Instructor}}</td><td>{{.When}}</td></tr>
{{- end}}
</table>
</body></html>
`))

type notificationRow struct {
	Site       string
	ClassName  string
	Instructor string
	When       string
}

// BuildNotificationHTML renders the email body for a set of watched
// classes: a styled table, one row per class.
func BuildNotificationHTML(classes []ClassRecord) (string, error) {
	rows := make([]notificationRow, 0, len(classes))
	for _, c := range classes {
		rows = append(rows, notificationRow{
			Site:       c.Site,
			ClassName:  c.ClassName,
			Instructor: c.Instructor,
			When:       c.Start.Format("Mon 02 Jan 15:04"),
		})
	}
	var sb strings.Builder
	if err := notificationTmpl.Execute(&sb, rows); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// BuildICS serializes the watched classes as a calendar feed so they
// can be imported alongside the notification email.
func BuildICS(cfg Config, classes []ClassRecord, now time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//r2cal//schedule watch//EN")
	for _, c := range classes {
		ev := cal.AddEvent(c.IdentityKey() + "@r2cal")
		ev.SetDtStampTime(now)
		ev.SetStartAt(c.Start)
		ev.SetEndAt(c.Start.Add(time.Hour))
		ev.SetSummary(fmt.Sprintf("%s (%s)", c.ClassName, c.Instructor))
		ev.SetLocation(cfg.LocationPrefix + c.Site)
		ev.SetDescription(cfg.CalendarMarker)
	}
	return cal.Serialize()
}

// WriteNotificationFiles stores the rendered notification next to the
// run's other artifacts so it can be inspected after the email is gone.
func WriteNotificationFiles(outputDir, htmlBody, icsBody string, at time.Time) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}
	stamp := at.Format("20060102_150405")
	if err := os.WriteFile(filepath.Join(outputDir, "planning_"+stamp+".html"), []byte(htmlBody), 0644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outputDir, "planning_"+stamp+".ics"), []byte(icsBody), 0644)
}

// Notify sends the watched classes out on every configured channel:
// HTML email via Gmail, files in the output dir, and optionally a Slack
// summary line. Per-channel failures are collected, not fatal.
func Notify(cfg Config, mail MailAPI, slackAPI *slack.Client, classes []ClassRecord) []string {
	var errs []string
	now := time.Now().In(cfg.Location)

	htmlBody, err := BuildNotificationHTML(classes)
	if err != nil {
		return []string{fmt.Sprintf("rendering notification: %v", err)}
	}
	icsBody := BuildICS(cfg, classes, now)

	if err := WriteNotificationFiles(cfg.OutputDir, htmlBody, icsBody, now); err != nil {
		log.Printf("writing notification files: %v", err)
		errs = append(errs, err.Error())
	}

	if cfg.NotifyTo != "" && mail != nil {
		log.Printf("sending notification email: %d classes", len(classes))
		if err := mail.SendHTML(cfg.NotifyTo, cfg.NotifyFrom, cfg.NotifySubject, htmlBody); err != nil {
			log.Printf("sending notification email: %v", err)
			errs = append(errs, err.Error())
		}
	}

	if cfg.SlackConfigured() && slackAPI != nil {
		text := fmt.Sprintf("%s: %d new watched classes", cfg.NotifySubject, len(classes))
		for _, c := range classes {
			text += "\n• " + c.Slot() + " (" + c.Instructor + ")"
		}
		if _, _, err := slackAPI.PostMessage(cfg.SlackChannelID, slack.MsgOptionText(text, false)); err != nil {
			log.Printf("slack notify error: %v", err)
			errs = append(errs, err.Error())
		}
	}

	return errs
}
