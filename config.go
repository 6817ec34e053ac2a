package main

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// WatchRule keeps or drops new classes by matching one record field
// against a value list. All non-exclude rules must match; any exclude
// rule that matches drops the row.
type WatchRule struct {
	Field   string   `yaml:"field"` // dow, date, time, site, class, instructor, bucket
	Values  []string `yaml:"values"`
	Exclude bool     `yaml:"exclude"`
}

type Config struct {
	ScheduleBaseURL string            `yaml:"schedule_base_url"`
	Sites           map[string]string `yaml:"sites"` // site id -> display name
	Weeks           int               `yaml:"weeks"`
	OpenGymMarker   string            `yaml:"open_gym_marker"`

	HistoryPath  string `yaml:"history_path"`
	ReadMsgsPath string `yaml:"read_msgs_path"`
	LedgerPath   string `yaml:"ledger_path"`
	OutputDir    string `yaml:"output_dir"`

	CredentialsPath string `yaml:"credentials_path"`
	TokenPath       string `yaml:"token_path"`
	CalendarID      string `yaml:"calendar_id"`

	BookingSender    string   `yaml:"booking_sender"`
	BookingSubjects  []string `yaml:"booking_subjects"`
	CancelKeyword    string   `yaml:"cancel_keyword"`
	WaitlistKeyword  string   `yaml:"waitlist_keyword"`
	ConfirmKeyword   string   `yaml:"confirm_keyword"`
	ProcessedLabelID string   `yaml:"processed_label_id"`
	MailMaxResults   int64    `yaml:"mail_max_results"`

	CalendarMarker  string `yaml:"calendar_marker"`
	LocationPrefix  string `yaml:"location_prefix"`
	EventCutoffDays int    `yaml:"event_cutoff_days"`
	Timezone        string `yaml:"timezone"`

	NotifyTo       string      `yaml:"notify_to"`
	NotifyFrom     string      `yaml:"notify_from"`
	NotifySubject  string      `yaml:"notify_subject"`
	SlackBotToken  string      `yaml:"slack_bot_token"`
	SlackChannelID string      `yaml:"slack_channel_id"`
	WatchRules     []WatchRule `yaml:"watch_rules"`

	PlanningSchedule string `yaml:"planning_schedule"`
	MailSchedule     string `yaml:"mail_schedule"`

	Location *time.Location `yaml:"-"`
}

func LoadConfig() Config {
	var cfg Config

	// Load from config.yaml if it exists
	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	// Env vars override YAML values
	envOverride(&cfg.ScheduleBaseURL, "SCHEDULE_BASE_URL")
	envOverrideInt(&cfg.Weeks, "WEEKS")
	envOverride(&cfg.HistoryPath, "HISTORY_PATH")
	envOverride(&cfg.ReadMsgsPath, "READ_MSGS_PATH")
	envOverride(&cfg.LedgerPath, "LEDGER_PATH")
	envOverride(&cfg.OutputDir, "OUTPUT_DIR")
	envOverride(&cfg.CredentialsPath, "CREDENTIALS_PATH")
	envOverride(&cfg.TokenPath, "TOKEN_PATH")
	envOverride(&cfg.CalendarID, "CALENDAR_ID")
	envOverride(&cfg.BookingSender, "BOOKING_SENDER")
	envOverride(&cfg.ProcessedLabelID, "PROCESSED_LABEL_ID")
	envOverride(&cfg.CalendarMarker, "CALENDAR_MARKER")
	envOverride(&cfg.Timezone, "TIMEZONE")
	envOverride(&cfg.NotifyTo, "NOTIFY_TO")
	envOverride(&cfg.NotifyFrom, "NOTIFY_FROM")
	envOverride(&cfg.NotifySubject, "NOTIFY_SUBJECT")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackChannelID, "SLACK_CHANNEL_ID")
	envOverride(&cfg.PlanningSchedule, "PLANNING_SCHEDULE")
	envOverride(&cfg.MailSchedule, "MAIL_SCHEDULE")

	// Defaults preserve the values the previous generation of this tool
	// hard-coded, so existing history files, labels and calendar events
	// keep working.
	if cfg.ScheduleBaseURL == "" {
		cfg.ScheduleBaseURL = "https://r2training.zingfit.com/reserve/index.cfm"
	}
	if len(cfg.Sites) == 0 {
		cfg.Sites = map[string]string{"1": "Vendome", "2": "Pereire", "3": "Bastille"}
	}
	if cfg.Weeks == 0 {
		cfg.Weeks = 3
	}
	if cfg.OpenGymMarker == "" {
		cfg.OpenGymMarker = "Open Gym"
	}
	if cfg.HistoryPath == "" {
		cfg.HistoryPath = "./all_classes.csv"
	}
	if cfg.ReadMsgsPath == "" {
		cfg.ReadMsgsPath = "./read_msgs.json"
	}
	if cfg.LedgerPath == "" {
		cfg.LedgerPath = "./r2cal.db"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "./notifications"
	}
	if cfg.CredentialsPath == "" {
		cfg.CredentialsPath = "./credentials.json"
	}
	if cfg.TokenPath == "" {
		cfg.TokenPath = "./token.json"
	}
	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}
	if cfg.BookingSender == "" {
		cfg.BookingSender = `"contact@r2training.fr" <noreply@zingfitstudio.com>`
	}
	if len(cfg.BookingSubjects) == 0 {
		cfg.BookingSubjects = []string{
			"R2 Training - Annulation du cours",
			"R2 Training - Réservation validée",
			"R2 Training - Réservation Confirmée",
			"R2 Training - Inscription en liste d'attente",
		}
	}
	if cfg.CancelKeyword == "" {
		cfg.CancelKeyword = "Annulation"
	}
	if cfg.WaitlistKeyword == "" {
		cfg.WaitlistKeyword = "attente"
	}
	if cfg.ConfirmKeyword == "" {
		cfg.ConfirmKeyword = "Confirmée"
	}
	if cfg.ProcessedLabelID == "" {
		cfg.ProcessedLabelID = "Label_44"
	}
	if cfg.MailMaxResults == 0 {
		cfg.MailMaxResults = 200
	}
	if cfg.CalendarMarker == "" {
		// The previous generation's stamp. Changing it would orphan the
		// events it already created.
		cfg.CalendarMarker = "Automatically generated event by r2cal.py"
	}
	if cfg.LocationPrefix == "" {
		cfg.LocationPrefix = "R2 "
	}
	if cfg.EventCutoffDays == 0 {
		cfg.EventCutoffDays = 30
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Europe/Paris"
	}
	if cfg.NotifySubject == "" {
		cfg.NotifySubject = "R2 Planning Update"
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("invalid timezone '%s': %v", cfg.Timezone, err)
	}
	cfg.Location = loc

	if cfg.Weeks < 1 {
		log.Fatalf("invalid weeks '%d': must be >= 1", cfg.Weeks)
	}
	if cfg.EventCutoffDays < 1 {
		log.Fatalf("invalid event_cutoff_days '%d': must be >= 1", cfg.EventCutoffDays)
	}
	for _, rule := range cfg.WatchRules {
		if !validWatchField(rule.Field) {
			log.Fatalf("invalid watch rule field '%s'", rule.Field)
		}
		if len(rule.Values) == 0 {
			log.Fatalf("watch rule for field '%s' has no values", rule.Field)
		}
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	for name, schedule := range map[string]string{
		"planning_schedule": cfg.PlanningSchedule,
		"mail_schedule":     cfg.MailSchedule,
	} {
		if strings.TrimSpace(schedule) == "" {
			continue
		}
		if _, err := parser.Parse(schedule); err != nil {
			log.Fatalf("invalid %s '%s': %v", name, schedule, err)
		}
	}

	return cfg
}

// SlackConfigured reports whether the optional Slack channel is usable.
func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.SlackChannelID != ""
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}
