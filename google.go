package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"mime"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// MailAPI is the narrow mail operation set the pipelines need.
type MailAPI interface {
	ListMessages(labelIDs []string, max int64) ([]string, error)
	GetMessage(id string) (*gmail.Message, error)
	ModifyLabels(id string, add, remove []string) error
	SendHTML(to, from, subject, htmlBody string) error
}

// NewGoogleClients builds authenticated Gmail and Calendar clients from
// the OAuth client secret and a previously obtained token. There is no
// interactive flow here: a cron job cannot answer a consent screen, so
// bootstrapping the token is an external step. A refreshed token is
// written back so the next run starts warm.
func NewGoogleClients(ctx context.Context, cfg Config) (*GmailClient, *CalendarClient, error) {
	secret, err := os.ReadFile(cfg.CredentialsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading credentials: %w", err)
	}
	oauthCfg, err := google.ConfigFromJSON(secret, gmail.GmailModifyScope, calendar.CalendarScope)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing credentials: %w", err)
	}

	tokenData, err := os.ReadFile(cfg.TokenPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading token (bootstrap it first): %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(tokenData, &token); err != nil {
		return nil, nil, fmt.Errorf("parsing token: %w", err)
	}

	source := oauthCfg.TokenSource(ctx, &token)
	fresh, err := source.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("refreshing token: %w", err)
	}
	if fresh.AccessToken != token.AccessToken {
		log.Printf("refreshed OAuth token")
		if data, err := json.Marshal(fresh); err == nil {
			if err := os.WriteFile(cfg.TokenPath, data, 0600); err != nil {
				log.Printf("saving refreshed token: %v", err)
			}
		}
	}

	httpClient := oauth2.NewClient(ctx, source)
	gmailSvc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, nil, err
	}
	calSvc, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, nil, err
	}
	return &GmailClient{svc: gmailSvc}, &CalendarClient{svc: calSvc, calendarID: cfg.CalendarID}, nil
}

type GmailClient struct {
	svc *gmail.Service
}

func (g *GmailClient) ListMessages(labelIDs []string, max int64) ([]string, error) {
	resp, err := g.svc.Users.Messages.List("me").LabelIds(labelIDs...).MaxResults(max).Do()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

func (g *GmailClient) GetMessage(id string) (*gmail.Message, error) {
	return g.svc.Users.Messages.Get("me", id).Do()
}

func (g *GmailClient) ModifyLabels(id string, add, remove []string) error {
	_, err := g.svc.Users.Messages.Modify("me", id, &gmail.ModifyMessageRequest{
		AddLabelIds:    add,
		RemoveLabelIds: remove,
	}).Do()
	return err
}

func (g *GmailClient) SendHTML(to, from, subject, htmlBody string) error {
	var msg strings.Builder
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("From: " + from + "\r\n")
	msg.WriteString("Subject: " + mime.QEncoding.Encode("UTF-8", subject) + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	msg.WriteString(htmlBody)

	_, err := g.svc.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.RawURLEncoding.EncodeToString([]byte(msg.String())),
	}).Do()
	return err
}

// MessageHeader returns a header value from a fetched message,
// case-insensitively.
func MessageHeader(msg *gmail.Message, name string) string {
	if msg.Payload == nil {
		return ""
	}
	for _, h := range msg.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// DecodeMessageBody returns the decoded HTML body of a message, walking
// nested multipart parts and preferring text/html.
func DecodeMessageBody(msg *gmail.Message) (string, error) {
	if msg.Payload == nil {
		return "", fmt.Errorf("message %s has no payload", msg.Id)
	}
	part := findBodyPart(msg.Payload, "text/html")
	if part == nil {
		part = findBodyPart(msg.Payload, "text/plain")
	}
	// A single-part message carries the body on the payload itself,
	// possibly under a charset-qualified mime type.
	if part == nil && len(msg.Payload.Parts) == 0 && strings.HasPrefix(msg.Payload.MimeType, "text/") {
		part = msg.Payload
	}
	if part == nil || part.Body == nil || part.Body.Data == "" {
		return "", fmt.Errorf("message %s has no decodable body", msg.Id)
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(part.Body.Data, "="))
	if err != nil {
		return "", fmt.Errorf("decoding message %s body: %w", msg.Id, err)
	}
	return string(data), nil
}

// findBodyPart walks the part tree for an exact mime-type match. It must
// not settle for anything else: on a multipart/alternative message the
// text/plain sibling would otherwise shadow the text/html part.
func findBodyPart(part *gmail.MessagePart, mimeType string) *gmail.MessagePart {
	if part.MimeType == mimeType && part.Body != nil && part.Body.Data != "" {
		return part
	}
	for _, p := range part.Parts {
		if found := findBodyPart(p, mimeType); found != nil {
			return found
		}
	}
	return nil
}

type CalendarClient struct {
	svc        *calendar.Service
	calendarID string
}

// UpcomingEvents lists upcoming events from the cutoff onwards, keeping
// only those stamped with the marker description.
func (c *CalendarClient) UpcomingEvents(since time.Time, marker string) ([]*calendar.Event, error) {
	resp, err := c.svc.Events.List(c.calendarID).
		TimeMin(since.Format(time.RFC3339)).
		MaxResults(100).
		SingleEvents(true).
		OrderBy("startTime").
		Do()
	if err != nil {
		return nil, err
	}
	var events []*calendar.Event
	for _, e := range resp.Items {
		if e.Description == marker {
			events = append(events, e)
		}
	}
	return events, nil
}

func (c *CalendarClient) Insert(event *calendar.Event) (*calendar.Event, error) {
	return c.svc.Events.Insert(c.calendarID, event).Do()
}

func (c *CalendarClient) Delete(eventID string) error {
	return c.svc.Events.Delete(c.calendarID, eventID).Do()
}
