// Package messages dispatches rule NOTIFY/ALERT actions to external chat
// webhooks (Slack, Discord). Channels named "slack" or "discord" route to
// the configured webhook; any other channel name falls back to logging.
package messages

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	SlackWebhookURL   string
	DiscordWebhookURL string
}

// Dispatcher implements rules.Notifier.
type Dispatcher struct {
	cfg  Config
	http *http.Client
	log  *zap.SugaredLogger
}

func NewDispatcher(cfg Config, log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		cfg:  cfg,
		http: &http.Client{Timeout: 10 * time.Second},
		log:  log,
	}
}

const (
	colorInfo     = "#4a9eff"
	colorWarning  = "#ffaa00"
	colorCritical = "#ff4757"
)

func colorFor(severity string) string {
	switch severity {
	case "critical", "error":
		return colorCritical
	case "warning", "warn":
		return colorWarning
	default:
		return colorInfo
	}
}

// Notify sends title/message to every named channel; Slack and Discord
// dispatch over their webhooks, anything else is logged only. Every channel
// is tried even after one fails; the returned error reports how many
// channels failed and the first failure.
func (d *Dispatcher) Notify(ctx context.Context, channels []string, title, message, severity string) error {
	if len(channels) == 0 {
		channels = []string{"slack"}
	}

	var errs []error
	for _, ch := range channels {
		var err error
		switch ch {
		case "slack":
			err = d.sendSlack(ctx, title, message, severity)
		case "discord":
			err = d.sendDiscord(ctx, title, message, severity)
		default:
			if d.log != nil {
				d.log.Infow("notification (unrouted channel, logging only)", "channel", ch, "title", title, "message", message)
			}
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d of %d channels failed: %v", len(errs), len(channels), errs[0])
	}
	return nil
}

type slackMessage struct {
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color string `json:"color"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

func (d *Dispatcher) sendSlack(ctx context.Context, title, message, severity string) error {
	if d.cfg.SlackWebhookURL == "" {
		return fmt.Errorf("slack webhook not configured")
	}
	msg := slackMessage{Attachments: []slackAttachment{{Color: colorFor(severity), Title: title, Text: message}}}
	return d.postJSON(ctx, d.cfg.SlackWebhookURL, msg)
}

type discordMessage struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp,omitempty"`
}

func discordColorFor(severity string) int {
	switch severity {
	case "critical", "error":
		return 16729943
	case "warning", "warn":
		return 16755200
	default:
		return 4889855
	}
}

func (d *Dispatcher) sendDiscord(ctx context.Context, title, message, severity string) error {
	if d.cfg.DiscordWebhookURL == "" {
		return fmt.Errorf("discord webhook not configured")
	}
	msg := discordMessage{Embeds: []discordEmbed{{
		Title:       title,
		Description: message,
		Color:       discordColorFor(severity),
		Timestamp:   time.Now().Format(time.RFC3339),
	}}}
	return d.postJSON(ctx, d.cfg.DiscordWebhookURL, msg)
}

func (d *Dispatcher) postJSON(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
