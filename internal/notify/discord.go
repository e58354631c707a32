package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/donaldgifford/meli-harvester/internal/metrics"
	domain "github.com/donaldgifford/meli-harvester/pkg/types"
)

const (
	colorGreen  = 0x2ECC71 // success
	colorYellow = 0xF1C40F // partial
	colorRed    = 0xE74C3C // failed

	maxSkippedListed = 15
)

// DiscordNotifier implements Notifier via Discord webhook.
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordNotifier creates a new DiscordNotifier.
func NewDiscordNotifier(webhookURL string, opts ...DiscordOption) *DiscordNotifier {
	d := &DiscordNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DiscordOption configures a DiscordNotifier.
type DiscordOption func(*DiscordNotifier)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) DiscordOption {
	return func(d *DiscordNotifier) {
		d.client = c
	}
}

// discordWebhookPayload is the Discord webhook JSON structure.
type discordWebhookPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string              `json:"title"`
	Color       int                 `json:"color"`
	Description string              `json:"description,omitempty"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// SendRunReport posts a run summary embed.
func (d *DiscordNotifier) SendRunReport(ctx context.Context, report *domain.RunReport) error {
	return d.post(ctx, discordWebhookPayload{Embeds: []discordEmbed{buildReportEmbed(report)}})
}

// SendAuthExpired posts a re-authorization alert.
func (d *DiscordNotifier) SendAuthExpired(ctx context.Context, accountID string, cause error) error {
	embed := discordEmbed{
		Title: "MercadoLibre authorization expired",
		Color: colorRed,
		Description: "The refresh token was rejected. Re-authorize the application " +
			"and update the configured refresh token.",
		Fields: []discordEmbedField{
			{Name: "Account", Value: accountID, Inline: true},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if cause != nil {
		embed.Fields = append(embed.Fields, discordEmbedField{Name: "Error", Value: cause.Error()})
	}
	return d.post(ctx, discordWebhookPayload{Embeds: []discordEmbed{embed}})
}

func buildReportEmbed(r *domain.RunReport) discordEmbed {
	embed := discordEmbed{
		Title: fmt.Sprintf("Extraction %s", r.Status),
		Color: statusColor(r.Status),
		Fields: []discordEmbedField{
			{Name: "Requested", Value: fmt.Sprintf("%d", r.Requested), Inline: true},
			{Name: "Resolved", Value: fmt.Sprintf("%d", r.Resolved), Inline: true},
			{Name: "Skipped", Value: fmt.Sprintf("%d", r.SkippedCount()), Inline: true},
			{Name: "Duration", Value: r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String(), Inline: true},
		},
		Timestamp: r.FinishedAt.UTC().Format(time.RFC3339),
	}

	if r.Reason != domain.ReasonNone {
		embed.Fields = append(embed.Fields, discordEmbedField{Name: "Reason", Value: string(r.Reason), Inline: true})
	}
	if r.Error != "" {
		embed.Description = r.Error
	}
	if r.Result != nil {
		pr := r.Result.Summary.PriceRange
		embed.Fields = append(embed.Fields, discordEmbedField{
			Name:  "Price range",
			Value: fmt.Sprintf("%.2f - %.2f (avg %.2f)", pr.Min, pr.Max, pr.Average),
		})
	}
	if len(r.Skipped) > 0 {
		listed := r.Skipped[:min(len(r.Skipped), maxSkippedListed)]
		value := strings.Join(listed, ", ")
		if len(r.Skipped) > maxSkippedListed {
			value += fmt.Sprintf(" ... and %d more", len(r.Skipped)-maxSkippedListed)
		}
		embed.Fields = append(embed.Fields, discordEmbedField{Name: "Skipped items", Value: value})
	}

	return embed
}

func statusColor(s domain.OutcomeStatus) int {
	switch s {
	case domain.OutcomeSuccess:
		return colorGreen
	case domain.OutcomePartial:
		return colorYellow
	default:
		return colorRed
	}
}

func (d *DiscordNotifier) post(ctx context.Context, payload discordWebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		d.webhookURL,
		bytes.NewReader(body),
	)
	if err != nil {
		return fmt.Errorf("creating discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := d.client.Do(req)
	metrics.NotificationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("sending discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("discord rate limited (429)")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("discord returned %d (body unreadable)", resp.StatusCode)
		}
		return fmt.Errorf("discord returned %d: %s", resp.StatusCode, respBody)
	}

	return nil
}
