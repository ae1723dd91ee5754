package line

import (
	"context"
	"fmt"
	"log"

	"dmvScheduler/pkg/config"
	"dmvScheduler/pkg/notify"
	"dmvScheduler/pkg/scraper"

	"github.com/go-resty/resty/v2"
)

const lineAPIURL = "https://api.line.me"

// Client handles LINE notifications
type Client struct {
	http   *resty.Client
	userID string
}

// NewClient creates a new LINE client
func NewClient(channelToken, userID string) *Client {
	return NewClientWithBaseURL(lineAPIURL, channelToken, userID)
}

// NewClientWithBaseURL creates a client talking to a different API host.
func NewClientWithBaseURL(baseURL, channelToken, userID string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetAuthToken(channelToken).
			SetHeader("Content-Type", "application/json"),
		userID: userID,
	}
}

// Message represents a LINE message
type Message struct {
	To       string        `json:"to"`
	Messages []LineContent `json:"messages"`
}

// LineContent represents the content of a LINE message
type LineContent struct {
	Type     string      `json:"type"`
	Text     string      `json:"text,omitempty"`
	AltText  string      `json:"altText,omitempty"`
	Contents interface{} `json:"contents,omitempty"`
}

// Notify pushes a flex message describing the event
func (c *Client) Notify(ctx context.Context, event notify.Event) error {
	payload := Message{
		To:       c.userID,
		Messages: []LineContent{c.createFlexMessage(event)},
	}
	return c.sendMessage(ctx, payload)
}

// SendText pushes a plain text message.
func (c *Client) SendText(ctx context.Context, text string) error {
	return c.sendMessage(ctx, Message{
		To:       c.userID,
		Messages: []LineContent{{Type: "text", Text: text}},
	})
}

func (c *Client) sendMessage(ctx context.Context, payload Message) error {
	if c.userID == "" {
		return fmt.Errorf("LINE configuration is incomplete")
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post("/v2/bot/message/push")
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("message failed with status: %d", resp.StatusCode())
	}

	log.Printf("📱 Notification sent")
	return nil
}

func (c *Client) createFlexMessage(event notify.Event) LineContent {
	appt := event.Appointment

	lines := []interface{}{
		map[string]interface{}{
			"type":   "text",
			"text":   "📍 " + appt.Office,
			"size":   "md",
			"weight": "bold",
			"color":  "#1DB446",
		},
		map[string]interface{}{
			"type":   "text",
			"text":   "🏢 " + appt.Address,
			"size":   "sm",
			"color":  "#666666",
			"margin": "sm",
			"wrap":   true,
		},
		map[string]interface{}{
			"type":   "text",
			"text":   fmt.Sprintf("📅 %s (%.1f mi)", scraper.FormatDate(appt.Date), appt.Distance),
			"size":   "sm",
			"color":  "#666666",
			"margin": "sm",
		},
	}
	if event.Previous != nil {
		lines = append(lines, map[string]interface{}{
			"type":   "text",
			"text":   "⏪ " + scraper.FormatDate(*event.Previous),
			"size":   "sm",
			"color":  "#999999",
			"margin": "sm",
		})
	}

	header := "🎉 Sooner appointment found!"
	if event.Kind == notify.Booked {
		header = "✅ Appointment booked!"
	}

	return LineContent{
		Type:    "flex",
		AltText: event.Title(),
		Contents: map[string]interface{}{
			"type": "bubble",
			"header": map[string]interface{}{
				"type":   "box",
				"layout": "vertical",
				"contents": []interface{}{
					map[string]interface{}{
						"type":   "text",
						"text":   header,
						"size":   "xl",
						"weight": "bold",
						"color":  "#1DB446",
					},
				},
			},
			"body": map[string]interface{}{
				"type":     "box",
				"layout":   "vertical",
				"contents": lines,
				"spacing":  "md",
			},
			"footer": map[string]interface{}{
				"type":   "box",
				"layout": "vertical",
				"contents": []interface{}{
					map[string]interface{}{
						"type":  "button",
						"style": "primary",
						"action": map[string]interface{}{
							"type":  "uri",
							"label": "Open scheduler",
							"uri":   config.SchedulerURL,
						},
						"color": "#1DB446",
					},
				},
			},
		},
	}
}
