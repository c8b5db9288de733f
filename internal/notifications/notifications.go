package notifications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultServer = "https://ntfy.sh"

// Client pushes operator alerts to an ntfy topic.
type Client struct {
	server string
	topic  string
	http   *http.Client
}

// New returns nil when no topic is configured; callers treat a nil client as
// notifications disabled.
func New(topic string) *Client {
	if topic == "" {
		log.Warn().Msg("Ntfy topic not configured - notifications disabled")
		return nil
	}

	log.Info().
		Str("topic", topic).
		Msg("Ntfy notifications initialized")

	return &Client{
		server: defaultServer,
		topic:  topic,
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Send sends a notification to ntfy.sh
func (c *Client) Send(title, message string) error {
	payload := map[string]interface{}{
		"topic":    c.topic,
		"title":    title,
		"message":  message,
		"priority": 4,
		"tags":     []string{"warning"},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequest("POST", c.server, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned non-success status: %d", resp.StatusCode)
	}

	log.Debug().
		Str("title", title).
		Int("status", resp.StatusCode).
		Msg("Notification sent successfully")

	return nil
}
