package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/kettle-controller/internal/env"
	"github.com/thatsimonsguy/kettle-controller/internal/model"
)

var client *http.Client
var server string
var topic string
var initialized bool

var retryConfig = DefaultRetryConfig()

// Init initializes the notification client
func Init() {
	if env.Cfg.NtfyTopic == "" {
		log.Warn().Msg("Ntfy topic not configured - notifications disabled")
		initialized = false
		return
	}

	client = &http.Client{
		Timeout: 10 * time.Second,
	}
	server = strings.TrimRight(env.Cfg.NtfyServer, "/")
	topic = env.Cfg.NtfyTopic
	initialized = true

	log.Info().
		Str("server", server).
		Str("topic", topic).
		Msg("Ntfy notifications initialized")
}

func Enabled() bool {
	return initialized
}

// Send sends a notification to the configured ntfy server, retrying
// transient failures with exponential backoff.
func Send(ctx context.Context, title, message string, tags ...string) error {
	if !initialized {
		return fmt.Errorf("notifications not initialized")
	}

	payload := map[string]interface{}{
		"topic":   topic,
		"title":   title,
		"message": message,
	}
	if len(tags) > 0 {
		payload["tags"] = tags
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	return WithRetry(ctx, retryConfig, func() error {
		return post(ctx, jsonData)
	})
}

func post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server, bytes.NewReader(body))
	if err != nil {
		return Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("ntfy returned non-success status: %d", resp.StatusCode)
		if !IsRetryableHTTPStatus(resp.StatusCode) {
			return Permanent(err)
		}
		return err
	}

	log.Debug().
		Int("status", resp.StatusCode).
		Msg("Notification sent successfully")
	return nil
}

// Sink pushes a notification for cycle endings and faults. It blocks on the
// network, so wrap it in events.Async.
type Sink struct {
	Timeout time.Duration
}

func (s Sink) Handle(ev model.Event) {
	title, message, tags, ok := Describe(ev)
	if !ok || !initialized {
		return
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := Send(ctx, title, message, tags...); err != nil {
		log.Warn().Err(err).Str("event", string(ev.Type)).Msg("Failed to send notification")
	}
}

// Describe returns the notification text for ev, or ok=false for events
// that are not worth a push.
func Describe(ev model.Event) (title, message string, tags []string, ok bool) {
	switch ev.Type {
	case model.EventCompleted:
		return fmt.Sprintf("%s listo", ev.Target.Name()),
			fmt.Sprintf("Water reached %.1f°C (target %d°C)", ev.Temperature, int(ev.Target)),
			[]string{"hot_beverage"}, true
	case model.EventSafetyCutoff:
		return "Kettle safety cutoff",
			fmt.Sprintf("Heating to %d°C stopped: %s", int(ev.Target), ev.Reason),
			[]string{"warning"}, true
	case model.EventRelayFault:
		return "Kettle relay fault",
			fmt.Sprintf("Relay forced off: %s", ev.Reason),
			[]string{"rotating_light"}, true
	}
	return "", "", nil, false
}
