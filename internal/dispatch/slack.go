package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ignite/playbook-engine/internal/playbook"
	"github.com/osteele/liquid"
)

// SlackNotifier posts rendered alerts to Slack incoming webhooks. Message
// templates are liquid, authored per action in the wizard.
type SlackNotifier struct {
	engine         *liquid.Engine
	client         *http.Client
	defaultChannel string
	cache          sync.Map // template source -> *liquid.Template
}

func NewSlackNotifier(timeout time.Duration, defaultChannel string) *SlackNotifier {
	return &SlackNotifier{
		engine:         liquid.NewEngine(),
		client:         &http.Client{Timeout: timeout},
		defaultChannel: defaultChannel,
	}
}

// Send renders the alert template and posts it to the webhook.
func (s *SlackNotifier) Send(ctx context.Context, cfg playbook.SlackAlertConfig, bindings map[string]any) error {
	if cfg.WebhookURL == "" {
		return fmt.Errorf("slack alert has no webhook url")
	}

	text, err := s.render(cfg.Template, bindings)
	if err != nil {
		return fmt.Errorf("rendering slack template: %w", err)
	}

	channel := cfg.Channel
	if channel == "" {
		channel = s.defaultChannel
	}
	payload, err := json.Marshal(map[string]string{
		"channel": channel,
		"text":    text,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting slack alert: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned %d", resp.StatusCode)
	}
	return nil
}

func (s *SlackNotifier) render(source string, bindings map[string]any) (string, error) {
	if cached, ok := s.cache.Load(source); ok {
		return cached.(*liquid.Template).RenderString(bindings)
	}
	tmpl, err := s.engine.ParseString(source)
	if err != nil {
		return "", err
	}
	s.cache.Store(source, tmpl)
	return tmpl.RenderString(bindings)
}
