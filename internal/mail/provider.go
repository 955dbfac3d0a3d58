package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"golang.org/x/time/rate"

	"taskpulse/pkg/logx"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Provider is the external email-send capability. Send returns the
// provider-assigned email ID on success.
type Provider interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// HTTPProviderConfig configures the Resend-style HTTP provider.
type HTTPProviderConfig struct {
	BaseURL  string // default https://api.resend.com
	APIKey   string
	From     string
	RateRPS  float64 // outbound send rate limit, default 1/s
	Attempts uint    // default 3
}

// httpProvider posts to a Resend-compatible /emails endpoint.
type httpProvider struct {
	cfg     HTTPProviderConfig
	client  *http.Client
	limiter *rate.Limiter
	log     logx.Logger
}

func NewHTTPProvider(cfg HTTPProviderConfig, log logx.Logger) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.resend.com"
	}
	if cfg.RateRPS <= 0 {
		cfg.RateRPS = 1
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}
	return &httpProvider{
		cfg:     cfg,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateRPS), 1),
		log:     log,
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

type sendResponse struct {
	ID string `json:"id"`
}

func (p *httpProvider) Send(ctx context.Context, msg Message) (string, error) {
	body, err := json.Marshal(sendRequest{
		From:    p.cfg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}

	var emailID string
	err = retry.Do(
		func() error {
			start := time.Now()
			req, err := http.NewRequestWithContext(ctx, http.MethodPost,
				strings.TrimRight(p.cfg.BaseURL, "/")+"/emails", bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("create request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

			resp, err := p.client.Do(req)
			if err != nil {
				p.log.Warn("email api request failed, will retry",
					logx.String("to", msg.To), logx.Err(err))
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				p.log.Warn("email api returned non-2xx, will retry",
					logx.Int("status", resp.StatusCode), logx.String("to", msg.To))
				return fmt.Errorf("HTTP %d", resp.StatusCode)
			}

			var sr sendResponse
			if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&sr); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			emailID = sr.ID

			p.log.Debug("email sent",
				logx.String("to", msg.To),
				logx.String("email_id", emailID),
				logx.Duration("took", time.Since(start)))
			return nil
		},
		retry.Attempts(p.cfg.Attempts),
		retry.Delay(time.Second),
		retry.MaxDelay(time.Minute),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			p.log.Debug("email send retry", logx.Int("attempt", int(n)+1), logx.Err(err))
		}),
	)
	if err != nil {
		return "", err
	}
	return emailID, nil
}
