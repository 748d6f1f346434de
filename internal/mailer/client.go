package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("mailer: api key is required")

// Options configures the transactional email client.
type Options struct {
	APIKey         string
	BaseURL        string
	FromEmail      string
	FromName       string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client sends transactional email through the provider's HTTP API.
type Client struct {
	apiKey     string
	baseURL    string
	fromEmail  string
	fromName   string
	httpClient *http.Client
	logger     *infra.Logger
}

// Message is a single transactional email.
type Message struct {
	ToEmail string
	Subject string
	Text    string
	HTML    string
}

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type personalization struct {
	To []address `json:"to"`
}

type sendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             address           `json:"from"`
	Subject          string            `json:"subject"`
	Content          []content         `json:"content"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.sendgrid.com"
	}
	fromEmail := strings.TrimSpace(opts.FromEmail)
	if fromEmail == "" {
		return nil, errors.New("mailer: from email is required")
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		fromEmail:  fromEmail,
		fromName:   strings.TrimSpace(opts.FromName),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Send delivers a single message. Either Text or HTML must be set.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if !c.HasCredentials() {
		return ErrMissingAPIKey
	}
	to := strings.TrimSpace(msg.ToEmail)
	if to == "" {
		return errors.New("mailer: recipient is required")
	}
	subject := strings.TrimSpace(msg.Subject)
	if subject == "" {
		return errors.New("mailer: subject is required")
	}
	var contents []content
	if text := strings.TrimSpace(msg.Text); text != "" {
		contents = append(contents, content{Type: "text/plain", Value: text})
	}
	if html := strings.TrimSpace(msg.HTML); html != "" {
		contents = append(contents, content{Type: "text/html", Value: html})
	}
	if len(contents) == 0 {
		return errors.New("mailer: text or html content is required")
	}

	payload := sendRequest{
		Personalizations: []personalization{{To: []address{{Email: to}}}},
		From:             address{Email: c.fromEmail, Name: c.fromName},
		Subject:          subject,
		Content:          contents,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("mailer: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("mailer: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mailer: http request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("mailer: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	c.logger.Debug().Str("to", to).Str("subject", subject).Msg("mailer: message sent")
	return nil
}
