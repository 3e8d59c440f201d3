// Package mail delivers account verification codes.
package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

const sendTimeout = 10 * time.Second

// Sender delivers a verification code to an address.
type Sender interface {
	Send(ctx context.Context, address, code string) error
}

// Options configures New. An empty APIURL selects the log-only sender.
type Options struct {
	APIURL string
	APIKey string
	From   string
}

// New returns an HTTP sender when an API is configured, otherwise a sender
// that only logs codes.
func New(opts Options, logger zerolog.Logger) Sender {
	logger = logger.With().Str("component", "mail").Logger()
	if opts.APIURL == "" {
		logger.Warn().Msg("no mail API configured, verification codes will only be logged")
		return LogSender{log: logger}
	}
	return &HTTPSender{
		url:  opts.APIURL,
		key:  opts.APIKey,
		from: opts.From,
		log:  logger,
		client: &fasthttp.Client{
			ReadTimeout:         sendTimeout,
			WriteTimeout:        sendTimeout,
			MaxIdleConnDuration: time.Minute,
		},
	}
}

type message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// HTTPSender posts a JSON message to a transactional mail API.
type HTTPSender struct {
	url    string
	key    string
	from   string
	client *fasthttp.Client
	log    zerolog.Logger
}

func (s *HTTPSender) Send(ctx context.Context, address, code string) error {
	body, err := json.Marshal(message{
		From:    s.from,
		To:      address,
		Subject: "Your Word Duel verification code",
		Text:    fmt.Sprintf("Your verification code is %s. It expires in 5 minutes.", code),
	})
	if err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(s.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	if s.key != "" {
		req.Header.Set("Authorization", "Bearer "+s.key)
	}
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(sendTimeout)
	}
	if err := s.client.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("send verification mail: %w", err)
	}
	if sc := resp.StatusCode(); sc < 200 || sc >= 300 {
		return fmt.Errorf("send verification mail: status %d", sc)
	}
	s.log.Info().Str("to", address).Msg("verification code sent")
	return nil
}

// LogSender writes codes to the log. Used when no mail API is configured.
type LogSender struct {
	log zerolog.Logger
}

func (s LogSender) Send(_ context.Context, address, code string) error {
	s.log.Info().Str("to", address).Str("code", code).Msg("verification code (not sent)")
	return nil
}
