package untis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/untis-notifier/internal/apperr"
	"github.com/stemsi/untis-notifier/internal/config"
)

const dateLayout = "20060102"

// Client talks to one WebUntis tenant. It holds credentials but no session;
// Authenticate is the only way to obtain a Session.
type Client struct {
	baseURL    string
	username   string
	password   string
	clientName string
	classID    int
	http       *http.Client
	log        zerolog.Logger
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Username   string
	Password   string
	ClientName string
	ClassID    int
	Timeout    time.Duration
}

// NewClient creates a new Client.
func NewClient(opts Options, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    opts.BaseURL,
		username:   opts.Username,
		password:   opts.Password,
		clientName: opts.ClientName,
		classID:    opts.ClassID,
		http:       &http.Client{Timeout: opts.Timeout},
		log:        log.With().Str("component", "untis_client").Logger(),
	}
}

// NewClientFromConfig builds a Client for the configured tenant and class.
func NewClientFromConfig(cfg *config.Config, log zerolog.Logger) *Client {
	return NewClient(Options{
		BaseURL:    cfg.Untis.BaseURL(),
		Username:   cfg.Untis.Username,
		Password:   cfg.Untis.Password,
		ClientName: cfg.Untis.Client,
		ClassID:    cfg.Untis.ClassID,
		Timeout:    cfg.HTTPTimeout,
	}, log)
}

type authParams struct {
	User     string `json:"user"`
	Password string `json:"password"`
	Client   string `json:"client"`
}

// Authenticate logs in and returns an authenticated Session.
// Every failure, including a transport error, is reported as ErrAuth.
func (c *Client) Authenticate(ctx context.Context) (*Session, error) {
	const op = "untis.authenticate"

	result, err := c.call(ctx, "authenticate", authParams{
		User:     c.username,
		Password: c.password,
		Client:   c.clientName,
	}, "")
	if err != nil {
		return nil, apperr.New(apperr.ErrAuth, op, err)
	}

	var fields map[string]json.RawMessage
	if isNull(result) {
		return nil, apperr.New(apperr.ErrAuth, op, errors.New("response has no result"))
	}
	if err := json.Unmarshal(result, &fields); err != nil {
		return nil, apperr.New(apperr.ErrAuth, op, fmt.Errorf("result is not an object: %w", err))
	}
	rawID, ok := fields["sessionId"]
	if !ok {
		return nil, apperr.New(apperr.ErrAuth, op, errors.New("result.sessionId missing"))
	}
	var sessionID string
	if err := json.Unmarshal(rawID, &sessionID); err != nil || sessionID == "" {
		return nil, apperr.New(apperr.ErrAuth, op, errors.New("result.sessionId is not a non-empty string"))
	}

	c.log.Info().Str("user", c.username).Msg("Authenticated")

	return &Session{client: c, token: sessionID}, nil
}
