// Package monobank is a client of the Monobank personal API.
package monobank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/fop-tax-tracker/internal/livefeed"
	"github.com/dvloznov/fop-tax-tracker/internal/money"
	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the public API host.
	DefaultBaseURL = "https://api.monobank.ua"

	// MaxWindow is the longest period a single statement request may cover.
	MaxWindow = 31 * 24 * time.Hour

	// DefaultPause is the wait between statement requests imposed by the
	// API rate limit.
	DefaultPause = 30 * time.Second

	// DefaultMaxAttempts bounds retries of a rate-limited request.
	DefaultMaxAttempts = 5
)

// ErrRateLimited is returned when a request is still rate limited after
// the last attempt.
var ErrRateLimited = errors.New("monobank: rate limited")

// Client for the Monobank personal API.
type Client struct {
	baseURL     string
	token       string
	client      *http.Client
	currencies  livefeed.CurrencyTable
	log         zerolog.Logger
	pause       time.Duration
	maxAttempts int
	sleep       func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API host.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithPause sets the wait between statement windows and the unit of the
// rate-limit backoff.
func WithPause(d time.Duration) Option {
	return func(c *Client) { c.pause = d }
}

// WithMaxAttempts sets how many times a rate-limited request is tried.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithCurrencies sets the currency code table used for accounts.
func WithCurrencies(t livefeed.CurrencyTable) Option {
	return func(c *Client) { c.currencies = t }
}

// NewClient creates a new Monobank client authenticated with token.
func NewClient(token string, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		token:   token,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		currencies:  livefeed.DefaultCurrencies(),
		log:         log.With().Str("client", "monobank").Logger(),
		pause:       DefaultPause,
		maxAttempts: DefaultMaxAttempts,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

// get performs an authenticated GET and decodes the JSON body into v,
// retrying HTTP 429 with a linearly growing wait.
func (c *Client) get(ctx context.Context, path string, v any) error {
	for attempt := 1; ; attempt++ {
		err := c.getOnce(ctx, path, v)

		var se *statusError
		if !errors.As(err, &se) || se.code != http.StatusTooManyRequests {
			return err
		}
		if attempt >= c.maxAttempts {
			return fmt.Errorf("%w after %d attempts: %s", ErrRateLimited, attempt, path)
		}

		wait := c.pause * time.Duration(attempt)
		c.log.Warn().Int("attempt", attempt).Dur("wait", wait).Str("path", path).Msg("Rate limited, retrying")
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (c *Client) getOnce(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Token", c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode response of %s: %w", path, err)
	}
	return nil
}

type rawAccount struct {
	ID           string   `json:"id"`
	IBAN         string   `json:"iban"`
	Type         string   `json:"type"`
	CurrencyCode int      `json:"currencyCode"`
	Balance      int64    `json:"balance"`
	CreditLimit  int64    `json:"creditLimit"`
	MaskedPan    []string `json:"maskedPan"`
}

type rawClientInfo struct {
	ClientID    string       `json:"clientId"`
	Name        string       `json:"name"`
	Permissions string       `json:"permissions"`
	Accounts    []rawAccount `json:"accounts"`
}

// ClientInfo returns the account holder and their accounts with currencies
// resolved and amounts in major units.
func (c *Client) ClientInfo(ctx context.Context) (*livefeed.ClientInfo, error) {
	var raw rawClientInfo
	if err := c.get(ctx, "/personal/client-info", &raw); err != nil {
		return nil, fmt.Errorf("ClientInfo: %w", err)
	}

	info := &livefeed.ClientInfo{
		ClientID:    raw.ClientID,
		Name:        raw.Name,
		Permissions: raw.Permissions,
		Accounts:    make([]livefeed.Account, 0, len(raw.Accounts)),
	}
	for _, a := range raw.Accounts {
		pans := a.MaskedPan
		if pans == nil {
			pans = []string{}
		}
		info.Accounts = append(info.Accounts, livefeed.Account{
			ID:          a.ID,
			IBAN:        a.IBAN,
			Type:        a.Type,
			Currency:    c.currencies.Lookup(a.CurrencyCode),
			Balance:     money.FromMinorUnits(a.Balance),
			CreditLimit: money.FromMinorUnits(a.CreditLimit),
			MaskedPan:   pans,
		})
	}
	return info, nil
}

// Statement returns the transactions of accountID between from and to. The
// period must not exceed MaxWindow.
func (c *Client) Statement(ctx context.Context, accountID string, from, to time.Time) ([]livefeed.Record, error) {
	if to.Sub(from) > MaxWindow {
		return nil, fmt.Errorf("Statement: period %s exceeds %s", to.Sub(from), MaxWindow)
	}

	path := fmt.Sprintf("/personal/statement/%s/%d/%d", accountID, from.Unix(), to.Unix())
	var records []livefeed.Record
	if err := c.get(ctx, path, &records); err != nil {
		return nil, fmt.Errorf("Statement: %w", err)
	}
	return records, nil
}

// StatementRange walks from..to in MaxWindow windows, pausing between
// requests, and returns the transactions deduplicated by ID in the order
// first seen.
func (c *Client) StatementRange(ctx context.Context, accountID string, from, to time.Time) ([]livefeed.Record, error) {
	seen := make(map[string]bool)
	var out []livefeed.Record

	for start := from; start.Before(to); {
		end := start.Add(MaxWindow)
		if end.After(to) {
			end = to
		}

		records, err := c.Statement(ctx, accountID, start, end)
		if err != nil {
			return nil, fmt.Errorf("StatementRange: window %s: %w", start.Format(time.DateOnly), err)
		}

		added := 0
		for _, r := range records {
			if r.ID == "" || seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			out = append(out, r)
			added++
		}
		c.log.Debug().
			Str("account_id", accountID).
			Str("from", start.Format(time.DateOnly)).
			Str("to", end.Format(time.DateOnly)).
			Int("retrieved", len(records)).
			Int("new", added).
			Msg("Fetched statement window")

		start = end
		if start.Before(to) {
			if err := c.sleep(ctx, c.pause); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
