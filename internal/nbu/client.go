// Package nbu fetches official hryvnia exchange rates from the National Bank
// of Ukraine and keeps them in a date-keyed snapshot.
package nbu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dvloznov/fop-tax-tracker/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// DefaultBaseURL is the public NBU statistics host.
const DefaultBaseURL = "https://bank.gov.ua"

// DefaultConcurrency bounds parallel rate requests.
const DefaultConcurrency = 4

// ErrRateNotFound is returned when NBU has no rate for the requested date.
var ErrRateNotFound = errors.New("nbu: rate not found")

// Client is an NBU exchange rate API client.
type Client struct {
	baseURL     string
	client      *http.Client
	log         zerolog.Logger
	concurrency int
}

// NewClient creates a new NBU client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log:         log.With().Str("client", "nbu").Logger(),
		concurrency: DefaultConcurrency,
	}
}

type exchangeEntry struct {
	Currency     string          `json:"cc"`
	Rate         decimal.Decimal `json:"rate"`
	ExchangeDate string          `json:"exchangedate"`
}

// Rate returns the UAH rate of currency on date.
func (c *Client) Rate(ctx context.Context, currency string, date time.Time) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("valcode", strings.ToUpper(currency))
	q.Set("date", date.Format("20060102"))
	endpoint := c.baseURL + "/NBUStatService/v1/statdirectory/exchange?" + q.Encode() + "&json"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("Rate: build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("Rate: request %s %s: %w", currency, date.Format(domain.DateLayout), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("Rate: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("Rate: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var entries []exchangeEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return decimal.Zero, fmt.Errorf("Rate: decode response: %w", err)
	}
	if len(entries) == 0 || !entries[0].Rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w for %s on %s", ErrRateNotFound, currency, date.Format(domain.DateLayout))
	}
	return entries[0].Rate, nil
}

// Rates fetches the rate of currency for every YYYY-MM-DD date in dates,
// with at most DefaultConcurrency requests in flight. The first failure
// cancels the remaining requests.
func (c *Client) Rates(ctx context.Context, currency string, dates []string) (map[string]decimal.Decimal, error) {
	unique := uniqueSorted(dates)

	var (
		mu  sync.Mutex
		out = make(map[string]decimal.Decimal, len(unique))
	)

	days := make(map[string]time.Time, len(unique))
	for _, key := range unique {
		day, err := time.ParseInLocation(domain.DateLayout, key, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("Rates: invalid date %q: %w", key, err)
		}
		days[key] = day
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for _, key := range unique {
		day := days[key]
		g.Go(func() error {
			rate, err := c.Rate(gctx, currency, day)
			if err != nil {
				return err
			}
			mu.Lock()
			out[key] = rate
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("Rates: %w", err)
	}

	c.log.Debug().Str("currency", currency).Int("dates", len(out)).Msg("Fetched NBU rates")
	return out, nil
}

func uniqueSorted(dates []string) []string {
	seen := make(map[string]bool, len(dates))
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
