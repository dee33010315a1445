package nbu

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/fop-tax-tracker/internal/domain"
	"github.com/dvloznov/fop-tax-tracker/internal/snapshot"
	"github.com/dvloznov/fop-tax-tracker/internal/tax"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RateFetcher fetches rates for a set of dates.
type RateFetcher interface {
	Rates(ctx context.Context, currency string, dates []string) (map[string]decimal.Decimal, error)
}

// RateCache is the persisted date-to-rate table of each currency. Rates
// never change once published, so cached dates are never refetched.
type RateCache struct {
	store   snapshot.Store
	fetcher RateFetcher
	log     zerolog.Logger
}

// NewRateCache returns a cache backed by store. fetcher may be nil for a
// read-only cache.
func NewRateCache(store snapshot.Store, fetcher RateFetcher, log zerolog.Logger) *RateCache {
	return &RateCache{store: store, fetcher: fetcher, log: log}
}

// Load returns the cached table of currency, empty when none was saved.
func (rc *RateCache) Load(ctx context.Context, currency string) (tax.Rates, error) {
	rates := tax.Rates{}
	if _, err := rc.store.Load(ctx, snapshot.RatesKey(currency), &rates); err != nil {
		return nil, fmt.Errorf("RateCache.Load: %w", err)
	}
	return rates, nil
}

// Refresh fetches the dates missing from the cached table of currency,
// saves the merged table and returns it. Hryvnia needs no table.
func (rc *RateCache) Refresh(ctx context.Context, currency string, dates []string) (tax.Rates, error) {
	if strings.EqualFold(currency, "UAH") {
		return tax.Rates{}, nil
	}

	rates, err := rc.Load(ctx, currency)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, d := range dates {
		if _, ok := rates[d]; !ok {
			missing = append(missing, d)
		}
	}
	if len(missing) == 0 {
		return rates, nil
	}
	if rc.fetcher == nil {
		return nil, fmt.Errorf("RateCache.Refresh: %d dates missing and no fetcher configured", len(missing))
	}

	fetched, err := rc.fetcher.Rates(ctx, currency, missing)
	if err != nil {
		return nil, fmt.Errorf("RateCache.Refresh: %w", err)
	}
	for k, v := range fetched {
		rates[k] = v
	}

	if err := rc.store.Save(ctx, snapshot.RatesKey(currency), rates); err != nil {
		return nil, fmt.Errorf("RateCache.Refresh: %w", err)
	}

	rc.log.Info().
		Str("currency", currency).
		Int("fetched", len(fetched)).
		Int("total", len(rates)).
		Msg("Refreshed rate cache")
	return rates, nil
}

// CreditDates returns the rate keys needed to price the live-feed credits
// of txs in currency.
func CreditDates(txs []domain.Transaction, currency string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tx := range txs {
		if tx.Type != domain.Credit || tx.Source != domain.SourceLiveFeed || tx.Date.IsZero() {
			continue
		}
		if tx.AccountCurrency != "" && tx.AccountCurrency != currency {
			continue
		}
		key := tx.DateKey()
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	return out
}
