package livefeed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/fop-tax-tracker/internal/domain"
	"github.com/dvloznov/fop-tax-tracker/internal/nbu"
	"github.com/dvloznov/fop-tax-tracker/internal/snapshot"
	"github.com/dvloznov/fop-tax-tracker/internal/tax"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// FOPAccountType is the account type of sole-proprietor accounts.
const FOPAccountType = "fop"

// Account is a bank account from the client info endpoint.
type Account struct {
	ID          string          `json:"id"`
	IBAN        string          `json:"iban"`
	Type        string          `json:"type"`
	Currency    string          `json:"currency"`
	Balance     decimal.Decimal `json:"balance"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
	MaskedPan   []string        `json:"masked_pan"`
}

// ClientInfo is the account holder and their accounts.
type ClientInfo struct {
	ClientID    string    `json:"client_id"`
	Name        string    `json:"name"`
	Permissions string    `json:"permissions"`
	Accounts    []Account `json:"accounts"`
}

// Source is a bank API serving client info and account statements.
type Source interface {
	ClientInfo(ctx context.Context) (*ClientInfo, error)
	StatementRange(ctx context.Context, accountID string, from, to time.Time) ([]Record, error)
}

// RateRefresher tops up the rate table of a currency.
type RateRefresher interface {
	Refresh(ctx context.Context, currency string, dates []string) (tax.Rates, error)
}

// Syncer pulls a year of transactions of every FOP account in one currency,
// snapshots them and refreshes the rate table for their income dates.
type Syncer struct {
	source     Source
	store      snapshot.Store
	rates      RateRefresher
	normalizer *Normalizer
	currency   string
	now        func() time.Time
	log        zerolog.Logger
}

// SyncerConfig holds the dependencies of a Syncer.
type SyncerConfig struct {
	Source     Source
	Store      snapshot.Store
	Rates      RateRefresher
	Normalizer *Normalizer
	// Currency selects the FOP accounts to sync.
	Currency string
	Now      func() time.Time
	Log      zerolog.Logger
}

// NewSyncer creates a Syncer. Rates may be nil to skip the rate refresh.
func NewSyncer(cfg SyncerConfig) *Syncer {
	s := &Syncer{
		source:     cfg.Source,
		store:      cfg.Store,
		rates:      cfg.Rates,
		normalizer: cfg.Normalizer,
		currency:   strings.ToUpper(cfg.Currency),
		now:        cfg.Now,
		log:        cfg.Log.With().Str("component", "livefeed_sync").Logger(),
	}
	if s.normalizer == nil {
		s.normalizer = NewNormalizer(nil)
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// SyncResult summarizes one run.
type SyncResult struct {
	Year         int      `json:"year"`
	Accounts     int      `json:"accounts"`
	Transactions int      `json:"transactions"`
	RateDates    int      `json:"rate_dates"`
	Keys         []string `json:"keys"`
}

// Sync fetches year up to now. A failing account is logged and skipped so
// one account cannot block the others; the rate refresh failing fails the run.
func (s *Syncer) Sync(ctx context.Context, year int) (*SyncResult, error) {
	info, err := s.source.ClientInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("Sync: fetching client info: %w", err)
	}
	if err := s.store.Save(ctx, snapshot.ClientInfoKey, info); err != nil {
		return nil, fmt.Errorf("Sync: saving client info: %w", err)
	}

	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	if now := s.now().UTC(); now.Before(to) {
		to = now
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("Sync: year %d has not started", year)
	}

	result := &SyncResult{Year: year}
	var all []domain.Transaction

	for _, acc := range info.Accounts {
		if !strings.EqualFold(acc.Type, FOPAccountType) || acc.Currency != s.currency {
			continue
		}

		log := s.log.With().Str("account_id", acc.ID).Str("currency", acc.Currency).Logger()

		records, err := s.source.StatementRange(ctx, acc.ID, from, to)
		if err != nil {
			log.Error().Err(err).Msg("Failed to fetch account statement")
			continue
		}

		txs := s.normalizer.NormalizeAll(records, acc.Currency)
		key := snapshot.TransactionsKey(acc.Type, acc.Currency, year)
		if err := s.store.Save(ctx, key, txs); err != nil {
			return nil, fmt.Errorf("Sync: saving %s: %w", key, err)
		}

		log.Info().Int("transactions", len(txs)).Str("key", key).Msg("Synced account")
		result.Accounts++
		result.Transactions += len(txs)
		result.Keys = append(result.Keys, key)
		all = append(all, txs...)
	}

	if s.rates != nil {
		dates := nbu.CreditDates(all, s.currency)
		if _, err := s.rates.Refresh(ctx, s.currency, dates); err != nil {
			return nil, fmt.Errorf("Sync: refreshing rates: %w", err)
		}
		result.RateDates = len(dates)
	}

	return result, nil
}

// LoadYear reads the snapshotted transactions of the FOP accounts in
// currency for year.
func LoadYear(ctx context.Context, store snapshot.Store, currency string, year int) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	if _, err := store.Load(ctx, snapshot.TransactionsKey(FOPAccountType, currency, year), &txs); err != nil {
		return nil, fmt.Errorf("LoadYear: %w", err)
	}
	return txs, nil
}
