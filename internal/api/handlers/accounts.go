package handlers

import (
	"net/http"

	"github.com/dvloznov/fop-tax-tracker/internal/analyst"
	"github.com/dvloznov/fop-tax-tracker/internal/api/middleware"
	"github.com/dvloznov/fop-tax-tracker/internal/livefeed"
	"github.com/dvloznov/fop-tax-tracker/internal/snapshot"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// AccountsHandler serves the analysis of the synced live-feed accounts.
type AccountsHandler struct {
	store snapshot.Store
	mcc   analyst.MCCDictionary
	log   zerolog.Logger
}

// NewAccountsHandler creates a new accounts handler.
func NewAccountsHandler(store snapshot.Store, mcc analyst.MCCDictionary, log zerolog.Logger) *AccountsHandler {
	return &AccountsHandler{
		store: store,
		mcc:   mcc,
		log:   log,
	}
}

// AccountsAnalysis is the response of GET /api/accounts/{year}.
type AccountsAnalysis struct {
	Year            int                                `json:"year"`
	Summaries       map[string]analyst.AccountSummary  `json:"summaries"`
	Interpretations map[string]*analyst.Interpretation `json:"interpretations"`
	Months          map[string][]analyst.Month         `json:"months"`
}

// Analyze handles GET /api/accounts/{year}
func (h *AccountsHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	year, err := parseYear(chi.URLParam(r, "year"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var info livefeed.ClientInfo
	found, err := h.store.Load(ctx, snapshot.ClientInfoKey, &info)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load client info")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load accounts")
		return
	}
	if !found {
		middleware.WriteError(w, http.StatusNotFound, "No accounts synced yet")
		return
	}

	accounts, err := analyst.LoadAccounts(ctx, h.store, &info, year)
	if err != nil {
		h.log.Error().Err(err).Int("year", year).Msg("Failed to load account transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load accounts")
		return
	}

	resp := AccountsAnalysis{
		Year:            year,
		Summaries:       analyst.Summarize(accounts),
		Interpretations: make(map[string]*analyst.Interpretation),
		Months:          make(map[string][]analyst.Month),
	}
	for _, a := range accounts {
		if len(a.Transactions) == 0 {
			continue
		}
		if interp := analyst.Interpret(a.Account, a.Transactions, h.mcc); interp != nil {
			resp.Interpretations[a.Account.ID] = interp
		}
		resp.Months[a.Account.ID] = analyst.SplitByMonth(a.Transactions)
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}
