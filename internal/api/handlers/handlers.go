package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/dvloznov/fop-tax-tracker/internal/api/middleware"
	"github.com/dvloznov/fop-tax-tracker/internal/statement"
	"github.com/dvloznov/fop-tax-tracker/internal/tax"
)

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// badRequest is a client error whose text is safe to return.
type badRequest string

func (e badRequest) Error() string { return string(e) }

// unprocessable reports whether err is a problem with the submitted data
// rather than with the service.
func unprocessable(err error) bool {
	var negative *tax.NegativeIncomeError
	return errors.Is(err, statement.ErrNotStatement) ||
		errors.Is(err, statement.ErrUnknownBank) ||
		errors.Is(err, statement.ErrHeaderNotFound) ||
		errors.Is(err, statement.ErrLayoutMismatch) ||
		errors.Is(err, statement.ErrNoRows) ||
		errors.As(err, &negative)
}
