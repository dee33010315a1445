package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dvloznov/fop-tax-tracker/internal/api/middleware"
	"github.com/dvloznov/fop-tax-tracker/internal/domain"
	"github.com/dvloznov/fop-tax-tracker/internal/jobs"
	"github.com/dvloznov/fop-tax-tracker/internal/pipeline"
	"github.com/dvloznov/fop-tax-tracker/internal/statement"
	"github.com/rs/zerolog"
)

// MaxStatementBytes caps the size of an uploaded statement.
const MaxStatementBytes = 20 << 20

// StatementImporter imports one statement PDF.
type StatementImporter interface {
	Import(ctx context.Context, source string, data []byte) (*pipeline.PipelineState, error)
}

// StatementsHandler handles statement import endpoints.
type StatementsHandler struct {
	importer  StatementImporter
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewStatementsHandler creates a new statements handler.
func NewStatementsHandler(importer StatementImporter, publisher jobs.Publisher, log zerolog.Logger) *StatementsHandler {
	return &StatementsHandler{
		importer:  importer,
		publisher: publisher,
		log:       log,
	}
}

// Warning is an unreadable cell reported back to the client.
type Warning struct {
	Row    int    `json:"row"`
	Column string `json:"column"`
	Value  string `json:"value"`
	Error  string `json:"error"`
}

// ImportResponse is the result of a synchronous import.
type ImportResponse struct {
	ImportRunID      string               `json:"import_run_id,omitempty"`
	Source           string               `json:"source"`
	Bank             statement.Bank       `json:"bank"`
	TransactionCount int                  `json:"transaction_count"`
	Income           []domain.Transaction `json:"income"`
	Warnings         []Warning            `json:"warnings"`
}

// ImportStatement handles POST /api/statements
// The PDF is either the "file" part of a multipart form or the raw body.
func (h *StatementsHandler) ImportStatement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filename, data, err := readStatement(w, r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	state, err := h.importer.Import(ctx, filename, data)
	if err != nil {
		if unprocessable(err) {
			middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.log.Error().Err(err).Str("source", filename).Msg("Failed to import statement")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to import statement")
		return
	}

	resp := ImportResponse{
		ImportRunID:      state.ImportRunID,
		Source:           filename,
		Bank:             state.Bank,
		TransactionCount: len(state.Transactions),
		Income:           state.Income,
		Warnings:         []Warning{},
	}
	if resp.Income == nil {
		resp.Income = []domain.Transaction{}
	}
	if state.Result != nil {
		for _, cell := range state.Result.Warnings {
			warn := Warning{Row: cell.Row, Column: cell.Column, Value: cell.Value}
			if cell.Err != nil {
				warn.Error = cell.Err.Error()
			}
			resp.Warnings = append(resp.Warnings, warn)
		}
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}

func readStatement(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxStatementBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(MaxStatementBytes); err != nil {
			return "", nil, badRequest("invalid multipart form")
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, badRequest("file is required")
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return "", nil, badRequest("failed to read file")
		}
		if len(data) == 0 {
			return "", nil, badRequest("file is empty")
		}
		return filepath.Base(header.Filename), data, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, badRequest("failed to read body")
	}
	if len(data) == 0 {
		return "", nil, badRequest("request body is empty")
	}

	filename := r.URL.Query().Get("filename")
	if filename == "" {
		filename = "statement.pdf"
	}
	return filepath.Base(filename), data, nil
}

// EnqueueImport handles POST /api/statements/jobs
func (h *StatementsHandler) EnqueueImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SourceURI string `json:"source_uri"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !strings.HasPrefix(req.SourceURI, "gs://") {
		middleware.WriteError(w, http.StatusBadRequest, "source_uri must be a gs:// URI")
		return
	}

	ctx := r.Context()

	job := &jobs.ImportStatementJob{SourceURI: req.SourceURI}
	if err := h.publisher.PublishImportStatement(ctx, job); err != nil {
		if errors.Is(err, jobs.ErrImportInProgress) {
			middleware.WriteError(w, http.StatusConflict, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("Failed to enqueue import job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue import job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("source", req.SourceURI).Msg("Import job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":     job.JobID,
		"source_uri": req.SourceURI,
		"status":     string(job.Status),
	})
}
