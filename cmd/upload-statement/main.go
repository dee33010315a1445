package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/fop-tax-tracker/internal/config"
	"github.com/dvloznov/fop-tax-tracker/internal/gcsuploader"
	"github.com/dvloznov/fop-tax-tracker/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.NewWithLevel(cfg.LogLevel)

	var (
		bucketName string
		objectName string
		filePath   string
		apiURL     string
	)

	flag.StringVar(&bucketName, "bucket", cfg.GCSBucket, "GCS bucket name (or set GCS_BUCKET env)")
	flag.StringVar(&objectName, "object", "", "GCS object name (optional; defaults to statements/YYYY/MM/<file name>)")
	flag.StringVar(&filePath, "file", "", "Path to local statement PDF (required)")
	flag.StringVar(&apiURL, "api", "", "API base URL; when set, an import job is enqueued for the upload")
	flag.Parse()

	if bucketName == "" || filePath == "" {
		log.Fatal().Msg("Usage: upload-statement -bucket BUCKET_NAME -file /path/to/statement.pdf [-object OBJECT_NAME] [-api http://localhost:8080]")
	}

	if objectName == "" {
		objectName = gcsuploader.StatementObjectName(filepath.Base(filePath), time.Now())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	log.Info().
		Str("bucket", bucketName).
		Str("object", objectName).
		Str("file", filePath).
		Msg("Uploading statement to GCS")

	if err := gcsuploader.UploadFile(ctx, bucketName, objectName, filePath); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	uri := gcsuploader.URI(bucketName, objectName)
	fmt.Printf("Uploaded %s to %s\n", filePath, uri)

	if apiURL == "" {
		return
	}

	jobID, err := enqueueImport(ctx, apiURL, uri)
	if err != nil {
		log.Fatal().Err(err).Str("api", apiURL).Msg("Failed to enqueue import")
	}
	fmt.Printf("Enqueued import job %s\n", jobID)
}

// enqueueImport asks the API to import uri and returns the job ID.
func enqueueImport(ctx context.Context, apiURL, uri string) (string, error) {
	body, err := json.Marshal(map[string]string{"source_uri": uri})
	if err != nil {
		return "", err
	}

	endpoint := strings.TrimRight(apiURL, "/") + "/api/statements/jobs"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("enqueueImport: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("enqueueImport: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		JobID string `json:"job_id"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("enqueueImport: decode response: %w", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("enqueueImport: %s: %s", resp.Status, out.Error)
	}
	return out.JobID, nil
}
