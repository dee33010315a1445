// Package snapshot persists flat JSON documents (fetched transactions, rate
// tables, reports) on local disk or in a GCS bucket. These snapshots are the
// only state the system keeps between runs.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/fop-tax-tracker/internal/gcsuploader"
)

// Store saves and loads JSON documents by slash-separated key.
type Store interface {
	Save(ctx context.Context, key string, v any) error
	// Load decodes the document at key into v. It reports false without an
	// error when the key does not exist.
	Load(ctx context.Context, key string, v any) (bool, error)
}

// TransactionsKey is the key of a year of live-feed transactions of one
// account, e.g. transactions/fop_usd_2025.json.
func TransactionsKey(accountType, currency string, year int) string {
	return fmt.Sprintf("transactions/%s_%s_%d.json", strings.ToLower(accountType), strings.ToLower(currency), year)
}

// RatesKey is the key of the NBU rate table of currency.
func RatesKey(currency string) string {
	return fmt.Sprintf("rates/%s_uah.json", strings.ToLower(currency))
}

// StatementKey is the key of one imported statement, e.g.
// statements/<import run id>.json.
func StatementKey(importID string) string {
	return fmt.Sprintf("statements/%s.json", importID)
}

// ClientInfoKey is the key of the last fetched bank client info.
const ClientInfoKey = "client_info.json"

// ReportKey is the key of the last computed tax report.
const ReportKey = "reports/latest.json"

func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return fmt.Errorf("invalid snapshot key %q", key)
	}
	return nil
}

// FileStore keeps snapshots under a root directory as indented JSON.
type FileStore struct {
	root string
}

// NewFileStore returns a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir}
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *FileStore) Save(ctx context.Context, key string, v any) error {
	if err := validKey(key); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("FileStore.Save: marshal %s: %w", key, err)
	}

	p := s.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("FileStore.Save: create dir: %w", err)
	}

	// Write to a temp file first so a crash never leaves a truncated snapshot.
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("FileStore.Save: write %s: %w", key, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return fmt.Errorf("FileStore.Save: rename %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) Load(ctx context.Context, key string, v any) (bool, error) {
	if err := validKey(key); err != nil {
		return false, err
	}

	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("FileStore.Load: read %s: %w", key, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("FileStore.Load: decode %s: %w", key, err)
	}
	return true, nil
}

// GCSStore keeps snapshots as objects under bucket/prefix.
type GCSStore struct {
	storage gcsuploader.StorageService
	bucket  string
	prefix  string
}

// NewGCSStore returns a store writing to bucket under prefix.
func NewGCSStore(svc gcsuploader.StorageService, bucket, prefix string) *GCSStore {
	return &GCSStore{storage: svc, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *GCSStore) object(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

func (s *GCSStore) Save(ctx context.Context, key string, v any) error {
	if err := validKey(key); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("GCSStore.Save: marshal %s: %w", key, err)
	}
	if err := s.storage.UploadBytes(ctx, s.bucket, s.object(key), "application/json", data); err != nil {
		return fmt.Errorf("GCSStore.Save: %w", err)
	}
	return nil
}

func (s *GCSStore) Load(ctx context.Context, key string, v any) (bool, error) {
	if err := validKey(key); err != nil {
		return false, err
	}

	data, err := s.storage.DownloadFile(ctx, s.bucket, s.object(key))
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("GCSStore.Load: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("GCSStore.Load: decode %s: %w", key, err)
	}
	return true, nil
}

// Open returns a GCSStore when bucket is set and a FileStore under dataDir
// otherwise.
func Open(svc gcsuploader.StorageService, dataDir, bucket, prefix string) Store {
	if bucket != "" {
		return NewGCSStore(svc, bucket, prefix)
	}
	return NewFileStore(dataDir)
}
