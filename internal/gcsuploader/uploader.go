package gcsuploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// StatementPrefix is the object prefix statements are uploaded under.
const StatementPrefix = "statements"

// ParseURI splits "gs://bucket/path/to/object" into bucket and object.
func ParseURI(gcsURI string) (bucket, object string, err error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}

	parts := strings.SplitN(strings.TrimPrefix(gcsURI, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}

// URI builds the gs:// URI of an object.
func URI(bucket, object string) string {
	return "gs://" + bucket + "/" + object
}

// StatementObjectName returns the object name a statement file is stored
// under: statements/YYYY/MM/<file>.
func StatementObjectName(filename string, now time.Time) string {
	return path.Join(StatementPrefix, now.UTC().Format("2006/01"), path.Base(filename))
}

// UploadFile uploads a local file to a GCS bucket under the given object name.
// It assumes Application Default Credentials are configured (gcloud auth application-default login).
func UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open file %q: %w", filePath, err)
	}
	defer f.Close()

	return upload(ctx, bucketName, objectName, "application/pdf", f)
}

// UploadBytes writes data to bucket/object with the given content type.
func UploadBytes(ctx context.Context, bucketName, objectName, contentType string, data []byte) error {
	return upload(ctx, bucketName, objectName, contentType, bytes.NewReader(data))
}

func upload(ctx context.Context, bucketName, objectName, contentType string, r io.Reader) error {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType
	defer func() {
		// Ensure the writer is closed even on early returns
		_ = w.Close()
	}()

	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copy to GCS writer: %w", err)
	}

	// Close to finalize the upload
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload of %s: %w", URI(bucketName, objectName), err)
	}
	return nil
}

// FetchFromGCS downloads the file bytes from the given GCS URI.
func FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	bucketName, objectPath, err := ParseURI(gcsURI)
	if err != nil {
		return nil, err
	}

	data, err := DownloadFile(ctx, bucketName, objectPath)
	if err != nil {
		return nil, fmt.Errorf("fetchFromGCS: %w", err)
	}
	return data, nil
}

// ExtractFilenameFromGCSURI extracts the filename from a GCS URI.
// e.g., "gs://bucket/statements/2025/01/mono.pdf" → "mono.pdf"
func ExtractFilenameFromGCSURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")

	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}
