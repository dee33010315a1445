package gcsuploader

import (
	"context"
)

// StorageService is the object storage surface used for statements and
// snapshots. It enables mocking storage in tests.
type StorageService interface {
	// UploadFile uploads a local file to a bucket under the given object name.
	UploadFile(ctx context.Context, bucketName, objectName, filePath string) error

	// UploadBytes writes data to bucket/object.
	UploadBytes(ctx context.Context, bucketName, objectName, contentType string, data []byte) error

	// DownloadFile reads bucket/object.
	DownloadFile(ctx context.Context, bucketName, objectName string) ([]byte, error)

	// FetchFromGCS downloads file bytes from the given gs:// URI.
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
}

// GCSStorageService is the concrete implementation of StorageService
// that interacts with Google Cloud Storage.
type GCSStorageService struct{}

// NewGCSStorageService creates a new instance of GCSStorageService.
func NewGCSStorageService() *GCSStorageService {
	return &GCSStorageService{}
}

func (s *GCSStorageService) UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	return UploadFile(ctx, bucketName, objectName, filePath)
}

func (s *GCSStorageService) UploadBytes(ctx context.Context, bucketName, objectName, contentType string, data []byte) error {
	return UploadBytes(ctx, bucketName, objectName, contentType, data)
}

func (s *GCSStorageService) DownloadFile(ctx context.Context, bucketName, objectName string) ([]byte, error) {
	return DownloadFile(ctx, bucketName, objectName)
}

func (s *GCSStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	return FetchFromGCS(ctx, gcsURI)
}
