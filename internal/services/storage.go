package services

import (
	"context"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// StorageService hosts static fallback assets on GCS: the placeholder media
// returned when gateway resolution is exhausted.
type StorageService struct {
	client     *storage.Client
	bucketName string
}

func NewStorageService(ctx context.Context, bucketName string) (*StorageService, error) {
	// Try to use service account key if available, otherwise use default credentials
	var client *storage.Client
	var err error

	if keyPath := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); keyPath != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(keyPath))
	} else {
		client, err = storage.NewClient(ctx)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &StorageService{
		client:     client,
		bucketName: bucketName,
	}, nil
}

func (s *StorageService) Close() error {
	return s.client.Close()
}

// GetPublicURL returns the public URL for a storage object.
func (s *StorageService) GetPublicURL(objectName string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucketName, objectName)
}

// UploadObject writes an asset to the bucket, used to seed the placeholder
// media at startup.
func (s *StorageService) UploadObject(ctx context.Context, objectName string, data io.Reader, contentType string) error {
	w := s.client.Bucket(s.bucketName).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, data); err != nil {
		w.Close()
		return fmt.Errorf("failed to upload object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize upload: %w", err)
	}
	return nil
}

func (s *StorageService) GetBucketName() string {
	return s.bucketName
}

// Ensure StorageService implements the interface
var _ StorageServiceInterface = (*StorageService)(nil)
