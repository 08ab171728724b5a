package services

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3StorageService is the S3 variant of the fallback-asset store, for
// deployments that keep placeholder media behind CloudFront instead of GCS.
type S3StorageService struct {
	client     *s3.Client
	bucketName string
	region     string
	cdnDomain  string
}

func NewS3StorageService(ctx context.Context, bucketName string) (*S3StorageService, error) {
	// Load AWS configuration from environment variables or default chain
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(getEnvOrDefault("AWS_REGION", "us-east-2")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3StorageService{
		client:     s3.NewFromConfig(cfg),
		bucketName: bucketName,
		region:     getEnvOrDefault("AWS_REGION", "us-east-2"),
		cdnDomain:  os.Getenv("AWS_CDN_DOMAIN"),
	}, nil
}

// GetPublicURL returns the public URL for a storage object, preferring the CDN
// domain when configured.
func (s *S3StorageService) GetPublicURL(objectName string) string {
	if s.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", s.cdnDomain, objectName)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucketName, s.region, objectName)
}

// UploadObject uploads an asset to S3.
func (s *S3StorageService) UploadObject(ctx context.Context, objectName string, data io.Reader, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(objectName),
		Body:        data,
		ContentType: aws.String(contentType),
	})

	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}

	return nil
}

func (s *S3StorageService) GetBucketName() string {
	return s.bucketName
}

// Close closes the S3 client (S3 client doesn't require explicit closing)
func (s *S3StorageService) Close() error {
	return nil
}

// getEnvOrDefault returns the environment variable value or a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Ensure S3StorageService implements the interface
var _ StorageServiceInterface = (*S3StorageService)(nil)
