package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/sonicframe/api/internal/services"
)

type MockStorageService struct {
	mock.Mock
}

// Ensure MockStorageService implements StorageServiceInterface
var _ services.StorageServiceInterface = (*MockStorageService)(nil)

func (m *MockStorageService) GetPublicURL(objectName string) string {
	args := m.Called(objectName)
	return args.String(0)
}

func (m *MockStorageService) UploadObject(ctx context.Context, objectName string, data io.Reader, contentType string) error {
	args := m.Called(ctx, objectName, data, contentType)
	return args.Error(0)
}

func (m *MockStorageService) GetBucketName() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockStorageService) Close() error {
	args := m.Called()
	return args.Error(0)
}
