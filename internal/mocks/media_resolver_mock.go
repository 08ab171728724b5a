package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sonicframe/api/internal/models"
	"github.com/sonicframe/api/internal/services"
)

type MockMediaResolver struct {
	mock.Mock
}

// Ensure MockMediaResolver implements MediaResolverInterface
var _ services.MediaResolverInterface = (*MockMediaResolver)(nil)

func (m *MockMediaResolver) Resolve(ctx context.Context, ref models.MediaReference) (string, error) {
	args := m.Called(ctx, ref)
	return args.String(0), args.Error(1)
}

func (m *MockMediaResolver) ResolveRaw(ctx context.Context, raw string) (string, error) {
	args := m.Called(ctx, raw)
	return args.String(0), args.Error(1)
}
