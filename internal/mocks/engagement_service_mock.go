package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sonicframe/api/internal/models"
	"github.com/sonicframe/api/internal/services"
)

type MockEngagementService struct {
	mock.Mock
}

// Ensure MockEngagementService implements EngagementServiceInterface
var _ services.EngagementServiceInterface = (*MockEngagementService)(nil)

func (m *MockEngagementService) RecordPlay(ctx context.Context, nft models.NormalizedNFT) error {
	args := m.Called(ctx, nft)
	return args.Error(0)
}

func (m *MockEngagementService) ToggleLike(ctx context.Context, nft models.NormalizedNFT, userID string) (bool, error) {
	args := m.Called(ctx, nft, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockEngagementService) GetLikeState(ctx context.Context, nft models.NormalizedNFT, userID string) (models.LikeState, error) {
	args := m.Called(ctx, nft, userID)
	return args.Get(0).(models.LikeState), args.Error(1)
}

func (m *MockEngagementService) GetPlayCount(ctx context.Context, nft models.NormalizedNFT) (int64, error) {
	args := m.Called(ctx, nft)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockEngagementService) GetTopPlayed(ctx context.Context, n int) ([]models.TopPlayedEntry, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TopPlayedEntry), args.Error(1)
}

func (m *MockEngagementService) MigrateLegacyLikes(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockEngagementService) SubscribeCounters(ctx context.Context, mediaKey string) (<-chan models.CounterSnapshot, func()) {
	args := m.Called(ctx, mediaKey)
	return args.Get(0).(<-chan models.CounterSnapshot), args.Get(1).(func())
}

func (m *MockEngagementService) Fingerprint(nft models.NormalizedNFT) string {
	args := m.Called(nft)
	return args.String(0)
}
