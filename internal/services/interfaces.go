package services

import (
	"context"
	"io"

	"github.com/sonicframe/api/internal/models"
)

// EngagementServiceInterface defines the counter aggregation operations
type EngagementServiceInterface interface {
	RecordPlay(ctx context.Context, nft models.NormalizedNFT) error
	ToggleLike(ctx context.Context, nft models.NormalizedNFT, userID string) (bool, error)
	GetLikeState(ctx context.Context, nft models.NormalizedNFT, userID string) (models.LikeState, error)
	GetPlayCount(ctx context.Context, nft models.NormalizedNFT) (int64, error)
	GetTopPlayed(ctx context.Context, n int) ([]models.TopPlayedEntry, error)
	MigrateLegacyLikes(ctx context.Context, userID string) error
	SubscribeCounters(ctx context.Context, mediaKey string) (<-chan models.CounterSnapshot, func())
	Fingerprint(nft models.NormalizedNFT) string
}

// MediaResolverInterface defines media reference resolution
type MediaResolverInterface interface {
	Resolve(ctx context.Context, ref models.MediaReference) (string, error)
	ResolveRaw(ctx context.Context, raw string) (string, error)
}

// StorageServiceInterface defines the fallback-asset store operations
type StorageServiceInterface interface {
	GetPublicURL(objectName string) string
	UploadObject(ctx context.Context, objectName string, data io.Reader, contentType string) error
	GetBucketName() string
	Close() error
}

// WalletResolverInterface is the external social-identity to wallet-address
// lookup; implementations live at the edge so the cache stays vendor-neutral
type WalletResolverInterface interface {
	ResolveWallet(ctx context.Context, userID string) (string, error)
}

// Ensure implementations satisfy the interfaces
var (
	_ EngagementServiceInterface = (*EngagementService)(nil)
	_ MediaResolverInterface     = (*MediaResolver)(nil)
)
