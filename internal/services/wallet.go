package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
)

// WalletService is a read-through cache in front of the external
// social-identity to wallet-address lookup.
type WalletService struct {
	cache    *WalletCache
	resolver WalletResolverInterface
}

func NewWalletService(cache *WalletCache, resolver WalletResolverInterface) *WalletService {
	return &WalletService{
		cache:    cache,
		resolver: resolver,
	}
}

// GetWalletAddress returns the wallet address for a user, consulting the cache
// first; a miss or stale entry falls through to the external resolver and
// repopulates the cache.
func (s *WalletService) GetWalletAddress(ctx context.Context, userID string) (string, error) {
	if address, ok := s.cache.Get(userID); ok {
		return address, nil
	}

	address, err := s.resolver.ResolveWallet(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve wallet for %s: %w", userID, err)
	}

	s.cache.Put(userID, address)
	return address, nil
}

// HTTPWalletResolver looks wallet addresses up from a configured indexer
// endpoint. Response shapes vary across indexers, so the address is pulled
// from the first matching field.
type HTTPWalletResolver struct {
	lookupURL string
	client    *http.Client
}

func NewHTTPWalletResolver(lookupURL string, timeout time.Duration) *HTTPWalletResolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPWalletResolver{
		lookupURL: lookupURL,
		client:    &http.Client{Timeout: timeout},
	}
}

func (r *HTTPWalletResolver) ResolveWallet(ctx context.Context, userID string) (string, error) {
	reqURL := fmt.Sprintf("%s?user_id=%s", r.lookupURL, url.QueryEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("wallet lookup returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	doc := gjson.ParseBytes(body)
	for _, path := range []string{"address", "wallet_address", "result.address", "data.address"} {
		if v := doc.Get(path).String(); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("wallet lookup response missing address")
}

// Ensure HTTPWalletResolver implements the interface
var _ WalletResolverInterface = (*HTTPWalletResolver)(nil)
