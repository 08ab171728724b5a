package services

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/sonicframe/api/internal/models"
	"github.com/sonicframe/api/internal/utils"
)

// MediaResolver turns a media reference into a fetchable URL. Direct URLs pass
// through untouched; content-addressed references are probed across the
// registry's candidate gateways, one full rotation per call, with per-attempt
// timeouts and health feedback on every outcome.
type MediaResolver struct {
	registry       *GatewayRegistry
	client         *http.Client
	attemptTimeout time.Duration
}

func NewMediaResolver(registry *GatewayRegistry, attemptTimeout time.Duration) *MediaResolver {
	if attemptTimeout <= 0 {
		attemptTimeout = 5 * time.Second
	}
	return &MediaResolver{
		registry:       registry,
		client:         &http.Client{},
		attemptTimeout: attemptTimeout,
	}
}

// ResolveRaw parses a raw media field and resolves it.
func (r *MediaResolver) ResolveRaw(ctx context.Context, raw string) (string, error) {
	ref, err := utils.ParseReference(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoMediaURL, err)
	}
	return r.Resolve(ctx, ref)
}

// Resolve returns a working URL for the reference or ErrResolutionExhausted
// once every configured gateway has been tried and failed.
func (r *MediaResolver) Resolve(ctx context.Context, ref models.MediaReference) (string, error) {
	if !ref.IsContentAddressed() {
		if ref.URL == "" {
			return "", ErrNoMediaURL
		}
		return ref.URL, nil
	}

	candidates := r.registry.Candidates(ref.Scheme)
	if len(candidates) == 0 {
		return "", fmt.Errorf("no gateways configured for scheme %s", ref.Scheme)
	}

	for _, base := range candidates {
		candidateURL := BuildGatewayURL(base, ref)

		start := time.Now()
		err := r.probe(ctx, candidateURL)
		latency := time.Since(start)

		if err != nil {
			r.registry.ReportOutcome(base, false, latency)
			resolveAttemptsTotal.WithLabelValues(base, "failure").Inc()
			log.Printf("Gateway %s failed for %s/%s: %v", base, ref.Scheme, ref.ID, err)
			continue
		}

		r.registry.ReportOutcome(base, true, latency)
		resolveAttemptsTotal.WithLabelValues(base, "success").Inc()
		return candidateURL, nil
	}

	resolveExhaustedTotal.Inc()
	return "", fmt.Errorf("%w: %s/%s", ErrResolutionExhausted, ref.Scheme, ref.ID)
}

// probe issues a HEAD against the candidate URL within the attempt timeout.
// Anything under 400 counts as reachable; the UI fetches the bytes itself.
func (r *MediaResolver) probe(ctx context.Context, candidateURL string) error {
	ctx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, candidateURL, nil)
	if err != nil {
		return err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("gateway returned %s", resp.Status)
	}
	return nil
}
