package services

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sonicframe/api/internal/models"
)

// Known-good content ids used by the background health probe. The IPFS CID is
// the canonical empty directory, pinned by effectively every public gateway.
const (
	defaultIPFSProbeCID     = "QmUNLLsPACCz1vLxQVkXqqLX5R1X345qqfHbsf67hvA3Nn"
	defaultArweaveProbeTx   = "bNbA3TEQVL60xlgCcqdz4ZPHFZ711cZ3hmkpGttDt_U"
	defaultFailureThreshold = 3
	defaultProbeInterval    = 5 * time.Minute
	latencyEWMAAlpha        = 0.3
)

// GatewayRegistryConfig configures the gateway pool. Gateway order matters:
// index 0 per scheme is the configured primary, used when the registry has no
// health signal to go on.
type GatewayRegistryConfig struct {
	IPFSGateways     []string
	ArweaveGateways  []string
	ProbeInterval    time.Duration
	ProbeTimeout     time.Duration
	FailureThreshold int
	IPFSProbeCID     string
	ArweaveProbeTx   string
}

// DefaultGatewayRegistryConfig returns the stock public gateway pool.
func DefaultGatewayRegistryConfig() GatewayRegistryConfig {
	return GatewayRegistryConfig{
		IPFSGateways: []string{
			"https://ipfs.io",
			"https://cloudflare-ipfs.com",
			"https://gateway.pinata.cloud",
			"https://nftstorage.link",
			"https://dweb.link",
		},
		ArweaveGateways: []string{
			"https://arweave.net",
			"https://ar-io.net",
		},
		ProbeInterval:    defaultProbeInterval,
		ProbeTimeout:     10 * time.Second,
		FailureThreshold: defaultFailureThreshold,
		IPFSProbeCID:     defaultIPFSProbeCID,
		ArweaveProbeTx:   defaultArweaveProbeTx,
	}
}

// GatewayRegistry tracks per-gateway health and latency and answers which
// gateway a resolution should try first. It owns its background health probe:
// Start launches the probe goroutine, Stop shuts it down.
type GatewayRegistry struct {
	mu       sync.Mutex
	gateways map[models.RefScheme][]*models.GatewayStatus

	cfg         GatewayRegistryConfig
	probeClient *http.Client

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewGatewayRegistry(cfg GatewayRegistryConfig) *GatewayRegistry {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = defaultProbeInterval
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}

	gateways := map[models.RefScheme][]*models.GatewayStatus{}
	for _, base := range cfg.IPFSGateways {
		gateways[models.SchemeIPFS] = append(gateways[models.SchemeIPFS], newGatewayStatus(base, models.SchemeIPFS))
	}
	for _, base := range cfg.ArweaveGateways {
		gateways[models.SchemeArweave] = append(gateways[models.SchemeArweave], newGatewayStatus(base, models.SchemeArweave))
	}

	return &GatewayRegistry{
		gateways:    gateways,
		cfg:         cfg,
		probeClient: &http.Client{Timeout: cfg.ProbeTimeout},
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

func newGatewayStatus(base string, scheme models.RefScheme) *models.GatewayStatus {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	gatewayHealthyGauge.WithLabelValues(base).Set(1)
	return &models.GatewayStatus{
		BaseURL:   base,
		Scheme:    scheme,
		IsHealthy: true,
	}
}

// Start launches the periodic health probe. One probe pass runs immediately so
// a fresh process starts with real signal instead of assumed health.
func (r *GatewayRegistry) Start(ctx context.Context) {
	go func() {
		defer close(r.doneCh)

		r.probeAll(ctx)

		ticker := time.NewTicker(r.cfg.ProbeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.probeAll(ctx)
			case <-r.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop terminates the health probe goroutine and waits for it to exit.
func (r *GatewayRegistry) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

// PickGateway returns the single best gateway for a scheme: the healthy one
// with the lowest observed latency. If every gateway is unhealthy the whole
// pool is reset to healthy and the configured primary is returned; a transient
// full outage must degrade service, not lock it out permanently.
func (r *GatewayRegistry) PickGateway(scheme models.RefScheme) (string, error) {
	candidates := r.Candidates(scheme)
	if len(candidates) == 0 {
		return "", fmt.Errorf("no gateways configured for scheme %s", scheme)
	}
	return candidates[0], nil
}

// Candidates returns every configured gateway for a scheme exactly once, in
// attempt order: healthy gateways sorted by latency first, unhealthy ones
// appended last so they are only reached after every healthy gateway failed.
func (r *GatewayRegistry) Candidates(scheme models.RefScheme) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	pool := r.gateways[scheme]
	if len(pool) == 0 {
		return nil
	}

	var healthy, unhealthy []*models.GatewayStatus
	for _, gw := range pool {
		if gw.IsHealthy {
			healthy = append(healthy, gw)
		} else {
			unhealthy = append(unhealthy, gw)
		}
	}

	if len(healthy) == 0 {
		// Total lockout reset. Configured order applies, primary first.
		log.Printf("All %s gateways unhealthy, resetting pool to healthy", scheme)
		for _, gw := range pool {
			gw.IsHealthy = true
			gw.ConsecutiveFailures = 0
			gatewayHealthyGauge.WithLabelValues(gw.BaseURL).Set(1)
		}
		out := make([]string, len(pool))
		for i, gw := range pool {
			out[i] = gw.BaseURL
		}
		return out
	}

	sort.SliceStable(healthy, func(i, j int) bool {
		return healthy[i].AverageLatencyMs < healthy[j].AverageLatencyMs
	})

	out := make([]string, 0, len(pool))
	for _, gw := range healthy {
		out = append(out, gw.BaseURL)
	}
	for _, gw := range unhealthy {
		out = append(out, gw.BaseURL)
	}
	return out
}

// ReportOutcome feeds a resolution attempt result back into the health state.
// Success clears the failure streak and folds the latency sample into the
// smoothed average; failures increment the streak and trip the gateway to
// unhealthy at the threshold.
func (r *GatewayRegistry) ReportOutcome(baseURL string, success bool, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	gw := r.findLocked(baseURL)
	if gw == nil {
		return
	}

	gw.LastCheckedAt = time.Now()
	if success {
		gw.ConsecutiveFailures = 0
		gw.IsHealthy = true

		ms := float64(latency.Milliseconds())
		if gw.AverageLatencyMs == 0 {
			gw.AverageLatencyMs = ms
		} else {
			gw.AverageLatencyMs = latencyEWMAAlpha*ms + (1-latencyEWMAAlpha)*gw.AverageLatencyMs
		}
		gatewayHealthyGauge.WithLabelValues(gw.BaseURL).Set(1)
		gatewayLatencyGauge.WithLabelValues(gw.BaseURL).Set(gw.AverageLatencyMs)
		return
	}

	gw.ConsecutiveFailures++
	if gw.ConsecutiveFailures >= r.cfg.FailureThreshold {
		if gw.IsHealthy {
			log.Printf("Gateway %s marked unhealthy after %d consecutive failures", gw.BaseURL, gw.ConsecutiveFailures)
		}
		gw.IsHealthy = false
		gatewayHealthyGauge.WithLabelValues(gw.BaseURL).Set(0)
	}
}

// Statuses returns a copy of every gateway status for diagnostics.
func (r *GatewayRegistry) Statuses() []models.GatewayStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.GatewayStatus
	for _, pool := range r.gateways {
		for _, gw := range pool {
			out = append(out, *gw)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BaseURL < out[j].BaseURL })
	return out
}

func (r *GatewayRegistry) findLocked(baseURL string) *models.GatewayStatus {
	for _, pool := range r.gateways {
		for _, gw := range pool {
			if gw.BaseURL == baseURL {
				return gw
			}
		}
	}
	return nil
}

func (r *GatewayRegistry) probeAll(ctx context.Context) {
	probes := map[models.RefScheme]string{
		models.SchemeIPFS:    r.cfg.IPFSProbeCID,
		models.SchemeArweave: r.cfg.ArweaveProbeTx,
	}

	for scheme, id := range probes {
		ref := models.MediaReference{Scheme: scheme, ID: id}

		r.mu.Lock()
		pool := make([]string, 0, len(r.gateways[scheme]))
		for _, gw := range r.gateways[scheme] {
			pool = append(pool, gw.BaseURL)
		}
		r.mu.Unlock()

		for _, base := range pool {
			start := time.Now()
			err := r.probeOne(ctx, BuildGatewayURL(base, ref))
			r.ReportOutcome(base, err == nil, time.Since(start))
		}
	}
}

func (r *GatewayRegistry) probeOne(ctx context.Context, probeURL string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, probeURL, nil)
	if err != nil {
		return err
	}
	resp, err := r.probeClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("probe returned %s", resp.Status)
	}
	return nil
}

// BuildGatewayURL joins a gateway base with a content reference using the
// scheme's path convention.
func BuildGatewayURL(baseURL string, ref models.MediaReference) string {
	base := strings.TrimRight(baseURL, "/")
	switch ref.Scheme {
	case models.SchemeIPFS:
		return fmt.Sprintf("%s/ipfs/%s", base, ref.ID)
	case models.SchemeArweave:
		return fmt.Sprintf("%s/%s", base, ref.ID)
	default:
		return ref.URL
	}
}
