package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/sonicframe/api/internal/models"
)

func testRegistryConfig(ipfsGateways ...string) GatewayRegistryConfig {
	return GatewayRegistryConfig{
		IPFSGateways:     ipfsGateways,
		ArweaveGateways:  []string{"https://arweave.example"},
		ProbeInterval:    time.Hour,
		ProbeTimeout:     time.Second,
		FailureThreshold: 3,
		IPFSProbeCID:     "QmProbe",
		ArweaveProbeTx:   "txProbe",
	}
}

type GatewayRegistryTestSuite struct {
	suite.Suite
	registry *GatewayRegistry
}

func (suite *GatewayRegistryTestSuite) SetupTest() {
	suite.registry = NewGatewayRegistry(testRegistryConfig(
		"https://gw1.example",
		"https://gw2.example",
		"https://gw3.example",
	))
}

func (suite *GatewayRegistryTestSuite) TestCandidatesOrderedByLatency() {
	suite.registry.ReportOutcome("https://gw1.example", true, 300*time.Millisecond)
	suite.registry.ReportOutcome("https://gw2.example", true, 50*time.Millisecond)
	suite.registry.ReportOutcome("https://gw3.example", true, 150*time.Millisecond)

	candidates := suite.registry.Candidates(models.SchemeIPFS)
	assert.Equal(suite.T(), []string{
		"https://gw2.example",
		"https://gw3.example",
		"https://gw1.example",
	}, candidates)
}

func (suite *GatewayRegistryTestSuite) TestUnhealthyGatewaysComeLast() {
	suite.registry.ReportOutcome("https://gw1.example", true, 100*time.Millisecond)
	suite.registry.ReportOutcome("https://gw2.example", true, 200*time.Millisecond)

	// Three consecutive failures trip gw3 to unhealthy
	for i := 0; i < 3; i++ {
		suite.registry.ReportOutcome("https://gw3.example", false, 0)
	}

	candidates := suite.registry.Candidates(models.SchemeIPFS)
	assert.Len(suite.T(), candidates, 3, "every gateway appears exactly once per rotation")
	assert.Equal(suite.T(), "https://gw3.example", candidates[2])
}

func (suite *GatewayRegistryTestSuite) TestFailureThreshold() {
	suite.registry.ReportOutcome("https://gw1.example", false, 0)
	suite.registry.ReportOutcome("https://gw1.example", false, 0)

	for _, status := range suite.registry.Statuses() {
		if status.BaseURL == "https://gw1.example" {
			assert.True(suite.T(), status.IsHealthy, "two failures stay under the threshold")
			assert.Equal(suite.T(), 2, status.ConsecutiveFailures)
		}
	}

	suite.registry.ReportOutcome("https://gw1.example", false, 0)
	for _, status := range suite.registry.Statuses() {
		if status.BaseURL == "https://gw1.example" {
			assert.False(suite.T(), status.IsHealthy)
		}
	}
}

func (suite *GatewayRegistryTestSuite) TestSuccessResetsFailureStreak() {
	suite.registry.ReportOutcome("https://gw1.example", false, 0)
	suite.registry.ReportOutcome("https://gw1.example", false, 0)
	suite.registry.ReportOutcome("https://gw1.example", true, 80*time.Millisecond)
	suite.registry.ReportOutcome("https://gw1.example", false, 0)
	suite.registry.ReportOutcome("https://gw1.example", false, 0)

	for _, status := range suite.registry.Statuses() {
		if status.BaseURL == "https://gw1.example" {
			assert.True(suite.T(), status.IsHealthy, "the streak restarted after the success")
		}
	}
}

func (suite *GatewayRegistryTestSuite) TestTotalLockoutResetsPool() {
	for _, gw := range []string{"https://gw1.example", "https://gw2.example", "https://gw3.example"} {
		for i := 0; i < 3; i++ {
			suite.registry.ReportOutcome(gw, false, 0)
		}
	}

	// Every gateway unhealthy: the pool resets and the configured primary leads
	candidates := suite.registry.Candidates(models.SchemeIPFS)
	assert.Equal(suite.T(), []string{
		"https://gw1.example",
		"https://gw2.example",
		"https://gw3.example",
	}, candidates)

	for _, status := range suite.registry.Statuses() {
		if status.Scheme == models.SchemeIPFS {
			assert.True(suite.T(), status.IsHealthy)
			assert.Equal(suite.T(), 0, status.ConsecutiveFailures)
		}
	}
}

func (suite *GatewayRegistryTestSuite) TestPickGateway() {
	suite.registry.ReportOutcome("https://gw2.example", true, 10*time.Millisecond)
	suite.registry.ReportOutcome("https://gw1.example", true, 90*time.Millisecond)
	suite.registry.ReportOutcome("https://gw3.example", true, 40*time.Millisecond)

	best, err := suite.registry.PickGateway(models.SchemeIPFS)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "https://gw2.example", best)

	_, err = suite.registry.PickGateway(models.RefScheme("bogus"))
	assert.Error(suite.T(), err)
}

func (suite *GatewayRegistryTestSuite) TestSchemesAreIndependent() {
	for i := 0; i < 3; i++ {
		suite.registry.ReportOutcome("https://arweave.example", false, 0)
	}

	// Arweave pool is fully unhealthy and resets; IPFS pool is untouched
	assert.Equal(suite.T(), []string{"https://arweave.example"}, suite.registry.Candidates(models.SchemeArweave))
	assert.Len(suite.T(), suite.registry.Candidates(models.SchemeIPFS), 3)
}

func TestGatewayRegistryTestSuite(t *testing.T) {
	suite.Run(t, new(GatewayRegistryTestSuite))
}

func TestBuildGatewayURL(t *testing.T) {
	tests := []struct {
		base     string
		ref      models.MediaReference
		expected string
	}{
		{
			base:     "https://ipfs.io",
			ref:      models.MediaReference{Scheme: models.SchemeIPFS, ID: "QmAbc"},
			expected: "https://ipfs.io/ipfs/QmAbc",
		},
		{
			base:     "https://ipfs.io/",
			ref:      models.MediaReference{Scheme: models.SchemeIPFS, ID: "QmAbc/track.mp3"},
			expected: "https://ipfs.io/ipfs/QmAbc/track.mp3",
		},
		{
			base:     "https://arweave.net",
			ref:      models.MediaReference{Scheme: models.SchemeArweave, ID: "txid123"},
			expected: "https://arweave.net/txid123",
		},
		{
			base:     "https://whatever.example",
			ref:      models.MediaReference{Scheme: models.SchemeHTTP, URL: "https://host.com/a.mp3"},
			expected: "https://host.com/a.mp3",
		},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, BuildGatewayURL(test.base, test.ref))
	}
}

func TestRegistryProbeLifecycle(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()

	cfg := testRegistryConfig(healthy.URL, broken.URL)
	cfg.ArweaveGateways = nil
	registry := NewGatewayRegistry(cfg)

	registry.Start(context.Background())
	defer registry.Stop()

	// Wait for the immediate probe pass to touch both gateways
	assert.Eventually(t, func() bool {
		for _, status := range registry.Statuses() {
			if status.LastCheckedAt.IsZero() {
				return false
			}
		}
		return true
	}, 2*time.Second, 20*time.Millisecond)

	for _, status := range registry.Statuses() {
		switch status.BaseURL {
		case healthy.URL:
			assert.True(t, status.IsHealthy)
		case broken.URL:
			assert.Equal(t, 1, status.ConsecutiveFailures, "one failed probe recorded, threshold not yet tripped")
		}
	}
}
