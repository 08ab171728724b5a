package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/sonicframe/api/internal/mocks"
	"github.com/sonicframe/api/internal/services"
)

type ResolveHandlerTestSuite struct {
	suite.Suite
	mockResolver *mocks.MockMediaResolver
	mockStorage  *mocks.MockStorageService
	router       *gin.Engine
}

func (suite *ResolveHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	suite.mockResolver = new(mocks.MockMediaResolver)
	suite.mockStorage = new(mocks.MockStorageService)
	handler := NewResolveHandler(suite.mockResolver, suite.mockStorage, "placeholders/silence.mp3")

	suite.router = gin.New()
	suite.router.POST("/v1/media/resolve", handler.Resolve)
}

func (suite *ResolveHandlerTestSuite) post(body interface{}) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/v1/media/resolve", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *ResolveHandlerTestSuite) TestResolveURL() {
	suite.mockResolver.On("ResolveRaw", mock.Anything, "ipfs://QmAbc").
		Return("https://ipfs.io/ipfs/QmAbc", nil)

	w := suite.post(gin.H{"url": "ipfs://QmAbc"})

	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var resp ResolveResponse
	assert.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(suite.T(), resp.Success)
	assert.Equal(suite.T(), "https://ipfs.io/ipfs/QmAbc", resp.URL)
	assert.False(suite.T(), resp.Fallback)
}

func (suite *ResolveHandlerTestSuite) TestResolveNFTPicksAudioSlot() {
	suite.mockResolver.On("ResolveRaw", mock.Anything, "ipfs://QmAudio").
		Return("https://ipfs.io/ipfs/QmAudio", nil)

	w := suite.post(gin.H{"nft": gin.H{
		"image":         "ipfs://QmImage",
		"audio":         "ipfs://QmAudio",
		"animation_url": "ipfs://QmVideo",
	}})

	assert.Equal(suite.T(), http.StatusOK, w.Code)
	suite.mockResolver.AssertExpectations(suite.T())
}

func (suite *ResolveHandlerTestSuite) TestResolveNFTFallsBackToAnimation() {
	suite.mockResolver.On("ResolveRaw", mock.Anything, "ipfs://QmVideo").
		Return("https://ipfs.io/ipfs/QmVideo", nil)

	w := suite.post(gin.H{"nft": gin.H{
		"image":         "ipfs://QmImage",
		"animation_url": "ipfs://QmVideo",
	}})

	assert.Equal(suite.T(), http.StatusOK, w.Code)
	suite.mockResolver.AssertExpectations(suite.T())
}

func (suite *ResolveHandlerTestSuite) TestExhaustionServesPlaceholder() {
	suite.mockResolver.On("ResolveRaw", mock.Anything, "ipfs://QmGone").
		Return("", services.ErrResolutionExhausted)
	suite.mockStorage.On("GetPublicURL", "placeholders/silence.mp3").
		Return("https://storage.googleapis.com/sonicframe/placeholders/silence.mp3")

	w := suite.post(gin.H{"url": "ipfs://QmGone"})

	assert.Equal(suite.T(), http.StatusOK, w.Code, "degraded resolution still answers the player")

	var resp ResolveResponse
	assert.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(suite.T(), resp.Success)
	assert.True(suite.T(), resp.Fallback)
	assert.Equal(suite.T(), "https://storage.googleapis.com/sonicframe/placeholders/silence.mp3", resp.URL)
}

func (suite *ResolveHandlerTestSuite) TestUnparseableReferenceServesPlaceholder() {
	suite.mockResolver.On("ResolveRaw", mock.Anything, "garbage").
		Return("", services.ErrNoMediaURL)
	suite.mockStorage.On("GetPublicURL", "placeholders/silence.mp3").
		Return("https://storage.googleapis.com/sonicframe/placeholders/silence.mp3")

	w := suite.post(gin.H{"url": "garbage"})

	var resp ResolveResponse
	assert.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(suite.T(), resp.Fallback)
}

func (suite *ResolveHandlerTestSuite) TestUnexpectedErrorIsServerError() {
	suite.mockResolver.On("ResolveRaw", mock.Anything, "ipfs://QmAbc").
		Return("", errors.New("registry misconfigured"))

	w := suite.post(gin.H{"url": "ipfs://QmAbc"})

	assert.Equal(suite.T(), http.StatusInternalServerError, w.Code)
	suite.mockStorage.AssertNotCalled(suite.T(), "GetPublicURL")
}

func (suite *ResolveHandlerTestSuite) TestEmptyRequest() {
	w := suite.post(gin.H{})
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	suite.mockResolver.AssertNotCalled(suite.T(), "ResolveRaw")
}

func TestResolveHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(ResolveHandlerTestSuite))
}
