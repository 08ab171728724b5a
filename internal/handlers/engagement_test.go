package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/sonicframe/api/internal/mocks"
	"github.com/sonicframe/api/internal/models"
)

type EngagementHandlerTestSuite struct {
	suite.Suite
	mockService *mocks.MockEngagementService
	handler     *EngagementHandler
	router      *gin.Engine
}

func (suite *EngagementHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	suite.mockService = new(mocks.MockEngagementService)
	suite.handler = NewEngagementHandler(suite.mockService)

	// Test middleware injecting an authenticated user when the header is set
	authStub := func(c *gin.Context) {
		if uid := c.GetHeader("X-Test-UID"); uid != "" {
			c.Set("firebase_uid", uid)
		}
		c.Next()
	}

	suite.router = gin.New()
	suite.router.Use(authStub)
	suite.router.POST("/v1/engagement/plays", suite.handler.RecordPlay)
	suite.router.GET("/v1/engagement/plays/count", suite.handler.GetPlayCount)
	suite.router.GET("/v1/engagement/top", suite.handler.GetTopPlayed)
	suite.router.POST("/v1/engagement/likes/toggle", suite.handler.ToggleLike)
	suite.router.GET("/v1/engagement/likes/state", suite.handler.GetLikeState)
	suite.router.POST("/v1/engagement/migrate-likes", suite.handler.MigrateLikes)
}

func (suite *EngagementHandlerTestSuite) nftBody() []byte {
	body, _ := json.Marshal(gin.H{
		"nft": gin.H{
			"contract": "0xabc",
			"token_id": "42",
			"audio":    "ipfs://QmAudio",
		},
	})
	return body
}

func (suite *EngagementHandlerTestSuite) TestRecordPlaySuccess() {
	suite.mockService.On("RecordPlay", mock.Anything, mock.AnythingOfType("models.NormalizedNFT")).Return(nil)
	suite.mockService.On("Fingerprint", mock.AnythingOfType("models.NormalizedNFT")).Return("media_qmaudio")

	req := httptest.NewRequest(http.MethodPost, "/v1/engagement/plays", bytes.NewReader(suite.nftBody()))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var resp RecordPlayResponse
	assert.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(suite.T(), resp.Success)
	assert.Equal(suite.T(), "media_qmaudio", resp.MediaKey)
	assert.NotEmpty(suite.T(), resp.SessionID, "anonymous plays get a generated session id")

	suite.mockService.AssertExpectations(suite.T())
}

func (suite *EngagementHandlerTestSuite) TestRecordPlayAuthenticatedSession() {
	suite.mockService.On("RecordPlay", mock.Anything, mock.AnythingOfType("models.NormalizedNFT")).Return(nil)
	suite.mockService.On("Fingerprint", mock.AnythingOfType("models.NormalizedNFT")).Return("media_qmaudio")

	req := httptest.NewRequest(http.MethodPost, "/v1/engagement/plays", bytes.NewReader(suite.nftBody()))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-UID", "user123")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	var resp RecordPlayResponse
	assert.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(suite.T(), "user123", resp.SessionID)
}

func (suite *EngagementHandlerTestSuite) TestRecordPlayMissingBody() {
	req := httptest.NewRequest(http.MethodPost, "/v1/engagement/plays", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	suite.mockService.AssertNotCalled(suite.T(), "RecordPlay")
}

func (suite *EngagementHandlerTestSuite) TestRecordPlayServiceError() {
	suite.mockService.On("RecordPlay", mock.Anything, mock.AnythingOfType("models.NormalizedNFT")).Return(errors.New("store down"))

	req := httptest.NewRequest(http.MethodPost, "/v1/engagement/plays", bytes.NewReader(suite.nftBody()))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(suite.T(), http.StatusInternalServerError, w.Code)

	var resp RecordPlayResponse
	assert.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(suite.T(), resp.Success)
	assert.Equal(suite.T(), "failed to record play", resp.Error)
}

func (suite *EngagementHandlerTestSuite) TestToggleLikeRequiresAuth() {
	req := httptest.NewRequest(http.MethodPost, "/v1/engagement/likes/toggle", bytes.NewReader(suite.nftBody()))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
	suite.mockService.AssertNotCalled(suite.T(), "ToggleLike")
}

func (suite *EngagementHandlerTestSuite) TestToggleLikeSuccess() {
	suite.mockService.On("ToggleLike", mock.Anything, mock.AnythingOfType("models.NormalizedNFT"), "user123").Return(true, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/engagement/likes/toggle", bytes.NewReader(suite.nftBody()))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-UID", "user123")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var resp ToggleLikeResponse
	assert.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(suite.T(), resp.Success)
	assert.True(suite.T(), resp.Liked)

	suite.mockService.AssertExpectations(suite.T())
}

func (suite *EngagementHandlerTestSuite) TestGetLikeState() {
	suite.mockService.On("GetLikeState", mock.Anything, mock.AnythingOfType("models.NormalizedNFT"), "user123").
		Return(models.LikeState{Liked: true, Count: 7}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/engagement/likes/state?contract=0xabc&token_id=42", nil)
	req.Header.Set("X-Test-UID", "user123")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var resp LikeStateResponse
	assert.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(suite.T(), resp.Success)
	assert.True(suite.T(), resp.Data.Liked)
	assert.EqualValues(suite.T(), 7, resp.Data.Count)
}

func (suite *EngagementHandlerTestSuite) TestGetPlayCount() {
	suite.mockService.On("GetPlayCount", mock.Anything, mock.AnythingOfType("models.NormalizedNFT")).Return(int64(42), nil)
	suite.mockService.On("Fingerprint", mock.AnythingOfType("models.NormalizedNFT")).Return("media_qmaudio")

	req := httptest.NewRequest(http.MethodGet, "/v1/engagement/plays/count?audio=ipfs://QmAudio", nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var resp PlayCountResponse
	assert.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(suite.T(), resp.Success)
	assert.EqualValues(suite.T(), 42, resp.PlayCount)
	assert.Equal(suite.T(), "media_qmaudio", resp.MediaKey)
}

func (suite *EngagementHandlerTestSuite) TestGetTopPlayedDefaultN() {
	entries := []models.TopPlayedEntry{
		{Rank: 1, MediaKey: "media_a", PlayCount: 10, LastPlayedAt: time.Now()},
	}
	suite.mockService.On("GetTopPlayed", mock.Anything, 20).Return(entries, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/engagement/top", nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var resp TopPlayedResponse
	assert.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(suite.T(), resp.Success)
	assert.Len(suite.T(), resp.Data, 1)
	assert.Equal(suite.T(), "media_a", resp.Data[0].MediaKey)

	suite.mockService.AssertExpectations(suite.T())
}

func (suite *EngagementHandlerTestSuite) TestGetTopPlayedBoundsN() {
	for _, raw := range []string{"0", "-1", "101", "abc"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/engagement/top?n="+raw, nil)
		w := httptest.NewRecorder()
		suite.router.ServeHTTP(w, req)

		assert.Equal(suite.T(), http.StatusBadRequest, w.Code, "n=%s", raw)
	}
	suite.mockService.AssertNotCalled(suite.T(), "GetTopPlayed")
}

func (suite *EngagementHandlerTestSuite) TestMigrateLikes() {
	suite.mockService.On("MigrateLegacyLikes", mock.Anything, "user123").Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/engagement/migrate-likes", nil)
	req.Header.Set("X-Test-UID", "user123")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(suite.T(), http.StatusOK, w.Code)
	suite.mockService.AssertExpectations(suite.T())
}

func (suite *EngagementHandlerTestSuite) TestMigrateLikesRequiresAuth() {
	req := httptest.NewRequest(http.MethodPost, "/v1/engagement/migrate-likes", nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
	suite.mockService.AssertNotCalled(suite.T(), "MigrateLegacyLikes")
}

func TestEngagementHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(EngagementHandlerTestSuite))
}
