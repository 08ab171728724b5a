package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sonicframe/api/internal/models"
	"github.com/sonicframe/api/internal/services"
	"github.com/sonicframe/api/internal/utils"
)

type EngagementHandler struct {
	engagementService services.EngagementServiceInterface
}

func NewEngagementHandler(engagementService services.EngagementServiceInterface) *EngagementHandler {
	return &EngagementHandler{
		engagementService: engagementService,
	}
}

// NFTRequest wraps the raw provider payload; normalization of its duck-typed
// fields happens here at the boundary.
type NFTRequest struct {
	NFT json.RawMessage `json:"nft" binding:"required"`
}

type RecordPlayResponse struct {
	Success   bool   `json:"success"`
	MediaKey  string `json:"media_key,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RecordPlay handles POST /v1/engagement/plays
func (h *EngagementHandler) RecordPlay(c *gin.Context) {
	var req NFTRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, RecordPlayResponse{
			Success: false,
			Error:   "nft field is required",
		})
		return
	}

	nft := utils.NormalizeNFTJSON(req.NFT)

	// Plays are recorded anonymously; the session id lets clients correlate
	// their own events without an account.
	sessionID := c.GetString("firebase_uid")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if err := h.engagementService.RecordPlay(c.Request.Context(), nft); err != nil {
		log.Printf("Failed to record play (session %s): %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, RecordPlayResponse{
			Success: false,
			Error:   "failed to record play",
		})
		return
	}

	c.JSON(http.StatusOK, RecordPlayResponse{
		Success:   true,
		MediaKey:  h.engagementService.Fingerprint(nft),
		SessionID: sessionID,
	})
}

type ToggleLikeResponse struct {
	Success bool   `json:"success"`
	Liked   bool   `json:"liked"`
	Error   string `json:"error,omitempty"`
}

// ToggleLike handles POST /v1/engagement/likes/toggle
// Requires Firebase authentication
func (h *EngagementHandler) ToggleLike(c *gin.Context) {
	userID := c.GetString("firebase_uid")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, ToggleLikeResponse{
			Success: false,
			Error:   "authentication required",
		})
		return
	}

	var req NFTRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ToggleLikeResponse{
			Success: false,
			Error:   "nft field is required",
		})
		return
	}

	nft := utils.NormalizeNFTJSON(req.NFT)

	liked, err := h.engagementService.ToggleLike(c.Request.Context(), nft, userID)
	if err != nil {
		log.Printf("Failed to toggle like for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, ToggleLikeResponse{
			Success: false,
			Error:   "failed to toggle like",
		})
		return
	}

	c.JSON(http.StatusOK, ToggleLikeResponse{
		Success: true,
		Liked:   liked,
	})
}

type LikeStateResponse struct {
	Success bool              `json:"success"`
	Data    *models.LikeState `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// GetLikeState handles GET /v1/engagement/likes/state
// Requires Firebase authentication
func (h *EngagementHandler) GetLikeState(c *gin.Context) {
	userID := c.GetString("firebase_uid")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, LikeStateResponse{
			Success: false,
			Error:   "authentication required",
		})
		return
	}

	nft := nftFromQuery(c)

	state, err := h.engagementService.GetLikeState(c.Request.Context(), nft, userID)
	if err != nil {
		log.Printf("Failed to get like state for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, LikeStateResponse{
			Success: false,
			Error:   "failed to get like state",
		})
		return
	}

	c.JSON(http.StatusOK, LikeStateResponse{
		Success: true,
		Data:    &state,
	})
}

type PlayCountResponse struct {
	Success   bool   `json:"success"`
	MediaKey  string `json:"media_key,omitempty"`
	PlayCount int64  `json:"play_count"`
	Error     string `json:"error,omitempty"`
}

// GetPlayCount handles GET /v1/engagement/plays/count
func (h *EngagementHandler) GetPlayCount(c *gin.Context) {
	nft := nftFromQuery(c)

	count, err := h.engagementService.GetPlayCount(c.Request.Context(), nft)
	if err != nil {
		log.Printf("Failed to get play count: %v", err)
		c.JSON(http.StatusInternalServerError, PlayCountResponse{
			Success: false,
			Error:   "failed to get play count",
		})
		return
	}

	c.JSON(http.StatusOK, PlayCountResponse{
		Success:   true,
		MediaKey:  h.engagementService.Fingerprint(nft),
		PlayCount: count,
	})
}

type TopPlayedResponse struct {
	Success bool                    `json:"success"`
	Data    []models.TopPlayedEntry `json:"data"`
	Error   string                  `json:"error,omitempty"`
}

// GetTopPlayed handles GET /v1/engagement/top
func (h *EngagementHandler) GetTopPlayed(c *gin.Context) {
	n := 20
	if raw := c.Query("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			c.JSON(http.StatusBadRequest, TopPlayedResponse{
				Success: false,
				Error:   "n must be an integer between 1 and 100",
			})
			return
		}
		n = parsed
	}

	entries, err := h.engagementService.GetTopPlayed(c.Request.Context(), n)
	if err != nil {
		log.Printf("Failed to compute top played: %v", err)
		c.JSON(http.StatusInternalServerError, TopPlayedResponse{
			Success: false,
			Error:   "failed to compute leaderboard",
		})
		return
	}

	c.JSON(http.StatusOK, TopPlayedResponse{
		Success: true,
		Data:    entries,
	})
}

type MigrateLikesResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// MigrateLikes handles POST /v1/engagement/migrate-likes
// Requires Firebase authentication
func (h *EngagementHandler) MigrateLikes(c *gin.Context) {
	userID := c.GetString("firebase_uid")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, MigrateLikesResponse{
			Success: false,
			Error:   "authentication required",
		})
		return
	}

	if err := h.engagementService.MigrateLegacyLikes(c.Request.Context(), userID); err != nil {
		log.Printf("Failed to migrate likes for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, MigrateLikesResponse{
			Success: false,
			Error:   "failed to migrate likes",
		})
		return
	}

	c.JSON(http.StatusOK, MigrateLikesResponse{
		Success: true,
		Message: "legacy likes consolidated",
	})
}

// SubscribeCounters handles GET /v1/engagement/subscribe as a server-sent
// event stream of counter snapshots for one media key.
func (h *EngagementHandler) SubscribeCounters(c *gin.Context) {
	mediaKey := c.Query("media_key")
	if mediaKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "media_key is required"})
		return
	}

	snapshots, stop := h.engagementService.SubscribeCounters(c.Request.Context(), mediaKey)
	defer stop()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")

	c.Stream(func(w io.Writer) bool {
		snap, ok := <-snapshots
		if !ok {
			return false
		}
		c.SSEvent("counters", snap)
		return true
	})
}

// nftFromQuery builds the canonical NFT shape from query parameters, for GET
// endpoints where a JSON body is not available.
func nftFromQuery(c *gin.Context) models.NormalizedNFT {
	return models.NormalizedNFT{
		Contract:     c.Query("contract"),
		TokenID:      c.Query("token_id"),
		Chain:        c.Query("chain"),
		Name:         c.Query("name"),
		Image:        c.Query("image"),
		Audio:        c.Query("audio"),
		AnimationURL: c.Query("animation_url"),
	}
}
