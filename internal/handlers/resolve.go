package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sonicframe/api/internal/services"
	"github.com/sonicframe/api/internal/utils"
)

type ResolveHandler struct {
	resolver          services.MediaResolverInterface
	storageService    services.StorageServiceInterface
	placeholderObject string
}

func NewResolveHandler(resolver services.MediaResolverInterface, storageService services.StorageServiceInterface, placeholderObject string) *ResolveHandler {
	return &ResolveHandler{
		resolver:          resolver,
		storageService:    storageService,
		placeholderObject: placeholderObject,
	}
}

type ResolveRequest struct {
	// Either a raw media reference...
	URL string `json:"url"`
	// ...or a full NFT payload, in which case the best playable slot wins.
	NFT map[string]interface{} `json:"nft"`
}

type ResolveResponse struct {
	Success  bool   `json:"success"`
	URL      string `json:"url,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Resolve handles POST /v1/media/resolve
func (h *ResolveHandler) Resolve(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ResolveResponse{
			Success: false,
			Error:   "url or nft field is required",
		})
		return
	}

	raw := req.URL
	if raw == "" && req.NFT != nil {
		nft := utils.NormalizeNFTJSON(mustJSON(req.NFT))
		// Audio is the playable slot; animation and image are fallbacks.
		for _, candidate := range []string{nft.Audio, nft.AnimationURL, nft.Image} {
			if candidate != "" {
				raw = candidate
				break
			}
		}
	}
	if raw == "" {
		c.JSON(http.StatusBadRequest, ResolveResponse{
			Success: false,
			Error:   "no media reference in request",
		})
		return
	}

	resolved, err := h.resolver.ResolveRaw(c.Request.Context(), raw)
	if err != nil {
		if errors.Is(err, services.ErrResolutionExhausted) || errors.Is(err, services.ErrNoMediaURL) {
			log.Printf("Resolution degraded to placeholder for %q: %v", raw, err)
			c.JSON(http.StatusOK, ResolveResponse{
				Success:  true,
				URL:      h.storageService.GetPublicURL(h.placeholderObject),
				Fallback: true,
			})
			return
		}
		log.Printf("Failed to resolve %q: %v", raw, err)
		c.JSON(http.StatusInternalServerError, ResolveResponse{
			Success: false,
			Error:   "failed to resolve media reference",
		})
		return
	}

	c.JSON(http.StatusOK, ResolveResponse{
		Success: true,
		URL:     resolved,
	})
}

func mustJSON(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
