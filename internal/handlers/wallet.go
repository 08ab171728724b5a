package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sonicframe/api/internal/services"
)

type WalletHandler struct {
	walletService *services.WalletService
}

func NewWalletHandler(walletService *services.WalletService) *WalletHandler {
	return &WalletHandler{
		walletService: walletService,
	}
}

type WalletAddressResponse struct {
	Success bool   `json:"success"`
	Address string `json:"address,omitempty"`
	Error   string `json:"error,omitempty"`
}

// GetWalletAddress handles GET /v1/wallet/address
// Requires Firebase authentication
func (h *WalletHandler) GetWalletAddress(c *gin.Context) {
	userID := c.GetString("firebase_uid")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, WalletAddressResponse{
			Success: false,
			Error:   "authentication required",
		})
		return
	}

	address, err := h.walletService.GetWalletAddress(c.Request.Context(), userID)
	if err != nil {
		log.Printf("Failed to resolve wallet for user %s: %v", userID, err)
		c.JSON(http.StatusBadGateway, WalletAddressResponse{
			Success: false,
			Error:   "failed to resolve wallet address",
		})
		return
	}

	c.JSON(http.StatusOK, WalletAddressResponse{
		Success: true,
		Address: address,
	})
}
