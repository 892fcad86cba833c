package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/pairsync/core"
	"github.com/layer-3/pairsync/service"
	"github.com/skip2/go-qrcode"
)

const qrSize = 256

// PairingHandlers contains HTTP handlers for pairing endpoints
type PairingHandlers struct {
	pairingService *service.PairingService
}

// NewPairingHandlers creates new pairing handlers
func NewPairingHandlers(pairingService *service.PairingService) *PairingHandlers {
	return &PairingHandlers{
		pairingService: pairingService,
	}
}

// Create starts a pairing for the posted export
func (h *PairingHandlers) Create(c *gin.Context) {
	var req struct {
		Payload json.RawMessage `json:"payload" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	id, token, err := h.pairingService.Create(c.Request.Context(), req.Payload)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create pairing"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":    id,
		"token": token,
	})
}

// Status returns the pairing status
func (h *PairingHandlers) Status(c *gin.Context) {
	status, err := h.pairingService.Status(c.GetString(pairingIDKey))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// QRCode renders the current bootstrap code as a PNG
func (h *PairingHandlers) QRCode(c *gin.Context) {
	code, err := h.pairingService.BootstrapCode(c.GetString(pairingIDKey))
	if err != nil {
		respondError(c, err)
		return
	}

	png, err := qrcode.Encode(code, qrcode.Medium, qrSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render QR code"})
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

// Cancel aborts the pairing
func (h *PairingHandlers) Cancel(c *gin.Context) {
	id := c.GetString(pairingIDKey)
	if err := h.pairingService.Cancel(id); err != nil {
		respondError(c, err)
		return
	}

	status, err := h.pairingService.Status(id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrPairingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Pairing not found"})
	case errors.Is(err, service.ErrNoCredentials):
		c.JSON(http.StatusConflict, gin.H{"error": "No credentials on display"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
