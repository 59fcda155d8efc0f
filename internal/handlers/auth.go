package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"fairplay-backend/internal/apperr"
	"fairplay-backend/internal/models"
	"fairplay-backend/internal/services"
)

// AuthHandler exchanges the front end's API key for an account token.
type AuthHandler struct {
	ledger     *services.Ledger
	jwtService *services.JWTService
	apiKey     string
}

func NewAuthHandler(ledger *services.Ledger, jwtService *services.JWTService, apiKey string) *AuthHandler {
	return &AuthHandler{
		ledger:     ledger,
		jwtService: jwtService,
		apiKey:     apiKey,
	}
}

func (h *AuthHandler) IssueToken(c *gin.Context) {
	key := c.GetHeader("X-API-Key")
	if h.apiKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(h.apiKey)) != 1 {
		respondError(c, apperr.New(apperr.CodeUnauthorized, "Invalid API key"))
		return
	}

	var req models.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	acc, err := h.ledger.EnsureAccount(c.Request.Context(), req.AccountID)
	if err != nil {
		respondError(c, err)
		return
	}

	token, claims, err := h.jwtService.GenerateToken(acc.ID, req.Admin)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": claims.ExpiresAt.Time,
		"account":    acc,
	})
}
