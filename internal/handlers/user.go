package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fairplay-backend/internal/models"
	"fairplay-backend/internal/services"
)

type UserHandler struct {
	wallet *services.WalletService
}

func NewUserHandler(wallet *services.WalletService) *UserHandler {
	return &UserHandler{wallet: wallet}
}

func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	profile, err := h.wallet.GetProfile(c.Request.Context(), c.GetString("account_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"profile": profile,
		"session": gin.H{
			"session_id": c.GetString("session_id"),
		},
	})
}

func (h *UserHandler) GetBalance(c *gin.Context) {
	balance, err := h.wallet.Balance(c.Request.Context(), c.GetString("account_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

func (h *UserHandler) Leaderboard(c *gin.Context) {
	entries, err := h.wallet.Leaderboard(c.Request.Context(), queryLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

func (h *UserHandler) Transactions(c *gin.Context) {
	txs, err := h.wallet.Transactions(c.Request.Context(), c.GetString("account_id"), queryLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

func (h *UserHandler) Deposit(c *gin.Context) {
	var req models.AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	acc, err := h.wallet.Deposit(c.Request.Context(), c.GetString("account_id"), req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "account": acc})
}

func (h *UserHandler) Withdraw(c *gin.Context) {
	var req models.AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	acc, err := h.wallet.Withdraw(c.Request.Context(), c.GetString("account_id"), req.Amount, req.Address)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"account": acc,
		"message": "Withdrawal of " + models.FormatPoints(req.Amount) + " recorded",
	})
}

func (h *UserHandler) Tip(c *gin.Context) {
	var req models.TipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	acc, err := h.wallet.Tip(c.Request.Context(), c.GetString("account_id"), req.To, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "account": acc})
}

func (h *UserHandler) AdminGrant(c *gin.Context) {
	var req models.GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	acc, err := h.wallet.AdminGrant(c.Request.Context(), c.GetString("account_id"), req.AccountID, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "account": acc})
}
