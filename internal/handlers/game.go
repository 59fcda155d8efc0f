package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fairplay-backend/internal/apperr"
	"fairplay-backend/internal/models"
	"fairplay-backend/internal/services"
)

type GameHandler struct {
	gameEngine *services.GameEngine
}

func NewGameHandler(gameEngine *services.GameEngine) *GameHandler {
	return &GameHandler{gameEngine: gameEngine}
}

func (h *GameHandler) Play(c *gin.Context) {
	var req models.PlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.gameEngine.Play(c.Request.Context(), c.GetString("account_id"), req.Game, req.Bet,
		models.PlayParams{Call: req.Call})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

func (h *GameHandler) StartMines(c *gin.Context) {
	var req models.MinesStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	// Three picks against two mines unless asked otherwise.
	if req.Picks == 0 {
		req.Picks = 3
	}
	if req.Mines == 0 {
		req.Mines = 2
	}

	round, err := h.gameEngine.StartMines(c.Request.Context(), c.GetString("account_id"), req.Bet, req.Picks, req.Mines)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"round":   round,
	})
}

func (h *GameHandler) RevealMine(c *gin.Context) {
	var req models.MinesRevealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.gameEngine.RevealTile(c.Request.Context(), c.GetString("account_id"), *req.Tile)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *GameHandler) GetRound(c *gin.Context) {
	round, err := h.gameEngine.GetRound(c.Request.Context(), c.GetString("account_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"round": round})
}

func (h *GameHandler) AbandonRound(c *gin.Context) {
	result, err := h.gameEngine.AbandonRound(c.Request.Context(), c.GetString("account_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetVerificationData returns the hash the next play will be derived from.
func (h *GameHandler) GetVerificationData(c *gin.Context) {
	data, err := h.gameEngine.GetVerificationData(c.Request.Context(), c.GetString("account_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func (h *GameHandler) VerifyGame(c *gin.Context) {
	var req models.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.gameEngine.Verify(req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *GameHandler) SetClientSeed(c *gin.Context) {
	var req models.ClientSeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.gameEngine.SetClientSeed(c.Request.Context(), c.GetString("account_id"), req.Seed); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "client_seed": req.Seed})
}

func (h *GameHandler) RotateServerSeed(c *gin.Context) {
	result, err := h.gameEngine.RotateServerSeed(c.Request.Context(), c.GetString("account_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *GameHandler) RevealServerSeed(c *gin.Context) {
	seed, err := h.gameEngine.RevealServerSeed(c.Request.Context(), c.GetString("account_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if seed == "" {
		respondError(c, apperr.New(apperr.CodeInvalidRoundAction, "No server seed to reveal. Rotate one before playing."))
		return
	}
	c.JSON(http.StatusOK, gin.H{"revealed_seed": seed})
}
