package models

import "github.com/shopspring/decimal"

type VerificationData struct {
	ClientSeed   string `json:"client_seed"`
	ServerHash   string `json:"server_hash"`
	CurrentNonce int64  `json:"current_nonce"`
}

type PlayRequest struct {
	Game GameType        `json:"game" binding:"required"`
	Bet  decimal.Decimal `json:"bet"`
	Call string          `json:"call"`
}

type MinesStartRequest struct {
	Bet   decimal.Decimal `json:"bet"`
	Picks int             `json:"picks"`
	Mines int             `json:"mines"`
}

type MinesRevealRequest struct {
	Tile *int `json:"tile" binding:"required"`
}

type MinesRevealResponse struct {
	Step   RevealStep  `json:"step"`
	Round  *RoundState `json:"round"`
	Result *PlayResult `json:"result,omitempty"`
}

type VerifyRequest struct {
	ServerSeed string   `json:"server_seed" binding:"required"`
	ClientSeed string   `json:"client_seed" binding:"required"`
	Nonce      int64    `json:"nonce"`
	Game       GameType `json:"game" binding:"required"`
	Call       string   `json:"call"`
	Mines      int      `json:"mines"`
}

type AmountRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	Address string          `json:"address,omitempty"`
}

type TipRequest struct {
	To     string          `json:"to" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

type GrantRequest struct {
	AccountID string          `json:"account_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

type ClientSeedRequest struct {
	Seed string `json:"seed" binding:"required"`
}

type TokenRequest struct {
	AccountID string `json:"account_id" binding:"required"`
	Admin     bool   `json:"admin"`
}

type BalanceResponse struct {
	Balance      decimal.Decimal `json:"balance"`
	Held         decimal.Decimal `json:"held"`
	Available    decimal.Decimal `json:"available"` // Balance - Held
	TotalWagered decimal.Decimal `json:"total_wagered"`
	Value        decimal.Decimal `json:"value"`
}
