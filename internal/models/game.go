package models

import (
	"github.com/shopspring/decimal"
)

type GameType string

const (
	GameTypeCoinFlip GameType = "coinflip"
	GameTypeSlots    GameType = "slots"
	GameTypeBlinko   GameType = "blinko"
	GameTypeMines    GameType = "mines"
)

// SingleShot reports whether the game resolves from one outcome in one call.
func (g GameType) SingleShot() bool {
	switch g {
	case GameTypeCoinFlip, GameTypeSlots, GameTypeBlinko:
		return true
	}
	return false
}

const (
	SideHeads = "heads"
	SideTails = "tails"
)

// PlayParams carries per-game options. Only the fields of the game being
// played are read.
type PlayParams struct {
	Call  string `json:"call,omitempty"`
	Picks int    `json:"picks,omitempty"`
	Mines int    `json:"mines,omitempty"`
}

type CoinflipDetail struct {
	Call string `json:"call"`
	Side string `json:"side"`
}

type SlotsDetail struct {
	Reels []string `json:"reels"`
}

type BlinkoDetail struct {
	Column int `json:"column"`
}

type MinesDetail struct {
	SafeReveals   int   `json:"safe_reveals"`
	Picks         int   `json:"picks"`
	MinePositions []int `json:"mine_positions"`
	Revealed      []int `json:"revealed"`
}

// OutcomeDetail describes what the outcome looked like in game terms.
type OutcomeDetail struct {
	Coinflip *CoinflipDetail `json:"coinflip,omitempty"`
	Slots    *SlotsDetail    `json:"slots,omitempty"`
	Blinko   *BlinkoDetail   `json:"blinko,omitempty"`
	Mines    *MinesDetail    `json:"mines,omitempty"`
}

type PlayResult struct {
	Game           GameType        `json:"game"`
	Bet            decimal.Decimal `json:"bet"`
	Detail         OutcomeDetail   `json:"detail"`
	Outcome        float64         `json:"outcome"`
	Multiplier     decimal.Decimal `json:"multiplier"`
	NetProfit      decimal.Decimal `json:"net_profit"`
	Won            bool            `json:"won"`
	NewBalance     decimal.Decimal `json:"new_balance"`
	ServerSeed     string          `json:"revealed_seed"`
	ServerSeedHash string          `json:"server_seed_hash"`
	ClientSeed     string          `json:"client_seed"`
	Nonce          int64           `json:"nonce"`
}

type VerifyResult struct {
	ServerSeedHash string        `json:"server_seed_hash"`
	Digest         string        `json:"digest"`
	Outcome        float64       `json:"outcome"`
	Detail         OutcomeDetail `json:"detail"`
}

type RotateResult struct {
	RevealedSeed string `json:"revealed_seed,omitempty"`
	NewHash      string `json:"server_seed_hash"`
}

// AbandonResult is what remains of a round that ended without settlement.
type AbandonResult struct {
	Round        *RoundState `json:"round"`
	RevealedSeed string      `json:"revealed_seed,omitempty"`
}
