package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Account struct {
	ID           string          `json:"id"`
	Balance      decimal.Decimal `json:"balance"`
	TotalWagered decimal.Decimal `json:"total_wagered"`
	Profit       decimal.Decimal `json:"profit"`
	Experience   decimal.Decimal `json:"experience"`
	Wins         int64           `json:"wins"`
	Losses       int64           `json:"losses"`

	// Provably Fair
	Nonce      int64  `json:"nonce"`
	ClientSeed string `json:"client_seed,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewAccount returns a fresh account holding the starting balance.
func NewAccount(id string, startingBalance decimal.Decimal, now time.Time) *Account {
	return &Account{
		ID:           id,
		Balance:      startingBalance,
		TotalWagered: decimal.Zero,
		Profit:       decimal.Zero,
		Experience:   decimal.Zero,
		CreatedAt:    now.UTC(),
	}
}

// Settlement is the outcome of one resolved play, applied as a unit.
type Settlement struct {
	Game      GameType
	Bet       decimal.Decimal
	NetProfit decimal.Decimal
	Won       bool
	// Nonce is the value the outcome was derived with; the store refuses the
	// settlement if the account has moved on.
	Nonce int64
}

// Apply mutates a in place. It does not check the balance invariant.
func (s Settlement) Apply(a *Account) {
	a.Balance = a.Balance.Add(s.NetProfit)
	a.TotalWagered = a.TotalWagered.Add(s.Bet)
	a.Profit = a.Profit.Add(s.NetProfit)
	a.Experience = a.Experience.Add(s.Bet)
	if s.Won {
		a.Wins++
	} else {
		a.Losses++
	}
	a.Nonce++
}

type LeaderboardEntry struct {
	Rank         int             `json:"rank"`
	AccountID    string          `json:"account_id"`
	TotalWagered decimal.Decimal `json:"total_wagered"`
	Profit       decimal.Decimal `json:"profit"`
}

type Profile struct {
	Account        *Account        `json:"account"`
	ServerSeedHash string          `json:"server_seed_hash,omitempty"`
	Value          decimal.Decimal `json:"value"`
	ActiveRound    *RoundState     `json:"active_round,omitempty"`
}
