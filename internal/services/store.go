package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fairplay-backend/internal/apperr"
	"fairplay-backend/internal/models"
)

// AccountStore persists accounts and their transaction log. Every mutating
// call is atomic on its own: the balance change, the statistics and the
// transaction record it writes become visible together or not at all.
type AccountStore interface {
	// EnsureAccount creates the account with the starting balance if it does
	// not exist yet and reports whether it did.
	EnsureAccount(ctx context.Context, id string, startingBalance decimal.Decimal) (bool, error)
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	// AdjustBalance adds delta to the balance. A result below zero fails with
	// apperr.ErrInsufficientFunds and changes nothing.
	AdjustBalance(ctx context.Context, id string, delta decimal.Decimal, kind models.TransactionType, description string) (*models.Account, error)
	Settle(ctx context.Context, id string, s models.Settlement) (*models.Account, error)
	Transfer(ctx context.Context, from, to string, amount decimal.Decimal) (*models.Account, *models.Account, error)
	SetClientSeed(ctx context.Context, id, seed string) error
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	Transactions(ctx context.Context, id string, limit int) ([]*models.Transaction, error)
}

// CommitmentStore keeps at most one active commitment per account.
type CommitmentStore interface {
	// CreateCommitment stores c unless the account already has one; either
	// way it returns the commitment that is active afterwards.
	CreateCommitment(ctx context.Context, c models.Commitment) (*models.Commitment, error)
	// GetCommitment returns nil when there is none.
	GetCommitment(ctx context.Context, accountID string) (*models.Commitment, error)
	// DeleteCommitment removes and returns the active commitment, or nil.
	DeleteCommitment(ctx context.Context, accountID string) (*models.Commitment, error)
}

// Store is what a storage backend provides.
type Store interface {
	AccountStore
	CommitmentStore
	Close() error
}

// RateLimiter counts actions per account in a fixed window.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, accountID, action string, limit int, window time.Duration) (bool, error)
}

const (
	DefaultLeaderboardLimit  = 10
	MaxLeaderboardLimit      = 100
	DefaultTransactionsLimit = 50
	MaxTransactionsLimit     = 100
)

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// newTransaction builds the log record for a balance change on acc, which
// must already hold the post-change state.
func newTransaction(acc *models.Account, kind models.TransactionType, delta decimal.Decimal, description string, now time.Time) *models.Transaction {
	return &models.Transaction{
		ID:            models.GenerateTransactionID(),
		AccountID:     acc.ID,
		Type:          kind,
		Amount:        delta,
		BalanceBefore: acc.Balance.Sub(delta),
		BalanceAfter:  acc.Balance,
		Description:   description,
		CreatedAt:     now.UTC(),
	}
}

func settlementTransaction(acc *models.Account, s models.Settlement, now time.Time) *models.Transaction {
	result := "lost"
	if s.Won {
		result = "won"
	}
	tx := newTransaction(acc, models.TransactionTypeWager, s.NetProfit,
		string(s.Game)+" "+result+" on bet "+models.FormatPoints(s.Bet), now)
	tx.Game = s.Game
	tx.Nonce = s.Nonce
	return tx
}

// applySettlement checks the nonce and the balance invariant before mutating acc.
func applySettlement(acc *models.Account, s models.Settlement) error {
	if acc.Nonce != s.Nonce {
		return apperr.Internal(fmt.Sprintf("settlement for nonce %d but account %s is at nonce %d", s.Nonce, acc.ID, acc.Nonce))
	}
	if !s.Bet.IsPositive() {
		return apperr.Validation("bet must be positive")
	}
	if acc.Balance.Add(s.NetProfit).IsNegative() {
		return apperr.ErrInsufficientFunds
	}
	s.Apply(acc)
	return nil
}

func applyDelta(acc *models.Account, delta decimal.Decimal) error {
	if delta.IsZero() {
		return apperr.Validation("amount must be non-zero")
	}
	if acc.Balance.Add(delta).IsNegative() {
		return apperr.ErrInsufficientFunds
	}
	acc.Balance = acc.Balance.Add(delta)
	return nil
}
