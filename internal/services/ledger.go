package services

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fairplay-backend/internal/apperr"
	"fairplay-backend/internal/fairness"
	"fairplay-backend/internal/models"
)

// Ledger is the only writer of account state. Callers that check a balance
// and then mutate it hold the account lock around both steps.
type Ledger struct {
	store           AccountStore
	startingBalance decimal.Decimal
	logger          *zap.Logger

	mu    sync.Mutex
	holds map[string]decimal.Decimal
}

func NewLedger(store AccountStore, startingBalance decimal.Decimal, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		store:           store,
		startingBalance: startingBalance,
		logger:          logger,
		holds:           make(map[string]decimal.Decimal),
	}
}

// EnsureAccount returns the account, creating it with the starting balance
// on first reference.
func (l *Ledger) EnsureAccount(ctx context.Context, id string) (*models.Account, error) {
	if err := models.ValidateAccountID(id); err != nil {
		return nil, err
	}
	created, err := l.store.EnsureAccount(ctx, id, l.startingBalance)
	if err != nil {
		return nil, err
	}
	if created {
		l.logger.Info("account created",
			zap.String("account_id", id),
			zap.String("starting_balance", l.startingBalance.String()))
	}
	return l.store.GetAccount(ctx, id)
}

func (l *Ledger) Get(ctx context.Context, id string) (*models.Account, error) {
	return l.EnsureAccount(ctx, id)
}

// Available is the balance minus any in-flight Mines hold.
func (l *Ledger) Available(acc *models.Account) decimal.Decimal {
	return acc.Balance.Sub(l.Held(acc.ID))
}

func (l *Ledger) Credit(ctx context.Context, id string, amount decimal.Decimal, kind models.TransactionType, description string) (*models.Account, error) {
	if err := models.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if _, err := l.EnsureAccount(ctx, id); err != nil {
		return nil, err
	}
	return l.store.AdjustBalance(ctx, id, amount, kind, description)
}

func (l *Ledger) Debit(ctx context.Context, id string, amount decimal.Decimal, kind models.TransactionType, description string) (*models.Account, error) {
	if err := models.ValidateAmount(amount); err != nil {
		return nil, err
	}
	acc, err := l.EnsureAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.Available(acc).LessThan(amount) {
		return nil, apperr.ErrInsufficientFunds
	}
	return l.store.AdjustBalance(ctx, id, amount.Neg(), kind, description)
}

// Settle applies one resolved play atomically.
func (l *Ledger) Settle(ctx context.Context, id string, s models.Settlement) (*models.Account, error) {
	acc, err := l.store.Settle(ctx, id, s)
	if err != nil {
		if apperr.CodeOf(err) == apperr.CodeInternal {
			l.logger.Error("settlement rejected",
				zap.String("account_id", id),
				zap.String("game", string(s.Game)),
				zap.Int64("nonce", s.Nonce),
				zap.Error(err))
		}
		return nil, err
	}
	return acc, nil
}

func (l *Ledger) Transfer(ctx context.Context, from, to string, amount decimal.Decimal) (*models.Account, *models.Account, error) {
	if err := models.ValidateAmount(amount); err != nil {
		return nil, nil, err
	}
	if from == to {
		return nil, nil, apperr.Validation("cannot tip yourself")
	}
	sender, err := l.EnsureAccount(ctx, from)
	if err != nil {
		return nil, nil, err
	}
	if _, err := l.EnsureAccount(ctx, to); err != nil {
		return nil, nil, err
	}
	if l.Available(sender).LessThan(amount) {
		return nil, nil, apperr.ErrInsufficientFunds
	}
	return l.store.Transfer(ctx, from, to, amount)
}

func (l *Ledger) SetClientSeed(ctx context.Context, id, seed string) error {
	if err := models.ValidateClientSeed(seed); err != nil {
		return err
	}
	if _, err := l.EnsureAccount(ctx, id); err != nil {
		return err
	}
	return l.store.SetClientSeed(ctx, id, seed)
}

// EnsureClientSeed gives acc a generated client seed if it has none and
// persists it before returning.
func (l *Ledger) EnsureClientSeed(ctx context.Context, acc *models.Account) (string, error) {
	if acc.ClientSeed != "" {
		return acc.ClientSeed, nil
	}
	seed, err := fairness.NewClientSeed()
	if err != nil {
		return "", err
	}
	if err := l.store.SetClientSeed(ctx, acc.ID, seed); err != nil {
		return "", err
	}
	acc.ClientSeed = seed
	return seed, nil
}

// Hold reserves amount of the account's balance for an in-flight round.
func (l *Ledger) Hold(id string, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.holds[id] = l.holds[id].Add(amount)
}

func (l *Ledger) Release(id string, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	left := l.holds[id].Sub(amount)
	if !left.IsPositive() {
		delete(l.holds, id)
		return
	}
	l.holds[id] = left
}

func (l *Ledger) Held(id string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holds[id]
}

func (l *Ledger) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	return l.store.Leaderboard(ctx, limit)
}

func (l *Ledger) Transactions(ctx context.Context, id string, limit int) ([]*models.Transaction, error) {
	if err := models.ValidateAccountID(id); err != nil {
		return nil, err
	}
	return l.store.Transactions(ctx, id, limit)
}
