package services

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fairplay-backend/internal/apperr"
	"fairplay-backend/internal/models"
)

// WalletService covers the account operations outside of play: profile,
// rankings and explicit balance movements.
type WalletService struct {
	ledger      *Ledger
	commitments *CommitmentManager
	engine      *GameEngine
	locker      *AccountLocker
	pointValue  decimal.Decimal
	logger      *zap.Logger
	broadcaster Broadcaster
}

func NewWalletService(ledger *Ledger, commitments *CommitmentManager, engine *GameEngine, locker *AccountLocker, pointValue decimal.Decimal, logger *zap.Logger) *WalletService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WalletService{
		ledger:      ledger,
		commitments: commitments,
		engine:      engine,
		locker:      locker,
		pointValue:  pointValue,
		logger:      logger,
		broadcaster: nopBroadcaster{},
	}
}

func (s *WalletService) SetBroadcaster(b Broadcaster) {
	if b == nil {
		b = nopBroadcaster{}
	}
	s.broadcaster = b
}

func (s *WalletService) GetProfile(ctx context.Context, accountID string) (*models.Profile, error) {
	acc, err := s.ledger.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	hash, err := s.commitments.ActiveHash(ctx, accountID)
	if err != nil {
		return nil, err
	}
	profile := &models.Profile{
		Account:        acc,
		ServerSeedHash: hash,
		Value:          acc.Balance.Mul(s.pointValue),
	}
	if s.engine != nil && s.engine.HasActiveRound(accountID) {
		if round, err := s.engine.GetRound(ctx, accountID); err == nil {
			profile.ActiveRound = round
		}
	}
	return profile, nil
}

func (s *WalletService) Balance(ctx context.Context, accountID string) (*models.BalanceResponse, error) {
	acc, err := s.ledger.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	held := s.ledger.Held(accountID)
	return &models.BalanceResponse{
		Balance:      acc.Balance,
		Held:         held,
		Available:    acc.Balance.Sub(held),
		TotalWagered: acc.TotalWagered,
		Value:        acc.Balance.Mul(s.pointValue),
	}, nil
}

func (s *WalletService) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	return s.ledger.Leaderboard(ctx, limit)
}

func (s *WalletService) Transactions(ctx context.Context, accountID string, limit int) ([]*models.Transaction, error) {
	return s.ledger.Transactions(ctx, accountID, limit)
}

func (s *WalletService) Deposit(ctx context.Context, accountID string, amount decimal.Decimal) (*models.Account, error) {
	unlock, err := s.locker.Lock(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	acc, err := s.ledger.Credit(ctx, accountID, amount, models.TransactionTypeDeposit, "deposit")
	if err != nil {
		return nil, err
	}
	s.logger.Info("deposit", zap.String("account_id", accountID), zap.String("amount", amount.String()))
	s.broadcaster.BroadcastBalance(accountID, acc)
	return acc, nil
}

// Withdraw debits the account. The address is only recorded.
func (s *WalletService) Withdraw(ctx context.Context, accountID string, amount decimal.Decimal, address string) (*models.Account, error) {
	unlock, err := s.locker.Lock(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	description := "withdraw"
	if address = strings.TrimSpace(address); address != "" {
		description += " to " + address
	}
	acc, err := s.ledger.Debit(ctx, accountID, amount, models.TransactionTypeWithdraw, description)
	if err != nil {
		return nil, err
	}
	s.logger.Info("withdraw",
		zap.String("account_id", accountID),
		zap.String("amount", amount.String()),
		zap.String("address", address))
	s.broadcaster.BroadcastBalance(accountID, acc)
	return acc, nil
}

func (s *WalletService) Tip(ctx context.Context, from, to string, amount decimal.Decimal) (*models.Account, error) {
	if strings.TrimSpace(to) == "" {
		return nil, apperr.Validation("recipient is required")
	}
	if from == to {
		return nil, apperr.Validation("cannot tip yourself")
	}

	unlock, err := s.locker.LockPair(ctx, from, to)
	if err != nil {
		return nil, err
	}
	defer unlock()

	sender, recipient, err := s.ledger.Transfer(ctx, from, to, amount)
	if err != nil {
		return nil, err
	}
	s.logger.Info("tip",
		zap.String("from", from),
		zap.String("to", to),
		zap.String("amount", amount.String()))
	s.broadcaster.BroadcastBalance(from, sender)
	s.broadcaster.BroadcastBalance(to, recipient)
	return sender, nil
}

// AdminGrant credits an account outside of play.
func (s *WalletService) AdminGrant(ctx context.Context, adminID, accountID string, amount decimal.Decimal) (*models.Account, error) {
	unlock, err := s.locker.Lock(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	acc, err := s.ledger.Credit(ctx, accountID, amount, models.TransactionTypeGrant, "grant by "+adminID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("admin grant",
		zap.String("admin_id", adminID),
		zap.String("account_id", accountID),
		zap.String("amount", amount.String()))
	s.broadcaster.BroadcastBalance(accountID, acc)
	return acc, nil
}
