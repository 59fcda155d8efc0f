package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"fairplay-backend/internal/apperr"
	"fairplay-backend/internal/fairness"
	"fairplay-backend/internal/models"
)

// CommitmentManager owns the per-account server seeds. The secret seed only
// leaves it through a reveal, after which it is gone from storage.
type CommitmentManager struct {
	store  CommitmentStore
	logger *zap.Logger
}

func NewCommitmentManager(store CommitmentStore, logger *zap.Logger) *CommitmentManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommitmentManager{store: store, logger: logger}
}

// Issue returns the hash of the active commitment, creating one if needed.
func (m *CommitmentManager) Issue(ctx context.Context, accountID string) (string, error) {
	existing, err := m.store.GetCommitment(ctx, accountID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.ServerSeedHash, nil
	}

	seed, err := fairness.NewServerSeed()
	if err != nil {
		return "", err
	}
	active, err := m.store.CreateCommitment(ctx, models.Commitment{
		AccountID:      accountID,
		ServerSeed:     seed,
		ServerSeedHash: fairness.HashServerSeed(seed),
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}
	m.logger.Debug("server seed committed",
		zap.String("account_id", accountID),
		zap.String("server_seed_hash", active.ServerSeedHash))
	return active.ServerSeedHash, nil
}

// ActiveHash returns "" when the account has no commitment.
func (m *CommitmentManager) ActiveHash(ctx context.Context, accountID string) (string, error) {
	c, err := m.store.GetCommitment(ctx, accountID)
	if err != nil || c == nil {
		return "", err
	}
	return c.ServerSeedHash, nil
}

// Outcome derives the outcome for the active commitment and returns it with
// the commitment's hash.
func (m *CommitmentManager) Outcome(ctx context.Context, accountID, clientSeed string, nonce int64) (fairness.Outcome, string, error) {
	c, err := m.store.GetCommitment(ctx, accountID)
	if err != nil {
		return 0, "", err
	}
	if c == nil {
		m.logger.Error("no commitment to derive from", zap.String("account_id", accountID), zap.Int64("nonce", nonce))
		return 0, "", apperr.Internal("no active commitment for account " + accountID)
	}
	return fairness.Derive(c.ServerSeed, clientSeed, nonce), c.ServerSeedHash, nil
}

// RevealAndRetire removes the commitment a play was derived from and
// returns its seed. A missing commitment means something else consumed it.
func (m *CommitmentManager) RevealAndRetire(ctx context.Context, accountID string) (string, error) {
	c, err := m.store.DeleteCommitment(ctx, accountID)
	if err != nil {
		return "", err
	}
	if c == nil {
		m.logger.Error("commitment missing at reveal", zap.String("account_id", accountID))
		return "", apperr.Internal("commitment missing at reveal for account " + accountID)
	}
	return c.ServerSeed, nil
}

// Reveal removes the active commitment, if any, and returns its seed or "".
func (m *CommitmentManager) Reveal(ctx context.Context, accountID string) (string, error) {
	c, err := m.store.DeleteCommitment(ctx, accountID)
	if err != nil || c == nil {
		return "", err
	}
	return c.ServerSeed, nil
}

// Rotate reveals the current seed, if any, and commits to a fresh one.
func (m *CommitmentManager) Rotate(ctx context.Context, accountID string) (*models.RotateResult, error) {
	revealed, err := m.Reveal(ctx, accountID)
	if err != nil {
		return nil, err
	}
	hash, err := m.Issue(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &models.RotateResult{RevealedSeed: revealed, NewHash: hash}, nil
}
