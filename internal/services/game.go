package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fairplay-backend/internal/apperr"
	"fairplay-backend/internal/fairness"
	"fairplay-backend/internal/models"
)

// GameEngine resolves plays against the ledger. Every operation on an
// account runs under that account's lock from the balance check to the
// seed reveal.
type GameEngine struct {
	ledger         *Ledger
	commitments    *CommitmentManager
	locker         *AccountLocker
	config         GameConfig
	autoClientSeed bool
	logger         *zap.Logger
	broadcaster    Broadcaster

	mu           sync.Mutex
	activeRounds map[string]*RoundInstance
}

// RoundInstance tracks a running Mines round. A terminal round stays
// registered until its settlement and seed reveal have both succeeded.
type RoundInstance struct {
	Round      *models.MinesRound
	LastUpdate time.Time

	final  *models.RevealStep
	payout *models.PlayResult
}

type EngineOption func(*GameEngine)

func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *GameEngine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithBroadcaster(b Broadcaster) EngineOption {
	return func(e *GameEngine) {
		if b != nil {
			e.broadcaster = b
		}
	}
}

// WithAutoClientSeed controls whether an account without a client seed gets
// a generated one on its first play instead of a validation error.
func WithAutoClientSeed(enabled bool) EngineOption {
	return func(e *GameEngine) {
		e.autoClientSeed = enabled
	}
}

func NewGameEngine(ledger *Ledger, commitments *CommitmentManager, locker *AccountLocker, config GameConfig, opts ...EngineOption) *GameEngine {
	e := &GameEngine{
		ledger:         ledger,
		commitments:    commitments,
		locker:         locker,
		config:         config,
		autoClientSeed: true,
		logger:         zap.NewNop(),
		broadcaster:    nopBroadcaster{},
		activeRounds:   make(map[string]*RoundInstance),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetBroadcaster replaces the broadcaster once the transport is up.
func (e *GameEngine) SetBroadcaster(b Broadcaster) {
	if b == nil {
		b = nopBroadcaster{}
	}
	e.broadcaster = b
}

func (e *GameEngine) Config() GameConfig {
	return e.config
}

func (e *GameEngine) clientSeedFor(ctx context.Context, acc *models.Account) (string, error) {
	if acc.ClientSeed != "" {
		return acc.ClientSeed, nil
	}
	if !e.autoClientSeed {
		return "", apperr.Validation("set a client seed before playing")
	}
	return e.ledger.EnsureClientSeed(ctx, acc)
}

// prepare loads the account, checks it can cover bet and publishes the
// commitment the play will be derived from. The account lock must be held.
func (e *GameEngine) prepare(ctx context.Context, accountID string, bet decimal.Decimal) (*models.Account, string, error) {
	if e.hasActiveRound(accountID) {
		return nil, "", apperr.New(apperr.CodeInvalidRoundAction, "finish your mines round first")
	}
	acc, err := e.ledger.EnsureAccount(ctx, accountID)
	if err != nil {
		return nil, "", err
	}
	if e.ledger.Available(acc).LessThan(bet) {
		return nil, "", apperr.ErrInsufficientFunds
	}
	clientSeed, err := e.clientSeedFor(ctx, acc)
	if err != nil {
		return nil, "", err
	}
	if _, err := e.commitments.Issue(ctx, accountID); err != nil {
		return nil, "", err
	}
	return acc, clientSeed, nil
}

// Play resolves one coinflip, slots or blinko play.
func (e *GameEngine) Play(ctx context.Context, accountID string, game models.GameType, bet decimal.Decimal, params models.PlayParams) (*models.PlayResult, error) {
	if game == models.GameTypeMines {
		return nil, apperr.Validation("mines is played with StartMines and RevealTile")
	}
	if !game.SingleShot() {
		return nil, apperr.Validation(fmt.Sprintf("unknown game %q", game))
	}
	if err := models.ValidateAmount(bet); err != nil {
		return nil, apperr.Validation("bet must be positive")
	}
	if game == models.GameTypeCoinFlip {
		call, err := normalizeCall(params.Call)
		if err != nil {
			return nil, err
		}
		params.Call = call
	}

	unlock, err := e.locker.Lock(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	acc, clientSeed, err := e.prepare(ctx, accountID, bet)
	if err != nil {
		return nil, err
	}

	outcome, hash, err := e.commitments.Outcome(ctx, accountID, clientSeed, acc.Nonce)
	if err != nil {
		return nil, err
	}
	detail, base, err := e.config.resolve(game, outcome, params)
	if err != nil {
		return nil, err
	}

	result, err := e.settle(ctx, accountID, game, bet, base, acc.Nonce)
	if err != nil {
		return nil, err
	}
	result.Detail = detail
	result.Outcome = outcome.Float64()
	result.ServerSeedHash = hash
	result.ClientSeed = clientSeed

	e.logger.Info("play settled",
		zap.String("account_id", accountID),
		zap.String("game", string(game)),
		zap.String("bet", bet.String()),
		zap.String("net", result.NetProfit.String()),
		zap.Int64("nonce", result.Nonce))
	e.broadcaster.BroadcastPlayResult(accountID, result)
	return result, nil
}

// settle applies the payout for base, then reveals and retires the seed the
// play was derived from.
func (e *GameEngine) settle(ctx context.Context, accountID string, game models.GameType, bet, base decimal.Decimal, nonce int64) (*models.PlayResult, error) {
	result, err := e.applyPayout(ctx, accountID, game, bet, base, nonce)
	if err != nil {
		return nil, err
	}

	seed, err := e.commitments.RevealAndRetire(ctx, accountID)
	if err != nil {
		return nil, err
	}
	result.ServerSeed = seed
	return result, nil
}

func (e *GameEngine) applyPayout(ctx context.Context, accountID string, game models.GameType, bet, base decimal.Decimal, nonce int64) (*models.PlayResult, error) {
	multiplier, net, won := e.config.payout(game, bet, base)

	updated, err := e.ledger.Settle(ctx, accountID, models.Settlement{
		Game:      game,
		Bet:       bet,
		NetProfit: net,
		Won:       won,
		Nonce:     nonce,
	})
	if err != nil {
		return nil, err
	}

	return &models.PlayResult{
		Game:       game,
		Bet:        bet,
		Multiplier: multiplier,
		NetProfit:  net,
		Won:        won,
		NewBalance: updated.Balance,
		Nonce:      nonce,
	}, nil
}

// StartMines opens a round. The mines are placed from the committed seed at
// the current nonce and the bet is held until the round ends.
func (e *GameEngine) StartMines(ctx context.Context, accountID string, bet decimal.Decimal, picks, mines int) (*models.RoundState, error) {
	if err := models.ValidateAmount(bet); err != nil {
		return nil, apperr.Validation("bet must be positive")
	}
	if err := e.config.validateMines(picks, mines); err != nil {
		return nil, err
	}

	unlock, err := e.locker.Lock(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	acc, clientSeed, err := e.prepare(ctx, accountID, bet)
	if err != nil {
		return nil, err
	}

	outcome, hash, err := e.commitments.Outcome(ctx, accountID, clientSeed, acc.Nonce)
	if err != nil {
		return nil, err
	}
	positions := fairness.MinePositions(outcome, e.config.GridSize(), mines)

	round, err := models.NewMinesRound(models.GenerateRoundID(), accountID, bet, e.config.GridSize(), picks, positions)
	if err != nil {
		return nil, err
	}
	round.ServerSeedHash = hash
	round.ClientSeed = clientSeed
	round.Nonce = acc.Nonce

	e.ledger.Hold(accountID, bet)
	e.mu.Lock()
	e.activeRounds[accountID] = &RoundInstance{Round: round, LastUpdate: time.Now()}
	e.mu.Unlock()

	e.logger.Info("mines round started",
		zap.String("account_id", accountID),
		zap.String("round_id", round.ID),
		zap.String("bet", bet.String()),
		zap.Int("picks", picks),
		zap.Int("mines", mines))

	state := round.State()
	e.broadcaster.BroadcastRoundUpdate(accountID, state)
	return state, nil
}

// RevealTile clicks one tile of the active round. The round settles when a
// mine is hit or the picks target is reached. If settling fails the round
// stays active and the next call retries the settlement, whatever tile it
// names.
func (e *GameEngine) RevealTile(ctx context.Context, accountID string, tile int) (*models.MinesRevealResponse, error) {
	unlock, err := e.locker.Lock(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	instance := e.activeRound(accountID)
	if instance == nil {
		return nil, apperr.ErrNoActiveRound
	}
	round := instance.Round

	if instance.final == nil {
		step, err := round.Reveal(tile)
		if err != nil {
			return nil, err
		}

		e.mu.Lock()
		instance.LastUpdate = time.Now()
		e.mu.Unlock()

		if !step.Terminal {
			state := round.State()
			e.broadcaster.BroadcastRoundUpdate(accountID, state)
			return &models.MinesRevealResponse{Step: step, Round: state}, nil
		}
		instance.final = &step
	}

	result, err := e.settleRound(ctx, accountID, instance)
	if err != nil {
		e.logger.Warn("mines settlement failed, round kept for retry",
			zap.String("account_id", accountID),
			zap.String("round_id", round.ID),
			zap.Error(err))
		return nil, err
	}
	e.finishRound(accountID, round)

	state := round.State()
	result.Detail = models.OutcomeDetail{Mines: &models.MinesDetail{
		SafeReveals:   round.SafeReveals,
		Picks:         round.Picks,
		MinePositions: state.MinePositions,
		Revealed:      state.Revealed,
	}}
	result.ServerSeedHash = round.ServerSeedHash
	result.ClientSeed = round.ClientSeed
	result.Outcome = fairness.Derive(result.ServerSeed, round.ClientSeed, round.Nonce).Float64()

	e.logger.Info("mines round settled",
		zap.String("account_id", accountID),
		zap.String("round_id", round.ID),
		zap.String("outcome", string(round.Outcome)),
		zap.String("net", result.NetProfit.String()))
	e.broadcaster.BroadcastRoundUpdate(accountID, state)
	e.broadcaster.BroadcastPlayResult(accountID, result)
	return &models.MinesRevealResponse{Step: *instance.final, Round: state, Result: result}, nil
}

// settleRound applies the payout of a terminal round once, then reveals and
// retires its seed. Retries never apply the payout twice.
func (e *GameEngine) settleRound(ctx context.Context, accountID string, instance *RoundInstance) (*models.PlayResult, error) {
	round := instance.Round
	if instance.payout == nil {
		base := decimal.Zero
		if round.Outcome == models.RoundCashedOut {
			base = e.config.minesBase(round.SafeReveals)
		}
		payout, err := e.applyPayout(ctx, accountID, models.GameTypeMines, round.Bet, base, round.Nonce)
		if err != nil {
			return nil, err
		}
		instance.payout = payout
	}

	seed, err := e.commitments.RevealAndRetire(ctx, accountID)
	if err != nil {
		return nil, err
	}
	result := *instance.payout
	result.ServerSeed = seed
	return &result, nil
}

// GetRound returns the state of the account's active round.
func (e *GameEngine) GetRound(ctx context.Context, accountID string) (*models.RoundState, error) {
	unlock, err := e.locker.Lock(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	instance := e.activeRound(accountID)
	if instance == nil {
		return nil, apperr.ErrNoActiveRound
	}
	return instance.Round.State(), nil
}

func (e *GameEngine) HasActiveRound(accountID string) bool {
	return e.hasActiveRound(accountID)
}

// AbandonRound ends the active round without settlement. The hold is
// released and the seed that placed the mines is revealed and retired.
func (e *GameEngine) AbandonRound(ctx context.Context, accountID string) (*models.AbandonResult, error) {
	unlock, err := e.locker.Lock(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	instance := e.activeRound(accountID)
	if instance == nil {
		return nil, apperr.ErrNoActiveRound
	}
	return e.abandon(ctx, accountID, instance.Round, "abandoned")
}

func (e *GameEngine) abandon(ctx context.Context, accountID string, round *models.MinesRound, reason string) (*models.AbandonResult, error) {
	e.finishRound(accountID, round)

	seed, err := e.commitments.Reveal(ctx, accountID)
	if err != nil {
		return nil, err
	}
	e.logger.Info("mines round abandoned",
		zap.String("account_id", accountID),
		zap.String("round_id", round.ID),
		zap.String("reason", reason),
		zap.String("revealed_seed", seed))

	state := round.State()
	if seed != "" {
		state.MinePositions = round.MinePositions()
	}
	e.broadcaster.BroadcastRoundUpdate(accountID, state)
	return &models.AbandonResult{Round: state, RevealedSeed: seed}, nil
}

// CleanupStaleGames abandons rounds idle for longer than maxIdle and
// reports how many it ended.
func (e *GameEngine) CleanupStaleGames(ctx context.Context, maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	e.mu.Lock()
	var stale []string
	for accountID, instance := range e.activeRounds {
		if instance.LastUpdate.Before(cutoff) {
			stale = append(stale, accountID)
		}
	}
	e.mu.Unlock()

	cleaned := 0
	for _, accountID := range stale {
		unlock, err := e.locker.Lock(ctx, accountID)
		if err != nil {
			e.logger.Warn("stale round cleanup interrupted", zap.Error(err))
			return cleaned
		}

		e.mu.Lock()
		instance := e.activeRounds[accountID]
		stillStale := instance != nil && instance.LastUpdate.Before(cutoff)
		e.mu.Unlock()

		if stillStale {
			if _, err := e.abandon(ctx, accountID, instance.Round, "idle timeout"); err != nil {
				e.logger.Error("failed to abandon stale round",
					zap.String("account_id", accountID),
					zap.Error(err))
			} else {
				cleaned++
			}
		}
		unlock()
	}
	return cleaned
}

func (e *GameEngine) RotateServerSeed(ctx context.Context, accountID string) (*models.RotateResult, error) {
	unlock, err := e.locker.Lock(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if e.hasActiveRound(accountID) {
		return nil, apperr.New(apperr.CodeInvalidRoundAction, "cannot rotate the server seed during a mines round")
	}
	if _, err := e.ledger.EnsureAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return e.commitments.Rotate(ctx, accountID)
}

// RevealServerSeed reveals and retires the active seed. It returns "" when
// there is none.
func (e *GameEngine) RevealServerSeed(ctx context.Context, accountID string) (string, error) {
	unlock, err := e.locker.Lock(ctx, accountID)
	if err != nil {
		return "", err
	}
	defer unlock()

	if e.hasActiveRound(accountID) {
		return "", apperr.New(apperr.CodeInvalidRoundAction, "cannot reveal the server seed during a mines round")
	}
	return e.commitments.Reveal(ctx, accountID)
}

func (e *GameEngine) SetClientSeed(ctx context.Context, accountID, seed string) error {
	unlock, err := e.locker.Lock(ctx, accountID)
	if err != nil {
		return err
	}
	defer unlock()

	return e.ledger.SetClientSeed(ctx, accountID, seed)
}

// GetVerificationData publishes the hash the next play will use.
func (e *GameEngine) GetVerificationData(ctx context.Context, accountID string) (*models.VerificationData, error) {
	unlock, err := e.locker.Lock(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	acc, err := e.ledger.EnsureAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	hash, err := e.commitments.Issue(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &models.VerificationData{
		ClientSeed:   acc.ClientSeed,
		ServerHash:   hash,
		CurrentNonce: acc.Nonce,
	}, nil
}

// Verify recomputes a past outcome from its revealed seed triple.
func (e *GameEngine) Verify(req models.VerifyRequest) (*models.VerifyResult, error) {
	if req.ServerSeed == "" || req.ClientSeed == "" {
		return nil, apperr.Validation("server seed and client seed are required")
	}
	if req.Nonce < 0 {
		return nil, apperr.Validation("nonce must not be negative")
	}

	outcome := fairness.Derive(req.ServerSeed, req.ClientSeed, req.Nonce)
	result := &models.VerifyResult{
		ServerSeedHash: fairness.HashServerSeed(req.ServerSeed),
		Digest:         fairness.Digest(req.ServerSeed, req.ClientSeed, req.Nonce),
		Outcome:        outcome.Float64(),
	}

	switch req.Game {
	case models.GameTypeMines:
		if req.Mines < minesMinCount || req.Mines > minesMaxCount {
			return nil, apperr.Validation(fmt.Sprintf("mines must be between %d and %d", minesMinCount, minesMaxCount))
		}
		result.Detail = models.OutcomeDetail{Mines: &models.MinesDetail{
			MinePositions: fairness.MinePositions(outcome, e.config.GridSize(), req.Mines),
		}}
	case models.GameTypeCoinFlip:
		call := req.Call
		if call == "" {
			call = models.SideHeads
		}
		detail, _, err := e.config.resolve(req.Game, outcome, models.PlayParams{Call: call})
		if err != nil {
			return nil, err
		}
		result.Detail = detail
	default:
		detail, _, err := e.config.resolve(req.Game, outcome, models.PlayParams{})
		if err != nil {
			return nil, err
		}
		result.Detail = detail
	}
	return result, nil
}

func (e *GameEngine) activeRound(accountID string) *RoundInstance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeRounds[accountID]
}

func (e *GameEngine) hasActiveRound(accountID string) bool {
	return e.activeRound(accountID) != nil
}

// finishRound drops the round from the registry and releases its hold.
func (e *GameEngine) finishRound(accountID string, round *models.MinesRound) {
	e.mu.Lock()
	if current, ok := e.activeRounds[accountID]; ok && current.Round == round {
		delete(e.activeRounds, accountID)
	}
	e.mu.Unlock()
	e.ledger.Release(accountID, round.Bet)
}
