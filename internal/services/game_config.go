package services

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"fairplay-backend/internal/apperr"
	"fairplay-backend/internal/fairness"
	"fairplay-backend/internal/models"
)

var (
	one = decimal.NewFromInt(1)

	coinflipBase   = decimal.NewFromInt(2)
	slotsTriple    = decimal.NewFromInt(14)
	slotsPair      = decimal.NewFromInt(2)
	defaultSymbols = []string{"🍒", "🍋", "🔔", "⭐", "7️⃣", "🍇"}
)

const (
	minesGridSize = 9
	minesMinPicks = 1
	minesMaxPicks = 8
	minesMinCount = 1
	minesMaxCount = 4
	slotsReels    = 3
)

// GameConfig holds house edges and payout tables. It is built once and
// only read afterwards; the accessors return copies.
type GameConfig struct {
	edges       map[models.GameType]decimal.Decimal
	defaultEdge decimal.Decimal
	symbols     []string
	blinko      []decimal.Decimal
	mines       map[int]decimal.Decimal
}

func DefaultGameConfig() GameConfig {
	return NewGameConfig(map[models.GameType]decimal.Decimal{
		models.GameTypeCoinFlip: decimal.RequireFromString("0.02"),
		models.GameTypeSlots:    decimal.RequireFromString("0.06"),
		models.GameTypeMines:    decimal.RequireFromString("0.08"),
		models.GameTypeBlinko:   decimal.RequireFromString("0.07"),
	}, decimal.RequireFromString("0.05"))
}

func NewGameConfig(edges map[models.GameType]decimal.Decimal, defaultEdge decimal.Decimal) GameConfig {
	cfg := GameConfig{
		edges:       make(map[models.GameType]decimal.Decimal, len(edges)),
		defaultEdge: defaultEdge,
		symbols:     append([]string(nil), defaultSymbols...),
		blinko: []decimal.Decimal{
			decimal.NewFromInt(6),
			decimal.NewFromInt(3),
			decimal.RequireFromString("1.5"),
			decimal.RequireFromString("1.5"),
			decimal.NewFromInt(3),
			decimal.NewFromInt(6),
		},
		mines: map[int]decimal.Decimal{
			1: decimal.RequireFromString("1.2"),
			2: decimal.RequireFromString("1.5"),
			3: decimal.NewFromInt(2),
			4: decimal.NewFromInt(3),
			5: decimal.RequireFromString("4.5"),
			6: decimal.NewFromInt(7),
			7: decimal.NewFromInt(12),
			8: decimal.NewFromInt(25),
		},
	}
	for game, edge := range edges {
		cfg.edges[game] = edge
	}
	return cfg
}

func (c GameConfig) Edge(game models.GameType) decimal.Decimal {
	if edge, ok := c.edges[game]; ok {
		return edge
	}
	return c.defaultEdge
}

// Multiplier applies the house edge to a base multiplier.
func (c GameConfig) Multiplier(game models.GameType, base decimal.Decimal) decimal.Decimal {
	return base.Mul(one.Sub(c.Edge(game)))
}

func (c GameConfig) Symbols() []string {
	return append([]string(nil), c.symbols...)
}

func (c GameConfig) GridSize() int {
	return minesGridSize
}

// payout turns a base multiplier into the net result of a bet. A zero base
// is a loss of the whole bet.
func (c GameConfig) payout(game models.GameType, bet, base decimal.Decimal) (multiplier, net decimal.Decimal, won bool) {
	if !base.IsPositive() {
		return decimal.Zero, bet.Neg(), false
	}
	multiplier = c.Multiplier(game, base)
	net = bet.Mul(multiplier.Sub(one))
	return multiplier, net, net.IsPositive()
}

func normalizeCall(call string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(call)) {
	case "heads", "h":
		return models.SideHeads, nil
	case "tails", "t":
		return models.SideTails, nil
	}
	return "", apperr.Validation("call must be heads or tails")
}

func (c GameConfig) validateMines(picks, mines int) error {
	if picks < minesMinPicks || picks > minesMaxPicks {
		return apperr.Validation(fmt.Sprintf("picks must be between %d and %d", minesMinPicks, minesMaxPicks))
	}
	if mines < minesMinCount || mines > minesMaxCount {
		return apperr.Validation(fmt.Sprintf("mines must be between %d and %d", minesMinCount, minesMaxCount))
	}
	if picks > minesGridSize-mines {
		return apperr.Validation(fmt.Sprintf("picks must be at most %d with %d mines", minesGridSize-mines, mines))
	}
	return nil
}

func (c GameConfig) resolveCoinflip(o fairness.Outcome, call string) (models.OutcomeDetail, decimal.Decimal) {
	side := models.SideTails
	if o.Below(1, 2) {
		side = models.SideHeads
	}
	base := decimal.Zero
	if side == call {
		base = coinflipBase
	}
	return models.OutcomeDetail{Coinflip: &models.CoinflipDetail{Call: call, Side: side}}, base
}

func (c GameConfig) resolveSlots(o fairness.Outcome) (models.OutcomeDetail, decimal.Decimal) {
	digits := o.Digits(len(c.symbols), slotsReels)
	reels := make([]string, len(digits))
	for i, d := range digits {
		reels[i] = c.symbols[d]
	}

	base := decimal.Zero
	switch {
	case digits[0] == digits[1] && digits[1] == digits[2]:
		base = slotsTriple
	case digits[0] == digits[1] || digits[1] == digits[2] || digits[0] == digits[2]:
		base = slotsPair
	}
	return models.OutcomeDetail{Slots: &models.SlotsDetail{Reels: reels}}, base
}

func (c GameConfig) resolveBlinko(o fairness.Outcome) (models.OutcomeDetail, decimal.Decimal) {
	column := o.Bucket(len(c.blinko))
	return models.OutcomeDetail{Blinko: &models.BlinkoDetail{Column: column}}, c.blinko[column]
}

// minesBase returns the base multiplier for a cash-out after safeReveals
// safe tiles, or zero if the table has no entry.
func (c GameConfig) minesBase(safeReveals int) decimal.Decimal {
	return c.mines[safeReveals]
}

// resolve computes the game detail and base multiplier of a single-shot play.
func (c GameConfig) resolve(game models.GameType, o fairness.Outcome, params models.PlayParams) (models.OutcomeDetail, decimal.Decimal, error) {
	switch game {
	case models.GameTypeCoinFlip:
		call, err := normalizeCall(params.Call)
		if err != nil {
			return models.OutcomeDetail{}, decimal.Zero, err
		}
		detail, base := c.resolveCoinflip(o, call)
		return detail, base, nil
	case models.GameTypeSlots:
		detail, base := c.resolveSlots(o)
		return detail, base, nil
	case models.GameTypeBlinko:
		detail, base := c.resolveBlinko(o)
		return detail, base, nil
	}
	return models.OutcomeDetail{}, decimal.Zero, apperr.Validation(fmt.Sprintf("unknown game %q", game))
}
