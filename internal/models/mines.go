package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"fairplay-backend/internal/apperr"
)

type RoundOutcome string

const (
	RoundInProgress RoundOutcome = "in_progress"
	RoundLost       RoundOutcome = "lost"
	RoundCashedOut  RoundOutcome = "cashed_out"
)

// MinesRound is the state of one Mines game. Mines are placed when the round
// is created and never move. Once the round is terminal, Reveal rejects every
// call and the round no longer changes.
type MinesRound struct {
	ID        string
	AccountID string
	Bet       decimal.Decimal
	GridSize  int
	Picks     int

	ServerSeedHash string
	ClientSeed     string
	Nonce          int64

	SafeReveals int
	Outcome     RoundOutcome
	StartedAt   time.Time

	mines    map[int]struct{}
	revealed map[int]struct{}
}

// RevealStep is the result of one accepted tile reveal.
type RevealStep struct {
	Tile     int          `json:"tile"`
	Mine     bool         `json:"mine"`
	Outcome  RoundOutcome `json:"outcome"`
	Terminal bool         `json:"terminal"`
}

// RoundState is the view of a round that can be shown while it runs. Mine
// positions appear only once the round is over.
type RoundState struct {
	ID             string          `json:"id"`
	Bet            decimal.Decimal `json:"bet"`
	GridSize       int             `json:"grid_size"`
	Mines          int             `json:"mines"`
	Picks          int             `json:"picks"`
	SafeReveals    int             `json:"safe_reveals"`
	Revealed       []int           `json:"revealed"`
	Outcome        RoundOutcome    `json:"outcome"`
	ServerSeedHash string          `json:"server_seed_hash"`
	ClientSeed     string          `json:"client_seed"`
	Nonce          int64           `json:"nonce"`
	MinePositions  []int           `json:"mine_positions,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
}

func NewMinesRound(id, accountID string, bet decimal.Decimal, gridSize, picks int, minePositions []int) (*MinesRound, error) {
	if gridSize <= 0 {
		return nil, apperr.Validation("grid size must be positive")
	}
	if len(minePositions) == 0 || len(minePositions) >= gridSize {
		return nil, apperr.Validation(fmt.Sprintf("mine count must be between 1 and %d", gridSize-1))
	}
	if picks < 1 || picks > gridSize-len(minePositions) {
		return nil, apperr.Validation(fmt.Sprintf("picks must be between 1 and %d", gridSize-len(minePositions)))
	}

	mines := make(map[int]struct{}, len(minePositions))
	for _, p := range minePositions {
		if p < 0 || p >= gridSize {
			return nil, apperr.Validation(fmt.Sprintf("mine position %d is off the grid", p))
		}
		mines[p] = struct{}{}
	}
	if len(mines) != len(minePositions) {
		return nil, apperr.Validation("mine positions must be distinct")
	}

	return &MinesRound{
		ID:        id,
		AccountID: accountID,
		Bet:       bet,
		GridSize:  gridSize,
		Picks:     picks,
		Outcome:   RoundInProgress,
		StartedAt: time.Now().UTC(),
		mines:     mines,
		revealed:  make(map[int]struct{}),
	}, nil
}

func (r *MinesRound) Terminal() bool {
	return r.Outcome != RoundInProgress
}

// Reveal applies one tile click.
func (r *MinesRound) Reveal(tile int) (RevealStep, error) {
	if r.Terminal() {
		return RevealStep{}, apperr.New(apperr.CodeInvalidRoundAction, "round already ended")
	}
	if tile < 0 || tile >= r.GridSize {
		return RevealStep{}, apperr.Validation(fmt.Sprintf("tile must be between 0 and %d", r.GridSize-1))
	}
	if _, done := r.revealed[tile]; done {
		return RevealStep{}, apperr.New(apperr.CodeInvalidRoundAction, fmt.Sprintf("tile %d already revealed", tile))
	}

	r.revealed[tile] = struct{}{}
	if _, hit := r.mines[tile]; hit {
		r.Outcome = RoundLost
		return RevealStep{Tile: tile, Mine: true, Outcome: r.Outcome, Terminal: true}, nil
	}

	r.SafeReveals++
	if r.SafeReveals >= r.Picks {
		r.Outcome = RoundCashedOut
	}
	return RevealStep{Tile: tile, Outcome: r.Outcome, Terminal: r.Terminal()}, nil
}

// MinePositions returns the sorted mine cells.
func (r *MinesRound) MinePositions() []int {
	return sortedKeys(r.mines)
}

// Revealed returns the sorted revealed cells.
func (r *MinesRound) Revealed() []int {
	return sortedKeys(r.revealed)
}

func (r *MinesRound) State() *RoundState {
	state := &RoundState{
		ID:             r.ID,
		Bet:            r.Bet,
		GridSize:       r.GridSize,
		Mines:          len(r.mines),
		Picks:          r.Picks,
		SafeReveals:    r.SafeReveals,
		Revealed:       r.Revealed(),
		Outcome:        r.Outcome,
		ServerSeedHash: r.ServerSeedHash,
		ClientSeed:     r.ClientSeed,
		Nonce:          r.Nonce,
		StartedAt:      r.StartedAt,
	}
	if r.Terminal() {
		state.MinePositions = r.MinePositions()
	}
	return state
}

func sortedKeys(m map[int]struct{}) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
