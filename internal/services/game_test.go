package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fairplay-backend/internal/apperr"
	"fairplay-backend/internal/fairness"
	"fairplay-backend/internal/models"
	"fairplay-backend/internal/services"
)

type testEnv struct {
	store       *services.SQLiteService
	ledger      *services.Ledger
	commitments *services.CommitmentManager
	locker      *services.AccountLocker
	engine      *services.GameEngine
}

func newTestEnv(t *testing.T, opts ...services.EngineOption) *testEnv {
	t.Helper()
	store := openTempStore(t)
	ledger := services.NewLedger(store, dec("1000"), nil)
	commitments := services.NewCommitmentManager(store, nil)
	locker := services.NewAccountLocker()
	engine := services.NewGameEngine(ledger, commitments, locker, services.DefaultGameConfig(), opts...)
	return &testEnv{store: store, ledger: ledger, commitments: commitments, locker: locker, engine: engine}
}

func (env *testEnv) account(t *testing.T, id string) *models.Account {
	t.Helper()
	acc, err := env.ledger.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get account %s: %v", id, err)
	}
	return acc
}

// minePositions reads the committed seed to learn where the mines of the
// active round are.
func (env *testEnv) minePositions(t *testing.T, state *models.RoundState) []int {
	t.Helper()
	c, err := env.store.GetCommitment(context.Background(), "player")
	if err != nil || c == nil {
		t.Fatalf("active commitment: %v %v", c, err)
	}
	o := fairness.Derive(c.ServerSeed, state.ClientSeed, state.Nonce)
	return fairness.MinePositions(o, state.GridSize, state.Mines)
}

func TestPlayCoinflip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	published, err := env.engine.GetVerificationData(ctx, "player")
	if err != nil {
		t.Fatalf("verification data: %v", err)
	}
	if published.ServerHash == "" || published.CurrentNonce != 0 {
		t.Fatalf("unexpected verification data %+v", published)
	}

	result, err := env.engine.Play(ctx, "player", models.GameTypeCoinFlip, dec("100"), models.PlayParams{Call: "heads"})
	if err != nil {
		t.Fatalf("play: %v", err)
	}

	if result.ServerSeedHash != published.ServerHash {
		t.Fatalf("play used hash %s, published %s", result.ServerSeedHash, published.ServerHash)
	}
	if fairness.HashServerSeed(result.ServerSeed) != result.ServerSeedHash {
		t.Fatal("revealed seed does not match the published hash")
	}
	if result.Nonce != 0 {
		t.Fatalf("result nonce = %d, want 0", result.Nonce)
	}

	wantNet := dec("-100")
	if result.Detail.Coinflip.Side == models.SideHeads {
		wantNet = dec("96")
	}
	if !result.NetProfit.Equal(wantNet) || result.Won != wantNet.IsPositive() {
		t.Fatalf("net = %s won = %v for side %s", result.NetProfit, result.Won, result.Detail.Coinflip.Side)
	}

	acc := env.account(t, "player")
	if !acc.Balance.Equal(dec("1000").Add(wantNet)) || !result.NewBalance.Equal(acc.Balance) {
		t.Fatalf("balance = %s, result says %s", acc.Balance, result.NewBalance)
	}
	if acc.Nonce != 1 || acc.Wins+acc.Losses != 1 || !acc.TotalWagered.Equal(dec("100")) {
		t.Fatalf("unexpected stats %+v", acc)
	}
	if acc.ClientSeed == "" || acc.ClientSeed != result.ClientSeed {
		t.Fatalf("client seed %q was not persisted", result.ClientSeed)
	}

	hash, err := env.commitments.ActiveHash(ctx, "player")
	if err != nil || hash != "" {
		t.Fatalf("seed still active after play: %q %v", hash, err)
	}

	verified, err := env.engine.Verify(models.VerifyRequest{
		ServerSeed: result.ServerSeed,
		ClientSeed: result.ClientSeed,
		Nonce:      result.Nonce,
		Game:       models.GameTypeCoinFlip,
		Call:       "heads",
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if verified.Outcome != result.Outcome || verified.Detail.Coinflip.Side != result.Detail.Coinflip.Side {
		t.Fatalf("verify = %+v, play = %+v", verified, result)
	}
}

func TestPlayUsesFreshSeedEachTime(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		result, err := env.engine.Play(ctx, "player", models.GameTypeSlots, dec("1"), models.PlayParams{})
		if err != nil {
			t.Fatalf("play %d: %v", i, err)
		}
		if result.Nonce != int64(i) {
			t.Fatalf("play %d used nonce %d", i, result.Nonce)
		}
		if seen[result.ServerSeed] {
			t.Fatalf("server seed reused on play %d", i)
		}
		seen[result.ServerSeed] = true
	}
	if acc := env.account(t, "player"); acc.Nonce != 5 {
		t.Fatalf("nonce = %d, want 5", acc.Nonce)
	}
}

func TestPlayRejectsInvalidRequests(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		game   models.GameType
		bet    string
		params models.PlayParams
		code   apperr.Code
	}{
		{"zero bet", models.GameTypeSlots, "0", models.PlayParams{}, apperr.CodeValidation},
		{"negative bet", models.GameTypeBlinko, "-5", models.PlayParams{}, apperr.CodeValidation},
		{"unknown game", models.GameType("roulette"), "1", models.PlayParams{}, apperr.CodeValidation},
		{"mines through play", models.GameTypeMines, "1", models.PlayParams{}, apperr.CodeValidation},
		{"bad call", models.GameTypeCoinFlip, "1", models.PlayParams{Call: "edge"}, apperr.CodeValidation},
		{"over balance", models.GameTypeSlots, "1000.01", models.PlayParams{}, apperr.CodeInsufficientFunds},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.engine.Play(ctx, "player", tc.game, dec(tc.bet), tc.params)
			if apperr.CodeOf(err) != tc.code {
				t.Fatalf("err = %v, want code %s", err, tc.code)
			}
		})
	}

	acc := env.account(t, "player")
	if !acc.Balance.Equal(dec("1000")) || acc.Nonce != 0 {
		t.Fatalf("rejected plays changed the account: %+v", acc)
	}
}

func TestConcurrentPlaysSettleExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const plays = 25

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		net     = decimal.Zero
		nonces  = map[int64]bool{}
		failure error
	)
	for i := 0; i < plays; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := env.engine.Play(ctx, "player", models.GameTypeBlinko, dec("2"), models.PlayParams{})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failure = err
				return
			}
			net = net.Add(result.NetProfit)
			nonces[result.Nonce] = true
		}()
	}
	wg.Wait()

	if failure != nil {
		t.Fatalf("play failed: %v", failure)
	}
	if len(nonces) != plays {
		t.Fatalf("distinct nonces = %d, want %d", len(nonces), plays)
	}
	acc := env.account(t, "player")
	if acc.Nonce != plays || acc.Wins+acc.Losses != plays {
		t.Fatalf("nonce %d, plays recorded %d", acc.Nonce, acc.Wins+acc.Losses)
	}
	if !acc.Balance.Equal(dec("1000").Add(net)) {
		t.Fatalf("balance = %s, want %s", acc.Balance, dec("1000").Add(net))
	}
	if !acc.TotalWagered.Equal(dec("50")) {
		t.Fatalf("total wagered = %s, want 50", acc.TotalWagered)
	}
}

func TestMinesCashOut(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	state, err := env.engine.StartMines(ctx, "player", dec("100"), 3, 2)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if state.Outcome != models.RoundInProgress || len(state.MinePositions) != 0 {
		t.Fatalf("new round leaks or is wrong: %+v", state)
	}
	if !env.ledger.Held("player").Equal(dec("100")) {
		t.Fatalf("held = %s, want 100", env.ledger.Held("player"))
	}

	mines := env.minePositions(t, state)
	isMine := map[int]bool{}
	for _, m := range mines {
		isMine[m] = true
	}

	var last *models.MinesRevealResponse
	revealed := 0
	for tile := 0; tile < 9 && revealed < 3; tile++ {
		if isMine[tile] {
			continue
		}
		last, err = env.engine.RevealTile(ctx, "player", tile)
		if err != nil {
			t.Fatalf("reveal %d: %v", tile, err)
		}
		revealed++
		if revealed < 3 && (last.Step.Terminal || last.Result != nil) {
			t.Fatalf("round ended early after %d reveals", revealed)
		}
	}

	if last.Step.Outcome != models.RoundCashedOut || last.Result == nil {
		t.Fatalf("final step = %+v", last.Step)
	}
	if !last.Result.NetProfit.Equal(dec("84")) || !last.Result.Won {
		t.Fatalf("net = %s, want 84", last.Result.NetProfit)
	}
	if len(last.Round.MinePositions) != 2 {
		t.Fatalf("terminal state should show mines, got %v", last.Round.MinePositions)
	}

	acc := env.account(t, "player")
	if !acc.Balance.Equal(dec("1084")) || acc.Nonce != 1 {
		t.Fatalf("account after cash out: %+v", acc)
	}
	if !env.ledger.Held("player").IsZero() {
		t.Fatalf("hold not released: %s", env.ledger.Held("player"))
	}
	if env.engine.HasActiveRound("player") {
		t.Fatal("round still active after cash out")
	}
	if fairness.HashServerSeed(last.Result.ServerSeed) != state.ServerSeedHash {
		t.Fatal("revealed seed does not match the hash shown at start")
	}
}

func TestMinesHitMine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	state, err := env.engine.StartMines(ctx, "player", dec("100"), 5, 3)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	mines := env.minePositions(t, state)

	resp, err := env.engine.RevealTile(ctx, "player", mines[0])
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if !resp.Step.Mine || resp.Step.Outcome != models.RoundLost || resp.Result == nil {
		t.Fatalf("step = %+v", resp.Step)
	}
	if !resp.Result.NetProfit.Equal(dec("-100")) || resp.Result.Won {
		t.Fatalf("net = %s won = %v", resp.Result.NetProfit, resp.Result.Won)
	}
	if acc := env.account(t, "player"); !acc.Balance.Equal(dec("900")) || acc.Losses != 1 {
		t.Fatalf("account after loss: %+v", acc)
	}

	if _, err := env.engine.RevealTile(ctx, "player", mines[0]); !errors.Is(err, apperr.ErrNoActiveRound) {
		t.Fatalf("reveal after loss: %v", err)
	}
}

func TestMinesRevealErrorsLeaveRoundUntouched(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.engine.RevealTile(ctx, "player", 0); !errors.Is(err, apperr.ErrNoActiveRound) {
		t.Fatalf("reveal without round: %v", err)
	}

	state, err := env.engine.StartMines(ctx, "player", dec("10"), 4, 1)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	mines := env.minePositions(t, state)
	safe := (mines[0] + 1) % 9

	if _, err := env.engine.RevealTile(ctx, "player", safe); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if _, err := env.engine.RevealTile(ctx, "player", safe); !errors.Is(err, apperr.ErrInvalidRoundAction) {
		t.Fatalf("repeat reveal: %v", err)
	}
	if _, err := env.engine.RevealTile(ctx, "player", 9); apperr.CodeOf(err) != apperr.CodeValidation {
		t.Fatalf("off-grid reveal: %v", err)
	}

	current, err := env.engine.GetRound(ctx, "player")
	if err != nil {
		t.Fatalf("get round: %v", err)
	}
	if current.SafeReveals != 1 || len(current.Revealed) != 1 || current.Outcome != models.RoundInProgress {
		t.Fatalf("round changed by rejected reveals: %+v", current)
	}
}

func TestMinesBlocksOtherActions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.engine.StartMines(ctx, "player", dec("10"), 3, 2); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := env.engine.StartMines(ctx, "player", dec("10"), 3, 2); !errors.Is(err, apperr.ErrInvalidRoundAction) {
		t.Fatalf("second start: %v", err)
	}
	if _, err := env.engine.Play(ctx, "player", models.GameTypeSlots, dec("1"), models.PlayParams{}); !errors.Is(err, apperr.ErrInvalidRoundAction) {
		t.Fatalf("play during round: %v", err)
	}
	if _, err := env.engine.RotateServerSeed(ctx, "player"); !errors.Is(err, apperr.ErrInvalidRoundAction) {
		t.Fatalf("rotate during round: %v", err)
	}
	if _, err := env.engine.RevealServerSeed(ctx, "player"); !errors.Is(err, apperr.ErrInvalidRoundAction) {
		t.Fatalf("reveal seed during round: %v", err)
	}
}

func TestMinesStartValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		bet          string
		picks, mines int
		code         apperr.Code
	}{
		{"0", 3, 2, apperr.CodeValidation},
		{"10", 0, 2, apperr.CodeValidation},
		{"10", 3, 5, apperr.CodeValidation},
		{"10", 8, 2, apperr.CodeValidation},
		{"5000", 3, 2, apperr.CodeInsufficientFunds},
	}
	for _, tc := range cases {
		_, err := env.engine.StartMines(ctx, "player", dec(tc.bet), tc.picks, tc.mines)
		if apperr.CodeOf(err) != tc.code {
			t.Fatalf("bet=%s picks=%d mines=%d: err = %v, want %s", tc.bet, tc.picks, tc.mines, err, tc.code)
		}
	}
	if env.engine.HasActiveRound("player") {
		t.Fatal("rejected start left a round behind")
	}
}

func TestAbandonRoundIsANoOpOnTheLedger(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	state, err := env.engine.StartMines(ctx, "player", dec("100"), 3, 2)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	abandoned, err := env.engine.AbandonRound(ctx, "player")
	if err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if fairness.HashServerSeed(abandoned.RevealedSeed) != state.ServerSeedHash {
		t.Fatal("abandon did not reveal the round's seed")
	}
	if len(abandoned.Round.MinePositions) != 2 {
		t.Fatalf("abandoned round should show its mines, got %v", abandoned.Round.MinePositions)
	}

	acc := env.account(t, "player")
	if !acc.Balance.Equal(dec("1000")) || acc.Nonce != 0 || acc.Wins+acc.Losses != 0 {
		t.Fatalf("abandon touched the ledger: %+v", acc)
	}
	if !env.ledger.Held("player").IsZero() {
		t.Fatal("hold not released")
	}
	if _, err := env.engine.AbandonRound(ctx, "player"); !errors.Is(err, apperr.ErrNoActiveRound) {
		t.Fatalf("second abandon: %v", err)
	}

	next, err := env.engine.Play(ctx, "player", models.GameTypeSlots, dec("1"), models.PlayParams{})
	if err != nil {
		t.Fatalf("play after abandon: %v", err)
	}
	if next.ServerSeed == abandoned.RevealedSeed {
		t.Fatal("retired seed was reused")
	}
}

func TestCleanupStaleGames(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.engine.StartMines(ctx, "player", dec("10"), 3, 2); err != nil {
		t.Fatalf("start: %v", err)
	}
	if n := env.engine.CleanupStaleGames(ctx, time.Hour); n != 0 {
		t.Fatalf("cleaned %d fresh rounds", n)
	}
	if n := env.engine.CleanupStaleGames(ctx, -time.Second); n != 1 {
		t.Fatalf("cleaned %d rounds, want 1", n)
	}
	if env.engine.HasActiveRound("player") {
		t.Fatal("stale round still active")
	}
}

func TestRotateServerSeed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.engine.RotateServerSeed(ctx, "player")
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if first.RevealedSeed != "" || first.NewHash == "" {
		t.Fatalf("first rotate = %+v", first)
	}

	second, err := env.engine.RotateServerSeed(ctx, "player")
	if err != nil {
		t.Fatalf("rotate again: %v", err)
	}
	if fairness.HashServerSeed(second.RevealedSeed) != first.NewHash {
		t.Fatal("rotate did not reveal the previously committed seed")
	}
	if second.NewHash == first.NewHash {
		t.Fatal("rotate kept the same commitment")
	}

	seed, err := env.engine.RevealServerSeed(ctx, "player")
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if fairness.HashServerSeed(seed) != second.NewHash {
		t.Fatal("reveal returned the wrong seed")
	}
	if seed, err = env.engine.RevealServerSeed(ctx, "player"); err != nil || seed != "" {
		t.Fatalf("second reveal = %q, %v", seed, err)
	}
}

func TestClientSeedRequiredWithoutAutoSeed(t *testing.T) {
	env := newTestEnv(t, services.WithAutoClientSeed(false))
	ctx := context.Background()

	_, err := env.engine.Play(ctx, "player", models.GameTypeSlots, dec("1"), models.PlayParams{})
	if apperr.CodeOf(err) != apperr.CodeValidation {
		t.Fatalf("err = %v, want validation", err)
	}

	if err := env.engine.SetClientSeed(ctx, "player", "abc"); apperr.CodeOf(err) != apperr.CodeValidation {
		t.Fatalf("short seed: %v", err)
	}
	if err := env.engine.SetClientSeed(ctx, "player", "my-lucky-seed"); err != nil {
		t.Fatalf("set seed: %v", err)
	}
	result, err := env.engine.Play(ctx, "player", models.GameTypeSlots, dec("1"), models.PlayParams{})
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if result.ClientSeed != "my-lucky-seed" {
		t.Fatalf("client seed = %q", result.ClientSeed)
	}
}

func TestVerifyMines(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.engine.Verify(models.VerifyRequest{
		ServerSeed: "server", ClientSeed: "client", Nonce: 7, Game: models.GameTypeMines, Mines: 3,
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	want := fairness.MinePositions(fairness.Derive("server", "client", 7), 9, 3)
	for i := range want {
		if res.Detail.Mines.MinePositions[i] != want[i] {
			t.Fatalf("positions = %v, want %v", res.Detail.Mines.MinePositions, want)
		}
	}
	if res.Digest != fairness.Digest("server", "client", 7) {
		t.Fatal("digest mismatch")
	}

	if _, err := env.engine.Verify(models.VerifyRequest{
		ServerSeed: "server", ClientSeed: "client", Game: models.GameTypeMines, Mines: 0,
	}); apperr.CodeOf(err) != apperr.CodeValidation {
		t.Fatalf("mines=0: %v", err)
	}
}

// flakySettleStore fails the next `failures` settlements.
type flakySettleStore struct {
	services.Store
	failures int
}

func (s *flakySettleStore) Settle(ctx context.Context, id string, settlement models.Settlement) (*models.Account, error) {
	if s.failures > 0 {
		s.failures--
		return nil, errors.New("transient store error")
	}
	return s.Store.Settle(ctx, id, settlement)
}

func TestMinesSettlementFailureKeepsRound(t *testing.T) {
	store := openTempStore(t)
	flaky := &flakySettleStore{Store: store, failures: 1}
	ledger := services.NewLedger(flaky, dec("1000"), nil)
	commitments := services.NewCommitmentManager(store, nil)
	locker := services.NewAccountLocker()
	env := &testEnv{
		store:       store,
		ledger:      ledger,
		commitments: commitments,
		locker:      locker,
		engine:      services.NewGameEngine(ledger, commitments, locker, services.DefaultGameConfig()),
	}
	ctx := context.Background()

	state, err := env.engine.StartMines(ctx, "player", dec("100"), 1, 2)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	isMine := map[int]bool{}
	for _, m := range env.minePositions(t, state) {
		isMine[m] = true
	}
	safe := 0
	for isMine[safe] {
		safe++
	}

	if _, err := env.engine.RevealTile(ctx, "player", safe); err == nil {
		t.Fatal("expected the settlement error")
	}

	// The round is still registered, so the layout cannot be replayed.
	if !env.engine.HasActiveRound("player") {
		t.Fatal("round dropped after failed settlement")
	}
	if _, err := env.engine.StartMines(ctx, "player", dec("100"), 1, 2); apperr.CodeOf(err) != apperr.CodeInvalidRoundAction {
		t.Fatalf("second start: %v", err)
	}
	if acc := env.account(t, "player"); !acc.Balance.Equal(dec("1000")) || acc.Nonce != 0 {
		t.Fatalf("ledger changed by failed settlement: %+v", acc)
	}

	// Any tile retries the pending settlement.
	resp, err := env.engine.RevealTile(ctx, "player", safe)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if resp.Result == nil || resp.Step.Outcome != models.RoundCashedOut || resp.Step.Tile != safe {
		t.Fatalf("retry response = %+v", resp)
	}
	if fairness.HashServerSeed(resp.Result.ServerSeed) != state.ServerSeedHash {
		t.Fatal("revealed seed does not match the hash shown at start")
	}

	acc := env.account(t, "player")
	if acc.Nonce != 1 || !acc.Balance.Equal(dec("1000").Add(resp.Result.NetProfit)) {
		t.Fatalf("account after retry: %+v", acc)
	}
	if env.engine.HasActiveRound("player") || !env.ledger.Held("player").IsZero() {
		t.Fatal("round not finished after retry")
	}

	next, err := env.engine.StartMines(ctx, "player", dec("100"), 1, 2)
	if err != nil {
		t.Fatalf("next start: %v", err)
	}
	if next.ServerSeedHash == state.ServerSeedHash || next.Nonce != 1 {
		t.Fatalf("next round reuses the old seed: %+v", next)
	}
}

func TestAbandonAfterFailedSettlementRetiresSeed(t *testing.T) {
	store := openTempStore(t)
	flaky := &flakySettleStore{Store: store, failures: 1}
	ledger := services.NewLedger(flaky, dec("1000"), nil)
	commitments := services.NewCommitmentManager(store, nil)
	locker := services.NewAccountLocker()
	engine := services.NewGameEngine(ledger, commitments, locker, services.DefaultGameConfig())
	ctx := context.Background()

	state, err := engine.StartMines(ctx, "player", dec("100"), 1, 2)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	c, err := store.GetCommitment(ctx, "player")
	if err != nil || c == nil {
		t.Fatalf("commitment: %v %v", c, err)
	}
	mines := fairness.MinePositions(fairness.Derive(c.ServerSeed, state.ClientSeed, state.Nonce), state.GridSize, state.Mines)
	if _, err := engine.RevealTile(ctx, "player", mines[0]); err == nil {
		t.Fatal("expected the settlement error")
	}

	abandoned, err := engine.AbandonRound(ctx, "player")
	if err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if abandoned.RevealedSeed != c.ServerSeed {
		t.Fatalf("revealed %q, want the round's seed", abandoned.RevealedSeed)
	}
	if c, _ := store.GetCommitment(ctx, "player"); c != nil {
		t.Fatal("seed still active after abandon")
	}
	if !ledger.Held("player").IsZero() {
		t.Fatalf("hold not released: %s", ledger.Held("player"))
	}
}
