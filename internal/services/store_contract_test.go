package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fairplay-backend/internal/apperr"
	"fairplay-backend/internal/models"
	"fairplay-backend/internal/services"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// testStoreContract runs the behaviour every Store backend must share.
func testStoreContract(t *testing.T, newStore func(t *testing.T) services.Store, prefix string) {
	ctx := context.Background()

	t.Run("EnsureAccount", func(t *testing.T) {
		store := newStore(t)
		id := prefix + "ensure"

		created, err := store.EnsureAccount(ctx, id, dec("1000"))
		if err != nil {
			t.Fatalf("ensure: %v", err)
		}
		if !created {
			t.Fatal("expected first ensure to create the account")
		}
		created, err = store.EnsureAccount(ctx, id, dec("5"))
		if err != nil {
			t.Fatalf("ensure again: %v", err)
		}
		if created {
			t.Fatal("expected second ensure to be a no-op")
		}

		acc, err := store.GetAccount(ctx, id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if !acc.Balance.Equal(dec("1000")) {
			t.Fatalf("balance = %s, want 1000", acc.Balance)
		}
		if acc.Nonce != 0 || acc.Wins != 0 || acc.Losses != 0 {
			t.Fatalf("fresh account has stats: %+v", acc)
		}
	})

	t.Run("GetMissingAccount", func(t *testing.T) {
		store := newStore(t)
		_, err := store.GetAccount(ctx, prefix+"nobody")
		if !errors.Is(err, apperr.ErrAccountNotFound) {
			t.Fatalf("err = %v, want account not found", err)
		}
	})

	t.Run("AdjustBalance", func(t *testing.T) {
		store := newStore(t)
		id := prefix + "adjust"
		mustEnsure(t, store, id, "100")

		acc, err := store.AdjustBalance(ctx, id, dec("25.5"), models.TransactionTypeDeposit, "deposit")
		if err != nil {
			t.Fatalf("deposit: %v", err)
		}
		if !acc.Balance.Equal(dec("125.5")) {
			t.Fatalf("balance = %s, want 125.5", acc.Balance)
		}

		_, err = store.AdjustBalance(ctx, id, dec("-200"), models.TransactionTypeWithdraw, "withdraw")
		if !errors.Is(err, apperr.ErrInsufficientFunds) {
			t.Fatalf("err = %v, want insufficient funds", err)
		}
		acc, _ = store.GetAccount(ctx, id)
		if !acc.Balance.Equal(dec("125.5")) {
			t.Fatalf("failed withdraw changed balance to %s", acc.Balance)
		}

		txs, err := store.Transactions(ctx, id, 10)
		if err != nil {
			t.Fatalf("transactions: %v", err)
		}
		if len(txs) != 1 {
			t.Fatalf("transactions = %d, want 1", len(txs))
		}
		if txs[0].Type != models.TransactionTypeDeposit ||
			!txs[0].BalanceBefore.Equal(dec("100")) || !txs[0].BalanceAfter.Equal(dec("125.5")) {
			t.Fatalf("unexpected transaction %+v", txs[0])
		}
	})

	t.Run("Settle", func(t *testing.T) {
		store := newStore(t)
		id := prefix + "settle"
		mustEnsure(t, store, id, "100")

		acc, err := store.Settle(ctx, id, models.Settlement{
			Game: models.GameTypeCoinFlip, Bet: dec("100"), NetProfit: dec("96"), Won: true, Nonce: 0,
		})
		if err != nil {
			t.Fatalf("settle: %v", err)
		}
		if !acc.Balance.Equal(dec("196")) || acc.Nonce != 1 || acc.Wins != 1 ||
			!acc.TotalWagered.Equal(dec("100")) || !acc.Profit.Equal(dec("96")) || !acc.Experience.Equal(dec("100")) {
			t.Fatalf("unexpected account after win: %+v", acc)
		}

		acc, err = store.Settle(ctx, id, models.Settlement{
			Game: models.GameTypeSlots, Bet: dec("50"), NetProfit: dec("-50"), Nonce: 1,
		})
		if err != nil {
			t.Fatalf("settle loss: %v", err)
		}
		if !acc.Balance.Equal(dec("146")) || acc.Nonce != 2 || acc.Losses != 1 || !acc.Profit.Equal(dec("46")) {
			t.Fatalf("unexpected account after loss: %+v", acc)
		}

		txs, err := store.Transactions(ctx, id, 10)
		if err != nil {
			t.Fatalf("transactions: %v", err)
		}
		if len(txs) != 2 {
			t.Fatalf("transactions = %d, want 2", len(txs))
		}
		if txs[0].Game != models.GameTypeSlots || txs[0].Nonce != 1 {
			t.Fatalf("newest transaction = %+v, want slots at nonce 1", txs[0])
		}
	})

	t.Run("SettleRejectsStaleNonce", func(t *testing.T) {
		store := newStore(t)
		id := prefix + "stale"
		mustEnsure(t, store, id, "100")

		_, err := store.Settle(ctx, id, models.Settlement{
			Game: models.GameTypeCoinFlip, Bet: dec("10"), NetProfit: dec("-10"), Nonce: 3,
		})
		if apperr.CodeOf(err) != apperr.CodeInternal {
			t.Fatalf("err = %v, want internal", err)
		}
		acc, _ := store.GetAccount(ctx, id)
		if acc.Nonce != 0 || !acc.Balance.Equal(dec("100")) {
			t.Fatalf("stale settlement mutated account: %+v", acc)
		}
	})

	t.Run("SettleRejectsOverdraft", func(t *testing.T) {
		store := newStore(t)
		id := prefix + "overdraft"
		mustEnsure(t, store, id, "10")

		_, err := store.Settle(ctx, id, models.Settlement{
			Game: models.GameTypeCoinFlip, Bet: dec("20"), NetProfit: dec("-20"), Nonce: 0,
		})
		if !errors.Is(err, apperr.ErrInsufficientFunds) {
			t.Fatalf("err = %v, want insufficient funds", err)
		}
	})

	t.Run("Transfer", func(t *testing.T) {
		store := newStore(t)
		from, to := prefix+"alice", prefix+"bob"
		mustEnsure(t, store, from, "100")
		mustEnsure(t, store, to, "0")

		sender, recipient, err := store.Transfer(ctx, from, to, dec("30"))
		if err != nil {
			t.Fatalf("transfer: %v", err)
		}
		if !sender.Balance.Equal(dec("70")) || !recipient.Balance.Equal(dec("30")) {
			t.Fatalf("balances = %s / %s", sender.Balance, recipient.Balance)
		}

		if _, _, err := store.Transfer(ctx, from, to, dec("71")); !errors.Is(err, apperr.ErrInsufficientFunds) {
			t.Fatalf("err = %v, want insufficient funds", err)
		}
		if _, _, err := store.Transfer(ctx, from, prefix+"ghost", dec("1")); !errors.Is(err, apperr.ErrAccountNotFound) {
			t.Fatalf("err = %v, want account not found", err)
		}
		acc, _ := store.GetAccount(ctx, from)
		if !acc.Balance.Equal(dec("70")) {
			t.Fatalf("failed transfers changed sender balance to %s", acc.Balance)
		}
	})

	t.Run("ClientSeed", func(t *testing.T) {
		store := newStore(t)
		id := prefix + "seed"
		mustEnsure(t, store, id, "0")

		if err := store.SetClientSeed(ctx, id, "lucky-seed"); err != nil {
			t.Fatalf("set seed: %v", err)
		}
		acc, _ := store.GetAccount(ctx, id)
		if acc.ClientSeed != "lucky-seed" {
			t.Fatalf("client seed = %q", acc.ClientSeed)
		}
	})

	t.Run("Leaderboard", func(t *testing.T) {
		store := newStore(t)
		for _, id := range []string{"c", "a", "b"} {
			mustEnsure(t, store, prefix+id, "1000")
		}
		settle := func(id string, bet string) {
			t.Helper()
			if _, err := store.Settle(ctx, prefix+id, models.Settlement{
				Game: models.GameTypeCoinFlip, Bet: dec(bet), NetProfit: dec(bet).Neg(), Nonce: 0,
			}); err != nil {
				t.Fatalf("settle %s: %v", id, err)
			}
		}
		settle("a", "50")
		settle("b", "50")
		settle("c", "200")

		board, err := store.Leaderboard(ctx, services.MaxLeaderboardLimit)
		if err != nil {
			t.Fatalf("leaderboard: %v", err)
		}
		var got []string
		lastRank := 0
		for _, e := range board {
			if e.Rank <= lastRank {
				t.Fatalf("ranks not increasing: %+v", board)
			}
			lastRank = e.Rank
			if strings.HasPrefix(e.AccountID, prefix) {
				got = append(got, e.AccountID)
			}
		}
		want := []string{prefix + "c", prefix + "a", prefix + "b"}
		if strings.Join(got, ",") != strings.Join(want, ",") {
			t.Fatalf("leaderboard order = %v, want %v", got, want)
		}
	})

	t.Run("Commitments", func(t *testing.T) {
		store := newStore(t)
		id := prefix + "commit"

		got, err := store.GetCommitment(ctx, id)
		if err != nil || got != nil {
			t.Fatalf("get before create = %v, %v", got, err)
		}

		first := models.Commitment{AccountID: id, ServerSeed: "seed-1", ServerSeedHash: "hash-1", CreatedAt: time.Now()}
		active, err := store.CreateCommitment(ctx, first)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if active.ServerSeed != "seed-1" {
			t.Fatalf("active seed = %q", active.ServerSeed)
		}

		second := models.Commitment{AccountID: id, ServerSeed: "seed-2", ServerSeedHash: "hash-2", CreatedAt: time.Now()}
		active, err = store.CreateCommitment(ctx, second)
		if err != nil {
			t.Fatalf("create again: %v", err)
		}
		if active.ServerSeed != "seed-1" {
			t.Fatalf("second create replaced the active seed with %q", active.ServerSeed)
		}

		removed, err := store.DeleteCommitment(ctx, id)
		if err != nil {
			t.Fatalf("delete: %v", err)
		}
		if removed == nil || removed.ServerSeed != "seed-1" {
			t.Fatalf("removed = %+v", removed)
		}
		removed, err = store.DeleteCommitment(ctx, id)
		if err != nil || removed != nil {
			t.Fatalf("second delete = %v, %v", removed, err)
		}
	})
}

func mustEnsure(t *testing.T, store services.Store, id, balance string) {
	t.Helper()
	if _, err := store.EnsureAccount(context.Background(), id, dec(balance)); err != nil {
		t.Fatalf("ensure %s: %v", id, err)
	}
}
