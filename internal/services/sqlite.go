package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"fairplay-backend/internal/apperr"
	"fairplay-backend/internal/models"
	"fairplay-backend/internal/services/migrations"
)

// SQLiteService persists accounts, commitments and the transaction log in a
// single SQLite file. Every mutation runs in one transaction.
type SQLiteService struct {
	db *sql.DB
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// OpenSQLite opens the database at path and applies the embedded migrations.
func OpenSQLite(path string) (*SQLiteService, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer at a time; SQLite would otherwise answer SQLITE_BUSY on
	// lock upgrades under concurrent settlements.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrations.Apply(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLiteService{db: db}, nil
}

func (s *SQLiteService) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteService) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteService) EnsureAccount(ctx context.Context, id string, startingBalance decimal.Decimal) (bool, error) {
	acc := models.NewAccount(id, startingBalance, time.Now())
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO accounts (id, balance, total_wagered, profit, experience, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		acc.ID, acc.Balance, acc.TotalWagered, acc.Profit, acc.Experience, toMillis(acc.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert account: %w", err)
	}
	return n == 1, nil
}

func (s *SQLiteService) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	return loadAccount(ctx, s.db, id)
}

func loadAccount(ctx context.Context, q rowQuerier, id string) (*models.Account, error) {
	var (
		acc        models.Account
		clientSeed sql.NullString
		createdAt  int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, balance, total_wagered, profit, experience, wins, losses, nonce, client_seed, created_at
		 FROM accounts WHERE id = ?`, id,
	).Scan(&acc.ID, &acc.Balance, &acc.TotalWagered, &acc.Profit, &acc.Experience,
		&acc.Wins, &acc.Losses, &acc.Nonce, &clientSeed, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	acc.ClientSeed = clientSeed.String
	acc.CreatedAt = fromMillis(createdAt)
	return &acc, nil
}

func saveAccount(ctx context.Context, tx *sql.Tx, acc *models.Account) error {
	var clientSeed sql.NullString
	if acc.ClientSeed != "" {
		clientSeed = sql.NullString{String: acc.ClientSeed, Valid: true}
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE accounts
		 SET balance = ?, total_wagered = ?, profit = ?, experience = ?, wins = ?, losses = ?, nonce = ?, client_seed = ?
		 WHERE id = ?`,
		acc.Balance, acc.TotalWagered, acc.Profit, acc.Experience, acc.Wins, acc.Losses, acc.Nonce, clientSeed, acc.ID,
	)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, rec *models.Transaction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (id, account_id, type, amount, balance_before, balance_after, game, nonce, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.AccountID, string(rec.Type), rec.Amount, rec.BalanceBefore, rec.BalanceAfter,
		string(rec.Game), rec.Nonce, rec.Description, toMillis(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *SQLiteService) AdjustBalance(ctx context.Context, id string, delta decimal.Decimal, kind models.TransactionType, description string) (*models.Account, error) {
	var acc *models.Account
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if acc, err = loadAccount(ctx, tx, id); err != nil {
			return err
		}
		if err := applyDelta(acc, delta); err != nil {
			return err
		}
		if err := saveAccount(ctx, tx, acc); err != nil {
			return err
		}
		return insertTransaction(ctx, tx, newTransaction(acc, kind, delta, description, time.Now()))
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *SQLiteService) Settle(ctx context.Context, id string, settlement models.Settlement) (*models.Account, error) {
	var acc *models.Account
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if acc, err = loadAccount(ctx, tx, id); err != nil {
			return err
		}
		if err := applySettlement(acc, settlement); err != nil {
			return err
		}
		if err := saveAccount(ctx, tx, acc); err != nil {
			return err
		}
		return insertTransaction(ctx, tx, settlementTransaction(acc, settlement, time.Now()))
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *SQLiteService) Transfer(ctx context.Context, from, to string, amount decimal.Decimal) (*models.Account, *models.Account, error) {
	if from == to {
		return nil, nil, apperr.Validation("cannot transfer to the same account")
	}
	var sender, recipient *models.Account
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if sender, err = loadAccount(ctx, tx, from); err != nil {
			return err
		}
		if recipient, err = loadAccount(ctx, tx, to); err != nil {
			return err
		}
		if err := applyDelta(sender, amount.Neg()); err != nil {
			return err
		}
		if err := applyDelta(recipient, amount); err != nil {
			return err
		}
		now := time.Now()
		for _, step := range []struct {
			acc   *models.Account
			kind  models.TransactionType
			delta decimal.Decimal
			desc  string
		}{
			{sender, models.TransactionTypeTipSent, amount.Neg(), "tip to " + to},
			{recipient, models.TransactionTypeTipReceived, amount, "tip from " + from},
		} {
			if err := saveAccount(ctx, tx, step.acc); err != nil {
				return err
			}
			if err := insertTransaction(ctx, tx, newTransaction(step.acc, step.kind, step.delta, step.desc, now)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return sender, recipient, nil
}

func (s *SQLiteService) SetClientSeed(ctx context.Context, id, seed string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET client_seed = ? WHERE id = ?`, seed, id)
	if err != nil {
		return fmt.Errorf("set client seed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set client seed: %w", err)
	}
	if n == 0 {
		return apperr.ErrAccountNotFound
	}
	return nil
}

func (s *SQLiteService) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	limit = clampLimit(limit, DefaultLeaderboardLimit, MaxLeaderboardLimit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, total_wagered, profit FROM accounts
		 ORDER BY CAST(total_wagered AS REAL) DESC, id ASC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	entries := make([]models.LeaderboardEntry, 0, limit)
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.AccountID, &e.TotalWagered, &e.Profit); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard: %w", err)
	}
	return entries, nil
}

func (s *SQLiteService) Transactions(ctx context.Context, id string, limit int) ([]*models.Transaction, error) {
	limit = clampLimit(limit, DefaultTransactionsLimit, MaxTransactionsLimit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, type, amount, balance_before, balance_after, game, nonce, description, created_at
		 FROM transactions WHERE account_id = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Transaction, 0)
	for rows.Next() {
		var (
			rec       models.Transaction
			kind      string
			game      string
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.AccountID, &kind, &rec.Amount, &rec.BalanceBefore, &rec.BalanceAfter,
			&game, &rec.Nonce, &rec.Description, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		rec.Type = models.TransactionType(kind)
		rec.Game = models.GameType(game)
		rec.CreatedAt = fromMillis(createdAt)
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (s *SQLiteService) CreateCommitment(ctx context.Context, c models.Commitment) (*models.Commitment, error) {
	var active *models.Commitment
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO commitments (account_id, server_seed, server_seed_hash, created_at)
			 VALUES (?, ?, ?, ?)`,
			c.AccountID, c.ServerSeed, c.ServerSeedHash, toMillis(c.CreatedAt),
		); err != nil {
			return fmt.Errorf("insert commitment: %w", err)
		}
		var err error
		active, err = loadCommitment(ctx, tx, c.AccountID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return active, nil
}

func (s *SQLiteService) GetCommitment(ctx context.Context, accountID string) (*models.Commitment, error) {
	return loadCommitment(ctx, s.db, accountID)
}

func (s *SQLiteService) DeleteCommitment(ctx context.Context, accountID string) (*models.Commitment, error) {
	var removed *models.Commitment
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if removed, err = loadCommitment(ctx, tx, accountID); err != nil || removed == nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM commitments WHERE account_id = ?`, accountID); err != nil {
			return fmt.Errorf("delete commitment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func loadCommitment(ctx context.Context, q rowQuerier, accountID string) (*models.Commitment, error) {
	var (
		c         models.Commitment
		createdAt int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT account_id, server_seed, server_seed_hash, created_at FROM commitments WHERE account_id = ?`,
		accountID,
	).Scan(&c.AccountID, &c.ServerSeed, &c.ServerSeedHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get commitment: %w", err)
	}
	c.CreatedAt = fromMillis(createdAt)
	return &c, nil
}

var _ Store = (*SQLiteService)(nil)
