package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"fairplay-backend/internal/apperr"
	"fairplay-backend/internal/config"
	"fairplay-backend/internal/models"
)

// RedisService keeps accounts and commitments as JSON documents. Account
// updates run as WATCH/MULTI transactions and retry on conflict.
type RedisService struct {
	client *redis.Client
}

func NewRedisService(cfg *config.Config) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisService{client: client}, nil
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

var ensureAccountScript = redis.NewScript(`
	if redis.call("SETNX", KEYS[1], ARGV[1]) == 1 then
		redis.call("ZADD", KEYS[2], "NX", 0, ARGV[2])
		return 1
	end
	return 0
`)

func (s *RedisService) EnsureAccount(ctx context.Context, id string, startingBalance decimal.Decimal) (bool, error) {
	data, err := json.Marshal(models.NewAccount(id, startingBalance, time.Now()))
	if err != nil {
		return false, fmt.Errorf("failed to marshal account: %w", err)
	}

	created, err := ensureAccountScript.Run(ctx, s.client,
		[]string{fmt.Sprintf(KeyAccount, id), KeyLeaderboard}, data, id).Int()
	if err != nil {
		return false, fmt.Errorf("failed to ensure account: %w", err)
	}
	return created == 1, nil
}

func (s *RedisService) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	return readAccount(ctx, s.client, fmt.Sprintf(KeyAccount, id))
}

func readAccount(ctx context.Context, c redis.Cmdable, key string) (*models.Account, error) {
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperr.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	var acc models.Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	return &acc, nil
}

func (s *RedisService) AdjustBalance(ctx context.Context, id string, delta decimal.Decimal, kind models.TransactionType, description string) (*models.Account, error) {
	accs, err := s.updateAccounts(ctx, []string{id}, func(accs []*models.Account) ([]*models.Transaction, error) {
		if err := applyDelta(accs[0], delta); err != nil {
			return nil, err
		}
		return []*models.Transaction{newTransaction(accs[0], kind, delta, description, time.Now())}, nil
	})
	if err != nil {
		return nil, err
	}
	return accs[0], nil
}

func (s *RedisService) Settle(ctx context.Context, id string, settlement models.Settlement) (*models.Account, error) {
	accs, err := s.updateAccounts(ctx, []string{id}, func(accs []*models.Account) ([]*models.Transaction, error) {
		if err := applySettlement(accs[0], settlement); err != nil {
			return nil, err
		}
		return []*models.Transaction{settlementTransaction(accs[0], settlement, time.Now())}, nil
	})
	if err != nil {
		return nil, err
	}
	return accs[0], nil
}

func (s *RedisService) Transfer(ctx context.Context, from, to string, amount decimal.Decimal) (*models.Account, *models.Account, error) {
	if from == to {
		return nil, nil, apperr.Validation("cannot transfer to the same account")
	}
	accs, err := s.updateAccounts(ctx, []string{from, to}, func(accs []*models.Account) ([]*models.Transaction, error) {
		if err := applyDelta(accs[0], amount.Neg()); err != nil {
			return nil, err
		}
		if err := applyDelta(accs[1], amount); err != nil {
			return nil, err
		}
		now := time.Now()
		return []*models.Transaction{
			newTransaction(accs[0], models.TransactionTypeTipSent, amount.Neg(), "tip to "+to, now),
			newTransaction(accs[1], models.TransactionTypeTipReceived, amount, "tip from "+from, now),
		}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return accs[0], accs[1], nil
}

func (s *RedisService) SetClientSeed(ctx context.Context, id, seed string) error {
	_, err := s.updateAccounts(ctx, []string{id}, func(accs []*models.Account) ([]*models.Transaction, error) {
		accs[0].ClientSeed = seed
		return nil, nil
	})
	return err
}

// updateAccounts loads the accounts under WATCH, lets fn mutate them and
// writes them back together with fn's transaction records in one MULTI.
func (s *RedisService) updateAccounts(ctx context.Context, ids []string, fn func(accs []*models.Account) ([]*models.Transaction, error)) ([]*models.Account, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = fmt.Sprintf(KeyAccount, id)
	}

	var result []*models.Account
	txf := func(tx *redis.Tx) error {
		accs := make([]*models.Account, len(keys))
		for i, key := range keys {
			acc, err := readAccount(ctx, tx, key)
			if err != nil {
				return err
			}
			accs[i] = acc
		}

		records, err := fn(accs)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, acc := range accs {
				data, err := json.Marshal(acc)
				if err != nil {
					return fmt.Errorf("failed to marshal account: %w", err)
				}
				pipe.Set(ctx, keys[i], data, 0)
				pipe.ZAdd(ctx, KeyLeaderboard, redis.Z{
					Score:  acc.TotalWagered.InexactFloat64(),
					Member: acc.ID,
				})
			}
			for _, record := range records {
				if err := queueTransaction(ctx, pipe, record); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		result = accs
		return nil
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, keys...)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("failed to update accounts %v: too many concurrent writers", ids)
}

func queueTransaction(ctx context.Context, pipe redis.Pipeliner, tx *models.Transaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}

	pipe.Set(ctx, fmt.Sprintf(KeyTransaction, tx.ID), data, TTLTransaction)

	accountTxKey := fmt.Sprintf(KeyAccountTransactions, tx.AccountID)
	pipe.ZAdd(ctx, accountTxKey, redis.Z{
		Score:  float64(tx.CreatedAt.UnixNano()),
		Member: tx.ID,
	})
	// Keep only the most recent transactions
	pipe.ZRemRangeByRank(ctx, accountTxKey, 0, -(MaxStoredTransactions + 1))
	return nil
}

func (s *RedisService) Transactions(ctx context.Context, id string, limit int) ([]*models.Transaction, error) {
	limit = clampLimit(limit, DefaultTransactionsLimit, MaxTransactionsLimit)

	txIDs, err := s.client.ZRevRange(ctx, fmt.Sprintf(KeyAccountTransactions, id), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction ids: %w", err)
	}
	if len(txIDs) == 0 {
		return []*models.Transaction{}, nil
	}

	keys := make([]string, len(txIDs))
	for i, txID := range txIDs {
		keys[i] = fmt.Sprintf(KeyTransaction, txID)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}

	transactions := make([]*models.Transaction, 0, len(values))
	for _, v := range values {
		data, ok := v.(string)
		if !ok {
			continue
		}
		var tx models.Transaction
		if err := json.Unmarshal([]byte(data), &tx); err != nil {
			continue
		}
		transactions = append(transactions, &tx)
	}
	return transactions, nil
}

func (s *RedisService) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	limit = clampLimit(limit, DefaultLeaderboardLimit, MaxLeaderboardLimit)

	top, err := s.client.ZRevRangeWithScores(ctx, KeyLeaderboard, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}
	if len(top) == 0 {
		return []models.LeaderboardEntry{}, nil
	}
	if len(top) == limit {
		// Pull in everyone tied with last place so the id tie-break is exact.
		cutoff := strconv.FormatFloat(top[len(top)-1].Score, 'f', -1, 64)
		top, err = s.client.ZRevRangeByScoreWithScores(ctx, KeyLeaderboard, &redis.ZRangeBy{
			Max: "+inf",
			Min: cutoff,
		}).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read leaderboard ties: %w", err)
		}
	}

	keys := make([]string, len(top))
	for i, z := range top {
		keys[i] = fmt.Sprintf(KeyAccount, z.Member)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard accounts: %w", err)
	}

	accounts := make([]*models.Account, 0, len(values))
	for _, v := range values {
		data, ok := v.(string)
		if !ok {
			continue
		}
		var acc models.Account
		if err := json.Unmarshal([]byte(data), &acc); err != nil {
			continue
		}
		accounts = append(accounts, &acc)
	}
	return rankAccounts(accounts, limit), nil
}

// rankAccounts orders by total wagered descending, then account id.
func rankAccounts(accounts []*models.Account, limit int) []models.LeaderboardEntry {
	sort.Slice(accounts, func(i, j int) bool {
		if c := accounts[i].TotalWagered.Cmp(accounts[j].TotalWagered); c != 0 {
			return c > 0
		}
		return accounts[i].ID < accounts[j].ID
	})
	if len(accounts) > limit {
		accounts = accounts[:limit]
	}

	entries := make([]models.LeaderboardEntry, len(accounts))
	for i, acc := range accounts {
		entries[i] = models.LeaderboardEntry{
			Rank:         i + 1,
			AccountID:    acc.ID,
			TotalWagered: acc.TotalWagered,
			Profit:       acc.Profit,
		}
	}
	return entries
}

func (s *RedisService) CreateCommitment(ctx context.Context, c models.Commitment) (*models.Commitment, error) {
	key := fmt.Sprintf(KeyCommitment, c.AccountID)

	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal commitment: %w", err)
	}

	for i := 0; i < maxTxRetries; i++ {
		created, err := s.client.SetNX(ctx, key, data, 0).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to store commitment: %w", err)
		}
		if created {
			return &c, nil
		}
		existing, err := s.GetCommitment(ctx, c.AccountID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}
	return nil, fmt.Errorf("failed to store commitment for %s: key keeps changing", c.AccountID)
}

func (s *RedisService) GetCommitment(ctx context.Context, accountID string) (*models.Commitment, error) {
	data, err := s.client.Get(ctx, fmt.Sprintf(KeyCommitment, accountID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get commitment: %w", err)
	}
	return decodeCommitment(data)
}

var revealCommitmentScript = redis.NewScript(`
	local data = redis.call("GET", KEYS[1])
	if not data then
		return false
	end
	redis.call("DEL", KEYS[1])
	return data
`)

func (s *RedisService) DeleteCommitment(ctx context.Context, accountID string) (*models.Commitment, error) {
	data, err := revealCommitmentScript.Run(ctx, s.client, []string{fmt.Sprintf(KeyCommitment, accountID)}).Text()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete commitment: %w", err)
	}
	return decodeCommitment([]byte(data))
}

func decodeCommitment(data []byte) (*models.Commitment, error) {
	var c models.Commitment
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal commitment: %w", err)
	}
	return &c, nil
}

func (s *RedisService) CheckRateLimit(ctx context.Context, accountID, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, accountID, action)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	if count == 1 {
		s.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

var _ Store = (*RedisService)(nil)
var _ RateLimiter = (*RedisService)(nil)
