package services

import "time"

const (
	KeyAccount             = "account:%s"
	KeyAccountTransactions = "account:%s:transactions"
	KeyCommitment          = "commitment:%s"
	KeyTransaction         = "transaction:%s"
	KeyLeaderboard         = "leaderboard:wagered"
	KeyRateLimit           = "ratelimit:%s:%s"

	TTLTransaction = 30 * 24 * time.Hour // 30 days

	MaxStoredTransactions = 100
	maxTxRetries          = 50
)
