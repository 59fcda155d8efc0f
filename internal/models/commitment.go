package models

import "time"

// Commitment binds the house to a server seed before any play uses it. Only
// the hash is ever shown while the commitment is active.
type Commitment struct {
	AccountID      string    `json:"account_id"`
	ServerSeed     string    `json:"server_seed"`
	ServerSeedHash string    `json:"server_seed_hash"`
	CreatedAt      time.Time `json:"created_at"`
}
