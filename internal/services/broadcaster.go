package services

import "fairplay-backend/internal/models"

// Broadcaster pushes account events to connected clients.
type Broadcaster interface {
	BroadcastPlayResult(accountID string, result *models.PlayResult)
	BroadcastRoundUpdate(accountID string, round *models.RoundState)
	BroadcastBalance(accountID string, account *models.Account)
}

type nopBroadcaster struct{}

func (nopBroadcaster) BroadcastPlayResult(string, *models.PlayResult)  {}
func (nopBroadcaster) BroadcastRoundUpdate(string, *models.RoundState) {}
func (nopBroadcaster) BroadcastBalance(string, *models.Account)        {}
