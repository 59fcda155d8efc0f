package models

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fairplay-backend/internal/apperr"
)

const (
	MinClientSeedLength = 4
	MaxClientSeedLength = 64
)

func GenerateRoundID() string {
	return "round_" + uuid.NewString()
}

func GenerateTransactionID() string {
	return "tx_" + uuid.NewString()
}

func ValidateAccountID(id string) error {
	if strings.TrimSpace(id) == "" {
		return apperr.Validation("account id is required")
	}
	return nil
}

func ValidateClientSeed(seed string) error {
	n := utf8.RuneCountInString(seed)
	if n < MinClientSeedLength {
		return apperr.Validation(fmt.Sprintf("client seed must be at least %d characters", MinClientSeedLength))
	}
	if n > MaxClientSeedLength {
		return apperr.Validation(fmt.Sprintf("client seed must be at most %d characters", MaxClientSeedLength))
	}
	return nil
}

// ValidateAmount rejects zero and negative amounts.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperr.Validation("amount must be positive")
	}
	return nil
}

func FormatPoints(amount decimal.Decimal) string {
	return amount.StringFixed(2) + " pts"
}
