// Package fairness implements the commit-reveal randomness used to settle
// every play.
//
// An outcome is derived from the triple (server seed, client seed, nonce):
//
//	digest  = SHA-256("<server_seed>:<client_seed>:<nonce>")
//	k       = int(digest) mod 10^8
//	outcome = k / 10^8
//
// Anyone holding the revealed server seed can recompute the outcome. Games
// never draw a second random value; every discrete choice (coin side, reel
// symbols, Blinko column, mine placement) is a fixed integer function of k.
package fairness

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"strconv"
)

// OutcomeBase is the modulus applied to the digest.
const OutcomeBase = 100_000_000

const (
	serverSeedBytes = 32
	clientSeedBytes = 16
)

var outcomeModulus = big.NewInt(OutcomeBase)

// Outcome is the numerator k of a derived outcome k / OutcomeBase.
type Outcome uint64

// Float64 returns the outcome as a value in [0, 1).
func (o Outcome) Float64() float64 {
	return float64(o) / OutcomeBase
}

// Bucket returns floor(outcome * n) computed without floating point.
func (o Outcome) Bucket(n int) int {
	if n <= 0 {
		return 0
	}
	return int(uint64(o) * uint64(n) / OutcomeBase)
}

// Below reports outcome < num/den, exactly.
func (o Outcome) Below(num, den uint64) bool {
	return uint64(o)*den < num*OutcomeBase
}

// Digits splits the outcome into successive base-radix digits, least
// significant first.
func (o Outcome) Digits(radix, count int) []int {
	out := make([]int, count)
	k := uint64(o)
	for i := range out {
		out[i] = int(k % uint64(radix))
		k /= uint64(radix)
	}
	return out
}

// Message is the exact byte string that gets hashed.
func Message(serverSeed, clientSeed string, nonce int64) string {
	return serverSeed + ":" + clientSeed + ":" + strconv.FormatInt(nonce, 10)
}

// Digest returns the hex SHA-256 digest of the seed triple.
func Digest(serverSeed, clientSeed string, nonce int64) string {
	sum := sha256.Sum256([]byte(Message(serverSeed, clientSeed, nonce)))
	return hex.EncodeToString(sum[:])
}

// Derive turns a seed triple into an outcome. It is pure.
func Derive(serverSeed, clientSeed string, nonce int64) Outcome {
	sum := sha256.Sum256([]byte(Message(serverSeed, clientSeed, nonce)))
	n := new(big.Int).SetBytes(sum[:])
	n.Mod(n, outcomeModulus)
	return Outcome(n.Uint64())
}

// MinePositions places mines on a grid of the given size by drawing
// successive mixed-radix digits of the outcome, each one an index into the
// cells still free. The result is sorted.
func MinePositions(o Outcome, gridSize, mines int) []int {
	cells := make([]int, gridSize)
	for i := range cells {
		cells[i] = i
	}
	k := uint64(o)
	out := make([]int, 0, mines)
	for i := 0; i < mines && len(cells) > 0; i++ {
		n := uint64(len(cells))
		idx := k % n
		k /= n
		out = append(out, cells[idx])
		cells = append(cells[:idx], cells[idx+1:]...)
	}
	sort.Ints(out)
	return out
}

// HashServerSeed returns the public commitment for a server seed.
func HashServerSeed(serverSeed string) string {
	sum := sha256.Sum256([]byte(serverSeed))
	return hex.EncodeToString(sum[:])
}

// NewServerSeed returns 32 bytes from crypto/rand, hex encoded.
func NewServerSeed() (string, error) {
	return randomHex(serverSeedBytes)
}

// NewClientSeed returns 16 bytes from crypto/rand, hex encoded.
func NewClientSeed() (string, error) {
	return randomHex(clientSeedBytes)
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random seed: %w", err)
	}
	return hex.EncodeToString(b), nil
}
