// Package provablyfair implements the commit-reveal primitives used to
// resolve game rounds.
//
// The operator commits to a secret server seed by publishing HashSeed(seed)
// before any bet is accepted. Once the round is resolved the seed is revealed
// and anyone can recompute both the commitment and the draw:
//
//	HashSeed(seed) == commitment
//	Draw(seed, clientSeed, nonce) == draw used by the round
package provablyfair

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
)

// SeedBytes is the amount of entropy behind every server seed.
const SeedBytes = 32

// DefaultClientSeed is the public client seed mixed into every draw unless
// the deployment overrides it.
const DefaultClientSeed = "POINTS_ARENA_V1"

var ErrEmptySeed = errors.New("empty server seed")

// Draw derives a value uniformly distributed in [0, 1) from the server seed,
// the public client seed and the round nonce.
//
// The HMAC-SHA256 digest of "clientSeed:nonce" keyed by serverSeed is read as
// a big-endian uint64; its top 53 bits are divided by 2^53 so the result is
// exactly representable as a float64 and never reaches 1.
func Draw(serverSeed, clientSeed string, nonce int64) float64 {
	mac := hmac.New(sha256.New, []byte(serverSeed))
	_, _ = mac.Write([]byte(clientSeed + ":" + strconv.FormatInt(nonce, 10)))
	sum := mac.Sum(nil)

	v := binary.BigEndian.Uint64(sum[:8])

	return float64(v>>11) / (1 << 53)
}

// NewServerSeed returns a fresh hex-encoded seed read from crypto/rand.
func NewServerSeed() (string, error) {
	var b [SeedBytes]byte

	_, err := rand.Read(b[:])
	if err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}

	return hex.EncodeToString(b[:]), nil
}

// HashSeed returns the public commitment for a seed: SHA-256, hex encoded.
func HashSeed(serverSeed string) string {
	sum := sha256.Sum256([]byte(serverSeed))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether serverSeed matches the published commitment.
func Verify(serverSeed, commitment string) bool {
	if serverSeed == "" {
		return false
	}

	got := HashSeed(serverSeed)

	return subtle.ConstantTimeCompare([]byte(got), []byte(commitment)) == 1
}

// Commitment is a freshly generated seed together with its public hash.
type Commitment struct {
	ServerSeed string
	Hash       string
}

// NewCommitment generates a seed and its hash in one step.
func NewCommitment() (Commitment, error) {
	seed, err := NewServerSeed()
	if err != nil {
		return Commitment{}, err
	}

	if seed == "" {
		return Commitment{}, ErrEmptySeed
	}

	return Commitment{ServerSeed: seed, Hash: HashSeed(seed)}, nil
}
