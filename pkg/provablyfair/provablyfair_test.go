package provablyfair

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashSeed_KnownVector(t *testing.T) {
	t.Parallel()

	got := HashSeed("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", got)
}

func TestDraw_DeterministicAndInRange(t *testing.T) {
	t.Parallel()

	seed := "3f2a9c0d5e7b1a4c6d8e0f1a2b3c4d5e6f708192a3b4c5d6e7f8091a2b3c4d5e"

	for nonce := int64(0); nonce < 2000; nonce++ {
		a := Draw(seed, DefaultClientSeed, nonce)
		b := Draw(seed, DefaultClientSeed, nonce)

		require.Equal(t, a, b, "draw must be reproducible (nonce=%d)", nonce)
		require.GreaterOrEqual(t, a, 0.0)
		require.Less(t, a, 1.0)
	}
}

func TestDraw_InputsChangeOutput(t *testing.T) {
	t.Parallel()

	base := Draw("seed-a", "client", 1)

	assert.NotEqual(t, base, Draw("seed-b", "client", 1))
	assert.NotEqual(t, base, Draw("seed-a", "client-2", 1))
	assert.NotEqual(t, base, Draw("seed-a", "client", 2))
}

func TestNewServerSeed(t *testing.T) {
	t.Parallel()

	a, err := NewServerSeed()
	require.NoError(t, err)

	b, err := NewServerSeed()
	require.NoError(t, err)

	raw, err := hex.DecodeString(a)
	require.NoError(t, err)
	assert.Len(t, raw, SeedBytes)
	assert.NotEqual(t, a, b)
}

func TestVerify(t *testing.T) {
	t.Parallel()

	c, err := NewCommitment()
	require.NoError(t, err)

	assert.True(t, Verify(c.ServerSeed, c.Hash))
	assert.False(t, Verify(c.ServerSeed+"0", c.Hash))
	assert.False(t, Verify("", HashSeed("")))
}
