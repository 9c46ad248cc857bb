package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pair(a, b Digest) Digest {
	return sha256.Sum256(append(append([]byte{}, a[:]...), b[:]...))
}

func leaves(n int) []Digest {
	out := make([]Digest, n)
	for i := range out {
		h := sha256.Sum256([]byte{byte(i)})
		out[i] = Leaf("sha256", hex.EncodeToString(h[:]))
	}
	return out
}

func TestLeaf(t *testing.T) {
	value := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	want := sha256.Sum256([]byte("sha256:" + value))
	assert.Equal(t, Digest(want), Leaf("sha256", value))
	assert.NotEqual(t, Leaf("sha256", value), Leaf("sha512", value))
}

func TestRoot_Empty(t *testing.T) {
	_, err := Root(nil)
	assert.ErrorIs(t, err, ErrNoLeaves)
}

func TestRoot_SingleLeafPairsWithItself(t *testing.T) {
	l := leaves(1)
	root, err := Root(l)
	require.NoError(t, err)
	assert.Equal(t, pair(l[0], l[0]), root)

	path, err := Proof(l, 0)
	require.NoError(t, err)
	assert.Equal(t, []Digest{l[0]}, path)
}

func TestRoot_TwoLeaves(t *testing.T) {
	l := leaves(2)
	root, err := Root(l)
	require.NoError(t, err)
	assert.Equal(t, pair(l[0], l[1]), root)
}

func TestRoot_OddLevelDuplicatesLast(t *testing.T) {
	l := leaves(3)
	root, err := Root(l)
	require.NoError(t, err)

	want := pair(pair(l[0], l[1]), pair(l[2], l[2]))
	assert.Equal(t, want, root)
}

func TestRoot_DeterministicAndOrderSensitive(t *testing.T) {
	l := leaves(5)
	a, err := Root(l)
	require.NoError(t, err)
	b, err := Root(l)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	swapped := append([]Digest(nil), l...)
	swapped[0], swapped[1] = swapped[1], swapped[0]
	c, err := Root(swapped)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestRoot_DoesNotMutateInput(t *testing.T) {
	l := leaves(4)
	orig := append([]Digest(nil), l...)
	_, err := Root(l)
	require.NoError(t, err)
	assert.Equal(t, orig, l)
}

func TestProof_VerifiesForEveryLeaf(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 5, 7, 8, 13} {
		l := leaves(n)
		root, err := Root(l)
		require.NoError(t, err)

		for i := range l {
			path, err := Proof(l, i)
			require.NoError(t, err)
			assert.True(t, VerifyProof(l[i], i, path, root), "n=%d index=%d", n, i)
		}
	}
}

func TestProof_RejectsWrongLeafOrIndex(t *testing.T) {
	l := leaves(5)
	root, err := Root(l)
	require.NoError(t, err)

	path, err := Proof(l, 2)
	require.NoError(t, err)

	assert.False(t, VerifyProof(l[3], 2, path, root))
	assert.False(t, VerifyProof(l[2], 3, path, root))
	assert.False(t, VerifyProof(l[2], -1, path, root))
}

func TestProof_OutOfRange(t *testing.T) {
	_, err := Proof(leaves(3), 3)
	assert.Error(t, err)

	_, err = Proof(nil, 0)
	assert.ErrorIs(t, err, ErrNoLeaves)
}

func TestParseDigest(t *testing.T) {
	l := leaves(1)[0]
	d, err := ParseDigest(l.String())
	require.NoError(t, err)
	assert.Equal(t, l, d)

	_, err = ParseDigest("abcd")
	assert.Error(t, err)

	_, err = ParseDigest("zz")
	assert.Error(t, err)
}
