// Package merkle commits an ordered list of receipts to a single root.
//
// Leaves are sha256("<alg>:<hash_value>"). Interior nodes are
// sha256(left || right) over raw digest bytes. A level with an odd number of
// nodes pairs its last node with itself, including a lone leaf, so the root
// is always at least one fold above the leaves.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrNoLeaves is returned when a root or proof is requested for an empty set.
var ErrNoLeaves = errors.New("merkle: cannot build root from zero leaves")

// Digest is a sha256 node hash.
type Digest [sha256.Size]byte

// String returns the lowercase hex encoding.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// ParseDigest decodes a 64 character hex string.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	b, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("merkle: decode digest: %w", err)
	}
	if len(b) != sha256.Size {
		return d, fmt.Errorf("merkle: digest must be %d bytes, got %d", sha256.Size, len(b))
	}
	copy(d[:], b)
	return d, nil
}

// Leaf hashes a receipt's algorithm and hex value into a leaf.
func Leaf(hashAlgorithm, hashValue string) Digest {
	return sha256.Sum256([]byte(hashAlgorithm + ":" + hashValue))
}

func hashPair(left, right Digest) Digest {
	var buf [2 * sha256.Size]byte
	copy(buf[:sha256.Size], left[:])
	copy(buf[sha256.Size:], right[:])
	return sha256.Sum256(buf[:])
}

// nextLevel folds one level into its parents.
func nextLevel(level []Digest) []Digest {
	next := make([]Digest, 0, (len(level)+1)/2)
	for i := 0; i < len(level); i += 2 {
		left := level[i]
		right := left
		if i+1 < len(level) {
			right = level[i+1]
		}
		next = append(next, hashPair(left, right))
	}
	return next
}

// Root computes the Merkle root of leaves in order.
func Root(leaves []Digest) (Digest, error) {
	if len(leaves) == 0 {
		return Digest{}, ErrNoLeaves
	}
	level := nextLevel(leaves)
	for len(level) > 1 {
		level = nextLevel(level)
	}
	return level[0], nil
}

// Proof returns the sibling path from leaves[index] up to the root. A node
// without a right neighbour has itself as sibling.
func Proof(leaves []Digest, index int) ([]Digest, error) {
	if len(leaves) == 0 {
		return nil, ErrNoLeaves
	}
	if index < 0 || index >= len(leaves) {
		return nil, fmt.Errorf("merkle: leaf index %d out of range [0,%d)", index, len(leaves))
	}

	var path []Digest
	level := leaves
	idx := index
	for {
		sibling := idx ^ 1
		if sibling >= len(level) {
			sibling = idx
		}
		path = append(path, level[sibling])
		level = nextLevel(level)
		idx /= 2
		if len(level) == 1 {
			return path, nil
		}
	}
}

// VerifyProof recomputes the root from a leaf, its position and its sibling
// path, and reports whether it matches root.
func VerifyProof(leaf Digest, index int, path []Digest, root Digest) bool {
	if index < 0 || len(path) == 0 {
		return false
	}
	node := leaf
	idx := index
	for _, sibling := range path {
		if idx%2 == 0 {
			node = hashPair(node, sibling)
		} else {
			node = hashPair(sibling, node)
		}
		idx /= 2
	}
	return idx == 0 && node == root
}
