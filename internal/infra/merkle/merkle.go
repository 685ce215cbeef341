// Package merkle computes the binary hash tree roots that anchor a batch
// of breadcrumb hashes into a single epoch commitment.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrEmptyTree is returned when a root is requested over zero leaves.
var ErrEmptyTree = errors.New("merkle: empty tree")

// RootHex folds a list of lowercase hex leaf hashes into a single root.
// Pairs are combined left to right; an unpaired node at the end of a
// level is combined with itself. Leaf order is significant.
func RootHex(leaves []string) (string, error) {
	if len(leaves) == 0 {
		return "", ErrEmptyTree
	}

	level := make([]string, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		next := make([]string, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, combine(level[i], level[i+1]))
			} else {
				next = append(next, combine(level[i], level[i]))
			}
		}
		level = next
	}
	return level[0], nil
}

func combine(a, b string) string {
	sum := sha256.Sum256([]byte(a + b))
	return hex.EncodeToString(sum[:])
}
