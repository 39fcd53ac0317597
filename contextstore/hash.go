package contextstore

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/teamflow-ai/teamflow/types"
)

// Hash version prefix, so the digest algorithm can change without breaking
// verification of stored versions.
const hashV1Prefix = "v1:"

// ContentHash produces a versioned SHA-256 hex digest of a document's
// canonical form. Canonical form sorts keys and folds numeric
// representations, so two documents with equal content but different
// insertion order hash the same.
func ContentHash(content *types.Document) string {
	sum := sha256.Sum256([]byte(content.Canonical()))
	return hashV1Prefix + hex.EncodeToString(sum[:])
}

// VerifyContentHash checks a stored hash against the recomputed one.
func VerifyContentHash(stored string, content *types.Document) bool {
	return stored == ContentHash(content)
}
