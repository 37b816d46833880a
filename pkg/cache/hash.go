package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// hashKey returns "prefix:<sha256>" over parts joined by NUL bytes, so
// ("ab", "c") and ("a", "bc") never collide.
func hashKey(prefix string, parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return prefix + ":" + hex.EncodeToString(sum[:])
}

// Hash returns the 16-character hex xxhash of data. It names cache files,
// not keys: keys are already collision-resistant.
func Hash(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}
