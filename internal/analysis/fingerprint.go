// Package analysis holds the classifier contract: content fingerprints, the
// system instruction sent to the model, and validation of its replies.
package analysis

import (
	"crypto/sha256"
	"fmt"
)

// Fingerprint computes the SHA-256 hex digest of the exact bytes of code.
// No normalization is applied: any byte difference yields a different value.
func Fingerprint(code string) string {
	hash := sha256.Sum256([]byte(code))
	return fmt.Sprintf("%x", hash)
}
