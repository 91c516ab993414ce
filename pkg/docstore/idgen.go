package docstore

import (
	"crypto/rand"
	"encoding/hex"
)

// generateID returns a random 16-byte hex identifier, used to populate a
// document's key field on insert when the caller didn't supply one.
func generateID() string {
	var b [16]byte

	// crypto/rand.Read on the error paths documented by the stdlib only
	// fails if the OS entropy source is unavailable, which is not a
	// condition this package can recover from; panicking here matches how
	// callers already treat a broken entropy source as fatal.
	if _, err := rand.Read(b[:]); err != nil {
		panic("docstore: reading random bytes: " + err.Error())
	}

	return hex.EncodeToString(b[:])
}
