package replication

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateReplID returns a fresh 40-hex-character replication ID, fixed
// for the lifetime of a leader process the way Redis's run_id works.
func GenerateReplID() string {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
