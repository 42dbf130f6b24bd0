package realtime

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateOTP produces a cryptographically random 12-character shared
// secret for gating a domain channel, the same construction the teacher
// used to protect a document (9 random bytes, URL-safe base64, no padding).
func GenerateOTP() string {
	b := make([]byte, 9)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
