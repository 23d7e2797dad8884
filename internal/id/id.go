package id

import (
	"crypto/rand"

	"github.com/google/uuid"
)

const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// AttemptID creates an identifier for a locally recorded quiz attempt,
// e.g. "qa_3k9x0c2mzt1p".
func AttemptID() string {
	return "qa_" + randomString(12)
}

// RequestID returns a value for the X-Request-ID header so a backend log line
// can be matched to the client call that produced it.
func RequestID() string {
	return uuid.NewString()
}

func randomString(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	for i := range b {
		b[i] = alphabet[b[i]%byte(len(alphabet))]
	}
	return string(b)
}
