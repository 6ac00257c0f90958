package utils

import (
	"crypto/rand"
	"fmt"
)

// codeCharset excludes nothing: the validator accepts the full A-Z0-9
// range, and lookalike filtering happens at print time, not issue time.
const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateTicketCode returns a fresh GIGG-XXXX-XXXX code. Uniqueness is
// enforced by the store's unique index; callers retry on conflict.
func GenerateTicketCode() (string, error) {
	body := make([]byte, 8)

	if _, err := rand.Read(body); err != nil {
		return "", err
	}

	for i := range body {
		body[i] = codeCharset[int(body[i])%len(codeCharset)]
	}

	return fmt.Sprintf("GIGG-%s-%s", body[:4], body[4:]), nil
}
