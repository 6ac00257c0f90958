package services

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalidFormat is returned for raw input that cannot be canonicalized
// into a ticket code. It is evaluated client-side, before any round trip.
var ErrInvalidFormat = errors.New("invalid ticket code format")

const codePrefix = "GIGG"

var codePattern = regexp.MustCompile(`^GIGG-[A-Z0-9]{4}-[A-Z0-9]{4}$`)

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]`)

// NormalizeCode canonicalizes raw keyboard or QR input into the
// GIGG-XXXX-XXXX form. It is pure and deterministic: the same raw input
// always yields the same code. Normalizing an already-canonical code is a
// no-op.
func NormalizeCode(raw string) (string, error) {
	s := strings.ToUpper(nonAlnum.ReplaceAllString(raw, ""))

	// A pasted or rescanned canonical code starts with the GIGG prefix
	// followed by the 8-char body. Drop the prefix only when enough
	// characters remain for a full body, so a body that happens to start
	// with "GIGG" is left alone.
	if strings.HasPrefix(s, codePrefix) && len(s) >= len(codePrefix)+8 {
		s = s[len(codePrefix):]
	}

	if len(s) < 8 {
		return "", ErrInvalidFormat
	}
	body := s[:8]

	return fmt.Sprintf("%s-%s-%s", codePrefix, body[:4], body[4:]), nil
}

// ValidateCode checks a canonical code against the ticket code grammar.
func ValidateCode(code string) error {
	if !codePattern.MatchString(code) {
		return ErrInvalidFormat
	}
	return nil
}

// ExtractScannedCode pulls the code out of a QR payload. Printed QR codes
// carry a full URL with the code as the path segment after /t/, e.g.
// https://gigg.example/t/GIGG-AB12-CD34. Plain payloads pass through
// unchanged.
func ExtractScannedCode(payload string) string {
	trimmed := strings.TrimSpace(payload)
	if !strings.Contains(trimmed, "/") {
		return trimmed
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return trimmed
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segments {
		if seg == "t" && i+1 < len(segments) {
			return segments[i+1]
		}
	}
	if len(segments) > 0 && segments[len(segments)-1] != "" {
		return segments[len(segments)-1]
	}
	return trimmed
}
