package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrBadOverridePIN is returned when the supplied PIN does not match the
// configured hash.
var ErrBadOverridePIN = errors.New("invalid override pin")

// OverrideGuard gates the privileged check-in operations (manual_override
// and reset) behind a second factor: a bcrypt-hashed PIN shared with gate
// supervisors. Regular scanning never needs it.
type OverrideGuard struct {
	pinHash string
}

func NewOverrideGuard(pinHash string) *OverrideGuard {
	return &OverrideGuard{pinHash: pinHash}
}

// Enabled reports whether a PIN is configured at all. With no hash set,
// override endpoints refuse every request instead of allowing every one.
func (g *OverrideGuard) Enabled() bool { return g.pinHash != "" }

// Verify checks a PIN against the configured hash.
func (g *OverrideGuard) Verify(pin string) error {
	if !g.Enabled() {
		return ErrBadOverridePIN
	}
	if err := bcrypt.CompareHashAndPassword([]byte(g.pinHash), []byte(pin)); err != nil {
		return ErrBadOverridePIN
	}
	return nil
}

// HashPIN produces a hash suitable for the OVERRIDE_PIN_HASH setting.
func HashPIN(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
