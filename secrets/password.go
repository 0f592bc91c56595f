package secrets

import (
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt cost factor used when the caller does not
// configure one. It matches the dashboard's historical 10-round policy.
const DefaultCost = bcrypt.DefaultCost

const minPasswordLength = 8

// Strength policy violations, reported in deterministic order:
// length, uppercase, lowercase, digit, special.
var (
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordNoUpper  = errors.New("password must contain an uppercase letter")
	ErrPasswordNoLower  = errors.New("password must contain a lowercase letter")
	ErrPasswordNoDigit  = errors.New("password must contain a digit")
	ErrPasswordNoSymbol = errors.New("password must contain a special character")
)

// Hasher wraps bcrypt with a fixed cost factor.
//
// Hasher instances are intended to be configured during initialization and
// then treated as immutable.
type Hasher struct {
	cost int
}

// NewHasher validates the cost factor and returns a ready Hasher.
func NewHasher(cost int) (*Hasher, error) {
	if cost == 0 {
		cost = DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Hasher{cost: cost}, nil
}

// Cost reports the configured cost factor.
func (h *Hasher) Cost() int { return h.cost }

// Hash produces a salted bcrypt hash of the plaintext.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("empty password")
	}
	raw, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Verify reports whether plaintext matches the stored hash. The comparison
// does not leak where the mismatch occurred.
func (h *Hasher) Verify(password, encodedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password)) == nil
}

// NeedsUpgrade reports whether the stored hash was produced with a lower
// cost than currently configured.
func (h *Hasher) NeedsUpgrade(encodedHash string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(encodedHash))
	if err != nil {
		return false, err
	}
	return cost < h.cost, nil
}

// ValidateStrength checks the password policy and returns the first
// violated rule, in the order length, uppercase, lowercase, digit,
// special character. A nil return means the password is acceptable.
func ValidateStrength(password string) error {
	if len(password) < minPasswordLength {
		return ErrPasswordTooShort
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}

	switch {
	case !hasUpper:
		return ErrPasswordNoUpper
	case !hasLower:
		return ErrPasswordNoLower
	case !hasDigit:
		return ErrPasswordNoDigit
	case !hasSymbol:
		return ErrPasswordNoSymbol
	}
	return nil
}
