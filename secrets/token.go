package secrets

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"math/big"
)

const (
	apiKeyBytes    = 32
	apiSecretBytes = 64

	backupCodeMin = 10_000_000
	backupCodeMax = 99_999_999
)

// APIKeyPair is a generated key/secret credential. The two halves are
// independently random; neither is derivable from the other. Pairs are
// never regenerated in place, only replaced wholesale.
type APIKeyPair struct {
	Key    string
	Secret string
}

// Token returns byteLength cryptographically secure random bytes rendered
// as lowercase hex.
func Token(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", errors.New("token length must be positive")
	}
	raw := make([]byte, byteLength)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

// NewAPIKeyPair generates a fresh key (32 random bytes) and secret
// (64 random bytes).
func NewAPIKeyPair() (APIKeyPair, error) {
	key, err := Token(apiKeyBytes)
	if err != nil {
		return APIKeyPair{}, err
	}
	secret, err := Token(apiSecretBytes)
	if err != nil {
		return APIKeyPair{}, err
	}
	return APIKeyPair{Key: key, Secret: secret}, nil
}

// BackupCodes draws count independent 8-digit codes uniformly from
// [10000000, 99999999]. The range is wide enough that batch collisions
// are negligible; no dedup pass is made.
func BackupCodes(count int) ([]string, error) {
	if count <= 0 {
		return nil, errors.New("backup code count must be positive")
	}

	span := big.NewInt(backupCodeMax - backupCodeMin + 1)
	codes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		n, err := rand.Int(rand.Reader, span)
		if err != nil {
			return nil, err
		}
		codes = append(codes, big.NewInt(0).Add(n, big.NewInt(backupCodeMin)).String())
	}
	return codes, nil
}
