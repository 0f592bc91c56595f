package authcore

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/meridianpay/authcore/secrets"
)

// BackupCodeStore is an optional account-store capability. Implementing
// it enables [Engine.GenerateBackupCodes]; replacement is wholesale, the
// old set is gone the moment the new one lands.
type BackupCodeStore interface {
	ReplaceBackupCodes(ctx context.Context, accountID string, hashes [][32]byte) error
}

// IssueAPIKeyPair mints a key/secret credential pair for programmatic
// access. The pair is returned once and never persisted by the engine;
// storing (a hash of) the secret is the caller's responsibility.
func (e *Engine) IssueAPIKeyPair(ctx context.Context, accountID string) (APIKeyPair, error) {
	if e == nil {
		return APIKeyPair{}, ErrEngineNotReady
	}

	account, err := e.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return APIKeyPair{}, ErrAccountNotFound
		}
		return APIKeyPair{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if account.Status != AccountVerified {
		return APIKeyPair{}, ErrAccountUnverified
	}

	pair, err := secrets.NewAPIKeyPair()
	if err != nil {
		return APIKeyPair{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.emit(AuditEvent{
		EventType: "credentials.api_key_issued",
		AccountID: accountID,
		Success:   true,
	})
	return pair, nil
}

// GenerateBackupCodes replaces the account's recovery codes with a fresh
// set and returns the plaintexts exactly once. Only SHA-256 hashes reach
// the store. The account store must implement [BackupCodeStore].
func (e *Engine) GenerateBackupCodes(ctx context.Context, accountID string) ([]string, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	store, ok := e.accounts.(BackupCodeStore)
	if !ok {
		return nil, fmt.Errorf("%w: account store does not support backup codes", ErrEngineNotReady)
	}

	account, err := e.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if account.Status != AccountVerified {
		return nil, ErrAccountUnverified
	}

	codes, err := secrets.BackupCodes(e.config.Backup.Count)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	hashes := make([][32]byte, len(codes))
	for i, code := range codes {
		hashes[i] = sha256.Sum256([]byte(code))
	}
	if err := store.ReplaceBackupCodes(ctx, accountID, hashes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.emit(AuditEvent{
		EventType: "credentials.backup_codes_rotated",
		AccountID: accountID,
		Success:   true,
	})
	return codes, nil
}
