package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const revokedPrefix = "revoked/"

// Revocations - отозванные refresh-токены. Запись живёт до истечения самого токена.
type Revocations struct {
	db *badger.DB
}

func NewRevocations(db *badger.DB) *Revocations {
	return &Revocations{db: db}
}

// Revoke помечает токен отозванным на ttl.
func (r *Revocations) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl <= 0 {
		return nil
	}
	err := r.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(revokedPrefix+tokenID), []byte{1}).WithTTL(ttl)
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("revocations: %w", err)
	}
	return nil
}

// IsRevoked проверяет токен.
func (r *Revocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	err := r.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(revokedPrefix + tokenID))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("revocations: %w", err)
	}
	return true, nil
}
