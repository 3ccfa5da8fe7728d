package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/ganot/perfscan/internal/repository"
)

// APIKeyRepository stores hashed bearer tokens
type APIKeyRepository struct {
	db *DB
}

// NewAPIKeyRepository creates a new APIKeyRepository
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Create stores the hash of token under name. Plain tokens are never stored.
func (r *APIKeyRepository) Create(ctx context.Context, token, name string) error {
	_, err := r.db.conn(ctx).ExecContext(ctx,
		`INSERT INTO api_keys (key_hash, name, created_at) VALUES (?, ?, ?)`,
		HashToken(token), name, time.Now().UTC(),
	)
	if err != nil {
		return translate("failed to create api key", err)
	}
	return nil
}

// Resolve returns the key name for token and records its use.
func (r *APIKeyRepository) Resolve(ctx context.Context, token string) (string, error) {
	hash := HashToken(token)
	var name string
	err := r.db.conn(ctx).QueryRowContext(ctx, `SELECT name FROM api_keys WHERE key_hash = ?`, hash).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve api key: %w", err)
	}

	if _, err := r.db.conn(ctx).ExecContext(ctx,
		`UPDATE api_keys SET last_used = ? WHERE key_hash = ?`, time.Now().UTC(), hash,
	); err != nil {
		return "", fmt.Errorf("failed to touch api key: %w", err)
	}
	return name, nil
}

// HashToken returns the hex SHA-256 of token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
