package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/h2hsecure/moodlews/internal/domain"
)

const (
	bucketTokens = "tokens"
)

// NewBoltDB opens the credential store at path. Tokens are keyed by the base
// URL of the server they were issued by.
func NewBoltDB(path string, readOnly bool) (domain.TokenStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second, ReadOnly: readOnly})
	if err != nil {
		return nil, fmt.Errorf("db open: path '%s' %w", path, err)
	}

	if readOnly {
		return &boltAdapter{db: db}, nil
	}

	tx, err := db.Begin(true)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db begin: %w", err)
	}

	_, err = tx.CreateBucketIfNotExists([]byte(bucketTokens))
	if err != nil {
		_ = tx.Rollback()
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}

	if err := tx.Commit(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &boltAdapter{db: db}, nil
}

type boltAdapter struct {
	db *bolt.DB
}

func (b *boltAdapter) Close() error {
	return b.db.Close()
}

func tokenKey(server string) []byte {
	if base := domain.BaseURL(server); base != "" {
		return []byte(base)
	}
	return []byte(server)
}

// SaveToken implements TokenStore.
func (b *boltAdapter) SaveToken(ctx context.Context, cred domain.Credential) error {
	if cred.Created.IsZero() {
		cred.Created = time.Now().UTC()
	}

	m, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("db value marshal: %w", err)
	}

	tx, err := b.db.Begin(true)
	if err != nil {
		return fmt.Errorf("db begin: %w", err)
	}

	bucket := tx.Bucket([]byte(bucketTokens))
	if bucket == nil {
		_ = tx.Rollback()
		return fmt.Errorf("db bucket %s not found", bucketTokens)
	}

	if err := bucket.Put(tokenKey(cred.Server), m); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("db put: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("db commit: %w", err)
	}

	return nil
}

// ReadToken implements TokenStore.
func (b *boltAdapter) ReadToken(ctx context.Context, server string) (domain.Credential, error) {
	tx, err := b.db.Begin(false)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("db begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	bucket := tx.Bucket([]byte(bucketTokens))
	if bucket == nil {
		return domain.Credential{}, fmt.Errorf("token for %s: %w", server, domain.ErrNotFound)
	}

	raw := bucket.Get(tokenKey(server))
	if raw == nil {
		return domain.Credential{}, fmt.Errorf("token for %s: %w", server, domain.ErrNotFound)
	}

	var cred domain.Credential

	if err := json.Unmarshal(raw, &cred); err != nil {
		return domain.Credential{}, fmt.Errorf("db value unmarshal: %w", err)
	}

	return cred, nil
}

// DeleteToken implements TokenStore.
func (b *boltAdapter) DeleteToken(ctx context.Context, server string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketTokens))
		if bucket == nil {
			return nil
		}
		if err := bucket.Delete(tokenKey(server)); err != nil {
			return fmt.Errorf("db delete: %w", err)
		}
		return nil
	})
}
