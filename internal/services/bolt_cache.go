package services

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

// BoltCache is a durable cache tier on an embedded bbolt file, for
// single-node deployments that run without Redis. Values are stored as
// 8 bytes of big-endian unix-nano expiry followed by the raw payload.
type BoltCache struct {
	db     *bolt.DB
	bucket []byte
	logger *logrus.Entry
}

// OpenBoltCache opens or creates the cache file at path.
func OpenBoltCache(path string, logger *logrus.Logger) (*BoltCache, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt cache: %w", err)
	}

	bucket := []byte("cache")
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache bucket: %w", err)
	}

	return &BoltCache{
		db:     db,
		bucket: bucket,
		logger: logger.WithField("component", "bolt_cache"),
	}, nil
}

func (b *BoltCache) Name() string { return "bolt" }

// Close closes the underlying database file.
func (b *BoltCache) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *BoltCache) Get(_ context.Context, key string) ([]byte, time.Duration, error) {
	var out []byte
	var expiresAt int64
	var exists bool

	if err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(b.bucket).Get([]byte(key))
		if v == nil || len(v) < 8 {
			return nil
		}
		exists = true
		expiresAt = int64(binary.BigEndian.Uint64(v[:8]))
		out = append([]byte(nil), v[8:]...)
		return nil
	}); err != nil {
		return nil, 0, fmt.Errorf("bolt get: %w", err)
	}

	if !exists {
		return nil, 0, ErrCacheMiss
	}

	now := time.Now().UnixNano()
	if expiresAt > 0 && now > expiresAt {
		// lazy expiry, drop the stale row outside the read transaction
		if err := b.Delete(context.Background(), key); err != nil {
			b.logger.WithError(err).WithField("key", key).Debug("Failed to drop expired entry")
		}
		return nil, 0, ErrCacheMiss
	}

	remaining := time.Duration(expiresAt - now)
	if expiresAt == 0 {
		remaining = time.Hour
	}
	return out, remaining, nil
}

func (b *BoltCache) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	var expiresAt int64
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl).UnixNano()
	}

	buf := make([]byte, 8+len(data))
	binary.BigEndian.PutUint64(buf[:8], uint64(expiresAt))
	copy(buf[8:], data)

	if err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.bucket).Put([]byte(key), buf)
	}); err != nil {
		return fmt.Errorf("bolt set: %w", err)
	}
	return nil
}

func (b *BoltCache) Delete(_ context.Context, key string) error {
	if err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.bucket).Delete([]byte(key))
	}); err != nil {
		return fmt.Errorf("bolt delete: %w", err)
	}
	return nil
}

func (b *BoltCache) DeletePrefix(_ context.Context, prefix string) error {
	p := []byte(prefix)
	if err := b.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(b.bucket).Cursor()
		for k, _ := c.Seek(p); k != nil && (len(p) == 0 || bytes.HasPrefix(k, p)); k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("bolt delete prefix: %w", err)
	}
	return nil
}

func (b *BoltCache) Available(_ context.Context) bool {
	return b != nil && b.db != nil
}
