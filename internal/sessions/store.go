// PropertyPulse - Listings Marketplace Interaction Analytics
// Copyright 2026 Castminster Developers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castminster/propertypulse

// Package sessions tracks anonymous browsing sessions. The recorder mints a
// token for visitors without one so anonymous interaction events still
// correlate across a browsing session.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/castminster/propertypulse/internal/logging"
	"github.com/castminster/propertypulse/internal/metrics"
)

const sessionKeyPrefix = "session:"

// DefaultTTL is how long a minted session token stays valid without being
// refreshed.
const DefaultTTL = 30 * 24 * time.Hour

// ErrSessionNotFound is returned when a token is unknown or expired.
var ErrSessionNotFound = errors.New("session not found")

// Session is a tracked anonymous browsing session.
type Session struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
}

// Store persists anonymous session tokens.
type Store interface {
	// Mint creates a new session and returns its token.
	Mint(ctx context.Context) (string, error)
	// Touch refreshes an existing session's last-seen time. Unknown tokens
	// return ErrSessionNotFound.
	Touch(ctx context.Context, token string) error
	// Close releases the underlying storage.
	Close() error
}

// BadgerStore is a BadgerDB-backed session store. Entries carry a TTL so
// abandoned sessions expire without a sweeper.
type BadgerStore struct {
	db  *badger.DB
	ttl time.Duration
}

// Open creates a BadgerStore at path. An empty path opens an in-memory store,
// which is what tests and single-shot tools use.
func Open(path string, ttl time.Duration) (*BadgerStore, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	opts := badger.DefaultOptions(path).
		WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return &BadgerStore{db: db, ttl: ttl}, nil
}

// Mint creates a new session token and stores it with the configured TTL.
func (s *BadgerStore) Mint(ctx context.Context) (string, error) {
	now := time.Now().UTC()
	sess := Session{
		Token:     uuid.NewString(),
		CreatedAt: now,
		LastSeen:  now,
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(sessionKeyPrefix+sess.Token), data).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	metrics.SessionTokensMinted.Inc()
	logging.Debug().Str("token", sess.Token).Msg("Minted anonymous session")
	return sess.Token, nil
}

// Touch refreshes the session's last-seen time and resets its TTL.
func (s *BadgerStore) Touch(ctx context.Context, token string) error {
	key := []byte(sessionKeyPrefix + token)

	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}

		var sess Session
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &sess)
		}); err != nil {
			return fmt.Errorf("decode session: %w", err)
		}

		sess.LastSeen = time.Now().UTC()
		data, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		entry := badger.NewEntry(key, data).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
}

// Close closes the underlying BadgerDB.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
