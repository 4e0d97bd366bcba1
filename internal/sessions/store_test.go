// PropertyPulse - Listings Marketplace Interaction Analytics
// Copyright 2026 Castminster Developers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castminster/propertypulse

package sessions

import (
	"context"
	"testing"
	"time"
)

func setupTestStore(t *testing.T) *BadgerStore {
	t.Helper()

	store, err := Open("", time.Hour)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close() failed: %v", err)
		}
	})
	return store
}

func TestMintReturnsUniqueTokens(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first, err := store.Mint(ctx)
	if err != nil {
		t.Fatalf("Mint() failed: %v", err)
	}
	second, err := store.Mint(ctx)
	if err != nil {
		t.Fatalf("Mint() failed: %v", err)
	}

	if first == "" || second == "" {
		t.Fatal("expected non-empty tokens")
	}
	if first == second {
		t.Errorf("expected distinct tokens, got %q twice", first)
	}
}

func TestTouchKnownToken(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	token, err := store.Mint(ctx)
	if err != nil {
		t.Fatalf("Mint() failed: %v", err)
	}
	if err := store.Touch(ctx, token); err != nil {
		t.Errorf("Touch() on minted token failed: %v", err)
	}
}

func TestTouchUnknownToken(t *testing.T) {
	store := setupTestStore(t)

	err := store.Touch(context.Background(), "no-such-token")
	if err != ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}
