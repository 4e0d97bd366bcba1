// PropertyPulse - Listings Marketplace Interaction Analytics
// Copyright 2026 Castminster Developers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castminster/propertypulse

package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"testing"
	"time"
)

// brokenResultDriver executes statements successfully but cannot report how
// many rows were affected.
type brokenResultDriver struct{}

func (brokenResultDriver) Open(string) (driver.Conn, error) { return brokenResultConn{}, nil }

type brokenResultConn struct{}

func (brokenResultConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}
func (brokenResultConn) Close() error              { return nil }
func (brokenResultConn) Begin() (driver.Tx, error) { return nil, errors.New("transactions not supported") }

func (brokenResultConn) ExecContext(context.Context, string, []driver.NamedValue) (driver.Result, error) {
	return brokenResult{}, nil
}

type brokenResult struct{}

func (brokenResult) LastInsertId() (int64, error) { return 0, nil }
func (brokenResult) RowsAffected() (int64, error) {
	return 0, errors.New("rows affected unavailable")
}

func TestPruneEventsBeforeSurfacesRowsAffectedError(t *testing.T) {
	sql.Register("broken-result", brokenResultDriver{})
	conn, err := sql.Open("broken-result", "")
	if err != nil {
		t.Fatalf("open stub driver: %v", err)
	}
	t.Cleanup(func() {
		if err := conn.Close(); err != nil {
			t.Errorf("close stub driver: %v", err)
		}
	})

	db := &DB{conn: conn}
	_, err = db.PruneEventsBefore(context.Background(), time.Now())
	if err == nil {
		t.Fatal("expected an error when the driver cannot report affected rows")
	}
	if !strings.Contains(err.Error(), "rows affected") {
		t.Errorf("unexpected error: %v", err)
	}
}
