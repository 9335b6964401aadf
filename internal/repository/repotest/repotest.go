// Package repotest provides throwaway SQLite databases and Redis servers
// for package tests.
package repotest

import (
	"database/sql"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"
)

// Schema mirrors the production MySQL tables in SQLite types.
const Schema = `
CREATE TABLE accounts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	username TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	roles TEXT NOT NULL,
	is_deleted INTEGER NOT NULL DEFAULT 0,
	two_factor INTEGER NOT NULL DEFAULT 0,
	active INTEGER NOT NULL DEFAULT 0,
	message_token TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE TABLE disconnections (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id INTEGER NOT NULL,
	deleted_at DATETIME NOT NULL
);
CREATE TABLE labor_profiles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id INTEGER NOT NULL UNIQUE,
	skills TEXT,
	location TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	lat REAL NOT NULL DEFAULT 0,
	lng REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);
CREATE TABLE employer_profiles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id INTEGER NOT NULL UNIQUE,
	location TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	lat REAL NOT NULL DEFAULT 0,
	lng REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);
CREATE TABLE pending_passcodes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id INTEGER NOT NULL,
	purpose TEXT NOT NULL,
	code TEXT NOT NULL,
	payload TEXT,
	nonce TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	UNIQUE (account_id, purpose)
);
`

// NewDB returns an in-memory SQLite database with Schema applied.  It is
// closed when the test ends.
func NewDB(t testing.TB) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(Schema); err != nil {
		t.Fatalf("create schema failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// NewRedis starts a miniredis server and returns a client bound to it.
func NewRedis(t testing.TB) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return rdb, mr
}
