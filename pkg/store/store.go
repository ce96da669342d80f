package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrInconsistentDrain reports a buffer drain whose delete touched a
	// different number of rows than the preceding read returned. The drain
	// transaction is rolled back; the buffer stays canonical.
	ErrInconsistentDrain = errors.New("buffer drain affected unexpected row count")

	// ErrInsufficientBalance reports a debit larger than the stored balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// SQLiteStore is the canonical persistent storage for all bot state:
// the short-term turn log, the conversation buffer and its extraction log,
// tarot readings, group data and the payment ledger.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates/opens the bot database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Single-process bot. Use one shared connection to avoid writer lock
	// contention with SQLite under concurrent goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA temp_store=MEMORY;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS chat_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS chat_history_user_idx ON chat_history(user_id, id);`,
		`CREATE TABLE IF NOT EXISTS conversation_buffer (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS conversation_buffer_user_idx ON conversation_buffer(user_id, id);`,
		`CREATE TABLE IF NOT EXISTS extraction_log (
			user_id TEXT PRIMARY KEY,
			last_extraction_ms INTEGER NOT NULL,
			extraction_count INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS user_memories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS user_memories_user_idx ON user_memories(user_id, id);`,
		`CREATE TABLE IF NOT EXISTS tarot_readings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			question TEXT NOT NULL,
			cards_json TEXT NOT NULL,
			interpretation TEXT NOT NULL,
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS tarot_readings_user_idx ON tarot_readings(user_id, id DESC);`,
		`CREATE TABLE IF NOT EXISTS group_fortunes (
			group_id TEXT NOT NULL,
			fortune_date TEXT NOT NULL,
			fortune_json TEXT NOT NULL,
			PRIMARY KEY(group_id, fortune_date)
		);`,
		`CREATE TABLE IF NOT EXISTS group_rankings (
			group_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			user_name TEXT NOT NULL DEFAULT '',
			positive_count INTEGER NOT NULL DEFAULT 0,
			cards_json TEXT NOT NULL DEFAULT '[]',
			ranking_date TEXT NOT NULL,
			PRIMARY KEY(group_id, user_id, ranking_date)
		);`,
		`CREATE TABLE IF NOT EXISTS pk_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			group_id TEXT NOT NULL,
			user1_id TEXT NOT NULL,
			user1_name TEXT NOT NULL DEFAULT '',
			user1_cards_json TEXT NOT NULL DEFAULT '[]',
			user1_score INTEGER NOT NULL DEFAULT 0,
			user2_id TEXT NOT NULL,
			user2_name TEXT NOT NULL DEFAULT '',
			user2_cards_json TEXT NOT NULL DEFAULT '[]',
			user2_score INTEGER NOT NULL DEFAULT 0,
			winner_id TEXT NOT NULL DEFAULT '',
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS pk_records_group_idx ON pk_records(group_id, id DESC);`,
		`CREATE TABLE IF NOT EXISTS balances (
			user_id TEXT PRIMARY KEY,
			balance REAL NOT NULL DEFAULT 0,
			total_recharged REAL NOT NULL DEFAULT 0,
			total_spent REAL NOT NULL DEFAULT 0,
			updated_at_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS recharge_orders (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			address TEXT NOT NULL,
			status TEXT NOT NULL,
			amount REAL NOT NULL DEFAULT 0,
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS recharge_orders_user_idx ON recharge_orders(user_id, created_at_ms DESC);`,
		`CREATE TABLE IF NOT EXISTS daily_usage (
			user_id TEXT NOT NULL,
			usage_date TEXT NOT NULL,
			tarot_count INTEGER NOT NULL DEFAULT 0,
			chat_count INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY(user_id, usage_date)
		);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init sqlite schema failed on %q: %w", trimSQL(stmt), err)
		}
	}
	return nil
}

func trimSQL(sql string) string {
	line := strings.TrimSpace(sql)
	if len(line) > 96 {
		return line[:96] + "..."
	}
	return line
}

func nowMS() int64 { return time.Now().UnixMilli() }

func encodeJSON(v any) string {
	if v == nil {
		return "[]"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}
