package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// Store keeps an append-only record of bets and claims in SQLite.
// It backs the read-only status API and survives restarts.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer keeps SQLite happy
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS bets (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  wallet_address TEXT NOT NULL,
  epoch INTEGER NOT NULL,
  direction TEXT NOT NULL,
  amount_bnb TEXT NOT NULL,
  tx_hash TEXT NOT NULL,
  created_at TEXT NOT NULL
);`,
		`
CREATE TABLE IF NOT EXISTS claims (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  wallet_address TEXT NOT NULL,
  epochs TEXT NOT NULL,
  reward_bnb TEXT NOT NULL,
  tx_hash TEXT NOT NULL,
  created_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_bets_wallet ON bets(wallet_address);`,
		`CREATE INDEX IF NOT EXISTS idx_claims_wallet ON claims(wallet_address);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

type BetRecord struct {
	ID        int64           `json:"id"`
	Wallet    string          `json:"wallet_address"`
	Epoch     uint64          `json:"epoch"`
	Direction string          `json:"direction"`
	AmountBNB decimal.Decimal `json:"amount_bnb"`
	TxHash    string          `json:"tx_hash"`
	CreatedAt string          `json:"created_at"`
}

type ClaimRecord struct {
	ID        int64           `json:"id"`
	Wallet    string          `json:"wallet_address"`
	Epochs    []uint64        `json:"epochs"`
	RewardBNB decimal.Decimal `json:"reward_bnb"`
	TxHash    string          `json:"tx_hash"`
	CreatedAt string          `json:"created_at"`
}

// RecordBet implements the bridge's Recorder interface.
func (s *Store) RecordBet(walletAddr string, epoch uint64, dir string, amount decimal.Decimal, txHash string) error {
	_, err := s.db.Exec(
		`INSERT INTO bets (wallet_address, epoch, direction, amount_bnb, tx_hash, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		walletAddr, epoch, dir, amount.String(), txHash, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) RecordClaim(walletAddr string, epochs []uint64, reward decimal.Decimal, txHash string) error {
	parts := make([]string, 0, len(epochs))
	for _, e := range epochs {
		parts = append(parts, strconv.FormatUint(e, 10))
	}
	_, err := s.db.Exec(
		`INSERT INTO claims (wallet_address, epochs, reward_bnb, tx_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		walletAddr, strings.Join(parts, ","), reward.String(), txHash, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) ListBets(limit int) ([]BetRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT id, wallet_address, epoch, direction, amount_bnb, tx_hash, created_at FROM bets ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BetRecord
	for rows.Next() {
		var r BetRecord
		var amount string
		if err := rows.Scan(&r.ID, &r.Wallet, &r.Epoch, &r.Direction, &amount, &r.TxHash, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.AmountBNB, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("corrupt amount %q: %w", amount, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ListClaims(limit int) ([]ClaimRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT id, wallet_address, epochs, reward_bnb, tx_hash, created_at FROM claims ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ClaimRecord
	for rows.Next() {
		var r ClaimRecord
		var epochs, reward string
		if err := rows.Scan(&r.ID, &r.Wallet, &epochs, &reward, &r.TxHash, &r.CreatedAt); err != nil {
			return nil, err
		}
		for _, p := range strings.Split(epochs, ",") {
			if p == "" {
				continue
			}
			n, err := strconv.ParseUint(p, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("corrupt epochs %q: %w", epochs, err)
			}
			r.Epochs = append(r.Epochs, n)
		}
		r.RewardBNB, err = decimal.NewFromString(reward)
		if err != nil {
			return nil, fmt.Errorf("corrupt reward %q: %w", reward, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
