package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	_ "github.com/glebarez/sqlite"
	"github.com/google/uuid"
)

// Storage wraps the vaultd persistence layer: the claim history and the
// applied configuration versions.
type Storage struct {
	db *sql.DB
}

// ErrPathRequired is returned when the backing store path is missing.
var ErrPathRequired = errors.New("vaultd storage path must be configured")

// ErrNotFound is returned when a lookup matches no rows.
var ErrNotFound = errors.New("vaultd storage: not found")

// Open initialises the backing store using a sqlite-compatible DSN.
func Open(path string) (*Storage, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, ErrPathRequired
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Storage{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ClaimRecord captures one settled claim for audit purposes. Amounts are
// stored as decimal strings to preserve full big-integer precision.
type ClaimRecord struct {
	ID            string
	Caller        string
	Primary       *big.Int
	Secondary     *big.Int
	AssetValue    *big.Int
	Compounded    *big.Int
	ConfigVersion uint64
	SettledAt     time.Time
}

// RecordClaim persists one settled claim and returns its generated identifier.
func (s *Storage) RecordClaim(ctx context.Context, rec ClaimRecord) (string, error) {
	id := rec.ID
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	settled := rec.SettledAt
	if settled.IsZero() {
		settled = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO claims (id, caller, primary_amount, secondary_amount, asset_value, compounded, config_version, settled_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rec.Caller, amountString(rec.Primary), amountString(rec.Secondary),
		amountString(rec.AssetValue), amountString(rec.Compounded), rec.ConfigVersion, settled)
	if err != nil {
		return "", fmt.Errorf("record claim: %w", err)
	}
	return id, nil
}

// ListClaims returns up to limit claims, most recent first.
func (s *Storage) ListClaims(ctx context.Context, limit int) ([]ClaimRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, caller, primary_amount, secondary_amount, asset_value, compounded, config_version, settled_at
FROM claims ORDER BY settled_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	var records []ClaimRecord
	for rows.Next() {
		var (
			rec                                        ClaimRecord
			primary, secondary, assetValue, compounded string
		)
		if err := rows.Scan(&rec.ID, &rec.Caller, &primary, &secondary, &assetValue, &compounded, &rec.ConfigVersion, &rec.SettledAt); err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		if rec.Primary, err = parseStoredAmount(primary); err != nil {
			return nil, err
		}
		if rec.Secondary, err = parseStoredAmount(secondary); err != nil {
			return nil, err
		}
		if rec.AssetValue, err = parseStoredAmount(assetValue); err != nil {
			return nil, err
		}
		if rec.Compounded, err = parseStoredAmount(compounded); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ConfigRecord captures one applied incentive configuration version.
type ConfigRecord struct {
	Version             uint64
	ClaimerIncentiveBps uint64
	LockerIncentiveBps  uint64
	LockerRewards       string
	AppliedAt           time.Time
}

// RecordConfig persists an applied configuration version.
func (s *Storage) RecordConfig(ctx context.Context, rec ConfigRecord) error {
	applied := rec.AppliedAt
	if applied.IsZero() {
		applied = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT OR REPLACE INTO config_versions (version, claimer_bps, locker_bps, locker_rewards, applied_at)
VALUES (?, ?, ?, ?, ?)`,
		rec.Version, rec.ClaimerIncentiveBps, rec.LockerIncentiveBps, rec.LockerRewards, applied)
	if err != nil {
		return fmt.Errorf("record config: %w", err)
	}
	return nil
}

// LatestConfig returns the most recently applied configuration version.
func (s *Storage) LatestConfig(ctx context.Context) (ConfigRecord, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT version, claimer_bps, locker_bps, locker_rewards, applied_at
FROM config_versions ORDER BY version DESC LIMIT 1`)
	var rec ConfigRecord
	err := row.Scan(&rec.Version, &rec.ClaimerIncentiveBps, &rec.LockerIncentiveBps, &rec.LockerRewards, &rec.AppliedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ConfigRecord{}, ErrNotFound
	}
	if err != nil {
		return ConfigRecord{}, fmt.Errorf("latest config: %w", err)
	}
	return rec, nil
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseStoredAmount(raw string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, fmt.Errorf("corrupt stored amount %q", raw)
	}
	return value, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS claims (
    id TEXT PRIMARY KEY,
    caller TEXT NOT NULL,
    primary_amount TEXT NOT NULL,
    secondary_amount TEXT NOT NULL,
    asset_value TEXT NOT NULL,
    compounded TEXT NOT NULL,
    config_version INTEGER NOT NULL,
    settled_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_claims_settled ON claims(settled_at);

CREATE TABLE IF NOT EXISTS config_versions (
    version INTEGER PRIMARY KEY,
    claimer_bps INTEGER NOT NULL,
    locker_bps INTEGER NOT NULL,
    locker_rewards TEXT NOT NULL,
    applied_at TIMESTAMP NOT NULL
);
`
