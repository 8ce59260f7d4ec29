package brokerage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tradingflow/server/internal/domain"
)

// Store is the durable record store for brokers and their order rows.
type Store struct {
	db *sql.DB
}

// OpenStore opens the SQLite database at path and applies the schema.
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// OpenStoreInMemory opens an ephemeral database, used by tests.
func OpenStoreInMemory() (*Store, error) {
	return OpenStore(":memory:")
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA foreign_keys=ON;`,
		`
CREATE TABLE IF NOT EXISTS brokers (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  exchange TEXT NOT NULL,
  label TEXT NOT NULL,
  api_key TEXT NOT NULL,
  api_secret TEXT NOT NULL,
  status TEXT NOT NULL,
  ip_restricted INTEGER NOT NULL DEFAULT 0,
  credentials_created_at TEXT NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  UNIQUE (user_id, label),
  UNIQUE (api_key, api_secret)
);`,
		`
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  parent_order_id TEXT,
  broker_id TEXT NOT NULL REFERENCES brokers(id) ON DELETE CASCADE,
  market TEXT NOT NULL,
  symbol TEXT NOT NULL,
  side TEXT NOT NULL,
  type TEXT NOT NULL,
  quantity REAL NOT NULL,
  price REAL,
  stop_price REAL,
  status TEXT NOT NULL DEFAULT 'pending',
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_orders_broker_id ON orders(broker_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// isUniqueViolation detects SQLite constraint failures so the coordinator
// can report them as client faults instead of server errors.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *Store) insertBroker(ctx context.Context, b domain.Broker) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO brokers (id,user_id,exchange,label,api_key,api_secret,status,ip_restricted,credentials_created_at,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
`, b.ID, b.UserID, string(b.Exchange), b.Label, b.APIKey, b.APISecret, string(b.Status), boolToInt(b.IPRestricted),
		b.CredentialsCreatedAt.Format(time.RFC3339Nano), b.CreatedAt.Format(time.RFC3339Nano), b.UpdatedAt.Format(time.RFC3339Nano))
	return err
}

func (s *Store) getBroker(ctx context.Context, brokerID string) (*domain.Broker, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id,user_id,exchange,label,api_key,api_secret,status,ip_restricted,credentials_created_at,created_at,updated_at
FROM brokers WHERE id=?
`, brokerID)
	return scanBroker(row)
}

func (s *Store) listBrokers(ctx context.Context, userID string) ([]domain.Broker, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id,user_id,exchange,label,api_key,api_secret,status,ip_restricted,credentials_created_at,created_at,updated_at
FROM brokers WHERE user_id=? ORDER BY created_at DESC
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Broker
	for rows.Next() {
		b, err := scanBrokerRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (s *Store) updateBrokerLabel(ctx context.Context, brokerID, label string) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE brokers SET label=?, updated_at=? WHERE id=?
`, label, time.Now().Format(time.RFC3339Nano), brokerID)
	return err
}

func (s *Store) updateBrokerCredentials(ctx context.Context, b domain.Broker) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE brokers
SET exchange=?, label=?, api_key=?, api_secret=?, status=?, ip_restricted=?, credentials_created_at=?, updated_at=?
WHERE id=?
`, string(b.Exchange), b.Label, b.APIKey, b.APISecret, string(b.Status), boolToInt(b.IPRestricted),
		b.CredentialsCreatedAt.Format(time.RFC3339Nano), time.Now().Format(time.RFC3339Nano), b.ID)
	return err
}

func (s *Store) deleteBroker(ctx context.Context, brokerID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM brokers WHERE id=?`, brokerID)
	return err
}

func (s *Store) insertOrders(ctx context.Context, records []domain.OrderRecord) error {
	for _, r := range records {
		_, err := s.db.ExecContext(ctx, `
INSERT INTO orders (id,parent_order_id,broker_id,market,symbol,side,type,quantity,price,stop_price,status,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
`, r.ID, nullIfEmpty(r.ParentOrderID), r.BrokerID, string(r.Market), r.Symbol, string(r.Side), string(r.Type),
			r.Quantity, nullFloat(r.Price), nullFloat(r.StopPrice), string(r.Status),
			r.CreatedAt.Format(time.RFC3339Nano), r.UpdatedAt.Format(time.RFC3339Nano))
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) listOrdersByBroker(ctx context.Context, brokerID string) ([]domain.OrderRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id,parent_order_id,broker_id,market,symbol,side,type,quantity,price,stop_price,status,created_at,updated_at
FROM orders WHERE broker_id=? ORDER BY created_at DESC, id
`, brokerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.OrderRecord
	for rows.Next() {
		var (
			r                domain.OrderRecord
			parent           sql.NullString
			price, stop      sql.NullFloat64
			created, updated string
		)
		if err := rows.Scan(&r.ID, &parent, &r.BrokerID, (*string)(&r.Market), &r.Symbol, (*string)(&r.Side), (*string)(&r.Type),
			&r.Quantity, &price, &stop, (*string)(&r.Status), &created, &updated); err != nil {
			return nil, err
		}
		if parent.Valid {
			r.ParentOrderID = parent.String
		}
		if price.Valid {
			v := price.Float64
			r.Price = &v
		}
		if stop.Valid {
			v := stop.Float64
			r.StopPrice = &v
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBroker(row *sql.Row) (*domain.Broker, error) {
	b, err := scanBrokerFrom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}

func scanBrokerRows(rows *sql.Rows) (*domain.Broker, error) {
	return scanBrokerFrom(rows)
}

func scanBrokerFrom(sc rowScanner) (*domain.Broker, error) {
	var (
		b                             domain.Broker
		restricted                    int
		credCreated, created, updated string
	)
	if err := sc.Scan(&b.ID, &b.UserID, (*string)(&b.Exchange), &b.Label, &b.APIKey, &b.APISecret, (*string)(&b.Status),
		&restricted, &credCreated, &created, &updated); err != nil {
		return nil, err
	}
	b.IPRestricted = restricted != 0
	b.CredentialsCreatedAt, _ = time.Parse(time.RFC3339Nano, credCreated)
	b.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	b.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &b, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
