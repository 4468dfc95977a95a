// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/sandpool-project/sandpool/lib/codec"
	"github.com/sandpool-project/sandpool/lib/schema"
	"github.com/sandpool-project/sandpool/lib/sqlitepool"
)

// databaseSchema creates the record tables. Records live in CBOR body
// blobs; the columns alongside exist only to serve the indexed
// lookups the facade needs (by status, by user, by account+status)
// and the version check.
const databaseSchema = `
CREATE TABLE IF NOT EXISTS leases (
    user_email     TEXT    NOT NULL,
    uuid           TEXT    NOT NULL,
    status         TEXT    NOT NULL,
    aws_account_id TEXT    NOT NULL DEFAULT '',
    ttl            INTEGER NOT NULL DEFAULT 0,
    version        INTEGER NOT NULL,
    body           BLOB    NOT NULL,
    PRIMARY KEY (user_email, uuid)
);
CREATE INDEX IF NOT EXISTS leases_by_status  ON leases (status);
CREATE INDEX IF NOT EXISTS leases_by_account ON leases (aws_account_id, status);

CREATE TABLE IF NOT EXISTS accounts (
    aws_account_id TEXT    PRIMARY KEY,
    status         TEXT    NOT NULL,
    version        INTEGER NOT NULL,
    body           BLOB    NOT NULL
);
CREATE INDEX IF NOT EXISTS accounts_by_status ON accounts (status);

CREATE TABLE IF NOT EXISTS lease_templates (
    uuid    TEXT    PRIMARY KEY,
    name    TEXT    NOT NULL,
    version INTEGER NOT NULL,
    body    BLOB    NOT NULL
);
`

// Config holds the parameters for opening the record store.
type Config struct {
	// Path is the filesystem path to the SQLite database file. The
	// parent directory must exist. For an in-memory store use the URI
	// "file::memory:?mode=memory&cache=shared"; a bare ":memory:"
	// does not support pooled connections.
	Path string

	// PoolSize is the number of connections in the pool. Defaults to
	// 4 if zero or negative. Writes serialize regardless; extra
	// connections serve concurrent reads.
	PoolSize int

	// Logger receives operational messages. Nil discards them.
	Logger *slog.Logger
}

// Store is the SQLite-backed implementation of the record store
// interfaces. Safe for concurrent use; each method borrows a pooled
// connection for its duration.
type Store struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
	path   string
}

// Open creates the connection pool and ensures the record tables
// exist. The caller must Close the store when done.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store: Path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: poolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, databaseSchema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", cfg.Path, err)
	}

	logger.Info("record store opened", "path", cfg.Path, "pool_size", poolSize)
	return &Store{pool: pool, logger: logger, path: cfg.Path}, nil
}

// Close closes all connections. Blocks until borrowed connections are
// returned.
func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("store: closing %s: %w", s.path, err)
	}
	return nil
}

// Leases returns the lease half of the store.
func (s *Store) Leases() LeaseStore { return leaseTable{s} }

// Accounts returns the account half of the store.
func (s *Store) Accounts() AccountStore { return accountTable{s} }

// Templates returns the template half of the store.
func (s *Store) Templates() TemplateStore { return templateTable{s} }

// take borrows a connection with a store-prefixed error.
func (s *Store) take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: take connection: %w", err)
	}
	return conn, nil
}

// statusPlaceholders renders "?, ?, ?" for an IN clause and the
// matching argument slice.
func statusPlaceholders[T ~string](statuses []T) (string, []any) {
	marks := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		marks[i] = "?"
		args[i] = string(status)
	}
	return strings.Join(marks, ", "), args
}

// columnBlob copies the BLOB in column col out of the statement.
func columnBlob(stmt *sqlite.Stmt, col int) []byte {
	blob := make([]byte, stmt.ColumnLen(col))
	stmt.ColumnBytes(col, blob)
	return blob
}

// --- leases ---

type leaseTable struct{ store *Store }

func (t leaseTable) Get(ctx context.Context, key schema.LeaseKey) (*schema.Lease, error) {
	conn, err := t.store.take(ctx)
	if err != nil {
		return nil, err
	}
	defer t.store.pool.Put(conn)
	return getLease(conn, key)
}

func getLease(conn *sqlite.Conn, key schema.LeaseKey) (*schema.Lease, error) {
	var lease *schema.Lease
	err := sqlitex.Execute(conn,
		`SELECT body FROM leases WHERE user_email = ? AND uuid = ?`,
		&sqlitex.ExecOptions{
			Args: []any{key.UserEmail, key.UUID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				decoded := new(schema.Lease)
				if err := codec.Unmarshal(columnBlob(stmt, 0), decoded); err != nil {
					return fmt.Errorf("decoding lease %s: %w", key, err)
				}
				lease = decoded
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("store: get lease %s: %w", key, err)
	}
	if lease == nil {
		return nil, fmt.Errorf("store: lease %s: %w", key, ErrNotFound)
	}
	return lease, nil
}

func (t leaseTable) Create(ctx context.Context, lease *schema.Lease) error {
	if err := lease.Validate(); err != nil {
		return fmt.Errorf("store: create lease: %w", err)
	}
	conn, err := t.store.take(ctx)
	if err != nil {
		return err
	}
	defer t.store.pool.Put(conn)

	record := *lease
	record.Version = 1
	body, err := codec.Marshal(&record)
	if err != nil {
		return fmt.Errorf("store: encoding lease %s: %w", record.Key(), err)
	}

	err = sqlitex.Execute(conn,
		`INSERT OR IGNORE INTO leases (user_email, uuid, status, aws_account_id, ttl, version, body)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{
			record.UserEmail, record.UUID, string(record.Status),
			record.AWSAccountID, record.TTL, record.Version, body,
		}})
	if err != nil {
		return fmt.Errorf("store: create lease %s: %w", record.Key(), err)
	}
	if conn.Changes() == 0 {
		return fmt.Errorf("store: lease %s: %w", record.Key(), ErrAlreadyExists)
	}
	lease.Version = 1
	return nil
}

func (t leaseTable) Update(ctx context.Context, lease *schema.Lease) (*PutResult[schema.Lease], error) {
	if err := lease.Validate(); err != nil {
		return nil, fmt.Errorf("store: update lease: %w", err)
	}
	conn, err := t.store.take(ctx)
	if err != nil {
		return nil, err
	}
	defer t.store.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return nil, fmt.Errorf("store: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	old, err := getLease(conn, lease.Key())
	if err != nil {
		return nil, err
	}
	if old.Version != lease.Version {
		return nil, fmt.Errorf("store: lease %s: have version %d, stored version %d: %w",
			lease.Key(), lease.Version, old.Version, ErrVersionConflict)
	}

	updated := *lease
	updated.Version = old.Version + 1
	body, err := codec.Marshal(&updated)
	if err != nil {
		return nil, fmt.Errorf("store: encoding lease %s: %w", updated.Key(), err)
	}

	err = sqlitex.Execute(conn,
		`UPDATE leases SET status = ?, aws_account_id = ?, ttl = ?, version = ?, body = ?
		 WHERE user_email = ? AND uuid = ?`,
		&sqlitex.ExecOptions{Args: []any{
			string(updated.Status), updated.AWSAccountID, updated.TTL,
			updated.Version, body, updated.UserEmail, updated.UUID,
		}})
	if err != nil {
		return nil, fmt.Errorf("store: update lease %s: %w", updated.Key(), err)
	}
	return &PutResult[schema.Lease]{NewItem: &updated, OldItem: old}, nil
}

func (t leaseTable) Delete(ctx context.Context, key schema.LeaseKey) error {
	conn, err := t.store.take(ctx)
	if err != nil {
		return err
	}
	defer t.store.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`DELETE FROM leases WHERE user_email = ? AND uuid = ?`,
		&sqlitex.ExecOptions{Args: []any{key.UserEmail, key.UUID}})
	if err != nil {
		return fmt.Errorf("store: delete lease %s: %w", key, err)
	}
	if conn.Changes() == 0 {
		return fmt.Errorf("store: lease %s: %w", key, ErrNotFound)
	}
	return nil
}

// listLeases runs query and decodes one lease per row. The query must
// select the body column only.
func (t leaseTable) listLeases(ctx context.Context, query string, args []any) ([]*schema.Lease, error) {
	conn, err := t.store.take(ctx)
	if err != nil {
		return nil, err
	}
	defer t.store.pool.Put(conn)

	var leases []*schema.Lease
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			lease := new(schema.Lease)
			if err := codec.Unmarshal(columnBlob(stmt, 0), lease); err != nil {
				return fmt.Errorf("decoding lease row: %w", err)
			}
			leases = append(leases, lease)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: list leases: %w", err)
	}
	return leases, nil
}

func (t leaseTable) ListByUser(ctx context.Context, userEmail string) ([]*schema.Lease, error) {
	return t.listLeases(ctx,
		`SELECT body FROM leases WHERE user_email = ?`, []any{userEmail})
}

func (t leaseTable) ListByStatus(ctx context.Context, statuses ...schema.LeaseStatus) ([]*schema.Lease, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	marks, args := statusPlaceholders(statuses)
	return t.listLeases(ctx,
		`SELECT body FROM leases WHERE status IN (`+marks+`)`, args)
}

func (t leaseTable) ListByStatusAndAccount(ctx context.Context, awsAccountID string, statuses ...schema.LeaseStatus) ([]*schema.Lease, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	marks, args := statusPlaceholders(statuses)
	return t.listLeases(ctx,
		`SELECT body FROM leases WHERE aws_account_id = ? AND status IN (`+marks+`)`,
		append([]any{awsAccountID}, args...))
}

func (t leaseTable) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	conn, err := t.store.take(ctx)
	if err != nil {
		return 0, err
	}
	defer t.store.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`DELETE FROM leases WHERE ttl > 0 AND ttl <= ?`,
		&sqlitex.ExecOptions{Args: []any{now.Unix()}})
	if err != nil {
		return 0, fmt.Errorf("store: purge expired leases: %w", err)
	}
	return conn.Changes(), nil
}

// --- accounts ---

type accountTable struct{ store *Store }

func (t accountTable) Get(ctx context.Context, awsAccountID string) (*schema.Account, error) {
	conn, err := t.store.take(ctx)
	if err != nil {
		return nil, err
	}
	defer t.store.pool.Put(conn)
	return getAccount(conn, awsAccountID)
}

func getAccount(conn *sqlite.Conn, awsAccountID string) (*schema.Account, error) {
	var account *schema.Account
	err := sqlitex.Execute(conn,
		`SELECT body FROM accounts WHERE aws_account_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{awsAccountID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				decoded := new(schema.Account)
				if err := codec.Unmarshal(columnBlob(stmt, 0), decoded); err != nil {
					return fmt.Errorf("decoding account %s: %w", awsAccountID, err)
				}
				account = decoded
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("store: get account %s: %w", awsAccountID, err)
	}
	if account == nil {
		return nil, fmt.Errorf("store: account %s: %w", awsAccountID, ErrNotFound)
	}
	return account, nil
}

func (t accountTable) Create(ctx context.Context, account *schema.Account) error {
	if err := account.Validate(); err != nil {
		return fmt.Errorf("store: create account: %w", err)
	}
	conn, err := t.store.take(ctx)
	if err != nil {
		return err
	}
	defer t.store.pool.Put(conn)

	record := *account
	record.Version = 1
	body, err := codec.Marshal(&record)
	if err != nil {
		return fmt.Errorf("store: encoding account %s: %w", record.AWSAccountID, err)
	}

	err = sqlitex.Execute(conn,
		`INSERT OR IGNORE INTO accounts (aws_account_id, status, version, body) VALUES (?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{
			record.AWSAccountID, string(record.Status), record.Version, body,
		}})
	if err != nil {
		return fmt.Errorf("store: create account %s: %w", record.AWSAccountID, err)
	}
	if conn.Changes() == 0 {
		return fmt.Errorf("store: account %s: %w", record.AWSAccountID, ErrAlreadyExists)
	}
	account.Version = 1
	return nil
}

func (t accountTable) Update(ctx context.Context, account *schema.Account) (*PutResult[schema.Account], error) {
	if err := account.Validate(); err != nil {
		return nil, fmt.Errorf("store: update account: %w", err)
	}
	conn, err := t.store.take(ctx)
	if err != nil {
		return nil, err
	}
	defer t.store.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return nil, fmt.Errorf("store: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	old, err := getAccount(conn, account.AWSAccountID)
	if err != nil {
		return nil, err
	}
	if old.Version != account.Version {
		return nil, fmt.Errorf("store: account %s: have version %d, stored version %d: %w",
			account.AWSAccountID, account.Version, old.Version, ErrVersionConflict)
	}

	updated := *account
	updated.Version = old.Version + 1
	body, err := codec.Marshal(&updated)
	if err != nil {
		return nil, fmt.Errorf("store: encoding account %s: %w", updated.AWSAccountID, err)
	}

	err = sqlitex.Execute(conn,
		`UPDATE accounts SET status = ?, version = ?, body = ? WHERE aws_account_id = ?`,
		&sqlitex.ExecOptions{Args: []any{
			string(updated.Status), updated.Version, body, updated.AWSAccountID,
		}})
	if err != nil {
		return nil, fmt.Errorf("store: update account %s: %w", updated.AWSAccountID, err)
	}
	return &PutResult[schema.Account]{NewItem: &updated, OldItem: old}, nil
}

func (t accountTable) Delete(ctx context.Context, awsAccountID string) error {
	conn, err := t.store.take(ctx)
	if err != nil {
		return err
	}
	defer t.store.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`DELETE FROM accounts WHERE aws_account_id = ?`,
		&sqlitex.ExecOptions{Args: []any{awsAccountID}})
	if err != nil {
		return fmt.Errorf("store: delete account %s: %w", awsAccountID, err)
	}
	if conn.Changes() == 0 {
		return fmt.Errorf("store: account %s: %w", awsAccountID, ErrNotFound)
	}
	return nil
}

func (t accountTable) ListByStatus(ctx context.Context, statuses ...schema.AccountStatus) ([]*schema.Account, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	conn, err := t.store.take(ctx)
	if err != nil {
		return nil, err
	}
	defer t.store.pool.Put(conn)

	marks, args := statusPlaceholders(statuses)
	var accounts []*schema.Account
	err = sqlitex.Execute(conn,
		`SELECT body FROM accounts WHERE status IN (`+marks+`)`,
		&sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				account := new(schema.Account)
				if err := codec.Unmarshal(columnBlob(stmt, 0), account); err != nil {
					return fmt.Errorf("decoding account row: %w", err)
				}
				accounts = append(accounts, account)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("store: list accounts: %w", err)
	}
	return accounts, nil
}

// --- lease templates ---

type templateTable struct{ store *Store }

func (t templateTable) Get(ctx context.Context, uuid string) (*schema.LeaseTemplate, error) {
	conn, err := t.store.take(ctx)
	if err != nil {
		return nil, err
	}
	defer t.store.pool.Put(conn)
	return getTemplate(conn, uuid)
}

func getTemplate(conn *sqlite.Conn, uuid string) (*schema.LeaseTemplate, error) {
	var template *schema.LeaseTemplate
	err := sqlitex.Execute(conn,
		`SELECT body FROM lease_templates WHERE uuid = ?`,
		&sqlitex.ExecOptions{
			Args: []any{uuid},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				decoded := new(schema.LeaseTemplate)
				if err := codec.Unmarshal(columnBlob(stmt, 0), decoded); err != nil {
					return fmt.Errorf("decoding template %s: %w", uuid, err)
				}
				template = decoded
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("store: get template %s: %w", uuid, err)
	}
	if template == nil {
		return nil, fmt.Errorf("store: template %s: %w", uuid, ErrNotFound)
	}
	return template, nil
}

func (t templateTable) Create(ctx context.Context, template *schema.LeaseTemplate) error {
	if err := template.Validate(); err != nil {
		return fmt.Errorf("store: create template: %w", err)
	}
	conn, err := t.store.take(ctx)
	if err != nil {
		return err
	}
	defer t.store.pool.Put(conn)

	record := *template
	record.Version = 1
	body, err := codec.Marshal(&record)
	if err != nil {
		return fmt.Errorf("store: encoding template %s: %w", record.UUID, err)
	}

	err = sqlitex.Execute(conn,
		`INSERT OR IGNORE INTO lease_templates (uuid, name, version, body) VALUES (?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{record.UUID, record.Name, record.Version, body}})
	if err != nil {
		return fmt.Errorf("store: create template %s: %w", record.UUID, err)
	}
	if conn.Changes() == 0 {
		return fmt.Errorf("store: template %s: %w", record.UUID, ErrAlreadyExists)
	}
	template.Version = 1
	return nil
}

func (t templateTable) Update(ctx context.Context, template *schema.LeaseTemplate) (*PutResult[schema.LeaseTemplate], error) {
	if err := template.Validate(); err != nil {
		return nil, fmt.Errorf("store: update template: %w", err)
	}
	conn, err := t.store.take(ctx)
	if err != nil {
		return nil, err
	}
	defer t.store.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return nil, fmt.Errorf("store: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	old, err := getTemplate(conn, template.UUID)
	if err != nil {
		return nil, err
	}
	if old.Version != template.Version {
		return nil, fmt.Errorf("store: template %s: have version %d, stored version %d: %w",
			template.UUID, template.Version, old.Version, ErrVersionConflict)
	}

	updated := *template
	updated.Version = old.Version + 1
	body, err := codec.Marshal(&updated)
	if err != nil {
		return nil, fmt.Errorf("store: encoding template %s: %w", updated.UUID, err)
	}

	err = sqlitex.Execute(conn,
		`UPDATE lease_templates SET name = ?, version = ?, body = ? WHERE uuid = ?`,
		&sqlitex.ExecOptions{Args: []any{updated.Name, updated.Version, body, updated.UUID}})
	if err != nil {
		return nil, fmt.Errorf("store: update template %s: %w", updated.UUID, err)
	}
	return &PutResult[schema.LeaseTemplate]{NewItem: &updated, OldItem: old}, nil
}

func (t templateTable) Delete(ctx context.Context, uuid string) error {
	conn, err := t.store.take(ctx)
	if err != nil {
		return err
	}
	defer t.store.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`DELETE FROM lease_templates WHERE uuid = ?`,
		&sqlitex.ExecOptions{Args: []any{uuid}})
	if err != nil {
		return fmt.Errorf("store: delete template %s: %w", uuid, err)
	}
	if conn.Changes() == 0 {
		return fmt.Errorf("store: template %s: %w", uuid, ErrNotFound)
	}
	return nil
}

func (t templateTable) List(ctx context.Context) ([]*schema.LeaseTemplate, error) {
	conn, err := t.store.take(ctx)
	if err != nil {
		return nil, err
	}
	defer t.store.pool.Put(conn)

	var templates []*schema.LeaseTemplate
	err = sqlitex.Execute(conn,
		`SELECT body FROM lease_templates`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				template := new(schema.LeaseTemplate)
				if err := codec.Unmarshal(columnBlob(stmt, 0), template); err != nil {
					return fmt.Errorf("decoding template row: %w", err)
				}
				templates = append(templates, template)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("store: list templates: %w", err)
	}
	return templates, nil
}
