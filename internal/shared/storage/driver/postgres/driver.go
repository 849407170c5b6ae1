// Package postgres PostgreSQL 数据库驱动
//
// 提供 PostgreSQL 连接管理和方言实现。
package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"pocketfiler/internal/shared/storage/dbutil"
)

// uniqueViolation PostgreSQL SQLSTATE 23505
const uniqueViolation = "23505"

// Dialect PostgreSQL 方言实现
type Dialect struct{}

var _ dbutil.Dialect = (*Dialect)(nil)

func (d *Dialect) DriverType() dbutil.DriverType {
	return dbutil.DriverPostgres
}

func (d *Dialect) Rebind(query string) string {
	return dbutil.RebindToPositional(query)
}

func (d *Dialect) UpsertConflict(conflictColumn string, updateExprs []string) string {
	return dbutil.OnConflictUpdate(conflictColumn, updateExprs)
}

func (d *Dialect) LockClause() string {
	return "FOR UPDATE"
}

// FoldCase UTF8 编码的库中 LOWER 按 Unicode 规则折叠
func (d *Dialect) FoldCase(expr string) string {
	return "LOWER(" + expr + ")"
}

func (d *Dialect) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (d *Dialect) AutoMigrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// Open 创建 PostgreSQL 数据库连接
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return db, nil
}

// NewDialect 创建 PostgreSQL 方言
func NewDialect() *Dialect {
	return &Dialect{}
}

const schema = `
CREATE TABLE IF NOT EXISTS sequences (
    name VARCHAR(64) PRIMARY KEY,
    value BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
    id BIGINT PRIMARY KEY,
    email VARCHAR(320) NOT NULL UNIQUE,
    reset_token VARCHAR(128) UNIQUE,
    created_at BIGINT NOT NULL,
    doc BYTEA NOT NULL
);

CREATE TABLE IF NOT EXISTS associates (
    id BIGINT PRIMARY KEY,
    owner_id BIGINT NOT NULL,
    email VARCHAR(320) NOT NULL UNIQUE,
    invitation_token VARCHAR(128) UNIQUE,
    status VARCHAR(32) NOT NULL,
    created_at BIGINT NOT NULL,
    doc BYTEA NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_associates_owner_status ON associates(owner_id, status);

CREATE TABLE IF NOT EXISTS contracts (
    id BIGINT PRIMARY KEY,
    owner_id BIGINT NOT NULL,
    created_at BIGINT NOT NULL,
    doc BYTEA NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_contracts_owner ON contracts(owner_id, created_at);

CREATE TABLE IF NOT EXISTS smart_contracts (
    id BIGINT PRIMARY KEY,
    owner_id BIGINT NOT NULL,
    created_at BIGINT NOT NULL,
    doc BYTEA NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_smart_contracts_owner ON smart_contracts(owner_id, created_at);

CREATE TABLE IF NOT EXISTS disputes (
    id BIGINT PRIMARY KEY,
    owner_id BIGINT NOT NULL,
    user_id BIGINT NOT NULL,
    status VARCHAR(32) NOT NULL,
    created_at BIGINT NOT NULL,
    doc BYTEA NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_disputes_owner_status ON disputes(owner_id, status);
CREATE INDEX IF NOT EXISTS idx_disputes_user ON disputes(user_id);

CREATE TABLE IF NOT EXISTS projects (
    id BIGINT PRIMARY KEY,
    owner_id BIGINT NOT NULL,
    title VARCHAR(500) NOT NULL,
    date BIGINT NOT NULL,
    created_at BIGINT NOT NULL,
    doc BYTEA NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_projects_owner_date ON projects(owner_id, date);

CREATE TABLE IF NOT EXISTS subscriptions (
    id BIGINT PRIMARY KEY,
    user_id BIGINT NOT NULL,
    status VARCHAR(32) NOT NULL,
    end_date BIGINT NOT NULL,
    created_at BIGINT NOT NULL,
    doc BYTEA NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_subscriptions_active_user ON subscriptions(user_id) WHERE status = 'Active';
CREATE INDEX IF NOT EXISTS idx_subscriptions_status_end ON subscriptions(status, end_date);
`
