// Package sqlite SQLite 数据库驱动
//
// 提供 SQLite 连接管理、方言实现和自动 Schema 迁移。
// 适用于开发、测试和单机部署场景。
package sqlite

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"pocketfiler/internal/shared/storage/dbutil"
)

// foldFunc 注册到每个新连接的 Unicode 小写函数名
const foldFunc = "unicode_lower"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(foldFunc, 1, unicodeLower)
}

// unicodeLower 内置 LOWER 只折叠 ASCII，"Älpha" 需要按 Go 的 Unicode 规则处理
func unicodeLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// Dialect SQLite 方言实现
type Dialect struct{}

var _ dbutil.Dialect = (*Dialect)(nil)

func (d *Dialect) DriverType() dbutil.DriverType {
	return dbutil.DriverSQLite
}

func (d *Dialect) Rebind(query string) string {
	return dbutil.StripPgCasts(dbutil.RebindToQuestion(query))
}

func (d *Dialect) UpsertConflict(conflictColumn string, updateExprs []string) string {
	return dbutil.OnConflictUpdate(conflictColumn, updateExprs)
}

// LockClause SQLite 不支持行锁，连接池限制为单连接后事务天然串行
func (d *Dialect) LockClause() string {
	return ""
}

func (d *Dialect) FoldCase(expr string) string {
	return foldFunc + "(" + expr + ")"
}

func (d *Dialect) IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (d *Dialect) AutoMigrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// Open 创建 SQLite 数据库连接
// dsn 示例: "file:pocketfiler.db?mode=rwc" 或 ":memory:"
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// 单连接：写操作串行化，:memory: 库在所有请求间共享
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", p, err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	return db, nil
}

// NewDialect 创建 SQLite 方言
func NewDialect() *Dialect {
	return &Dialect{}
}

// schema SQLite 完整建表语句（与 PostgreSQL 版本保持一致）
//
// 实体完整内容以 BSON 存于 doc 列，其余列只用于约束、过滤和排序。
// 时间列存 Unix 毫秒。
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
    doc BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS associates (
    id BIGINT PRIMARY KEY,
    owner_id BIGINT NOT NULL,
    email VARCHAR(320) NOT NULL UNIQUE,
    invitation_token VARCHAR(128) UNIQUE,
    status VARCHAR(32) NOT NULL,
    created_at BIGINT NOT NULL,
    doc BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_associates_owner_status ON associates(owner_id, status);

CREATE TABLE IF NOT EXISTS contracts (
    id BIGINT PRIMARY KEY,
    owner_id BIGINT NOT NULL,
    created_at BIGINT NOT NULL,
    doc BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_contracts_owner ON contracts(owner_id, created_at);

CREATE TABLE IF NOT EXISTS smart_contracts (
    id BIGINT PRIMARY KEY,
    owner_id BIGINT NOT NULL,
    created_at BIGINT NOT NULL,
    doc BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_smart_contracts_owner ON smart_contracts(owner_id, created_at);

CREATE TABLE IF NOT EXISTS disputes (
    id BIGINT PRIMARY KEY,
    owner_id BIGINT NOT NULL,
    user_id BIGINT NOT NULL,
    status VARCHAR(32) NOT NULL,
    created_at BIGINT NOT NULL,
    doc BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_disputes_owner_status ON disputes(owner_id, status);
CREATE INDEX IF NOT EXISTS idx_disputes_user ON disputes(user_id);

CREATE TABLE IF NOT EXISTS projects (
    id BIGINT PRIMARY KEY,
    owner_id BIGINT NOT NULL,
    title VARCHAR(500) NOT NULL,
    date BIGINT NOT NULL,
    created_at BIGINT NOT NULL,
    doc BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_projects_owner_date ON projects(owner_id, date);

CREATE TABLE IF NOT EXISTS subscriptions (
    id BIGINT PRIMARY KEY,
    user_id BIGINT NOT NULL,
    status VARCHAR(32) NOT NULL,
    end_date BIGINT NOT NULL,
    created_at BIGINT NOT NULL,
    doc BLOB NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_subscriptions_active_user ON subscriptions(user_id) WHERE status = 'Active';
CREATE INDEX IF NOT EXISTS idx_subscriptions_status_end ON subscriptions(status, end_date);
`
