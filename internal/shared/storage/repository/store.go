// Package repository 数据库无关的 storage.Store 实现
//
// 通过 dbutil.Dialect 接口屏蔽不同数据库的 SQL 差异，
// 所有 SQL 以 PostgreSQL 风格编写，运行时由 Dialect.Rebind() 转换。
//
// 每张表保存实体的 BSON 编码（doc 列）以及少量用于约束、过滤和排序的标量列。
// 条件更新在事务中读取-修改-写回，PostgreSQL 下对目标行加锁。
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"pocketfiler/internal/shared/storage"
	"pocketfiler/internal/shared/storage/dbutil"
	"pocketfiler/pkg/logging"
)

// Store 通用存储实现
type Store struct {
	db      *sql.DB
	dialect dbutil.Dialect
	log     *logging.Logger
}

var _ storage.Store = (*Store)(nil)

// NewStore 创建通用存储
func NewStore(db *sql.DB, dialect dbutil.Dialect) *Store {
	return &Store{db: db, dialect: dialect, log: logging.Default("repository")}
}

// observe 记录查询耗时；未找到、冲突、重复属于正常业务结果，不作为失败记录
func (s *Store) observe(operation, table string, start time.Time, err error) {
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrConflict) || errors.Is(err, storage.ErrDuplicate) {
		err = nil
	}
	s.log.DBQueryLog(operation, table, time.Since(start), err)
}

// Ping 检查连接
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	return s.db.Close()
}

// DB 返回底层数据库连接（仅用于测试）
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect 返回当前方言
func (s *Store) Dialect() dbutil.Dialect {
	return s.dialect
}

// rebind 快捷方法：将 PG 风格 SQL 转换为当前方言
func (s *Store) rebind(query string) string {
	return s.dialect.Rebind(query)
}

// wrapError 将驱动错误转换为领域错误
func (s *Store) wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if s.dialect.IsUniqueViolation(err) {
		return storage.ErrDuplicate
	}
	return err
}
