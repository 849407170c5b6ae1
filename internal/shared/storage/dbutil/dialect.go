// Package dbutil 提供数据库方言抽象和工具函数
//
// 通过 Dialect 接口屏蔽不同数据库（PostgreSQL、SQLite）的 SQL 差异，
// 使 repository 层可以编写与数据库无关的存储逻辑。
package dbutil

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// DriverType 数据库驱动类型
type DriverType string

const (
	DriverPostgres DriverType = "postgres"
	DriverSQLite   DriverType = "sqlite"
)

// Dialect 数据库方言接口
//
// 不同数据库的 SQL 语法差异通过该接口屏蔽：
//   - 占位符：PostgreSQL 用 $1, $2；SQLite 用 ?
//   - 行锁：PostgreSQL 支持 SELECT ... FOR UPDATE；SQLite 靠单连接串行化
//   - 唯一约束冲突的错误形态
//   - 大小写折叠：SQLite 内置 LOWER 只处理 ASCII
type Dialect interface {
	// DriverType 返回驱动类型标识
	DriverType() DriverType

	// Rebind 将 PostgreSQL 风格的占位符 ($1, $2, ...) 转换为目标数据库的占位符格式
	Rebind(query string) string

	// UpsertConflict 生成 UPSERT 的冲突处理子句
	// conflictColumn: 冲突检测列
	// updateExprs: 更新表达式列表，如 "value = sequences.value + 1"
	UpsertConflict(conflictColumn string, updateExprs []string) string

	// LockClause 事务内读取待修改行时追加的锁子句（不支持时返回空字符串）
	LockClause() string

	// FoldCase 返回对 expr 做 Unicode 小写折叠的 SQL 表达式
	FoldCase(expr string) string

	// IsUniqueViolation 判断错误是否为唯一约束冲突
	IsUniqueViolation(err error) bool

	// AutoMigrate 自动创建/迁移数据库 Schema
	AutoMigrate(db *sql.DB) error
}

// pgPlaceholderRe 匹配 PostgreSQL 风格占位符 $1, $2, ...
var pgPlaceholderRe = regexp.MustCompile(`\$(\d+)`)

// pgCastRe 匹配 PostgreSQL 类型转换 ::type
var pgCastRe = regexp.MustCompile(`::(\w+)`)

// RebindToPositional 保持 $N 占位符不变（PostgreSQL 专用）
func RebindToPositional(query string) string {
	return query
}

// RebindToQuestion 将 $N 占位符转换为 ?（SQLite 专用）
//
// 要求占位符按出现顺序编号且不重复使用。
func RebindToQuestion(query string) string {
	return pgPlaceholderRe.ReplaceAllString(query, "?")
}

// StripPgCasts 去除 PostgreSQL 类型转换 (::varchar, ::text 等)
func StripPgCasts(query string) string {
	return pgCastRe.ReplaceAllString(query, "")
}

// OnConflictUpdate ON CONFLICT ... DO UPDATE 子句，PostgreSQL 与 SQLite 语法一致
func OnConflictUpdate(conflictColumn string, updateExprs []string) string {
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", conflictColumn, strings.Join(updateExprs, ", "))
}

// BuildDynamicQuery 构建动态 WHERE 条件的查询
// 根据方言自动调整占位符
func BuildDynamicQuery(d Dialect, baseQuery string, conditions []string, args []interface{}) (string, []interface{}) {
	if len(conditions) > 0 {
		baseQuery += " WHERE " + strings.Join(conditions, " AND ")
	}
	return d.Rebind(baseQuery), args
}

// PlaceholderList 生成指定数量的占位符列表，如 "$1, $2, $3"
func PlaceholderList(d Dialect, start, count int) string {
	parts := make([]string, count)
	for i := 0; i < count; i++ {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return d.Rebind(strings.Join(parts, ", "))
}

// EscapeLike 转义 LIKE 模式中的通配符，配合 ESCAPE '\' 使用
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
