package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"pocketfiler/internal/shared/storage"
	"pocketfiler/internal/shared/storage/dbutil"
)

// table 描述一个实体表：除 id 和 doc 之外的标量列及其取值
type table[T any] struct {
	name    string
	columns []string
	values  func(*T) []interface{}
	setID   func(*T, int64)
}

// where 以 PG 风格占位符累积查询条件
type where struct {
	conds []string
	args  []interface{}
}

// add 追加条件，cond 中的 %d 替换为占位符序号
func (w *where) add(cond string, arg interface{}) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(cond, len(w.args)))
}

func (w *where) clause() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func encode(v interface{}) ([]byte, error) {
	doc, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("repository: encode: %w", err)
	}
	return doc, nil
}

func decode[T any](doc []byte) (*T, error) {
	var v T
	if err := bson.Unmarshal(doc, &v); err != nil {
		return nil, fmt.Errorf("repository: decode: %w", err)
	}
	return &v, nil
}

// insert 分配 ID 后写入，失败时回滚调用方对象上的 ID
func insert[T any](ctx context.Context, s *Store, t table[T], v *T) (err error) {
	defer func(start time.Time) { s.observe("insert", t.name, start, err) }(time.Now())

	id, err := s.NextID(ctx, t.name)
	if err != nil {
		return err
	}
	t.setID(v, id)

	doc, err := encode(v)
	if err != nil {
		t.setID(v, 0)
		return err
	}

	cols := append([]string{"id"}, t.columns...)
	cols = append(cols, "doc")
	args := append([]interface{}{id}, t.values(v)...)
	args = append(args, doc)

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.name, strings.Join(cols, ", "), dbutil.PlaceholderList(s.dialect, 1, len(cols)))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		t.setID(v, 0)
		return s.wrapError(err)
	}
	return nil
}

// getOne 按条件读取单行，不存在返回 storage.ErrNotFound
func getOne[T any](ctx context.Context, s *Store, t table[T], w where) (*T, error) {
	query := s.rebind(fmt.Sprintf("SELECT doc FROM %s%s LIMIT 1", t.name, w.clause()))
	var doc []byte
	if err := s.db.QueryRowContext(ctx, query, w.args...).Scan(&doc); err != nil {
		return nil, s.wrapError(err)
	}
	return decode[T](doc)
}

func getByID[T any](ctx context.Context, s *Store, t table[T], id int64) (*T, error) {
	var w where
	w.add("id = $%d", id)
	return getOne(ctx, s, t, w)
}

// listDocs 按条件和排序读取多行，limit 为 0 表示不限
func listDocs[T any](ctx context.Context, s *Store, t table[T], w where, orderBy string, limit, offset int) ([]*T, error) {
	query := fmt.Sprintf("SELECT doc FROM %s%s ORDER BY %s", t.name, w.clause(), orderBy)
	args := w.args
	if limit > 0 {
		args = append(args[:len(args):len(args)], limit, offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, s.wrapError(err)
	}
	defer rows.Close()

	items := []*T{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		v, err := decode[T](doc)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

func count(ctx context.Context, s *Store, tableName string, w where) (int, error) {
	query, args := dbutil.BuildDynamicQuery(s.dialect, "SELECT COUNT(*) FROM "+tableName, w.conds, w.args)
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, s.wrapError(err)
	}
	return n, nil
}

// listPage 返回当前页数据和满足条件的总数
func listPage[T any](ctx context.Context, s *Store, t table[T], w where, orderBy string, limit, offset int) (_ []*T, _ int, err error) {
	defer func(start time.Time) { s.observe("list", t.name, start, err) }(time.Now())

	total, err := count(ctx, s, t.name, w)
	if err != nil {
		return nil, 0, err
	}
	items, err := listDocs(ctx, s, t, w, orderBy, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// mutate 在事务中读取-修改-写回一行
//
// fn 返回错误时不写入并原样返回该错误（通常为 storage.ErrConflict）。
func mutate[T any](ctx context.Context, s *Store, t table[T], id int64, fn func(*T) error) (_ *T, err error) {
	defer func(start time.Time) { s.observe("update", t.name, start, err) }(time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := s.rebind(fmt.Sprintf("SELECT doc FROM %s WHERE id = $1 %s", t.name, s.dialect.LockClause()))
	var doc []byte
	if err := tx.QueryRowContext(ctx, query, id).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	v, err := decode[T](doc)
	if err != nil {
		return nil, err
	}
	if err := fn(v); err != nil {
		return nil, err
	}

	if doc, err = encode(v); err != nil {
		return nil, err
	}

	sets := make([]string, 0, len(t.columns)+1)
	for i, col := range t.columns {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i+1))
	}
	sets = append(sets, fmt.Sprintf("doc = $%d", len(t.columns)+1))
	args := append(t.values(v), doc, id)

	update := s.rebind(fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", t.name, strings.Join(sets, ", "), len(args)))
	if _, err := tx.ExecContext(ctx, update, args...); err != nil {
		return nil, s.wrapError(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return v, nil
}

// millis 时间列统一存 Unix 毫秒
func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// nullable 空字符串存为 NULL，使可选的唯一列允许多行为空
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
