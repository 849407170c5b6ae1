package repository

import (
	"context"
	"fmt"
	"slices"

	"pocketfiler/internal/shared/storage"
)

// NextID 为集合分配下一个 ID
//
// sequences 表每个集合一行。首次分配时以表中现有最大 id 为起点，
// 之后由 UPSERT 原子递增，并发调用得到互不相同的值。
func (s *Store) NextID(ctx context.Context, collection string) (int64, error) {
	// 表名直接拼接进 SQL，只接受已知集合
	if !slices.Contains(storage.Collections, collection) {
		return 0, fmt.Errorf("repository: unknown collection %q", collection)
	}

	query := s.rebind(fmt.Sprintf(`
		INSERT INTO sequences (name, value)
		VALUES ($1, (SELECT COALESCE(MAX(id), 0) FROM %s) + 1)
		%s
		RETURNING value`,
		collection,
		s.dialect.UpsertConflict("name", []string{"value = sequences.value + 1"})))

	var id int64
	if err := s.db.QueryRowContext(ctx, query, collection).Scan(&id); err != nil {
		return 0, fmt.Errorf("repository: next id for %s: %w", collection, err)
	}
	return id, nil
}
