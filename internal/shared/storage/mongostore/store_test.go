package mongostore

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"

	"pocketfiler/internal/shared/storage"
	"pocketfiler/internal/shared/storage/storagetest"
)

var dbSeq atomic.Int64

// testStore 创建测试用 Store，每个用例使用独立数据库避免互相污染
func testStore(t *testing.T) storage.Store {
	t.Helper()

	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	dbName := fmt.Sprintf("pocketfiler_test_%d_%d", os.Getpid(), dbSeq.Add(1))
	s, err := NewStore(uri, dbName)
	if err != nil {
		t.Skipf("MongoDB not available: %v", err)
	}

	t.Cleanup(func() {
		s.db.Drop(context.Background())
		s.Close()
	})

	return s
}

func TestStore(t *testing.T) {
	storagetest.Run(t, testStore)
}
