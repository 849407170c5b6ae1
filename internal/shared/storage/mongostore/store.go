// Package mongostore 实现基于 MongoDB 的 storage.Store
//
// 使用 mongo-go-driver v2，通过 bson tag 实现 model 结构体的序列化/反序列化。
// 对外 ID 为 id 字段（按集合递增的整数），_id 由驱动自动生成。
// 所有 Collection 名称和索引在 ensureIndexes 中统一管理。
package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"pocketfiler/internal/shared/storage"
)

// Collection 名称常量
const (
	ColAccounts       = storage.CollectionAccounts
	ColAssociates     = storage.CollectionAssociates
	ColContracts      = storage.CollectionContracts
	ColDisputes       = storage.CollectionDisputes
	ColProjects       = storage.CollectionProjects
	ColSmartContracts = storage.CollectionSmartContracts
	ColSubscriptions  = storage.CollectionSubscriptions
	ColCounters       = "counters"
)

// Store 实现 storage.Store 接口的 MongoDB 驱动
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ storage.Store = (*Store)(nil)

// NewStore 创建 MongoDB 存储实例
//
// uri: MongoDB 连接 URI，如 "mongodb://localhost:27017"
// dbName: 数据库名称，如 "pocketfiler"
func NewStore(uri, dbName string) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect failed: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: ping failed: %w", err)
	}

	s := &Store{client: client, db: client.Database(dbName)}

	// 唯一索引承载业务约束，建不出来就不能启动
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: ensure indexes failed: %w", err)
	}

	return s, nil
}

// Ping 检查连接
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close 关闭 MongoDB 连接
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// col 获取指定 Collection
func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// ensureIndexes 创建所有必要的索引
func (s *Store) ensureIndexes(ctx context.Context) error {
	type idx struct {
		col  string
		keys bson.D
		opts *options.IndexOptionsBuilder
	}

	unique := func() *options.IndexOptionsBuilder { return options.Index().SetUnique(true) }
	sparseUnique := func() *options.IndexOptionsBuilder { return options.Index().SetUnique(true).SetSparse(true) }

	indexes := []idx{
		// 每个序列化集合的对外 ID
		{ColAccounts, bson.D{{Key: "id", Value: 1}}, unique()},
		{ColAssociates, bson.D{{Key: "id", Value: 1}}, unique()},
		{ColContracts, bson.D{{Key: "id", Value: 1}}, unique()},
		{ColDisputes, bson.D{{Key: "id", Value: 1}}, unique()},
		{ColProjects, bson.D{{Key: "id", Value: 1}}, unique()},
		{ColSmartContracts, bson.D{{Key: "id", Value: 1}}, unique()},
		{ColSubscriptions, bson.D{{Key: "id", Value: 1}}, unique()},

		// accounts
		{ColAccounts, bson.D{{Key: "email", Value: 1}}, unique()},
		{ColAccounts, bson.D{{Key: "reset_token", Value: 1}}, sparseUnique()},

		// associates
		{ColAssociates, bson.D{{Key: "email", Value: 1}}, unique()},
		{ColAssociates, bson.D{{Key: "invitation_token", Value: 1}}, sparseUnique()},
		{ColAssociates, bson.D{{Key: "owner_id", Value: 1}, {Key: "status", Value: 1}}, nil},

		// contracts
		{ColContracts, bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}, nil},
		{ColSmartContracts, bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}, nil},

		// disputes
		{ColDisputes, bson.D{{Key: "owner_id", Value: 1}, {Key: "status", Value: 1}}, nil},
		{ColDisputes, bson.D{{Key: "user_id", Value: 1}}, nil},

		// projects
		{ColProjects, bson.D{{Key: "owner_id", Value: 1}, {Key: "date", Value: -1}}, nil},

		// subscriptions: 每个用户最多一个 Active
		{ColSubscriptions, bson.D{{Key: "user_id", Value: 1}},
			options.Index().SetUnique(true).SetPartialFilterExpression(
				bson.D{{Key: "status", Value: "Active"}})},
		{ColSubscriptions, bson.D{{Key: "status", Value: 1}, {Key: "end_date", Value: 1}}, nil},
	}

	for _, i := range indexes {
		model := mongo.IndexModel{Keys: i.keys}
		if i.opts != nil {
			model.Options = i.opts
		}
		if _, err := s.col(i.col).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("create index on %s: %w", i.col, err)
		}
	}

	return nil
}
