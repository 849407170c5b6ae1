package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// 初始化计数器时的最大重试次数
const maxCounterAttempts = 5

type counter struct {
	Seq int64 `bson:"seq"`
}

// NextID 为集合分配下一个 ID
//
// counters 集合中每个业务集合一个计数器文档 {_id: <collection>, seq: n}，
// 通过 $inc 原子递增。计数器不存在时先用集合当前最大 id 播种（$max 幂等），
// 再重新递增，因此空集合得到 1，已有数据不会被覆盖。
func (s *Store) NextID(ctx context.Context, collection string) (int64, error) {
	filter := bson.D{{Key: "_id", Value: collection}}
	inc := bson.D{{Key: "$inc", Value: bson.D{{Key: "seq", Value: int64(1)}}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	for attempt := 0; attempt < maxCounterAttempts; attempt++ {
		var c counter
		err := s.col(ColCounters).FindOneAndUpdate(ctx, filter, inc, opts).Decode(&c)
		if err == nil {
			return c.Seq, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return 0, fmt.Errorf("mongostore: next id for %s: %w", collection, err)
		}
		if err := s.seedCounter(ctx, collection); err != nil {
			return 0, err
		}
	}
	return 0, fmt.Errorf("mongostore: counter for %s could not be initialised", collection)
}

// seedCounter 用集合当前最大 id 初始化计数器
func (s *Store) seedCounter(ctx context.Context, collection string) error {
	maxID, err := s.maxID(ctx, collection)
	if err != nil {
		return err
	}

	_, err = s.col(ColCounters).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: collection}},
		bson.D{{Key: "$max", Value: bson.D{{Key: "seq", Value: maxID}}}},
		options.UpdateOne().SetUpsert(true),
	)
	// 并发播种时另一方已插入计数器
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("mongostore: seed counter %s: %w", collection, err)
	}
	return nil
}

func (s *Store) maxID(ctx context.Context, collection string) (int64, error) {
	opts := options.FindOne().
		SetSort(bson.D{{Key: "id", Value: -1}}).
		SetProjection(bson.D{{Key: "id", Value: 1}})

	var doc struct {
		ID int64 `bson:"id"`
	}
	err := s.col(collection).FindOne(ctx, bson.D{}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("mongostore: max id for %s: %w", collection, err)
	}
	return doc.ID, nil
}

// create 分配 ID 后插入文档，插入失败时回滚调用方对象上的 ID
func create(ctx context.Context, s *Store, collection string, doc interface{}, setID func(int64)) error {
	id, err := s.NextID(ctx, collection)
	if err != nil {
		return err
	}
	setID(id)
	if err := insertOne(ctx, s.col(collection), doc); err != nil {
		setID(0)
		return err
	}
	return nil
}
