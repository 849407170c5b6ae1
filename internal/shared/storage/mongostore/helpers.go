package mongostore

import (
	"context"
	"errors"
	"regexp"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"pocketfiler/internal/shared/storage"
)

// wrapError 将 MongoDB 错误转换为领域错误
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storage.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return storage.ErrDuplicate
	}
	return err
}

func byID(id int64) bson.D {
	return bson.D{{Key: "id", Value: id}}
}

// findOne 查找单个文档，不存在返回 storage.ErrNotFound
func findOne[T any](ctx context.Context, col *mongo.Collection, filter bson.D) (*T, error) {
	var result T
	if err := col.FindOne(ctx, filter).Decode(&result); err != nil {
		return nil, wrapError(err)
	}
	return &result, nil
}

// findMany 查找多个文档
func findMany[T any](ctx context.Context, col *mongo.Collection, filter bson.D, opts ...options.Lister[options.FindOptions]) ([]*T, error) {
	cursor, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, wrapError(err)
	}
	defer cursor.Close(ctx)

	var results []*T
	for cursor.Next(ctx) {
		var item T
		if err := cursor.Decode(&item); err != nil {
			return nil, err
		}
		results = append(results, &item)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	if results == nil {
		results = []*T{}
	}
	return results, nil
}

// findPage 统计总数并按分页参数查询
func findPage[T any](ctx context.Context, col *mongo.Collection, filter bson.D, sort bson.D, limit, offset int) ([]*T, int, error) {
	total, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, wrapError(err)
	}

	opts := options.Find().SetSort(sort)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	items, err := findMany[T](ctx, col, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return items, int(total), nil
}

// insertOne 插入单个文档
func insertOne(ctx context.Context, col *mongo.Collection, doc interface{}) error {
	_, err := col.InsertOne(ctx, doc)
	return wrapError(err)
}

// guardedUpdate 按 id + 前置条件原子更新并返回更新后的文档
//
// 文档不存在返回 ErrNotFound；存在但前置条件不满足返回 ErrConflict。
func guardedUpdate[T any](ctx context.Context, col *mongo.Collection, id int64, guard bson.D, update bson.D) (*T, error) {
	filter := append(byID(id), guard...)
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var result T
	err := col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&result)
	if err == nil {
		return &result, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, wrapError(err)
	}

	n, cerr := col.CountDocuments(ctx, byID(id))
	if cerr != nil {
		return nil, wrapError(cerr)
	}
	if n == 0 {
		return nil, storage.ErrNotFound
	}
	return nil, storage.ErrConflict
}

// containsFold 大小写不敏感的字面子串匹配
func containsFold(s string) bson.D {
	return bson.D{
		{Key: "$regex", Value: regexp.QuoteMeta(s)},
		{Key: "$options", Value: "i"},
	}
}

func set(fields bson.D) bson.E {
	return bson.E{Key: "$set", Value: fields}
}
