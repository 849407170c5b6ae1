// Package storage 定义存储层接口与领域错误
//
// 各驱动实现（mongostore / repository）负责将底层错误转换为这些领域错误，
// 业务层只依赖这里的接口和错误值。
package storage

import "errors"

var (
	// ErrNotFound 实体不存在
	// 替代 sql.ErrNoRows / mongo.ErrNoDocuments
	ErrNotFound = errors.New("entity not found")

	// ErrConflict 条件更新的前置状态不满足（状态已被其他请求修改）
	ErrConflict = errors.New("conflict: entity is not in the expected state")

	// ErrDuplicate 唯一键冲突
	ErrDuplicate = errors.New("duplicate: entity already exists")
)
