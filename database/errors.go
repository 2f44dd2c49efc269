package database

import "errors"

var (
	// ErrDuplicate 校验和已存在（唯一约束冲突）
	ErrDuplicate = errors.New("database: duplicate checksum")

	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("database: record not found")
)
