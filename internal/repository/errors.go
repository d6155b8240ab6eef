package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// 一意制約違反（注文番号・冪等キーの衝突など）
	ErrDuplicate = errors.New("duplicate")
)
