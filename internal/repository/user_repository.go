package repository

import (
	"context"

	"ecbackend/internal/domain/model"
)

// 参照だけを約束
type UserRepository interface {
	// IDからユーザーを1件取得する。無ければ(nil, nil)。
	FindByID(ctx context.Context, userID int64) (*model.User, error)
}
