package core

import (
	"context"
	"time"

	"github.com/anoixa/image-scraper/database"
)

const healthTimeout = 3 * time.Second

// checkStoreHealth 检查元数据存储连接
func checkStoreHealth(ctx context.Context, store database.ImageStore) string {
	if store == nil {
		return "not initialized"
	}

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	if err := store.Ping(ctx); err != nil {
		return "unavailable: " + err.Error()
	}
	return "ok"
}
