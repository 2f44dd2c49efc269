package cache

import "github.com/anoixa/image-scraper/cache/types"

// Provider 缓存提供者接口
type Provider = types.Cache
