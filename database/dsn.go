package database

import (
	"fmt"
	"strings"
)

// Backend 元数据存储后端类型
type Backend string

const (
	BackendMongo    Backend = "mongodb"
	BackendPostgres Backend = "postgres"
	BackendSQLite   Backend = "sqlite"
)

// ParseDSN 根据连接串的 scheme 选择后端，并返回驱动可直接使用的 DSN
//
//	mongodb://, mongodb+srv://     -> MongoDB (GridFS)
//	postgres://, postgresql://     -> PostgreSQL
//	sqlite://<path>, file:<path>, *.db -> SQLite (WAL)
func ParseDSN(dsn string) (Backend, string, error) {
	dsn = strings.TrimSpace(dsn)
	lower := strings.ToLower(dsn)

	switch {
	case dsn == "":
		return "", "", fmt.Errorf("empty store DSN")
	case strings.HasPrefix(lower, "mongodb://"), strings.HasPrefix(lower, "mongodb+srv://"):
		return BackendMongo, dsn, nil
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return BackendPostgres, dsn, nil
	case strings.HasPrefix(lower, "sqlite://"):
		path := dsn[len("sqlite://"):]
		if path == "" {
			return "", "", fmt.Errorf("sqlite DSN is missing a path: %s", dsn)
		}
		return BackendSQLite, withSQLiteParams(path), nil
	case strings.HasPrefix(lower, "file:"):
		return BackendSQLite, withSQLiteParams(dsn), nil
	case strings.HasSuffix(lower, ".db"):
		return BackendSQLite, withSQLiteParams(dsn), nil
	default:
		return "", "", fmt.Errorf("unsupported store DSN scheme: %s", redact(dsn))
	}
}

// withSQLiteParams 启用 WAL 模式，已显式指定时不覆盖
func withSQLiteParams(path string) string {
	if strings.Contains(path, "_journal_mode=") || strings.Contains(path, ":memory:") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_journal_mode=WAL"
}

// redact 隐藏连接串中的凭据
func redact(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	return dsn[:scheme+3] + "***" + dsn[at:]
}
