package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	globalConfig *Config
	loadErr      error
	once         sync.Once
)

// ErrMissingDSN 未配置元数据存储连接串
var ErrMissingDSN = errors.New("STORE_DSN (or MONGO_URI) is not set")

// DefaultUserAgent 默认浏览器标识，减少被简单屏蔽的概率
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config 扁平化配置结构体
type Config struct {
	// 元数据存储
	StoreDSN      string `mapstructure:"store_dsn"`
	StoreDatabase string `mapstructure:"store_database"`

	DBMaxOpenConns    int `mapstructure:"db_max_open_conns"`
	DBMaxIdleConns    int `mapstructure:"db_max_idle_conns"`
	DBConnMaxLifetime int `mapstructure:"db_conn_max_lifetime"`

	// 二进制存储（SQL 存储使用）
	BlobStorage   string `mapstructure:"blob_storage"`
	BlobLocalPath string `mapstructure:"blob_local_path"`

	MinioEndpoint        string `mapstructure:"minio_endpoint"`
	MinioAccessKeyID     string `mapstructure:"minio_access_key_id"`
	MinioSecretAccessKey string `mapstructure:"minio_secret_access_key"`
	MinioBucketName      string `mapstructure:"minio_bucket_name"`
	MinioUseSSL          bool   `mapstructure:"minio_use_ssl"`

	WebDAVURL      string        `mapstructure:"webdav_url"`
	WebDAVUsername string        `mapstructure:"webdav_username"`
	WebDAVPassword string        `mapstructure:"webdav_password"`
	WebDAVRootPath string        `mapstructure:"webdav_root_path"`
	WebDAVTimeout  time.Duration `mapstructure:"webdav_timeout"`

	// 目录
	ImageDir  string `mapstructure:"image_dir"`
	ExportDir string `mapstructure:"export_dir"`

	// 下载
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`
	FetchUserAgent string        `mapstructure:"fetch_user_agent"`
	FetchMaxBytes  int64         `mapstructure:"fetch_max_bytes"`
	FetchRateLimit float64       `mapstructure:"fetch_rate_limit"`
	FetchWorkers   int           `mapstructure:"fetch_workers"`

	// 采集流水线
	MinImageBytes       int    `mapstructure:"min_image_bytes"`
	CandidateMultiplier int    `mapstructure:"candidate_multiplier"`
	JPEGQuality         int    `mapstructure:"jpeg_quality"`
	ImageEncoder        string `mapstructure:"image_encoder"`

	// URL 发现
	DiscoveryEndpoint string        `mapstructure:"discovery_endpoint"`
	DiscoveryPages    int           `mapstructure:"discovery_pages"`
	DiscoveryWait     time.Duration `mapstructure:"discovery_wait"`

	// 缓存
	CacheType          string        `mapstructure:"cache_type"`
	CacheTTL           time.Duration `mapstructure:"cache_ttl"`
	CacheMaxEntries    int64         `mapstructure:"cache_max_entries"`
	CacheRedisAddr     string        `mapstructure:"cache_redis_addr"`
	CacheRedisPassword string        `mapstructure:"cache_redis_password"`
	CacheRedisDB       int           `mapstructure:"cache_redis_db"`

	// 日志
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`

	// HTTP 服务
	ServerHost         string        `mapstructure:"server_host"`
	ServerPort         int           `mapstructure:"server_port"`
	ServerReadTimeout  time.Duration `mapstructure:"server_read_timeout"`
	ServerWriteTimeout time.Duration `mapstructure:"server_write_timeout"`
	ServerCORSOrigins  string        `mapstructure:"server_cors_origins"`
	// 采集接口限流与并发
	ServerAcquireRPS        float64 `mapstructure:"server_acquire_rps"`
	ServerAcquireBurst      int     `mapstructure:"server_acquire_burst"`
	ServerAcquireConcurrent int     `mapstructure:"server_acquire_concurrent"`
}

// InitConfig Initialize configuration
func InitConfig() error {
	once.Do(func() {
		globalConfig, loadErr = Load(viper.GetString("config_file_path"))
	})
	return loadErr
}

// Get 返回全局配置，需先调用 InitConfig
func Get() *Config {
	return globalConfig
}

// Load 从 env 文件与环境变量加载配置
// envFile 为空时尝试读取当前目录下的 .env
func Load(envFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if envFile == "" {
		envFile = ".env"
	}
	v.SetConfigFile(envFile)
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Info: %s not found, using defaults and environment variables\n", envFile)
	}

	v.AutomaticEnv()
	for _, key := range v.AllKeys() {
		_ = v.BindEnv(key)
	}
	// 兼容旧的 MONGO_URI 变量名
	_ = v.BindEnv("store_dsn", "STORE_DSN", "MONGO_URI")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config: %w", err)
	}

	cfg.normalize()

	if strings.TrimSpace(cfg.StoreDSN) == "" {
		return &cfg, ErrMissingDSN
	}
	return &cfg, nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("store_dsn", "")
	v.SetDefault("store_database", "image_scraper")
	v.SetDefault("db_max_open_conns", 25)
	v.SetDefault("db_max_idle_conns", 10)
	v.SetDefault("db_conn_max_lifetime", 3600)

	v.SetDefault("blob_storage", "local")
	v.SetDefault("blob_local_path", "./data/blobs")
	v.SetDefault("minio_endpoint", "")
	v.SetDefault("minio_access_key_id", "")
	v.SetDefault("minio_secret_access_key", "")
	v.SetDefault("minio_bucket_name", "images")
	v.SetDefault("minio_use_ssl", false)
	v.SetDefault("webdav_url", "")
	v.SetDefault("webdav_username", "")
	v.SetDefault("webdav_password", "")
	v.SetDefault("webdav_root_path", "")
	v.SetDefault("webdav_timeout", "30s")

	v.SetDefault("image_dir", "images")
	v.SetDefault("export_dir", "exported_images")

	v.SetDefault("fetch_timeout", "15s")
	v.SetDefault("fetch_user_agent", DefaultUserAgent)
	v.SetDefault("fetch_max_bytes", 50*1024*1024)
	v.SetDefault("fetch_rate_limit", 0.0)
	v.SetDefault("fetch_workers", 0) // 0 表示使用默认值

	v.SetDefault("min_image_bytes", 10_000)
	v.SetDefault("candidate_multiplier", 20)
	v.SetDefault("jpeg_quality", 95)
	v.SetDefault("image_encoder", "std")

	v.SetDefault("discovery_endpoint", "https://www.bing.com/images/search")
	v.SetDefault("discovery_pages", 5)
	v.SetDefault("discovery_wait", "2s")

	v.SetDefault("cache_type", "memory")
	v.SetDefault("cache_ttl", "24h")
	v.SetDefault("cache_max_entries", 100_000)
	v.SetDefault("cache_redis_addr", "localhost:6379")
	v.SetDefault("cache_redis_password", "")
	v.SetDefault("cache_redis_db", 0)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("log_file", "")

	v.SetDefault("server_host", "127.0.0.1")
	v.SetDefault("server_port", 8080)
	v.SetDefault("server_read_timeout", "30s")
	v.SetDefault("server_write_timeout", "10m")
	v.SetDefault("server_cors_origins", "*")
	v.SetDefault("server_acquire_rps", 1.0)
	v.SetDefault("server_acquire_burst", 3)
	v.SetDefault("server_acquire_concurrent", 4)
}

// normalize 修正越界的配置值
func (c *Config) normalize() {
	// FetchWorkers: -1 = 使用 CPU 线程数, 0 = 使用默认值 (max(2, CPU核心数)), >0 = 使用指定值
	switch {
	case c.FetchWorkers < 0:
		c.FetchWorkers = runtime.GOMAXPROCS(0)
	case c.FetchWorkers == 0:
		c.FetchWorkers = getCpus()
	}

	if c.CandidateMultiplier <= 0 {
		c.CandidateMultiplier = 20
	}
	if c.JPEGQuality <= 0 || c.JPEGQuality > 100 {
		c.JPEGQuality = 95
	}
	if c.MinImageBytes < 0 {
		c.MinImageBytes = 0
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 15 * time.Second
	}
	if c.DiscoveryPages <= 0 {
		c.DiscoveryPages = 1
	}
	c.BlobStorage = strings.ToLower(strings.TrimSpace(c.BlobStorage))
	c.CacheType = strings.ToLower(strings.TrimSpace(c.CacheType))
}

// Addr 返回监听地址，格式为 "host:port"
func (c *Config) Addr() string {
	host := c.ServerHost
	if host == "" {
		host = "0.0.0.0"
	}
	port := c.ServerPort
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// CORSOrigins 解析逗号分隔的允许来源
func (c *Config) CORSOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.ServerCORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// BlobOptions 返回当前二进制存储后端的原始配置项，由 storage 包解码
func (c *Config) BlobOptions() map[string]interface{} {
	switch c.BlobStorage {
	case "minio":
		return map[string]interface{}{
			"endpoint":          c.MinioEndpoint,
			"access_key_id":     c.MinioAccessKeyID,
			"secret_access_key": c.MinioSecretAccessKey,
			"bucket_name":       c.MinioBucketName,
			"use_ssl":           c.MinioUseSSL,
		}
	case "webdav":
		return map[string]interface{}{
			"url":       c.WebDAVURL,
			"username":  c.WebDAVUsername,
			"password":  c.WebDAVPassword,
			"root_path": c.WebDAVRootPath,
			"timeout":   c.WebDAVTimeout,
		}
	default:
		return map[string]interface{}{
			"path": c.BlobLocalPath,
		}
	}
}

// getCpus 获取默认线程数量
func getCpus() int {
	n := runtime.GOMAXPROCS(0)
	if n < 2 {
		return 2
	}
	return n
}
