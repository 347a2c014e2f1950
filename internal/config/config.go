// 包 config：集中读取服务配置；.env 文件先加载进环境变量，再由 envconfig 填充带默认值的结构体
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// 数据集来源
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

type Config struct {
	Server      ServerConfig
	Dataset     DatasetConfig
	Cache       CacheConfig
	Log         LogConfig
	Redis       RedisConfig
	Postgres    PostgresConfig
	GeoIP       GeoIPConfig
	RateLimit   RateLimitConfig
	TLS         TLSConfig
	OriginGuard OriginGuardConfig
}

type ServerConfig struct {
	Addr            string        `envconfig:"ADDR" default:":8080"`
	APIBase         string        `envconfig:"API_BASE" default:"/api"`
	AdminToken      string        `envconfig:"ADMIN_TOKEN"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
}

type DatasetConfig struct {
	Source         string        `envconfig:"DATASET_SOURCE" default:"file"`
	Path           string        `envconfig:"DATASET_PATH" default:"data/tz/timezones.tzs"`
	CellSize       float64       `envconfig:"CELL_SIZE" default:"1"`
	NearestRadius  float64       `envconfig:"NEAREST_RADIUS_KM" default:"0"`
	ReloadInterval time.Duration `envconfig:"RELOAD_INTERVAL" default:"0"`
}

type CacheConfig struct {
	Size     int           `envconfig:"CACHE_SIZE" default:"4096"`
	TTL      time.Duration `envconfig:"CACHE_TTL" default:"1h"`
	RedisTTL time.Duration `envconfig:"REDIS_CACHE_TTL" default:"24h"`
}

type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"text"`
}

type RedisConfig struct {
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	Host     string `envconfig:"REDIS_HOST" default:"127.0.0.1"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASS"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type PostgresConfig struct {
	Host         string `envconfig:"PG_HOST" default:"localhost"`
	Port         int    `envconfig:"PG_PORT" default:"5432"`
	User         string `envconfig:"PG_USER" default:"postgres"`
	Password     string `envconfig:"PG_PASSWORD"`
	Name         string `envconfig:"PG_DB" default:"tzsearch"`
	SSLMode      string `envconfig:"PG_SSLMODE" default:"disable"`
	MaxOpenConns int    `envconfig:"PG_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns int    `envconfig:"PG_MAX_IDLE_CONNS" default:"5"`
	// 记录查询统计；仅当数据集来源为 postgres 或显式开启时连接数据库
	Stats bool `envconfig:"PG_STATS" default:"false"`
}

// DSN 生成 lib/pq 可用的 URL 形式连接串
func (c PostgresConfig) DSN() string {
	dsn := "postgres://" + c.User
	if c.Password != "" {
		dsn += ":" + c.Password
	}
	return fmt.Sprintf("%s@%s:%d/%s?sslmode=%s", dsn, c.Host, c.Port, c.Name, c.SSLMode)
}

type GeoIPConfig struct {
	Path string `envconfig:"GEOIP_PATH"`
}

type RateLimitConfig struct {
	Enabled bool `envconfig:"RATE_LIMIT_ENABLED" default:"false"`
	QPS     int  `envconfig:"RATE_LIMIT_QPS" default:"200"`
}

type TLSConfig struct {
	Enabled  bool   `envconfig:"TLS_ENABLE" default:"false"`
	CertPath string `envconfig:"TLS_CERT_PATH" default:"data/certs/server.crt"`
	KeyPath  string `envconfig:"TLS_KEY_PATH" default:"data/certs/server.key"`
}

// OriginGuardConfig：源站白名单（部署在 CDN 之后时仅放行回源网段）
type OriginGuardConfig struct {
	Enabled      bool     `envconfig:"ORIGIN_DEFENSE_ENABLE" default:"false"`
	AllowIPs     []string `envconfig:"ORIGIN_ALLOW_IPS"`
	AllowCIDRs   []string `envconfig:"ORIGIN_ALLOW_CIDRS"`
	AllowLocal   bool     `envconfig:"ORIGIN_ALLOW_LOCAL" default:"true"`
	RealIPHeader string   `envconfig:"ORIGIN_REAL_IP_HEADER"`
}

// 文档注释：加载配置
// 背景：沿用 .env 与 data/env/.env 两处约定，文件缺失不报错；环境变量优先于文件内容。
// 约束：数据集来源只接受 file 与 postgres；路径与速率等数值在此处做基础校验。
func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	return FromEnv()
}

// FromEnv 仅读取当前进程环境变量，不触碰 .env 文件
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "loading config")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.Dataset.Source = strings.ToLower(strings.TrimSpace(c.Dataset.Source))
	switch c.Dataset.Source {
	case SourceFile:
		if c.Dataset.Path == "" {
			return errors.New("DATASET_PATH is required when DATASET_SOURCE=file")
		}
	case SourcePostgres:
	default:
		return errors.Newf("unknown DATASET_SOURCE %q", c.Dataset.Source)
	}
	if c.Dataset.NearestRadius < 0 {
		return errors.Newf("NEAREST_RADIUS_KM must not be negative, got %v", c.Dataset.NearestRadius)
	}
	if c.Dataset.ReloadInterval < 0 {
		return errors.Newf("RELOAD_INTERVAL must not be negative, got %v", c.Dataset.ReloadInterval)
	}
	if c.RateLimit.QPS <= 0 {
		c.RateLimit.QPS = 200
	}
	// 规范为 "/api" 形式；根路径挂载时为空串
	if base := strings.Trim(c.Server.APIBase, "/"); base != "" {
		c.Server.APIBase = "/" + base
	} else {
		c.Server.APIBase = ""
	}
	return nil
}

// NeedsPostgres 表示是否需要打开数据库连接
func (c *Config) NeedsPostgres() bool {
	return c.Dataset.Source == SourcePostgres || c.Postgres.Stats
}
