package config

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Remote  RemoteConfig  `mapstructure:"remote"`
	Session SessionConfig `mapstructure:"session"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Sync    SyncConfig    `mapstructure:"sync"`
	App     AppConfig     `mapstructure:"app"`
}

type ServerConfig struct {
	Port         string   `mapstructure:"port"`
	Mode         string   `mapstructure:"mode"`
	RateLimit    float64  `mapstructure:"rate_limit"` // 每 IP QPS，0 表示不限流
	Burst        int      `mapstructure:"burst"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// StoreConfig 本地存储配置
// driver: sqlite | postgres | mysql | memory
type StoreConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"` // sqlite 文件路径
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Port     string `mapstructure:"port"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RemoteConfig 远端 REST 服务配置（认证与资源 CRUD 是两个不同的 base URL）
type RemoteConfig struct {
	AuthBaseURL string        `mapstructure:"auth_base_url"`
	APIBaseURL  string        `mapstructure:"api_base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RateLimit   float64       `mapstructure:"rate_limit"` // 每秒请求数
	Burst       int           `mapstructure:"burst"`
}

// SessionConfig backend: store | redis
type SessionConfig struct {
	Backend string `mapstructure:"backend"`
}

type AuthConfig struct {
	AdminEmails       []string `mapstructure:"admin_emails"`
	MinPasswordLength int      `mapstructure:"min_password_length"`
	BcryptCost        int      `mapstructure:"bcrypt_cost"`
}

// CacheConfig backend: memory | redis
type CacheConfig struct {
	Backend string        `mapstructure:"backend"`
	UserTTL time.Duration `mapstructure:"user_ttl"`
}

// SyncConfig 后台推送协程池
type SyncConfig struct {
	Workers    int `mapstructure:"workers"`
	BufferSize int `mapstructure:"buffer_size"`
	MaxRetry   int `mapstructure:"max_retry"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

var GlobalConfig Config

// Validate 验证配置
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			return errors.New("store.path is required for sqlite")
		}
	case "postgres", "mysql":
		if c.Store.Host == "" || c.Store.User == "" || c.Store.DBName == "" {
			return errors.New(c.Store.Driver + " store configuration is incomplete")
		}
	case "memory":
	default:
		return errors.New("store.driver must be one of sqlite, postgres, mysql, memory")
	}

	if c.Remote.AuthBaseURL == "" || c.Remote.APIBaseURL == "" {
		return errors.New("remote base URLs are required")
	}

	if (c.Session.Backend == "redis" || c.Cache.Backend == "redis") && (!c.Redis.Enabled || c.Redis.Addr == "") {
		return errors.New("redis must be enabled when used as session or cache backend")
	}

	if c.Auth.MinPasswordLength < 1 {
		return errors.New("auth.min_password_length must be positive")
	}

	return nil
}

// SetDefaults 注册默认值，LoadConfig 与测试共用
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.rate_limit", 50)
	v.SetDefault("server.burst", 100)
	v.SetDefault("server.allow_origins", []string{"http://localhost:3000"})
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "rankkings.db")
	v.SetDefault("store.sslmode", "disable")
	v.SetDefault("store.timezone", "UTC")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("remote.timeout", 15*time.Second)
	v.SetDefault("remote.rate_limit", 20)
	v.SetDefault("remote.burst", 40)
	v.SetDefault("session.backend", "store")
	v.SetDefault("auth.min_password_length", 6)
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.user_ttl", 30*time.Minute)
	v.SetDefault("sync.workers", 2)
	v.SetDefault("sync.buffer_size", 100)
	v.SetDefault("sync.max_retry", 3)
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.debug", true)
	v.SetDefault("app.log_level", "info")
}

// LoadConfig 加载配置
func LoadConfig() {
	// 获取环境变量，默认为dev
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	// 根据环境选择配置文件
	configName := "config"
	if env != "dev" {
		configName = "config." + env
	}

	v := viper.GetViper()
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Printf("Warning: Config file not found, using defaults or env vars: %v", err)
	}

	// 绑定环境变量，例如 REMOTE_AUTH_BASE_URL
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(&GlobalConfig); err != nil {
		log.Fatalf("Unable to decode into struct: %v", err)
	}

	// 手动覆盖，AutomaticEnv 对未出现在配置文件中的嵌套键无效
	if path := os.Getenv("STORE_PATH"); path != "" {
		GlobalConfig.Store.Path = path
	}
	if authURL := os.Getenv("REMOTE_AUTH_BASE_URL"); authURL != "" {
		GlobalConfig.Remote.AuthBaseURL = authURL
	}
	if apiURL := os.Getenv("REMOTE_API_BASE_URL"); apiURL != "" {
		GlobalConfig.Remote.APIBaseURL = apiURL
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		GlobalConfig.Redis.Addr = redisAddr
	}

	if err := GlobalConfig.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	log.Printf("Configuration loaded and validated successfully. Environment: %s", GlobalConfig.App.Env)
}
