// Package config 统一配置管理
//
// 配置加载优先级（高→低）：
//  1. 环境变量（通过 .env.{env} 文件或 shell/systemd 注入）
//  2. YAML 配置文件（{env}.yaml，如 dev.yaml、test.yaml、prod.yaml）
//  3. common.yaml 公共配置
//  4. 代码硬编码默认值
//
// 凭据单一数据源：
//
//	密码/密钥只来自环境变量（YAML 中不存储任何密码）。
//
// 配置路径确定策略：
//  1. SetConfigDir（--config 命令行参数）
//  2. CONFIG_DIR 环境变量
//  3. 按 APP_ENV 选择默认路径：
//     - prod → /etc/pocketfiler/
//     - dev/test → ./configs/
package config

import "time"

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// YAMLConfig YAML 配置文件结构
type YAMLConfig struct {
	APIServer    APIServerConfig    `yaml:"api_server"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	MinIO        MinIOConfig        `yaml:"minio"`
	Auth         AuthConfig         `yaml:"auth"`
	Mail         MailConfig         `yaml:"mail"`
	App          AppConfig          `yaml:"app"`
	Payment      PaymentConfig      `yaml:"payment"`
	Subscription SubscriptionConfig `yaml:"subscription"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	Log          LogConfig          `yaml:"log"`
}

// APIServerConfig API Server 配置
type APIServerConfig struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	CORSOrigin      string        `yaml:"cors_origin"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "mongodb"（默认）、"postgres" 或 "sqlite"
	Path     string `yaml:"path"`   // SQLite 文件路径
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"-"` // 只从 DB_PASSWORD 环境变量读取
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	URI      string `yaml:"uri"` // MongoDB 连接 URI（优先于 host/port）
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       int    `yaml:"db"`
	Password string `yaml:"-"` // 只从 REDIS_PASSWORD 环境变量读取
	URL      string `yaml:"url"`
	Enabled  bool   `yaml:"enabled"`
}

// MinIOConfig MinIO 对象存储配置
type MinIOConfig struct {
	Endpoint  string        `yaml:"endpoint"` // 例如 localhost:9000，为空时使用本地文件存储
	AccessKey string        `yaml:"-"`        // 只从 MINIO_ROOT_USER 环境变量读取
	SecretKey string        `yaml:"-"`        // 只从 MINIO_ROOT_PASSWORD 环境变量读取
	UseSSL    bool          `yaml:"use_ssl"`
	Bucket    string        `yaml:"bucket"`
	PublicURL string        `yaml:"public_url"` // 非空时返回公开 URL，否则返回预签名 URL
	URLExpiry time.Duration `yaml:"url_expiry"`
	LocalDir  string        `yaml:"local_dir"` // 未配置 MinIO 时的本地存储目录
}

// AuthConfig 认证配置
// JWTSecret/AdminEmail/AdminPassword 只从环境变量读取
type AuthConfig struct {
	JWTSecret       string        `yaml:"-"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
	BcryptCost      int           `yaml:"bcrypt_cost"`
	AdminEmail      string        `yaml:"-"`
	AdminPassword   string        `yaml:"-"`
}

// MailConfig SMTP 配置，Host 为空时邮件只写日志
type MailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"-"` // 只从 SMTP_PASSWORD 环境变量读取
	From     string `yaml:"from"`
}

// AppConfig 业务参数
type AppConfig struct {
	InviteBaseURL   string        `yaml:"invite_base_url"`
	ResetBaseURL    string        `yaml:"reset_base_url"`
	VerificationTTL time.Duration `yaml:"verification_ttl"`
	ResetTTL        time.Duration `yaml:"reset_ttl"`
}

// PaymentConfig 支付网关配置
type PaymentConfig struct {
	Provider string `yaml:"provider"` // 目前只支持 "sandbox"
}

// SubscriptionConfig 订阅过期扫描配置
type SubscriptionConfig struct {
	ExpireInterval time.Duration `yaml:"expire_interval"`
	ExpireBatch    int           `yaml:"expire_batch"`
}

// RateLimitConfig 登录/注册限流（需要 Redis）
type RateLimitConfig struct {
	LoginPerMinute  int `yaml:"login_per_minute"`
	SignupPerMinute int `yaml:"signup_per_minute"`
	VerifyPerMinute int `yaml:"verify_per_minute"`
	// TrustedProxies 可信反向代理的 IP 或 CIDR，只有来自这些地址的请求才读取 X-Forwarded-For
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env            Environment
	DatabaseDriver string // "mongodb", "postgres" 或 "sqlite"
	DatabaseURL    string
	DatabaseDBName string // MongoDB 数据库名称
	RedisURL       string // 为空表示不使用 Redis
	APIServer      APIServerConfig
	MinIO          MinIOConfig
	Auth           AuthConfig
	Mail           MailConfig
	App            AppConfig
	Payment        PaymentConfig
	Subscription   SubscriptionConfig
	RateLimit      RateLimitConfig
	Log            LogConfig
	ConfigFilePath string // 实际加载的配置文件路径
}

// yamlConfigInternal 内部包装，记录配置文件来源（不参与 YAML 序列化）
type yamlConfigInternal struct {
	YAMLConfig `yaml:",inline"`
	loadedFrom string
}
