package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// configDir 由外部通过 SetConfigDir 指定，优先级最高
var configDir string

// envSearchDirs .env 文件搜索目录（仅 dev/test 使用）
var envSearchDirs = []string{".", ".."}

// SetConfigDir 设置配置文件目录（用于 --config 命令行参数）
func SetConfigDir(dir string) {
	configDir = dir
}

// Load 加载配置
//  1. 加载 .env.{env}（dev/test）
//  2. 加载 common.yaml 和 {env}.yaml
//  3. 环境变量覆盖
//  4. 校验
func Load() (*Config, error) {
	env := parseEnv(getEnv("APP_ENV", "dev"))
	loadEnvFiles(env)

	y, err := loadYAMLConfig(env)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(&y.YAMLConfig)

	cfg := build(env, &y.YAMLConfig)
	cfg.ConfigFilePath = y.loadedFrom
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaults 代码内置默认值
func defaults() YAMLConfig {
	return YAMLConfig{
		APIServer: APIServerConfig{
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxUploadBytes:  20 << 20,
			CORSOrigin:      "*",
		},
		Database: DatabaseConfig{Driver: "mongodb", Host: "localhost", Port: 27017, Name: "pocketfiler", SSLMode: "disable"},
		Redis:    RedisConfig{Host: "localhost", Port: 6379, DB: 0},
		MinIO:    MinIOConfig{Bucket: "pocketfiler", URLExpiry: 7 * 24 * time.Hour, LocalDir: "data/uploads"},
		Auth: AuthConfig{
			AccessTokenTTL:  24 * time.Hour,
			RefreshTokenTTL: 7 * 24 * time.Hour,
			BcryptCost:      12,
		},
		Mail: MailConfig{Port: 587, From: "no-reply@pocketfiler.local"},
		App: AppConfig{
			InviteBaseURL:   "http://localhost:3000/invitations",
			ResetBaseURL:    "http://localhost:3000/reset-password",
			VerificationTTL: 15 * time.Minute,
			ResetTTL:        time.Hour,
		},
		Payment:      PaymentConfig{Provider: "sandbox"},
		Subscription: SubscriptionConfig{ExpireInterval: time.Hour, ExpireBatch: 100},
		RateLimit:    RateLimitConfig{LoginPerMinute: 10, SignupPerMinute: 5, VerifyPerMinute: 10},
		Log:          LogConfig{Level: "info", Format: "text"},
	}
}

// loadYAMLConfig 加载 YAML 配置文件
// 加载顺序：默认值 → common.yaml → {env}.yaml
func loadYAMLConfig(env Environment) (*yamlConfigInternal, error) {
	cfg := &yamlConfigInternal{YAMLConfig: defaults()}

	for _, name := range []string{"common.yaml", fmt.Sprintf("%s.yaml", env)} {
		for _, base := range effectiveConfigPaths(env) {
			path := filepath.Join(base, name)
			data, err := os.ReadFile(path)
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}
			if err := yaml.Unmarshal(data, &cfg.YAMLConfig); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
			cfg.loadedFrom = path
			break
		}
	}
	return cfg, nil
}

// applyEnvOverrides 环境变量覆盖 YAML，密钥类字段只来自这里
func applyEnvOverrides(y *YAMLConfig) {
	setString := func(dst *string, keys ...string) {
		if v := firstEnv(keys...); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
			*dst = v
		}
	}

	setString(&y.APIServer.Port, "API_PORT", "PORT")
	setString(&y.APIServer.CORSOrigin, "CORS_ORIGIN")

	setString(&y.Database.Driver, "DATABASE_DRIVER")
	setString(&y.Database.URI, "MONGO_URI")
	setString(&y.Database.Name, "DB_NAME")
	setString(&y.Database.Path, "SQLITE_PATH")
	setString(&y.Database.Password, "DB_PASSWORD", "MONGO_ROOT_PASSWORD")

	setString(&y.Redis.URL, "REDIS_URL")
	setString(&y.Redis.Password, "REDIS_PASSWORD")

	setString(&y.MinIO.Endpoint, "MINIO_ENDPOINT")
	setString(&y.MinIO.AccessKey, "MINIO_ROOT_USER", "MINIO_ACCESS_KEY")
	setString(&y.MinIO.SecretKey, "MINIO_ROOT_PASSWORD", "MINIO_SECRET_KEY")

	setString(&y.Auth.JWTSecret, "JWT_SECRET")
	setString(&y.Auth.AdminEmail, "ADMIN_EMAIL")
	setString(&y.Auth.AdminPassword, "ADMIN_PASSWORD")

	setString(&y.Mail.Host, "SMTP_HOST")
	setInt(&y.Mail.Port, "SMTP_PORT")
	setString(&y.Mail.Username, "SMTP_USERNAME")
	setString(&y.Mail.Password, "SMTP_PASSWORD")
	setString(&y.Mail.From, "MAIL_FROM")

	setString(&y.App.InviteBaseURL, "INVITE_BASE_URL")
	setString(&y.App.ResetBaseURL, "RESET_BASE_URL")

	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		y.RateLimit.TrustedProxies = strings.Split(v, ",")
	}

	setString(&y.Log.Level, "LOG_LEVEL")
	setString(&y.Log.Format, "LOG_FORMAT")
}

// build 由 YAML（已合并环境变量）构建最终配置
func build(env Environment, y *YAMLConfig) *Config {
	databaseURL := os.Getenv("DATABASE_URL")
	driver := detectDatabaseDriver(y.Database.Driver, databaseURL)
	y.Database.Driver = driver
	if databaseURL == "" {
		databaseURL = buildDatabaseURL(y.Database, y.Database.Password)
	}

	redisURL := ""
	if y.Redis.Enabled || y.Redis.URL != "" {
		redisURL = buildRedisURL(y.Redis)
	}

	return &Config{
		Env:            env,
		DatabaseDriver: driver,
		DatabaseURL:    databaseURL,
		DatabaseDBName: y.Database.Name,
		RedisURL:       redisURL,
		APIServer:      y.APIServer,
		MinIO:          y.MinIO,
		Auth:           y.Auth,
		Mail:           y.Mail,
		App:            y.App,
		Payment:        y.Payment,
		Subscription:   y.Subscription,
		RateLimit:      y.RateLimit,
		Log:            y.Log,
	}
}

// devJWTSecret 仅用于 dev/test，生产环境必须设置 JWT_SECRET
const devJWTSecret = "pocketfiler-dev-secret-change-me"

// Validate 校验配置并填充非生产环境的默认密钥
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		if c.Env == EnvProduction {
			return errors.New("JWT_SECRET is required in production")
		}
		c.Auth.JWTSecret = devJWTSecret
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be positive, got %s", c.Auth.AccessTokenTTL)
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("auth.bcrypt_cost out of range: %d", c.Auth.BcryptCost)
	}
	if c.Payment.Provider != "sandbox" {
		return fmt.Errorf("unsupported payment provider: %q", c.Payment.Provider)
	}
	for _, p := range c.RateLimit.TrustedProxies {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, err := netip.ParsePrefix(p); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(p); err != nil {
			return fmt.Errorf("rate_limit.trusted_proxies: invalid address %q", p)
		}
	}
	if c.Subscription.ExpireInterval <= 0 {
		c.Subscription.ExpireInterval = time.Hour
	}
	if c.Subscription.ExpireBatch <= 0 {
		c.Subscription.ExpireBatch = 100
	}
	return nil
}

// configPathsForEnv 根据环境返回配置文件搜索路径
func configPathsForEnv(env Environment) []string {
	if env == EnvProduction {
		return []string{"/etc/pocketfiler"}
	}
	return []string{"configs", "../configs", "../../configs"}
}

// effectiveConfigPaths 返回实际搜索路径
func effectiveConfigPaths(env Environment) []string {
	if configDir != "" {
		return []string{configDir}
	}
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		return []string{dir}
	}
	return configPathsForEnv(env)
}

// loadEnvFiles 加载 .env.{env} 文件
//
// 生产环境不搜索 .env 文件（由 systemd EnvironmentFile 或容器环境注入）。
// godotenv.Load 不覆盖已有环境变量。
func loadEnvFiles(env Environment) {
	if env == EnvProduction {
		return
	}
	envFileName := fmt.Sprintf(".env.%s", string(env))
	for _, dir := range envSearchDirs {
		if err := godotenv.Load(filepath.Join(dir, envFileName)); err == nil {
			break
		}
	}
}
