package config

import (
	"os"
	"strconv"
	"time"
)

// DBConfig 数据库配置
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// MQConfig 消息队列配置
type MQConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// ServerConfig HTTP服务器配置
type ServerConfig struct {
	Port string `yaml:"port"`
}

// PushConfig push 通道（WebSocket）配置
type PushConfig struct {
	// URL is the ws:// endpoint clients dial. Server side only uses the
	// ping/read settings.
	URL                 string `yaml:"url"`
	PingIntervalSeconds int    `yaml:"ping_interval_seconds"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
}

// ToastConfig toast 调度参数。原型里这些都是散落的魔法数字，
// 这里统一收进配置。
type ToastConfig struct {
	RecencyWindowMS int `yaml:"recency_window_ms"`
	MinSpacingMS    int `yaml:"min_spacing_ms"`
	GraceDelayMS    int `yaml:"grace_delay_ms"`
	DurationMS      int `yaml:"duration_ms"`
	PageSize        int `yaml:"page_size"`
}

// DefaultToastConfig 返回默认调度参数
func DefaultToastConfig() ToastConfig {
	return ToastConfig{
		RecencyWindowMS: 5000,
		MinSpacingMS:    2000,
		GraceDelayMS:    100,
		DurationMS:      5000,
		PageSize:        50,
	}
}

func (c ToastConfig) RecencyWindow() time.Duration {
	return time.Duration(c.RecencyWindowMS) * time.Millisecond
}

func (c ToastConfig) MinSpacing() time.Duration {
	return time.Duration(c.MinSpacingMS) * time.Millisecond
}

func (c ToastConfig) GraceDelay() time.Duration {
	return time.Duration(c.GraceDelayMS) * time.Millisecond
}

func (c ToastConfig) Duration() time.Duration {
	return time.Duration(c.DurationMS) * time.Millisecond
}

// OverrideDBFromEnv 从环境变量覆盖数据库配置
func OverrideDBFromEnv(cfg *DBConfig) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Name = name
	}
}

// OverrideMQFromEnv 从环境变量覆盖MQ配置
func OverrideMQFromEnv(cfg *MQConfig) {
	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.URL = url
	}
}

// OverrideRedisFromEnv 从环境变量覆盖Redis配置
func OverrideRedisFromEnv(cfg *RedisConfig) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Password = password
	}
}

// OverrideJWTFromEnv 从环境变量覆盖JWT配置
func OverrideJWTFromEnv(cfg *JWTConfig) {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Secret = secret
	}
}

// OverrideServerFromEnv 从环境变量覆盖服务器配置
func OverrideServerFromEnv(cfg *ServerConfig) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
}

// OverridePushFromEnv 从环境变量覆盖 push 通道配置
func OverridePushFromEnv(cfg *PushConfig) {
	if url := os.Getenv("PUSH_URL"); url != "" {
		cfg.URL = url
	}
}
