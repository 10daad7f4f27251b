package config

import (
	"log"

	"gopkg.in/yaml.v3"

	"portfolio-notify/pkg/config"
)

type Config struct {
	DB     config.DBConfig     `yaml:"db"`
	MQ     config.MQConfig     `yaml:"mq"`
	Redis  config.RedisConfig  `yaml:"redis"`
	JWT    config.JWTConfig    `yaml:"jwt"`
	Server config.ServerConfig `yaml:"server"`
	Push   config.PushConfig   `yaml:"push"`
	Toast  config.ToastConfig  `yaml:"toast"`
}

func Load() *Config {
	// 使用统一配置中心
	env := config.GetConfigEnv()
	configDir := config.GetEnv("CONFIG_DIR", "config")

	cfgMap, err := config.LoadConfig(env, configDir)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 转换为 Config 结构
	var cfg Config
	cfgData, err := yaml.Marshal(cfgMap)
	if err != nil {
		log.Fatalf("failed to marshal config: %v", err)
	}
	if err := yaml.Unmarshal(cfgData, &cfg); err != nil {
		log.Fatalf("failed to unmarshal config: %v", err)
	}

	// 环境变量覆盖（优先级最高）
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverridePushFromEnv(&cfg.Push)

	applyToastDefaults(&cfg.Toast)

	return &cfg
}

func applyToastDefaults(t *config.ToastConfig) {
	def := config.DefaultToastConfig()
	if t.RecencyWindowMS <= 0 {
		t.RecencyWindowMS = def.RecencyWindowMS
	}
	if t.MinSpacingMS <= 0 {
		t.MinSpacingMS = def.MinSpacingMS
	}
	if t.GraceDelayMS <= 0 {
		t.GraceDelayMS = def.GraceDelayMS
	}
	if t.DurationMS <= 0 {
		t.DurationMS = def.DurationMS
	}
	if t.PageSize <= 0 {
		t.PageSize = def.PageSize
	}
}
