// Package config 负责集中式配置加载
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ServerConfig HTTP 服务相关配置
type ServerConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR debug info warn error"`
}

// OllamaConfig 语言模型服务配置
type OllamaConfig struct {
	BaseURL      string `mapstructure:"base_url" validate:"required,url"`
	DefaultModel string `mapstructure:"default_model"`
}

// LimitConfig 按 IP 的速率限制配置
type LimitConfig struct {
	RatePerSecond float64 `mapstructure:"rate_per_second" validate:"gt=0"`
	Burst         int     `mapstructure:"burst" validate:"gt=0"`
}

// Config 结构体
type Config struct {
	Server ServerConfig `mapstructure:"server" validate:"required"`
	Ollama OllamaConfig `mapstructure:"ollama" validate:"required"`
	Limit  LimitConfig  `mapstructure:"limit" validate:"required"`
}

// Addr 返回监听地址。
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Load 读取配置文件并结合 DGSS_ 前缀的环境变量，返回校验后的配置。
// path 为空时按默认搜索路径查找 config.yaml。
func Load(path string) (*Config, error) {
	v := viper.New()

	// 缺省值保证裸启动可用
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.log_level", "INFO")
	v.SetDefault("ollama.base_url", "http://localhost:11434")
	v.SetDefault("ollama.default_model", "qwen2.5:7b")
	v.SetDefault("limit.rate_per_second", 20)
	v.SetDefault("limit.burst", 40)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// 环境变量覆盖：DGSS_SERVER_PORT 等
	v.SetEnvPrefix("DGSS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// 指定了配置文件路径则必须存在；默认路径找不到时用缺省值
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置到结构体失败: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("配置校验失败: %w", err)
	}
	return &cfg, nil
}
