package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// 支持的存储策略。
const (
	StrategyFilesystem = "filesystem"
	StrategyS3         = "s3"
)

// LogConfig 描述日志级别与滚动文件输出。
type LogConfig struct {
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`
	Verbose       bool   `mapstructure:"Verbose"`
}

// S3Config 对应对象存储后端的连接参数。
type S3Config struct {
	Region          string `mapstructure:"Region"`
	Bucket          string `mapstructure:"Bucket"`
	AccessKeyID     string `mapstructure:"AccessKeyID"`
	SecretAccessKey string `mapstructure:"SecretAccessKey"`
	// Endpoint 可为 host[:port] 或带协议的 URL，留空时使用 AWS 默认地址。
	Endpoint   string `mapstructure:"Endpoint"`
	PartSize   int64  `mapstructure:"PartSize"`
	MaxRetries int    `mapstructure:"MaxRetries"`
}

// StorageConfig 决定缓存正文落在哪个后端。
type StorageConfig struct {
	Strategy    string   `mapstructure:"Strategy"`
	StoragePath string   `mapstructure:"StoragePath"`
	S3          S3Config `mapstructure:"S3"`
}

// Config 是 TOML 文件与环境变量合并后的整体结构。
type Config struct {
	ListenPort      int           `mapstructure:"ListenPort"`
	AdminToken      string        `mapstructure:"AdminToken"`
	TokensDBPath    string        `mapstructure:"TokensDBPath"`
	ShutdownTimeout Duration      `mapstructure:"ShutdownTimeout"`
	Log             LogConfig     `mapstructure:",squash"`
	Storage         StorageConfig `mapstructure:"Storage"`
}

// StorageSummary 输出 `filesystem:/path` 或 `s3:bucket` 形式，供启动日志使用。
func (c *Config) StorageSummary() string {
	if c.Storage.Strategy == StrategyS3 {
		return fmt.Sprintf("%s:%s", StrategyS3, c.Storage.S3.Bucket)
	}
	return fmt.Sprintf("%s:%s", StrategyFilesystem, c.Storage.StoragePath)
}
