package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// envBindings 保持与旧版 Bun 服务一致的环境变量名，方便直接替换部署。
var envBindings = map[string]string{
	"ListenPort":                 "PORT",
	"AdminToken":                 "ADMIN_TOKEN",
	"TokensDBPath":               "TOKENS_DB_PATH",
	"ShutdownTimeout":            "SHUTDOWN_TIMEOUT",
	"LogLevel":                   "LOG_LEVEL",
	"LogFilePath":                "LOG_FILE_PATH",
	"Verbose":                    "VERBOSE",
	"Storage.Strategy":           "STORAGE_STRATEGY",
	"Storage.StoragePath":        "CACHE_DIR",
	"Storage.S3.Region":          "S3_REGION",
	"Storage.S3.Bucket":          "S3_BUCKET",
	"Storage.S3.AccessKeyID":     "S3_ACCESS_KEY_ID",
	"Storage.S3.SecretAccessKey": "S3_SECRET_ACCESS_KEY",
	"Storage.S3.Endpoint":        "S3_ENDPOINT",
	"Storage.S3.PartSize":        "S3_PART_SIZE",
	"Storage.S3.MaxRetries":      "S3_MAX_RETRIES",
}

// Load 合并默认值、可选的 TOML 配置文件与环境变量，并执行校验。
// path 为空时只读取环境变量；非空时文件必须存在。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("绑定环境变量失败: %w", err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Strategy == StrategyFilesystem {
		absStorage, err := filepath.Abs(cfg.Storage.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("无法解析缓存目录: %w", err)
		}
		cfg.Storage.StoragePath = absStorage
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 3000)
	v.SetDefault("AdminToken", "")
	v.SetDefault("TokensDBPath", "./data/nx-cache-server-tokens.sqlite")
	v.SetDefault("ShutdownTimeout", "10s")
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("Verbose", false)
	v.SetDefault("Storage.Strategy", StrategyFilesystem)
	v.SetDefault("Storage.StoragePath", "./cache")
	v.SetDefault("Storage.S3.Region", "")
	v.SetDefault("Storage.S3.Bucket", "")
	v.SetDefault("Storage.S3.AccessKeyID", "")
	v.SetDefault("Storage.S3.SecretAccessKey", "")
	v.SetDefault("Storage.S3.Endpoint", "")
	v.SetDefault("Storage.S3.PartSize", DefaultPartSize)
	v.SetDefault("Storage.S3.MaxRetries", 3)
}

// DefaultPartSize 与 S3 的最小分片大小一致。
const DefaultPartSize int64 = 5 * 1024 * 1024

func applyDefaults(cfg *Config) {
	cfg.Storage.Strategy = strings.ToLower(strings.TrimSpace(cfg.Storage.Strategy))
	if cfg.Storage.Strategy == "" {
		cfg.Storage.Strategy = StrategyFilesystem
	}
	if cfg.Storage.S3.PartSize == 0 {
		cfg.Storage.S3.PartSize = DefaultPartSize
	}
	if cfg.ShutdownTimeout.DurationValue() <= 0 {
		cfg.ShutdownTimeout = Duration(10 * time.Second)
	}
	cfg.AdminToken = strings.TrimSpace(cfg.AdminToken)
	cfg.Log.LogLevel = strings.ToLower(strings.TrimSpace(cfg.Log.LogLevel))
	if cfg.Log.Verbose && cfg.Log.LogLevel != "trace" {
		cfg.Log.LogLevel = "debug"
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
