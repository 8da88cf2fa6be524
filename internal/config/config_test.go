package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(testConfigPath(t, "valid.toml"))
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.ListenPort != 4010 {
		t.Fatalf("ListenPort 应当被解析，得到 %d", cfg.ListenPort)
	}
	if cfg.Storage.Strategy != StrategyFilesystem {
		t.Fatalf("默认策略应为 filesystem，得到 %s", cfg.Storage.Strategy)
	}
	if !filepath.IsAbs(cfg.Storage.StoragePath) {
		t.Fatalf("StoragePath 应被转换为绝对路径: %s", cfg.Storage.StoragePath)
	}
	if cfg.ShutdownTimeout.DurationValue() != 5*time.Second {
		t.Fatalf("ShutdownTimeout 解析错误: %v", cfg.ShutdownTimeout.DurationValue())
	}
	if cfg.Log.LogMaxSize != 100 || !cfg.Log.LogCompress {
		t.Fatalf("日志默认值未生效: %+v", cfg.Log)
	}
}

func TestLoadFromEnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv("ADMIN_TOKEN", "secret")
	t.Setenv("PORT", "4321")
	t.Setenv("CACHE_DIR", t.TempDir())
	t.Setenv("VERBOSE", "1")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("仅使用环境变量加载失败: %v", err)
	}
	if cfg.AdminToken != "secret" {
		t.Fatalf("ADMIN_TOKEN 未生效: %q", cfg.AdminToken)
	}
	if cfg.ListenPort != 4321 {
		t.Fatalf("PORT 未生效: %d", cfg.ListenPort)
	}
	if cfg.Log.LogLevel != "debug" {
		t.Fatalf("VERBOSE 应把日志级别降到 debug，得到 %s", cfg.Log.LogLevel)
	}
	if cfg.TokensDBPath != "./data/nx-cache-server-tokens.sqlite" {
		t.Fatalf("TokensDBPath 默认值错误: %s", cfg.TokensDBPath)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "5001")
	cfg, err := Load(testConfigPath(t, "valid.toml"))
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.ListenPort != 5001 {
		t.Fatalf("环境变量应高于配置文件，得到 %d", cfg.ListenPort)
	}
}

func TestLoadS3Strategy(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(testConfigPath(t, "s3.toml"))
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.Storage.Strategy != StrategyS3 {
		t.Fatalf("策略应被规范化为小写 s3，得到 %s", cfg.Storage.Strategy)
	}
	if cfg.Storage.S3.PartSize != DefaultPartSize {
		t.Fatalf("PartSize 默认值错误: %d", cfg.Storage.S3.PartSize)
	}
	if cfg.StorageSummary() != "s3:nx-cache" {
		t.Fatalf("StorageSummary 输出错误: %s", cfg.StorageSummary())
	}
}

func TestValidateEnforcesListenPortRange(t *testing.T) {
	cfg := validConfig()
	cfg.ListenPort = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatalf("ListenPort 超出范围应当报错")
	}
}

func TestValidateRequiresAdminToken(t *testing.T) {
	cfg := validConfig()
	cfg.AdminToken = ""
	err := cfg.Validate()
	var fieldErr FieldError
	if !errors.As(err, &fieldErr) || fieldErr.Field != "AdminToken" {
		t.Fatalf("缺少 AdminToken 时应返回 FieldError，得到 %v", err)
	}
}

func TestStorageStrategyValidation(t *testing.T) {
	testCases := []struct {
		name      string
		mutate    func(*Config)
		shouldErr bool
	}{
		{"filesystem ok", func(c *Config) {}, false},
		{"unknown strategy", func(c *Config) { c.Storage.Strategy = "gcs" }, true},
		{"empty storage path", func(c *Config) { c.Storage.StoragePath = " " }, true},
		{"s3 missing bucket", func(c *Config) {
			c.Storage.Strategy = StrategyS3
			c.Storage.S3 = S3Config{Region: "r", AccessKeyID: "a", SecretAccessKey: "s", PartSize: DefaultPartSize}
		}, true},
		{"s3 ok", func(c *Config) {
			c.Storage.Strategy = StrategyS3
			c.Storage.S3 = validS3()
		}, false},
		{"s3 small part", func(c *Config) {
			c.Storage.Strategy = StrategyS3
			c.Storage.S3 = validS3()
			c.Storage.S3.PartSize = 1024
		}, true},
		{"s3 endpoint with path", func(c *Config) {
			c.Storage.Strategy = StrategyS3
			c.Storage.S3 = validS3()
			c.Storage.S3.Endpoint = "https://minio.local/bucket"
		}, true},
		{"s3 bare endpoint", func(c *Config) {
			c.Storage.Strategy = StrategyS3
			c.Storage.S3 = validS3()
			c.Storage.S3.Endpoint = "minio.local:9000"
		}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.shouldErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.shouldErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func validConfig() *Config {
	return &Config{
		ListenPort:   3000,
		AdminToken:   "admin",
		TokensDBPath: "./data/tokens.sqlite",
		Log:          LogConfig{LogLevel: "info"},
		Storage: StorageConfig{
			Strategy:    StrategyFilesystem,
			StoragePath: "./cache",
		},
	}
}

func validS3() S3Config {
	return S3Config{
		Region:          "us-east-1",
		Bucket:          "nx",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		PartSize:        DefaultPartSize,
		MaxRetries:      3,
	}
}
