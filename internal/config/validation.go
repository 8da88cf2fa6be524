package config

import (
	"errors"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return newFieldError("ListenPort", "必须在 1-65535")
	}
	if c.AdminToken == "" {
		return newFieldError("AdminToken", "不能为空（ADMIN_TOKEN）")
	}
	if strings.TrimSpace(c.TokensDBPath) == "" {
		return newFieldError("TokensDBPath", "不能为空")
	}
	if _, err := logrus.ParseLevel(c.Log.LogLevel); err != nil {
		return newFieldError("LogLevel", "无法识别的日志级别: "+c.Log.LogLevel)
	}
	if c.Log.LogMaxSize < 0 {
		return newFieldError("LogMaxSize", "不能为负数")
	}
	if c.Log.LogMaxBackups < 0 {
		return newFieldError("LogMaxBackups", "不能为负数")
	}

	return c.Storage.validate()
}

func (s StorageConfig) validate() error {
	switch s.Strategy {
	case StrategyFilesystem:
		if strings.TrimSpace(s.StoragePath) == "" {
			return newFieldError("Storage.StoragePath", "不能为空")
		}
		return nil
	case StrategyS3:
		return s.S3.validate()
	default:
		return newFieldError("Storage.Strategy", "仅支持 filesystem|s3")
	}
}

func (s S3Config) validate() error {
	if s.Region == "" || s.Bucket == "" || s.AccessKeyID == "" || s.SecretAccessKey == "" {
		return newFieldError(
			"Storage.S3",
			"缺少 S3_REGION, S3_BUCKET, S3_ACCESS_KEY_ID, S3_SECRET_ACCESS_KEY 之一",
		)
	}
	if s.PartSize < DefaultPartSize {
		return newFieldError("Storage.S3.PartSize", "不能小于 5MiB")
	}
	if s.MaxRetries < 0 {
		return newFieldError("Storage.S3.MaxRetries", "不能为负数")
	}
	if s.Endpoint != "" {
		if err := validateEndpoint(s.Endpoint); err != nil {
			return newFieldError("Storage.S3.Endpoint", err.Error())
		}
	}
	return nil
}

func validateEndpoint(raw string) error {
	if !strings.Contains(raw, "://") {
		if strings.ContainsAny(raw, "/ ") {
			return errors.New("host 中不允许包含路径或空格")
		}
		return nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("仅支持 http/https")
	}
	if parsed.Host == "" {
		return errors.New("缺少 Host")
	}
	if p := strings.Trim(parsed.Path, "/"); p != "" {
		return errors.New("不允许包含路径")
	}
	return nil
}
