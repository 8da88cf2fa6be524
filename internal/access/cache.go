// Package access 实现请求进入存储层之前的权限判断、输入校验与失败分类。
package access

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/nx-cache-server/internal/cache"
	"github.com/any-hub/nx-cache-server/internal/logging"
	"github.com/any-hub/nx-cache-server/internal/token"
)

// CacheController 负责缓存读写的权限与完整性校验，后端在启动时注入。
type CacheController struct {
	backend cache.Backend
	writer  cache.GuardedWriter
	logger  logrus.FieldLogger
}

// NewCacheController 构造缓存控制器，logger 为 nil 时丢弃日志。
func NewCacheController(backend cache.Backend, logger logrus.FieldLogger) *CacheController {
	if logger == nil {
		logger = logging.Discard()
	}
	return &CacheController{
		backend: backend,
		writer:  cache.NewGuardedWriter(backend),
		logger:  logger,
	}
}

// Read 返回条目正文与大小，调用方负责关闭 Blob.Reader。
func (c *CacheController) Read(ctx context.Context, key string, perm token.Permission) (*cache.Blob, error) {
	if !perm.CanRead() {
		return nil, ErrForbidden
	}
	if !cache.ValidKey(key) {
		return nil, ErrInvalidKey
	}

	exists, err := c.backend.Exists(ctx, key)
	if err != nil {
		c.logFailure("cache_read", key, err)
		return nil, ErrReadFailure
	}
	if !exists {
		return nil, ErrNotFound
	}

	reader, err := c.backend.Open(ctx, key)
	if err != nil {
		c.logFailure("cache_read", key, err)
		return nil, ErrReadFailure
	}
	size, err := c.backend.Size(ctx, key)
	if err != nil {
		reader.Close()
		c.logFailure("cache_read", key, err)
		return nil, ErrReadFailure
	}
	return &cache.Blob{Reader: reader, Size: size}, nil
}

// Write 拒绝覆盖已存在的条目，只有实际字节数与 contentLength 一致时才会提交。
func (c *CacheController) Write(ctx context.Context, key string, perm token.Permission, body io.Reader, contentLength string) error {
	if !perm.CanWrite() {
		return ErrForbidden
	}
	if !cache.ValidKey(key) {
		return ErrInvalidKey
	}

	exists, err := c.backend.Exists(ctx, key)
	if err != nil {
		c.logFailure("cache_check", key, err)
		return ErrCheckFailure
	}
	if exists {
		return ErrConflict
	}

	declared, ok := parseContentLength(contentLength)
	if !ok {
		c.logger.WithFields(logging.CacheFields("cache_write", key)).
			WithField("content_length", contentLength).
			Debug("Content-Length 无效")
		return ErrInvalidLength
	}

	err = c.writer.Write(ctx, key, body, declared)
	switch {
	case err == nil:
		c.logger.WithFields(logging.CacheFields("cache_write", key)).
			WithField("size", declared).
			Debug("缓存已写入")
		return nil
	case cache.IsLengthError(err):
		c.logger.WithFields(logging.CacheFields("cache_write", key)).
			WithField("content_length", declared).
			WithError(err).
			Debug("正文长度与声明不一致")
		return ErrInvalidLength
	case errors.Is(err, context.Canceled):
		c.logger.WithFields(logging.CacheFields("cache_write", key)).Debug("上传被客户端中断")
		return ErrWriteFailure
	default:
		c.logFailure("cache_write", key, err)
		return ErrWriteFailure
	}
}

func (c *CacheController) logFailure(action, key string, err error) {
	c.logger.WithFields(logging.CacheFields(action, key)).WithError(err).Error("缓存后端操作失败")
}

func parseContentLength(raw string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
