package cache

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/any-hub/nx-cache-server/internal/config"
)

// Backend 负责缓存正文的持久化，所有方法只接受 ValidKey 通过的 key。
// 实现必须支持不同 key 的并发操作；同一 key 的并发写入以最后一次提交为准。
type Backend interface {
	// Exists 报告 key 是否已经存在可读的条目。
	Exists(ctx context.Context, key string) (bool, error)

	// Open 返回条目正文的流，调用方负责 Close。调用前必须先经 Exists 确认存在，
	// 对不存在的 key 调用时行为由实现决定。
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Size 返回条目的字节数。与 Open 一样假定调用方已确认存在。
	Size(ctx context.Context, key string) (int64, error)

	// Write 读取 body 直到 EOF 并持久化到 key。任何失败都不能在 key 下留下
	// 部分写入的内容。
	Write(ctx context.Context, key string, body io.Reader) error
}

// Blob 组合正文 Reader 与大小，便于 HTTP 层直接设置 Content-Length 并流式返回。
type Blob struct {
	Reader io.ReadCloser
	Size   int64
}

// ErrUnknownStrategy 表示配置中的存储策略没有对应实现。
var ErrUnknownStrategy = errors.New("unknown storage strategy")

// NewBackend 根据存储配置构建唯一的后端实例，启动时调用一次并在整个进程内复用。
func NewBackend(cfg config.StorageConfig) (Backend, error) {
	switch cfg.Strategy {
	case "", config.StrategyFilesystem:
		return NewFileStore(cfg.StoragePath)
	case config.StrategyS3:
		return NewObjectStore(ObjectStoreOptions{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			PartSize:        cfg.S3.PartSize,
			MaxRetries:      cfg.S3.MaxRetries,
		})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, cfg.Strategy)
	}
}
