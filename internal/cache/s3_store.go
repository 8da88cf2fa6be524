package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	defaultS3Endpoint = "s3.amazonaws.com"
	defaultPartSize   = 5 * 1024 * 1024
)

// ObjectStoreOptions 描述 S3 兼容存储的连接参数。
type ObjectStoreOptions struct {
	// Endpoint 可以是 host[:port] 或 http(s):// URL，留空时使用 AWS。
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string

	// PartSize 是分片上传时每个分片的固定大小，同时也是流式写入时的内存上限。
	PartSize int64

	// MaxRetries 是单个请求失败后的重试次数。
	MaxRetries int

	// Client 可注入预先配置的客户端（测试用），此时忽略连接字段。
	Client *minio.Client
}

// ObjectStore 以 bucket 根下的同名对象保存缓存条目。
type ObjectStore struct {
	client   *minio.Client
	bucket   string
	partSize int64
}

// NewObjectStore 根据配置构建 minio 客户端；不会在启动时访问网络。
func NewObjectStore(opts ObjectStoreOptions) (*ObjectStore, error) {
	if opts.Bucket == "" {
		return nil, errors.New("bucket is required")
	}

	client := opts.Client
	if client == nil {
		host, secure, err := resolveEndpoint(opts.Endpoint)
		if err != nil {
			return nil, err
		}
		client, err = minio.New(host, &minio.Options{
			Creds:     credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
			Secure:    secure,
			Region:    opts.Region,
			Transport: newObjectTransport(),
			// minio 把 MaxRetries 视为总尝试次数，1 表示不重试。
			MaxRetries: opts.MaxRetries + 1,
		})
		if err != nil {
			return nil, fmt.Errorf("create minio client: %w", err)
		}
	}

	partSize := opts.PartSize
	if partSize <= 0 {
		partSize = defaultPartSize
	}

	return &ObjectStore{
		client:   client,
		bucket:   opts.Bucket,
		partSize: partSize,
	}, nil
}

func (s *ObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("minio stat %s: %w", key, err)
	}
	return true, nil
}

// Open 返回惰性的对象流，首次 Read 时才发起 GET。
func (s *ObjectStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio get %s: %w", key, err)
	}
	return obj, nil
}

// Size 对不存在的对象返回 0。
func (s *ObjectStore) Size(ctx context.Context, key string) (int64, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("minio stat %s: %w", key, err)
	}
	return info.Size, nil
}

// Write 以未知长度（-1）调用 PutObject：SDK 按 PartSize 分片流式上传，
// 只有读到 EOF 才完成上传，读取出错时放弃分片会话，key 下不会出现对象。
// 声明长度不能作为对象大小传入：SDK 读满该长度即停止，超出的字节将无法被发现。
func (s *ObjectStore) Write(ctx context.Context, key string, body io.Reader) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, body, -1, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
		PartSize:    uint64(s.partSize),
	})
	if err != nil {
		return fmt.Errorf("minio put %s: %w", key, err)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

// resolveEndpoint 把配置的 endpoint 拆成 minio 需要的 host 与 TLS 开关。
func resolveEndpoint(raw string) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultS3Endpoint, true, nil
	}
	if !strings.Contains(raw, "://") {
		return strings.TrimSuffix(raw, "/"), true, nil
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse endpoint: %w", err)
	}
	switch parsed.Scheme {
	case "https":
		return parsed.Host, true, nil
	case "http":
		return parsed.Host, false, nil
	default:
		return "", false, fmt.Errorf("unsupported endpoint scheme: %s", parsed.Scheme)
	}
}
