package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

var errReservedKey = errors.New("reserved cache key")

// incomingDir 存放写入中的临时文件，位于 basePath 之下以保证 rename 不跨文件系统。
// Exists 不把目录视为条目，因此进行中的上传不会被读到。
const incomingDir = ".incoming"

// FileStore 将每个 key 保存为 basePath 下的同名文件，写入经临时文件 + rename 提交。
type FileStore struct {
	basePath string
}

// NewFileStore 以 basePath 为根目录构建磁盘缓存，整站复用一份实例。
func NewFileStore(basePath string) (*FileStore, error) {
	if basePath == "" {
		return nil, errors.New("storage path required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	return &FileStore{basePath: abs}, nil
}

// Dir 返回缓存根目录的绝对路径。
func (s *FileStore) Dir() string {
	return s.basePath
}

func (s *FileStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	filePath, err := s.path(key)
	if err != nil {
		return false, nil
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

func (s *FileStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filePath, err := s.path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(filePath)
}

// Size 对不存在的 key 返回 0。
func (s *FileStore) Size(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	filePath, err := s.path(key)
	if err != nil {
		return 0, nil
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	return info.Size(), nil
}

func (s *FileStore) Write(ctx context.Context, key string, body io.Reader) error {
	filePath, err := s.path(key)
	if err != nil {
		return err
	}

	incoming := filepath.Join(s.basePath, incomingDir)
	if err := os.MkdirAll(incoming, 0o755); err != nil {
		return err
	}

	// 随机后缀避免并发写同一 key 时互相覆盖。
	tempFile, err := os.CreateTemp(incoming, key+".*.tmp")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	_, err = copyWithContext(ctx, tempFile, body)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return err
	}

	if err := os.Rename(tempName, filePath); err != nil {
		os.Remove(tempName)
		return err
	}
	return nil
}

func (s *FileStore) path(key string) (string, error) {
	if !ValidKey(key) || key == "." || key == ".." || key == incomingDir {
		return "", fmt.Errorf("%w: %q", errReservedKey, key)
	}
	return filepath.Join(s.basePath, key), nil
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
