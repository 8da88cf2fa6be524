package cache

import (
	"context"
	"errors"
	"io"
	"sync"
)

var (
	// ErrContentLengthExceeded 表示收到的字节数已超过声明的 Content-Length。
	ErrContentLengthExceeded = errors.New("content length exceeded")
	// ErrContentLengthMismatch 表示正文结束时字节数与声明的 Content-Length 不一致。
	ErrContentLengthMismatch = errors.New("content length mismatch")
)

// IsLengthError 报告 err 是否来自长度校验，而非存储故障。
func IsLengthError(err error) bool {
	return errors.Is(err, ErrContentLengthExceeded) || errors.Is(err, ErrContentLengthMismatch)
}

// GuardedWriter 在后端写入前套上长度校验，保证只有字节数与声明一致的正文才会被提交。
type GuardedWriter struct {
	backend Backend
}

// NewGuardedWriter 构造带长度校验的写入器。
func NewGuardedWriter(backend Backend) GuardedWriter {
	return GuardedWriter{backend: backend}
}

// Write 把 body 经 lengthGuard 交给后端。长度不符时返回的错误满足 IsLengthError，
// 后端自身的失败路径负责清理临时文件或未完成的分片上传。
func (w GuardedWriter) Write(ctx context.Context, key string, body io.Reader, declared int64) error {
	guard := newLengthGuard(body, declared)
	err := w.backend.Write(ctx, key, guard)
	if verdict := guard.Err(); verdict != nil {
		// 后端可能不带 %w 包装 Reader 的错误，以 guard 自己的判定为准。
		return verdict
	}
	if err != nil {
		guard.abort()
	}
	return err
}

// lengthGuard 统计经过的字节数，超出声明长度时立即失败且不再转发任何字节；
// 读到 EOF 时若总数与声明不一致同样失败。失败状态是粘滞的。
type lengthGuard struct {
	src      io.Reader
	declared int64
	seen     int64

	mu     sync.Mutex
	err    error
	closed bool
}

func newLengthGuard(src io.Reader, declared int64) *lengthGuard {
	return &lengthGuard{src: src, declared: declared}
}

func (g *lengthGuard) Read(p []byte) (int, error) {
	g.mu.Lock()
	if g.err != nil {
		err := g.err
		g.mu.Unlock()
		return 0, err
	}
	g.mu.Unlock()

	n, err := g.src.Read(p)
	g.seen += int64(n)

	if g.seen > g.declared {
		g.fail(ErrContentLengthExceeded)
		return 0, ErrContentLengthExceeded
	}
	if errors.Is(err, io.EOF) && g.seen != g.declared {
		g.fail(ErrContentLengthMismatch)
		return n, ErrContentLengthMismatch
	}
	return n, err
}

// Err 返回长度校验的判定；正常结束或尚未结束时为 nil。
func (g *lengthGuard) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

func (g *lengthGuard) fail(err error) {
	g.mu.Lock()
	if g.err == nil {
		g.err = err
	}
	g.mu.Unlock()
	g.abort()
}

// abort 尽力关闭原始输入流，让消费方中途放弃时上游连接也能及时释放。
func (g *lengthGuard) abort() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	g.mu.Unlock()

	if closer, ok := g.src.(io.Closer); ok {
		_ = closer.Close()
	}
}
