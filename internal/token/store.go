package token

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/any-hub/nx-cache-server/internal/logging"
)

// DefaultPath 是未配置时令牌库文件的位置。
const DefaultPath = "./data/nx-cache-server-tokens.sqlite"

var (
	// ErrIDExists 表示 id 与已有令牌重复。
	ErrIDExists = errors.New("token id already exists")
	// ErrValueExists 表示 value 与已有令牌重复。
	ErrValueExists = errors.New("token value already exists")
	// ErrUnknown 表示底层存储失败，细节只写入日志。
	ErrUnknown = errors.New("token store failure")
)

const schema = `
CREATE TABLE IF NOT EXISTS tokens (
	id TEXT NOT NULL UNIQUE,
	value TEXT PRIMARY KEY,
	permission TEXT NOT NULL CHECK (permission IN ('readonly', 'full'))
);
`

// busy_timeout 必须最先设置，后续 pragma 在多连接同时初始化时也可能遇到锁。
var pragmas = []string{
	"PRAGMA busy_timeout=5000",
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
}

// Options 控制令牌库的打开方式。
type Options struct {
	// Path 为 SQLite 文件路径，父目录不存在时自动创建。
	Path string
	// PoolSize <= 0 时取 max(NumCPU, 4)。
	PoolSize int
	Logger   logrus.FieldLogger
}

// Store 是令牌表的唯一所有者，可被并发调用；每次操作从连接池借出独立连接。
type Store struct {
	pool   *sqlitex.Pool
	logger logrus.FieldLogger
	path   string
}

// Open 创建连接池并执行幂等的建表语句。
func Open(ctx context.Context, opts Options) (*Store, error) {
	path := opts.Path
	if path == "" {
		path = DefaultPath
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create token db dir: %w", err)
	}

	poolSize := opts.PoolSize
	if poolSize <= 0 {
		poolSize = max(runtime.NumCPU(), 4)
	}

	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConn,
	})
	if err != nil {
		return nil, fmt.Errorf("open token db %s: %w", path, err)
	}

	store := &Store{pool: pool, logger: logger, path: path}
	if err := store.migrate(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"action":    "token_store_open",
		"path":      path,
		"pool_size": poolSize,
	}).Debug("令牌库已打开")
	return store, nil
}

func prepareConn(conn *sqlite.Conn) error {
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("take connection: %w", err)
	}
	defer s.pool.Put(conn)

	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("create tokens table: %w", err)
	}
	return nil
}

// Add 插入一条令牌记录。唯一性完全交给 SQLite 约束判断，不做先查后写。
func (s *Store) Add(ctx context.Context, record Record) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		s.logFailure("token_add", record.ID, err)
		return ErrUnknown
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO tokens (id, value, permission) VALUES (?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{record.ID, record.Value, string(record.Permission)}},
	)
	if err != nil {
		classified := classifyInsertError(err)
		if classified == ErrUnknown {
			s.logFailure("token_add", record.ID, err)
		} else {
			s.logger.WithFields(logging.TokenFields("token_add", record.ID)).Debug(classified.Error())
		}
		return classified
	}
	return nil
}

// Remove 按 value 删除令牌；removed 为 false 且 err 为 nil 表示没有匹配的行。
func (s *Store) Remove(ctx context.Context, value string) (bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		s.logFailure("token_remove", "", err)
		return false, ErrUnknown
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `DELETE FROM tokens WHERE value = ?`, &sqlitex.ExecOptions{
		Args: []any{value},
	})
	if err != nil {
		s.logFailure("token_remove", "", err)
		return false, ErrUnknown
	}
	return conn.Changes() > 0, nil
}

// List 按 id 升序返回全部令牌，value 经 Mask(v, 1, 1) 脱敏；失败时返回空切片。
func (s *Store) List(ctx context.Context) []Record {
	records := []Record{}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		s.logFailure("token_list", "", err)
		return records
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `SELECT id, value, permission FROM tokens ORDER BY id ASC`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			records = append(records, Record{
				ID:         stmt.ColumnText(0),
				Value:      Mask(stmt.ColumnText(1), 1, 1),
				Permission: Permission(stmt.ColumnText(2)),
			})
			return nil
		},
	})
	if err != nil {
		s.logFailure("token_list", "", err)
		return []Record{}
	}
	return records
}

// Find 返回与 value 完全匹配的原始记录，不存在或查询失败时返回 nil。
func (s *Store) Find(ctx context.Context, value string) *Record {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		s.logFailure("token_find", "", err)
		return nil
	}
	defer s.pool.Put(conn)

	var found *Record
	err = sqlitex.Execute(conn, `SELECT id, value, permission FROM tokens WHERE value = ? LIMIT 1`, &sqlitex.ExecOptions{
		Args: []any{value},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			found = &Record{
				ID:         stmt.ColumnText(0),
				Value:      stmt.ColumnText(1),
				Permission: Permission(stmt.ColumnText(2)),
			}
			return nil
		},
	})
	if err != nil {
		s.logFailure("token_find", "", err)
		return nil
	}
	return found
}

// Close 关闭连接池，会等待所有借出的连接归还。
func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("close token db %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) logFailure(action, id string, err error) {
	s.logger.WithFields(logging.TokenFields(action, id)).WithError(err).Error("令牌库操作失败")
}

func classifyInsertError(err error) error {
	switch sqlite.ErrCode(err) {
	case sqlite.ResultConstraintUnique, sqlite.ResultConstraintPrimaryKey:
		msg := err.Error()
		switch {
		case strings.Contains(msg, "tokens.id"):
			return ErrIDExists
		case strings.Contains(msg, "tokens.value"):
			return ErrValueExists
		}
	}
	return ErrUnknown
}
