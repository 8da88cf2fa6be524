package access

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/nx-cache-server/internal/logging"
	"github.com/any-hub/nx-cache-server/internal/token"
)

const (
	msgInvalidJSON       = "Invalid JSON"
	msgIDRequired        = "id is required and must be a string"
	msgPermissionInvalid = "permission is required, must be a string and one of: full, readonly"
	msgTokenRequired     = "token is required"
)

// TokenStore 是令牌管理所需的存储能力，*token.Store 满足该接口。
type TokenStore interface {
	Add(ctx context.Context, record token.Record) error
	Remove(ctx context.Context, value string) (bool, error)
	List(ctx context.Context) []token.Record
}

// TokenController 处理管理员的令牌增删查，每个操作都先检查管理员身份。
type TokenController struct {
	store    TokenStore
	logger   logrus.FieldLogger
	newValue func() (string, error)
}

func NewTokenController(store TokenStore, logger logrus.FieldLogger) *TokenController {
	if logger == nil {
		logger = logging.Discard()
	}
	return &TokenController{store: store, logger: logger, newValue: token.NewValue}
}

// Add 解析 {"id": ..., "permission": ...}，生成新的令牌值并保存。
// 返回值包含未脱敏的 value，这是它唯一一次离开服务端。
func (c *TokenController) Add(ctx context.Context, isAdmin bool, body []byte) (token.Record, error) {
	if !isAdmin {
		return token.Record{}, ErrForbidden
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		c.logger.WithField("action", "token_add").WithError(err).Debug("请求体无法解析为 JSON")
		return token.Record{}, invalidInput(msgInvalidJSON)
	}

	// 数组按缺少 id 处理，null 与标量才算非法 JSON。
	var payload map[string]any
	switch v := decoded.(type) {
	case map[string]any:
		payload = v
	case []any:
		return token.Record{}, invalidInput(msgIDRequired)
	default:
		c.logger.WithField("action", "token_add").Debug("请求体不是 JSON 对象")
		return token.Record{}, invalidInput(msgInvalidJSON)
	}

	id, ok := payload["id"].(string)
	if !ok || id == "" {
		return token.Record{}, invalidInput(msgIDRequired)
	}
	rawPermission, ok := payload["permission"].(string)
	permission := token.Permission(rawPermission)
	if !ok || !permission.Valid() {
		return token.Record{}, invalidInput(msgPermissionInvalid)
	}

	value, err := c.newValue()
	if err != nil {
		c.logger.WithFields(logging.TokenFields("token_add", id)).WithError(err).Error("生成令牌失败")
		return token.Record{}, ErrAddFailure
	}

	record := token.Record{ID: id, Value: value, Permission: permission}
	switch err := c.store.Add(ctx, record); {
	case err == nil:
		c.logger.WithFields(logging.TokenFields("token_add", id)).
			WithField("permission", permission).
			Info("令牌已创建")
		return record, nil
	case errors.Is(err, token.ErrIDExists):
		return token.Record{}, ErrTokenIDExists
	case errors.Is(err, token.ErrValueExists):
		return token.Record{}, ErrTokenValueExists
	default:
		return token.Record{}, ErrAddFailure
	}
}

// List 返回脱敏后的令牌列表，结果永不为 nil。
func (c *TokenController) List(ctx context.Context, isAdmin bool) ([]token.Record, error) {
	if !isAdmin {
		return nil, ErrForbidden
	}
	records := c.store.List(ctx)
	if records == nil {
		records = []token.Record{}
	}
	return records, nil
}

// Delete 按原始 value 删除令牌。
func (c *TokenController) Delete(ctx context.Context, isAdmin bool, value string) error {
	if !isAdmin {
		return ErrForbidden
	}
	if value == "" {
		return invalidInput(msgTokenRequired)
	}

	removed, err := c.store.Remove(ctx, value)
	if err != nil {
		return ErrDeleteFailure
	}
	if !removed {
		return ErrTokenNotFound
	}
	c.logger.WithField("action", "token_delete").Info("令牌已删除")
	return nil
}
