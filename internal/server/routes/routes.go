package routes

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/nx-cache-server/internal/access"
)

// Controllers 汇总业务路由依赖的控制器。
type Controllers struct {
	Cache  *access.CacheController
	Tokens *access.TokenController
}

// Register 注册缓存与令牌管理路由，最后挂上兜底的 404。
func Register(app *fiber.App, controllers Controllers) {
	if app == nil {
		return
	}
	if controllers.Cache != nil {
		RegisterCacheRoutes(app, controllers.Cache)
	}
	if controllers.Tokens != nil {
		RegisterTokenRoutes(app, controllers.Tokens)
	}
	app.All("/*", func(c fiber.Ctx) error {
		return fiber.ErrNotFound
	})
}

// statusFor 把控制器返回的错误映射为 HTTP 状态码。
func statusFor(err error) int {
	switch {
	case errors.Is(err, access.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, access.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, access.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, access.ErrConflict):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// renderError 以 text/plain 返回错误说明；无法识别的错误只输出通用文本。
func renderError(c fiber.Ctx, err error) error {
	status := statusFor(err)
	message := err.Error()
	var outcome *access.Outcome
	if status == fiber.StatusInternalServerError && !errors.As(err, &outcome) {
		message = access.ErrInternal.Error()
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlain)
	return c.Status(status).SendString(message)
}
