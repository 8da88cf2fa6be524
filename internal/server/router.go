package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/nx-cache-server/internal/access"
	"github.com/any-hub/nx-cache-server/internal/logging"
	"github.com/any-hub/nx-cache-server/internal/token"
)

// PermissionResolver 把 Bearer 令牌换算为权限，access.Resolver 是默认实现。
type PermissionResolver interface {
	Resolve(ctx context.Context, bearer string) (token.Permission, bool)
}

// AppOptions 描述 Fiber 应用依赖的组件，全部由调用方显式注入。
type AppOptions struct {
	Logger   *logrus.Logger
	Resolver PermissionResolver
	// BodyLimit 为 0 时使用 Fiber 默认值；开启流式请求体后超出部分以流的形式交给处理器。
	BodyLimit int
}

const (
	contextKeyRequestID  = "_nxcache_request_id"
	contextKeyPermission = "_nxcache_permission"
	contextKeyAdmin      = "_nxcache_admin"
)

// NewApp 构建带请求 ID、访问日志、权限解析和统一错误处理的 Fiber 应用。
// 业务路由由 routes 包注册。
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Resolver == nil {
		return nil, errors.New("permission resolver is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive:     true,
		StreamRequestBody: true,
		BodyLimit:         opts.BodyLimit,
		ErrorHandler:      errorHandler(opts.Logger),
	})

	app.Use(requestContextMiddleware(opts.Logger))
	app.Use(recover.New())
	app.Use(authMiddleware(opts.Resolver))

	return app, nil
}

// requestContextMiddleware 生成请求 ID 并在请求结束后输出一条访问日志。
func requestContextMiddleware(logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		started := time.Now()
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = statusOfError(err)
		}
		fields := logging.RequestFields(reqID, c.Method(), c.Path(), status)
		fields["action"] = "http_request"
		fields["elapsed_ms"] = time.Since(started).Milliseconds()
		logger.WithFields(fields).Info("请求完成")
		return err
	}
}

// authMiddleware 每个请求只解析一次 Authorization 头，结果存入 Locals。
func authMiddleware(resolver PermissionResolver) fiber.Handler {
	return func(c fiber.Ctx) error {
		bearer := access.BearerToken(c.Get(fiber.HeaderAuthorization))
		perm, admin := resolver.Resolve(c.Context(), bearer)
		c.Locals(contextKeyPermission, perm)
		c.Locals(contextKeyAdmin, admin)
		return c.Next()
	}
}

// errorHandler 处理未匹配的路由和处理器中的 panic；业务错误由路由自行渲染。
func errorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		if status := statusOfError(err); status < fiber.StatusInternalServerError {
			c.Status(status)
			return nil
		}

		logger.WithFields(logrus.Fields{
			"action":     "http_error",
			"request_id": RequestID(c),
			"path":       c.Path(),
		}).WithError(err).Error("请求处理失败")

		c.Set(fiber.HeaderContentType, fiber.MIMETextPlain)
		return c.Status(fiber.StatusInternalServerError).SendString(access.ErrInternal.Error())
	}
}

// statusOfError 把路由层错误映射为状态码，方法不匹配同样视为路由不存在。
func statusOfError(err error) int {
	var fiberErr *fiber.Error
	if !errors.As(err, &fiberErr) {
		return fiber.StatusInternalServerError
	}
	if fiberErr.Code == fiber.StatusMethodNotAllowed {
		return fiber.StatusNotFound
	}
	return fiberErr.Code
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

// Permission 返回 authMiddleware 解析出的权限，未经过中间件时为空权限。
func Permission(c fiber.Ctx) token.Permission {
	if perm, ok := c.Locals(contextKeyPermission).(token.Permission); ok {
		return perm
	}
	return token.PermissionNone
}

// IsAdmin 报告请求是否携带管理员令牌。
func IsAdmin(c fiber.Ctx) bool {
	admin, _ := c.Locals(contextKeyAdmin).(bool)
	return admin
}
