package routes

import (
	"bytes"
	"io"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/nx-cache-server/internal/access"
	"github.com/any-hub/nx-cache-server/internal/server"
)

// RegisterCacheRoutes 暴露 /v1/cache/:hash 的读写接口。
func RegisterCacheRoutes(app *fiber.App, controller *access.CacheController) {
	app.Get("/v1/cache/:hash", func(c fiber.Ctx) error {
		blob, err := controller.Read(c.Context(), c.Params("hash"), server.Permission(c))
		if err != nil {
			return renderError(c, err)
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
		return c.Status(fiber.StatusOK).SendStream(blob.Reader, int(blob.Size))
	})

	app.Put("/v1/cache/:hash", func(c fiber.Ctx) error {
		err := controller.Write(
			c.Context(),
			c.Params("hash"),
			server.Permission(c),
			requestBody(c),
			c.Get(fiber.HeaderContentLength),
		)
		if err != nil {
			return renderError(c, err)
		}
		c.Status(fiber.StatusOK)
		return nil
	})
}

// requestBody 优先使用流式请求体，较小的请求 Fiber 可能已整体读入内存。
func requestBody(c fiber.Ctx) io.Reader {
	if stream := c.Request().BodyStream(); stream != nil {
		return stream
	}
	return bytes.NewReader(c.Body())
}
