package routes

import (
	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/nx-cache-server/internal/access"
	"github.com/any-hub/nx-cache-server/internal/server"
	"github.com/any-hub/nx-cache-server/internal/token"
)

type tokenListPayload struct {
	Tokens []token.Record `json:"tokens"`
}

// RegisterTokenRoutes 暴露 /v1/admin/tokens 管理接口，全部要求管理员令牌。
func RegisterTokenRoutes(app *fiber.App, controller *access.TokenController) {
	app.Get("/v1/admin/tokens", func(c fiber.Ctx) error {
		records, err := controller.List(c.Context(), server.IsAdmin(c))
		if err != nil {
			return renderError(c, err)
		}
		return c.JSON(tokenListPayload{Tokens: records})
	})

	app.Post("/v1/admin/tokens", func(c fiber.Ctx) error {
		record, err := controller.Add(c.Context(), server.IsAdmin(c), c.Body())
		if err != nil {
			return renderError(c, err)
		}
		return c.JSON(record, fiber.MIMEApplicationJSONCharsetUTF8)
	})

	app.Delete("/v1/admin/tokens/:token", func(c fiber.Ctx) error {
		err := controller.Delete(c.Context(), server.IsAdmin(c), c.Params("token"))
		if err != nil {
			return renderError(c, err)
		}
		c.Status(fiber.StatusNoContent)
		return nil
	})
}
