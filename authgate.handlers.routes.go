// Package authgate provides dual-mode request authentication (signed session
// tokens and revocable API keys) with a warm in-memory key cache for Go services.
//
// This file mounts the admin handler core on a Fiber router. Mount behind the
// authentication middleware; the handlers additionally require the admin role.
package authgate

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterAdminRoutes registers the operator endpoints on the given router
// group. All routes require an authenticated principal with the admin role.
func RegisterAdminRoutes(group fiber.Router, core *HandlerCore) {
	group.Post("/keys", createKeyHandler(core))
	group.Get("/keys", listKeysHandler(core))
	group.Get("/keys/:id", getKeyHandler(core))
	group.Delete("/keys/:id", revokeKeyHandler(core))
	group.Post("/keys/:id/reveal", revealSecretHandler(core))
}

// sendResult writes a HandlerResult as a Fiber response.
func sendResult(c *fiber.Ctx, result *HandlerResult) error {
	if result.Error != "" {
		return c.Status(result.StatusCode).JSON(fiber.Map{
			"error": result.Error,
		})
	}
	return c.Status(result.StatusCode).JSON(result.Data)
}

func createKeyHandler(core *HandlerCore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		result := core.HandleCreateKey(c.UserContext(), c.Body(), PrincipalFromFiber(c))
		return sendResult(c, result)
	}
}

func listKeysHandler(core *HandlerCore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		result := core.HandleListKeys(c.UserContext(), PrincipalFromFiber(c))
		return sendResult(c, result)
	}
}

func getKeyHandler(core *HandlerCore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		result := core.HandleGetKey(c.UserContext(), c.Params("id"), PrincipalFromFiber(c))
		return sendResult(c, result)
	}
}

func revokeKeyHandler(core *HandlerCore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		result := core.HandleRevokeKey(c.UserContext(), c.Params("id"), PrincipalFromFiber(c))
		return sendResult(c, result)
	}
}

func revealSecretHandler(core *HandlerCore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		result := core.HandleRevealSecret(c.UserContext(), c.Params("id"), PrincipalFromFiber(c))
		return sendResult(c, result)
	}
}
