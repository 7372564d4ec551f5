package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"

	"github.com/aira-metrics/dashboard/internal/logger"
)

// ProxyToUpstream forwards /proxy/* to the analytics API unchanged, for
// inspecting raw responses during development. Dashboard credentials are not
// forwarded.
func ProxyToUpstream(upstream string) fiber.Handler {
	upstream = strings.TrimRight(upstream, "/")

	return func(c *fiber.Ctx) error {
		target := upstream + "/" + strings.TrimLeft(c.Params("*"), "/")
		if q := c.Request().URI().QueryString(); len(q) > 0 {
			target += "?" + string(q)
		}

		c.Request().Header.Del(fiber.HeaderCookie)
		c.Request().Header.Del(fiber.HeaderAuthorization)

		if err := proxy.Do(c, target); err != nil {
			logger.Warnf("proxy %s %s failed: %v", c.Method(), target, err)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "Failed to reach the analytics API",
			})
		}
		c.Response().Header.Del(fiber.HeaderServer)
		return nil
	}
}
