package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// HomeHandler serves the API banner
func HomeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "Redbird California Legislation Tracker",
			"version": "1.0.0",
			"status":  "ok",
		})
	}
}

// HealthHandler reports service liveness
func HealthHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "redbird-api",
		})
	}
}
