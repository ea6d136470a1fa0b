package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/redbirdapp/redbird/internal/model"
	"github.com/redbirdapp/redbird/internal/service"
	"github.com/redbirdapp/redbird/internal/store"
)

// ScrapeBillsHandler runs a bill sync for the requested year selector
func ScrapeBillsHandler(ingestor *service.Ingestor) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()

		stats, err := ingestor.IngestSession(ctx, c.Query("year"), model.TriggerAPI)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Sync failed"})
		}

		return c.JSON(fiber.Map{
			"status": "success",
			"data":   stats,
		})
	}
}

// ScrapeStatusHandler reports scheduler state and the most recent sync run
func ScrapeStatusHandler(scheduler *service.SyncScheduler, runStore *store.SyncRunStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()

		status := "inactive"
		if scheduler.Running() {
			status = "active"
		}

		var lastRun any
		if run, err := runStore.Latest(ctx); err == nil && run != nil {
			lastRun = run
		}

		return c.JSON(fiber.Map{
			"scheduler_running": scheduler.Running(),
			"status":            status,
			"last_run":          lastRun,
		})
	}
}

// ClearBillsHandler removes every stored bill
func ClearBillsHandler(ingestor *service.Ingestor) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()

		deleted, err := ingestor.ClearAll(ctx)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error clearing bills"})
		}

		return c.JSON(fiber.Map{
			"status":  "success",
			"deleted": deleted,
		})
	}
}

// GenerateAIHandler enriches stored bills that are missing summaries
func GenerateAIHandler(ingestor *service.Ingestor) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()

		limit := c.QueryInt("limit", 20)
		if limit < 1 {
			limit = 20
		}

		generated, err := ingestor.EnrichPending(ctx, limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error generating summaries"})
		}

		return c.JSON(fiber.Map{
			"status":    "success",
			"generated": generated,
		})
	}
}

// GenerateAIBillHandler regenerates the summary for one bill
func GenerateAIBillHandler(ingestor *service.Ingestor) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()

		billID := c.Params("billID")
		if err := ingestor.EnrichBill(ctx, billID); err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Failed to generate summary"})
		}

		return c.JSON(fiber.Map{
			"status":  "success",
			"bill_id": billID,
		})
	}
}

// SchedulerStartHandler starts the weekly sync scheduler
func SchedulerStartHandler(scheduler *service.SyncScheduler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		scheduler.Start()
		return c.JSON(fiber.Map{"status": "started"})
	}
}

// SchedulerStopHandler stops the weekly sync scheduler
func SchedulerStopHandler(scheduler *service.SyncScheduler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		scheduler.Stop()
		return c.JSON(fiber.Map{"status": "stopped"})
	}
}
