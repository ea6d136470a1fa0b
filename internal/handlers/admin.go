package handlers

import (
	"context"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/redbirdapp/redbird/internal/service"
	"github.com/redbirdapp/redbird/internal/store"
)

// cacheWindow is the freshness window used when clearing expired entries
const cacheWindow = 24 * time.Hour

// AdminStatsHandler reports record counts and API key configuration
func AdminStatsHandler(billStore *store.BillStore, cacheStore *store.CacheStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()

		totalBills, err := billStore.Count(ctx)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error loading stats"})
		}
		totalCached, err := cacheStore.Count(ctx)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error loading stats"})
		}
		cacheStats, err := cacheStore.Stats(ctx)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error loading stats"})
		}

		return c.JSON(fiber.Map{
			"total_summaries":    totalBills,
			"total_cached_bills": totalCached,
			"cache_stats":        cacheStats,
			"api_keys_configured": fiber.Map{
				"openstates": os.Getenv("OPENSTATES_API_KEY") != "",
				"openai":     os.Getenv("OPENAI_API_KEY") != "",
			},
		})
	}
}

// AdminDatabaseHandler surfaces recent records for inspection
func AdminDatabaseHandler(billStore *store.BillStore, cacheStore *store.CacheStore, runStore *store.SyncRunStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()

		totalBills, err := billStore.Count(ctx)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error loading database info"})
		}
		totalCached, err := cacheStore.Count(ctx)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error loading database info"})
		}

		recentBills, err := billStore.ListRecent(ctx, 10)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error loading database info"})
		}
		summaries := make([]fiber.Map, len(recentBills))
		for i, b := range recentBills {
			summaries[i] = fiber.Map{
				"id":         b.ID,
				"bill_id":    b.BillID,
				"title":      b.Title,
				"created_at": b.CreatedAt,
			}
		}

		recentCached, err := cacheStore.ListRecent(ctx, 10)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error loading database info"})
		}
		cached := make([]fiber.Map, len(recentCached))
		for i, entry := range recentCached {
			var updatedAt any
			if !entry.UpdatedAt.IsZero() {
				updatedAt = entry.UpdatedAt
			}
			cached[i] = fiber.Map{
				"id":         entry.ID,
				"bill_id":    entry.BillID,
				"created_at": entry.CreatedAt,
				"updated_at": updatedAt,
			}
		}

		recentRuns, err := runStore.ListRecent(ctx, 10)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error loading database info"})
		}

		cacheStats, err := cacheStore.Stats(ctx)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error loading database info"})
		}

		return c.JSON(fiber.Map{
			"total_summaries":  totalBills,
			"total_cached":     totalCached,
			"recent_summaries": summaries,
			"recent_cached":    cached,
			"recent_runs":      recentRuns,
			"cache_stats":      cacheStats,
		})
	}
}

// AdminMetricsHandler recalculates corpus metrics and returns the snapshot
func AdminMetricsHandler(metrics *service.MetricsService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snapshot, err := metrics.CalculateAndStore(context.Background())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error calculating metrics"})
		}
		return c.JSON(snapshot)
	}
}

type clearCacheRequest struct {
	CacheType string `json:"cache_type"`
}

// AdminClearCacheHandler clears cache entries by type: the whole payload
// cache, only expired entries, or everything
func AdminClearCacheHandler(cacheStore *store.CacheStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()

		var req clearCacheRequest
		if err := c.BodyParser(&req); err != nil {
			req.CacheType = ""
		}
		if req.CacheType == "" {
			req.CacheType = c.Query("cache_type")
		}

		switch req.CacheType {
		case "bill_cache":
			deleted, err := cacheStore.DeleteAll(ctx)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error clearing cache"})
			}
			return c.JSON(fiber.Map{"message": "Bill cache cleared", "deleted": deleted})
		case "expired":
			deleted, err := cacheStore.DeleteExpired(ctx, cacheWindow)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error clearing cache"})
			}
			return c.JSON(fiber.Map{"message": "Expired cache entries cleared", "deleted": deleted})
		case "all":
			deleted, err := cacheStore.DeleteAll(ctx)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error clearing cache"})
			}
			return c.JSON(fiber.Map{
				"message":       "All caches cleared",
				"deleted_cache": deleted,
				"note":          "Stored bills are preserved",
			})
		default:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid cache type"})
		}
	}
}

// AdminSearchSummariesHandler searches stored bills by title, summary, or bill id
func AdminSearchSummariesHandler(billStore *store.BillStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()

		query := c.Query("q")
		skip := c.QueryInt("skip", 0)
		limit := c.QueryInt("limit", 20)
		if skip < 0 {
			skip = 0
		}
		if limit < 1 || limit > maxListLimit {
			limit = 20
		}

		bills, err := billStore.List(ctx, skip, limit, "", query)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error searching summaries"})
		}
		total, err := billStore.CountMatching(ctx, "", query)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error searching summaries"})
		}

		summaries := make([]fiber.Map, len(bills))
		for i, b := range bills {
			summary := b.Summary
			if len(summary) > 200 {
				summary = summary[:200] + "..."
			}
			summaries[i] = fiber.Map{
				"id":         b.ID,
				"bill_id":    b.BillID,
				"title":      b.Title,
				"summary":    summary,
				"status":     b.Status,
				"created_at": b.CreatedAt,
			}
		}

		return c.JSON(fiber.Map{
			"summaries": summaries,
			"query":     query,
			"skip":      skip,
			"limit":     limit,
			"total":     total,
		})
	}
}
