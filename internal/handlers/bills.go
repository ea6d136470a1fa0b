package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/redbirdapp/redbird/internal/model"
	"github.com/redbirdapp/redbird/internal/service"
	"github.com/redbirdapp/redbird/internal/store"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// lookupBill fetches a stored bill, retrying with the ocd-bill namespace
// when the caller passed a bare uuid
func lookupBill(ctx context.Context, billStore *store.BillStore, billID string) (*model.Bill, error) {
	bill, err := billStore.GetByBillID(ctx, billID)
	if err != nil || bill != nil {
		return bill, err
	}
	if !strings.HasPrefix(billID, "ocd-bill/") {
		return billStore.GetByBillID(ctx, "ocd-bill/"+billID)
	}
	return nil, nil
}

// BillsListHandler lists stored bills with optional filters. An empty,
// unfiltered database is seeded from the current legislative session first.
func BillsListHandler(billStore *store.BillStore, ingestor *service.Ingestor) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()

		skip := c.QueryInt("skip", 0)
		limit := c.QueryInt("limit", defaultListLimit)
		if limit < 1 || limit > maxListLimit {
			limit = defaultListLimit
		}
		if skip < 0 {
			skip = 0
		}
		status := c.Query("status")
		search := c.Query("search")

		bills, err := billStore.List(ctx, skip, limit, status, search)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error loading bills"})
		}

		source := "database"
		if len(bills) == 0 && skip == 0 && status == "" && search == "" {
			if stats, err := ingestor.SeedCurrentSession(ctx); err == nil && stats.Processed > 0 {
				source = "openstates_api"
				bills, err = billStore.List(ctx, skip, limit, status, search)
				if err != nil {
					return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error loading bills"})
				}
			}
		}

		total, err := billStore.Count(ctx)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error loading bills"})
		}

		return c.JSON(fiber.Map{
			"bills":  bills,
			"count":  len(bills),
			"total":  total,
			"skip":   skip,
			"limit":  limit,
			"source": source,
		})
	}
}

// BillDetailHandler returns the full stored record for one bill
func BillDetailHandler(billStore *store.BillStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()

		bill, err := lookupBill(ctx, billStore, c.Params("billID"))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error loading bill"})
		}
		if bill == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Bill not found"})
		}
		return c.JSON(bill)
	}
}

// BillGetHandler returns a condensed view of one bill, fetching it from the
// source on a storage miss
func BillGetHandler(ingestor *service.Ingestor) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()

		bill, err := ingestor.EnsureBill(ctx, c.Params("billID"))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error loading bill"})
		}
		if bill == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Bill not found"})
		}

		var aiSummary any
		if bill.AIAnalysis != nil {
			aiSummary = fiber.Map{
				"summary":        bill.Summary,
				"key_provisions": bill.KeyProvisions,
				"impact":         bill.Impact,
			}
		}

		return c.JSON(fiber.Map{
			"bill": fiber.Map{
				"id":              bill.BillID,
				"identifier":      bill.Identifier,
				"title":           bill.Title,
				"status":          bill.Status,
				"chamber":         bill.Chamber,
				"updated_at":      bill.UpdatedAt,
				"introduced_date": bill.FirstActionDate,
				"category":        bill.Classification,
				"abstract":        bill.Summary,
				"full_text_url":   bill.OpenStatesURL,
				"sponsors":        bill.Sponsors,
			},
			"ai_summary": aiSummary,
		})
	}
}

type createBillRequest struct {
	BillID        string   `json:"bill_id"`
	Title         string   `json:"title"`
	Summary       string   `json:"summary"`
	KeyProvisions []string `json:"key_provisions"`
	Impact        string   `json:"impact"`
	Status        string   `json:"status"`
}

// BillCreateHandler stores a manually supplied bill record
func BillCreateHandler(billStore *store.BillStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()

		var req createBillRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.BillID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bill_id is required"})
		}

		existing, err := billStore.GetByBillID(ctx, req.BillID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error saving bill"})
		}
		if existing != nil {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Bill already exists"})
		}

		provisions := req.KeyProvisions
		if provisions == nil {
			provisions = []string{}
		}
		bill := &model.Bill{
			BillID:        req.BillID,
			Identifier:    req.BillID,
			Title:         req.Title,
			Summary:       req.Summary,
			KeyProvisions: provisions,
			Impact:        req.Impact,
			Status:        req.Status,
		}
		if err := billStore.Insert(ctx, bill); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Bill already exists"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error saving bill"})
		}

		return c.Status(fiber.StatusCreated).JSON(bill)
	}
}

// BillDeleteHandler removes one bill by its source identifier
func BillDeleteHandler(billStore *store.BillStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()
		billID := c.Params("billID")

		deleted, err := billStore.DeleteByBillID(ctx, billID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error deleting bill"})
		}
		if !deleted && !strings.HasPrefix(billID, "ocd-bill/") {
			deleted, err = billStore.DeleteByBillID(ctx, "ocd-bill/"+billID)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error deleting bill"})
			}
		}
		if !deleted {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Bill not found"})
		}

		return c.JSON(fiber.Map{"message": "Bill deleted", "bill_id": billID})
	}
}

// BillDeleteByIDHandler removes one bill by its numeric primary key
func BillDeleteByIDHandler(billStore *store.BillStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()

		id, err := c.ParamsInt("id")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid bill id"})
		}

		deleted, err := billStore.DeleteByID(ctx, id)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error deleting bill"})
		}
		if !deleted {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Bill not found"})
		}

		return c.JSON(fiber.Map{"message": "Bill deleted", "id": id})
	}
}
