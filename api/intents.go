package api

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/storerunner/storefront/types"
)

type buyerBody struct {
	IntentID *int64 `json:"intentId"`
	Buyer    *struct {
		WalletAddress   string `json:"walletAddress"`
		ShippingAddress string `json:"shippingAddress"`
		ProductLink     string `json:"productLink"`
		Quantity        int    `json:"quantity"`
	} `json:"buyer"`
}

type solverBody struct {
	IntentID *int64 `json:"intentId"`
	Solver   *struct {
		WalletAddress string  `json:"walletAddress"`
		DeliveryDate  *string `json:"deliveryDate"`
	} `json:"solver"`
}

// upsertBuyer - POST /api/intents
func (h *handler) upsertBuyer(c *fiber.Ctx) error {
	const missing = "Must provide intentId and buyer.walletAddress."

	var req buyerBody
	if err := json.Unmarshal(c.Body(), &req); err != nil || req.IntentID == nil || req.Buyer == nil || req.Buyer.WalletAddress == "" {
		return fail(c, fiber.StatusBadRequest, missing)
	}
	if h.Intents == nil {
		return unavailable(c)
	}

	err := h.Intents.UpsertBuyer(c.UserContext(), types.BuyerRecord{
		IntentID:        *req.IntentID,
		WalletAddress:   req.Buyer.WalletAddress,
		ShippingAddress: req.Buyer.ShippingAddress,
		ProductLink:     req.Buyer.ProductLink,
		Quantity:        req.Buyer.Quantity,
	})
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "Could not publish buyer data.")
	}
	return c.JSON(fiber.Map{
		"status":   "success",
		"message":  "Buyer data published.",
		"intentId": *req.IntentID,
	})
}

// updateSolver - PATCH /api/intents
func (h *handler) updateSolver(c *fiber.Ctx) error {
	const missing = "Must provide intentId and solver.walletAddress."

	var req solverBody
	if err := json.Unmarshal(c.Body(), &req); err != nil || req.IntentID == nil || req.Solver == nil || req.Solver.WalletAddress == "" {
		return fail(c, fiber.StatusBadRequest, missing)
	}
	if h.Intents == nil {
		return unavailable(c)
	}

	_, err := h.Intents.UpdateSolver(c.UserContext(), types.SolverRecord{
		IntentID:      *req.IntentID,
		WalletAddress: req.Solver.WalletAddress,
		DeliveryDate:  req.Solver.DeliveryDate,
	})
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "Could not publish solver data.")
	}
	return c.JSON(fiber.Map{
		"status":   "success",
		"message":  "Solver data published.",
		"intentId": *req.IntentID,
	})
}

// listIntents - GET /api/intents
func (h *handler) listIntents(c *fiber.Ctx) error {
	if h.Intents == nil {
		return unavailable(c)
	}

	f := types.IntentFilter{
		WalletAddress: c.Query("wallet_address"),
		Page:          c.QueryInt("page", 1),
		Limit:         c.QueryInt("limit", 10),
	}
	if raw := c.Query("intent_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "intent_id must be an integer")
		}
		f.IntentID = &id
	}

	page, err := h.Intents.List(c.UserContext(), f)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "Could not retrieve intents.")
	}
	return c.JSON(page)
}

// publishTuple - POST /api/publish
func (h *handler) publishTuple(c *fiber.Ctx) error {
	const invalid = `Please provide an array of two strings under "messages"`

	var req struct {
		Messages []any `json:"messages"`
	}
	if err := json.Unmarshal(c.Body(), &req); err != nil || len(req.Messages) != 2 {
		return fail(c, fiber.StatusBadRequest, invalid)
	}
	messages := make([]string, 0, 2)
	for _, m := range req.Messages {
		s, ok := m.(string)
		if !ok {
			return fail(c, fiber.StatusBadRequest, invalid)
		}
		messages = append(messages, s)
	}
	if h.Tuples == nil {
		return unavailable(c)
	}

	if _, err := h.Tuples.Publish(c.UserContext(), messages); err != nil {
		return fail(c, fiber.StatusInternalServerError, "Something went wrong storing the strings")
	}
	return c.JSON(fiber.Map{"status": "success", "message": "Strings published"})
}

// listTuples - GET /api/strings
func (h *handler) listTuples(c *fiber.Ctx) error {
	if h.Tuples == nil {
		return unavailable(c)
	}
	rows, err := h.Tuples.List(c.UserContext())
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "Error retrieving data")
	}
	if rows == nil {
		rows = []types.Tuple{}
	}
	return c.JSON(rows)
}
