package api

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/storerunner/storefront/checkout"
	"github.com/storerunner/storefront/pricing"
	"github.com/storerunner/storefront/types"
	"github.com/storerunner/storefront/utils"
	"github.com/storerunner/storefront/wallet"
)

// scrape - POST /api/scrape
func (h *handler) scrape(c *fiber.Ctx) error {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(c.Body(), &req); err != nil || req.URL == "" {
		return fail(c, fiber.StatusBadRequest, "Invalid product URL")
	}
	if h.Scraper == nil {
		return unavailable(c)
	}

	meta, err := h.Scraper.Scrape(c.UserContext(), req.URL)
	if err != nil {
		if types.IsKind(err, types.KindValidation) {
			return fail(c, fiber.StatusBadRequest, "Invalid product URL")
		}
		return fail(c, fiber.StatusInternalServerError, "Failed to fetch product data")
	}
	return c.JSON(meta)
}

// quote - GET /api/quote?total=
func (h *handler) quote(c *fiber.Ctx) error {
	total, err := utils.ValidateAmount(c.Query("total"))
	if err != nil || !total.IsPositive() {
		return fail(c, fiber.StatusBadRequest, "Invalid total price")
	}
	if h.Oracle == nil {
		return unavailable(c)
	}
	rate, err := h.Oracle.Rate(c.UserContext())
	if err != nil {
		h.log.Error("exchange rate unavailable", map[string]any{"error": err})
		return fail(c, fiber.StatusServiceUnavailable, "Exchange rate unavailable")
	}

	q := h.Calculator.Quote(total)
	wei, err := pricing.ToNative(q.Final, rate)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid total price")
	}
	return c.JSON(fiber.Map{
		"totalPrice":     q.Total,
		"fees":           q.Fees,
		"finalPrice":     q.Final,
		"formattedTotal": q.FormattedTotal,
		"formattedFees":  q.FormattedFees,
		"formattedFinal": q.FormattedFinal,
		"rate":           rate,
		"amountWei":      wei.String(),
	})
}

// session - GET /api/session
func (h *handler) session(c *fiber.Ctx) error {
	env := capability(c).Environment()

	var conn wallet.Connector
	if c.Get(wallet.HeaderWalletAddress) != "" {
		conn = wallet.FromHeaders(headerGetter(c))
	} else if h.Signer != nil {
		conn = h.Signer
	}
	return c.JSON(h.Wallet.Open(c.UserContext(), env, conn))
}

// checkout - POST /api/checkout
func (h *handler) checkout(c *fiber.Ctx) error {
	if h.Checkout == nil {
		return fail(c, fiber.StatusServiceUnavailable, "Wallet not connected")
	}

	var order checkout.Order
	if err := json.Unmarshal(c.Body(), &order); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid order")
	}

	res, err := h.Checkout.Submit(c.UserContext(), order)
	if res == nil {
		return fail(c, types.StatusOf(types.KindOf(err)), publicMessage(err, ""))
	}

	status := fiber.StatusOK
	if err != nil {
		status = types.StatusOf(types.KindOf(err))
	}
	return c.Status(status).JSON(res)
}
