package api

import (
	"encoding/json"
	"math/big"

	"github.com/gofiber/fiber/v2"

	"github.com/storerunner/storefront/types"
)

// startProof - POST /api/proofs
func (h *handler) startProof(c *fiber.Ctx) error {
	if h.Proofs == nil {
		return unavailable(c)
	}
	var req struct {
		IntentID      *big.Int `json:"intentId"`
		SolverAddress string   `json:"solverAddress"`
	}
	if err := json.Unmarshal(c.Body(), &req); err != nil || req.IntentID == nil || req.SolverAddress == "" {
		return fail(c, fiber.StatusBadRequest, "Must provide intentId and solverAddress.")
	}

	v, err := h.Proofs.Start(c.UserContext(), req.IntentID, req.SolverAddress)
	if err != nil {
		return fail(c, types.StatusOf(types.KindOf(err)), publicMessage(err, ""))
	}
	return c.Status(fiber.StatusCreated).JSON(v)
}

// getProof - GET /api/proofs/:id
func (h *handler) getProof(c *fiber.Ctx) error {
	if h.Proofs == nil {
		return unavailable(c)
	}
	v, err := h.Proofs.Get(c.Params("id"))
	if err != nil {
		return fail(c, types.StatusOf(types.KindOf(err)), publicMessage(err, ""))
	}
	return c.JSON(v)
}

// proofQR - GET /api/proofs/:id/qr
func (h *handler) proofQR(c *fiber.Ctx) error {
	if h.Proofs == nil {
		return unavailable(c)
	}
	png, err := h.Proofs.QR(c.Params("id"))
	if err != nil {
		return fail(c, types.StatusOf(types.KindOf(err)), publicMessage(err, ""))
	}
	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(png)
}

// proofCallback - POST /api/proofs/:id/callback
func (h *handler) proofCallback(c *fiber.Ctx) error {
	if h.Proofs == nil {
		return unavailable(c)
	}
	var proof types.Proof
	if err := json.Unmarshal(c.Body(), &proof); err != nil {
		// a malformed body still ends the session
		v, ferr := h.Proofs.Fail(c.UserContext(), c.Params("id"), "Invalid proof")
		if v == nil {
			return fail(c, types.StatusOf(types.KindOf(ferr)), publicMessage(ferr, ""))
		}
		return c.Status(fiber.StatusBadRequest).JSON(v)
	}

	v, err := h.Proofs.Complete(c.UserContext(), c.Params("id"), &proof)
	if v == nil {
		return fail(c, types.StatusOf(types.KindOf(err)), publicMessage(err, ""))
	}
	status := fiber.StatusOK
	if err != nil {
		status = types.StatusOf(types.KindOf(err))
	}
	return c.Status(status).JSON(v)
}

// proofError - POST /api/proofs/:id/error
func (h *handler) proofError(c *fiber.Ctx) error {
	if h.Proofs == nil {
		return unavailable(c)
	}
	var req struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(c.Body(), &req)
	h.log.Warn("proof provider error", map[string]any{
		"session_id": c.Params("id"),
		"error":      req.Error,
	})

	v, err := h.Proofs.Fail(c.UserContext(), c.Params("id"), "Proof provider error")
	if v == nil {
		return fail(c, types.StatusOf(types.KindOf(err)), publicMessage(err, ""))
	}
	status := fiber.StatusOK
	if err != nil {
		status = types.StatusOf(types.KindOf(err))
	}
	return c.Status(status).JSON(v)
}

// chainIntents - GET /api/chain/intents
func (h *handler) chainIntents(c *fiber.Ctx) error {
	if h.Chain == nil {
		return unavailable(c)
	}
	rows, err := h.Chain.ListChainIntents(c.UserContext())
	if err != nil {
		h.log.Error("listing chain intents failed", map[string]any{"error": err})
		return fail(c, types.StatusOf(types.KindOf(err)), "Could not retrieve intents.")
	}
	if rows == nil {
		rows = []types.IntentListing{}
	}
	return c.JSON(fiber.Map{"data": rows})
}
