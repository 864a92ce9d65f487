package api

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"github.com/storerunner/storefront/miniapp"
	"github.com/storerunner/storefront/types"
)

func (h *handler) landing(c *fiber.Ctx) error {
	page, err := h.App.Landing()
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(page)
}

func (h *handler) manifest(c *fiber.Ctx) error {
	return c.JSON(h.App.Manifest())
}

// frame - POST /api/farcaster/frame
func (h *handler) frame(c *fiber.Ctx) error {
	return c.JSON(h.App.Frame())
}

// webhook - POST /api/farcaster/webhook
func (h *handler) webhook(c *fiber.Ctx) error {
	ev, err := miniapp.ParseWebhook(c.Body())
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid webhook payload")
	}
	if h.Webhooks != nil {
		if err := h.Webhooks.Handle(c.UserContext(), ev); err != nil {
			if types.IsKind(err, types.KindValidation) {
				return fail(c, fiber.StatusBadRequest, publicMessage(err, ""))
			}
			h.log.Error("webhook handling failed", map[string]any{"event": ev.Event, "fid": ev.FID, "error": err})
			return fail(c, fiber.StatusInternalServerError, types.SafeMessage(types.KindStorage))
		}
	}
	return c.JSON(fiber.Map{"success": true})
}

// fid accepts a user id sent as a JSON number or a numeric string.
type fid int64

func (f *fid) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = fid(n)
	return nil
}

// notify - POST /api/farcaster/notify
func (h *handler) notify(c *fiber.Ctx) error {
	var req struct {
		UserID  fid    `json:"userId"`
		Message string `json:"message"`
		Title   string `json:"title"`
	}
	if err := json.Unmarshal(c.Body(), &req); err != nil || req.UserID <= 0 || req.Message == "" {
		return fail(c, fiber.StatusBadRequest, "userId and message are required")
	}
	if h.Notifier == nil {
		return unavailable(c)
	}

	err := h.Notifier.Notify(c.UserContext(), int64(req.UserID), req.Title, req.Message)
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"success": true, "message": "Notification sent"})
	case types.IsKind(err, types.KindNotFound):
		return fail(c, fiber.StatusNotFound, "No notification token for user")
	case types.IsKind(err, types.KindUpstream):
		return fail(c, fiber.StatusBadGateway, "Failed to send notification")
	default:
		return fail(c, types.StatusOf(types.KindOf(err)), types.SafeMessage(types.KindOf(err)))
	}
}

// status - GET /api/farcaster/status
func (h *handler) status(c *fiber.Ctx) error {
	return c.JSON(h.App.Status(h.Notifier != nil))
}

// debug - GET|POST /api/farcaster/debug
func (h *handler) debug(c *fiber.Ctx) error {
	headers := lo.MapValues(c.GetReqHeaders(), func(v []string, _ string) string {
		return strings.Join(v, ", ")
	})
	miniAppHeaders := lo.PickBy(headers, func(k, _ string) bool {
		k = strings.ToLower(k)
		return strings.Contains(k, "farcaster") || strings.Contains(k, "fc:") ||
			strings.HasPrefix(k, "x-mini-app") || strings.HasPrefix(k, "x-frame")
	})

	out := fiber.Map{
		"message":        "Farcaster debugging information",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"method":         c.Method(),
		"requestUrl":     c.OriginalURL(),
		"environment":    capability(c).Environment(),
		"headers":        headers,
		"miniAppHeaders": miniAppHeaders,
		"query":          c.Queries(),
	}
	if body := c.Body(); len(body) > 0 {
		var parsed any
		if err := json.Unmarshal(body, &parsed); err == nil {
			out["body"] = parsed
		} else {
			out["rawBody"] = string(body)
		}
	}
	return c.JSON(out)
}
