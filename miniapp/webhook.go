package miniapp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/storerunner/storefront/logger"
	"github.com/storerunner/storefront/types"
)

// Webhook event names.
const (
	EventFrameAdded            = "frame_added"
	EventFrameRemoved          = "frame_removed"
	EventNotificationsEnabled  = "notifications_enabled"
	EventNotificationsDisabled = "notifications_disabled"
)

const (
	invalidWebhookMsg     = "Invalid webhook payload"
	notificationURLDenied = "Notification URL not allowed"
)

// DefaultNotificationHosts are the hosts a client may register as its
// notification endpoint when none are configured.
var DefaultNotificationHosts = []string{"api.warpcast.com", "api.farcaster.xyz"}

type NotificationDetails struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

// WebhookEvent is a decoded host callback.
type WebhookEvent struct {
	FID                 int64                `json:"fid"`
	Event               string               `json:"event"`
	NotificationDetails *NotificationDetails `json:"notificationDetails,omitempty"`
}

type envelope struct {
	Header    string `json:"header"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

type envelopeHeader struct {
	FID  int64  `json:"fid"`
	Type string `json:"type"`
	Key  string `json:"key"`
}

// ParseWebhook accepts either a plain event object or the signed envelope
// whose header and payload are base64url-encoded JSON. The envelope
// signature is not checked.
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, types.NewError(types.KindValidation, invalidWebhookMsg, err)
	}

	var ev WebhookEvent
	if env.Header != "" && env.Payload != "" {
		var hdr envelopeHeader
		if err := decodeSegment(env.Header, &hdr); err != nil {
			return nil, types.NewError(types.KindValidation, invalidWebhookMsg, err)
		}
		if err := decodeSegment(env.Payload, &ev); err != nil {
			return nil, types.NewError(types.KindValidation, invalidWebhookMsg, err)
		}
		ev.FID = hdr.FID
	} else if err := json.Unmarshal(body, &ev); err != nil {
		return nil, types.NewError(types.KindValidation, invalidWebhookMsg, err)
	}

	if ev.Event == "" {
		return nil, types.NewError(types.KindValidation, invalidWebhookMsg, errors.New("missing event"))
	}
	return &ev, nil
}

func decodeSegment(seg string, v any) error {
	seg = strings.TrimRight(seg, "=")
	raw, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// TokenStore persists notification registrations.
type TokenStore interface {
	Save(ctx context.Context, fid int64, url, token string) error
	Disable(ctx context.Context, fid int64) error
	Enabled(ctx context.Context, fid int64) (*types.NotificationToken, error)
}

// Webhooks applies host callbacks to the token store. Notification URLs
// are stored only when they are https on an allowed host, since the
// notifier later POSTs to them from inside the server.
type Webhooks struct {
	tokens  TokenStore
	allowed map[string]struct{}
	logger  logger.Logger
}

// NewWebhooks builds the handler. An empty hosts list falls back to
// DefaultNotificationHosts.
func NewWebhooks(tokens TokenStore, l logger.Logger, hosts ...string) *Webhooks {
	if len(hosts) == 0 {
		hosts = DefaultNotificationHosts
	}
	allowed := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		allowed[strings.ToLower(strings.TrimSpace(h))] = struct{}{}
	}
	return &Webhooks{tokens: tokens, allowed: allowed, logger: logger.OrNoop(l)}
}

// NotificationURLAllowed reports whether raw is an https URL on an allowed
// host. Explicit ports and embedded credentials are refused.
func (w *Webhooks) NotificationURLAllowed(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || u.User != nil || u.Port() != "" {
		return false
	}
	_, ok := w.allowed[strings.ToLower(u.Hostname())]
	return ok
}

func (w *Webhooks) Handle(ctx context.Context, ev *WebhookEvent) error {
	fields := map[string]any{"fid": ev.FID, "event": ev.Event}

	switch ev.Event {
	case EventFrameAdded, EventNotificationsEnabled:
		d := ev.NotificationDetails
		if d == nil || d.Token == "" || d.URL == "" {
			w.logger.Info("mini-app event without notification details", fields)
			return nil
		}
		if ev.FID <= 0 {
			w.logger.Warn("notification details without user id", fields)
			return nil
		}
		if !w.NotificationURLAllowed(d.URL) {
			fields["url"] = d.URL
			w.logger.Warn("notification url rejected", fields)
			return types.NewError(types.KindValidation, notificationURLDenied, nil)
		}
		return w.tokens.Save(ctx, ev.FID, d.URL, d.Token)

	case EventFrameRemoved, EventNotificationsDisabled:
		if ev.FID <= 0 {
			return nil
		}
		return w.tokens.Disable(ctx, ev.FID)

	default:
		w.logger.Warn("unknown mini-app event", fields)
		return nil
	}
}
