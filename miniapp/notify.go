package miniapp

import (
	"context"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/storerunner/storefront/logger"
	"github.com/storerunner/storefront/metrics"
	"github.com/storerunner/storefront/types"
)

// Host limits on notification text.
const (
	maxTitle = 32
	maxBody  = 128
)

type notificationRequest struct {
	NotificationID string   `json:"notificationId"`
	Title          string   `json:"title"`
	Body           string   `json:"body"`
	TargetURL      string   `json:"targetUrl"`
	Tokens         []string `json:"tokens"`
}

type notificationResponse struct {
	Result struct {
		SuccessfulTokens  []string `json:"successfulTokens"`
		InvalidTokens     []string `json:"invalidTokens"`
		RateLimitedTokens []string `json:"rateLimitedTokens"`
	} `json:"result"`
}

// Notifier delivers notifications to users who enabled them.
type Notifier struct {
	client  *resty.Client
	tokens  TokenStore
	app     App
	logger  logger.Logger
	metrics metrics.Recorder
}

func NewNotifier(tokens TokenStore, app App, l logger.Logger, r metrics.Recorder) *Notifier {
	return &Notifier{
		client:  resty.New().SetTimeout(10 * time.Second),
		tokens:  tokens,
		app:     app,
		logger:  logger.OrNoop(l),
		metrics: metrics.OrNoop(r),
	}
}

// Notify sends message to fid. A token the host reports as invalid is
// disabled.
func (n *Notifier) Notify(ctx context.Context, fid int64, title, message string) error {
	tok, err := n.tokens.Enabled(ctx, fid)
	if err != nil {
		return err
	}
	if title == "" {
		title = n.app.Name
	}

	req := notificationRequest{
		NotificationID: uuid.NewString(),
		Title:          truncate(title, maxTitle),
		Body:           truncate(message, maxBody),
		TargetURL:      n.app.URL,
		Tokens:         []string{tok.Token},
	}

	var out notificationResponse
	start := time.Now()
	res, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&out).
		Post(tok.URL)
	if err == nil && res.StatusCode() != http.StatusOK {
		err = fmt.Errorf("notification endpoint returned status %d", res.StatusCode())
	}
	metrics.Track(n.metrics, "miniapp.notify", start, err)
	if err != nil {
		n.logger.Error("notification delivery failed", map[string]any{"fid": fid, "error": err})
		return types.NewError(types.KindUpstream, "Failed to send notification", err)
	}

	if lo.Contains(out.Result.InvalidTokens, tok.Token) {
		n.logger.Warn("notification token rejected by host", map[string]any{"fid": fid})
		if err := n.tokens.Disable(ctx, fid); err != nil {
			n.logger.Error("disabling rejected token failed", map[string]any{"fid": fid, "error": err})
		}
		return types.NewError(types.KindNotFound, "No notification token for user", nil)
	}
	if lo.Contains(out.Result.RateLimitedTokens, tok.Token) {
		return types.NewError(types.KindUpstream, "Notification rate limited", nil)
	}
	return nil
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
