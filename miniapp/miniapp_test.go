package miniapp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storerunner/storefront/types"
)

var testApp = App{
	Name:        "Storerunner",
	URL:         "https://storerunner.xyz",
	Description: "Order onchain & skip the bridge",
}

type memTokens struct {
	rows map[int64]*types.NotificationToken
}

func newMemTokens() *memTokens {
	return &memTokens{rows: map[int64]*types.NotificationToken{}}
}

func (m *memTokens) Save(_ context.Context, fid int64, url, token string) error {
	m.rows[fid] = &types.NotificationToken{FID: fid, URL: url, Token: token, Enabled: true}
	return nil
}

func (m *memTokens) Disable(_ context.Context, fid int64) error {
	if r, ok := m.rows[fid]; ok {
		r.Enabled = false
	}
	return nil
}

func (m *memTokens) Enabled(_ context.Context, fid int64) (*types.NotificationToken, error) {
	r, ok := m.rows[fid]
	if !ok || !r.Enabled {
		return nil, types.NewError(types.KindNotFound, "No notification token for user", nil)
	}
	return r, nil
}

func segment(t *testing.T, v any) string {
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func TestManifestAndFrame(t *testing.T) {
	m := testApp.Manifest()
	assert.Nil(t, m.AccountAssociation)
	assert.Equal(t, "https://storerunner.xyz/api/farcaster/webhook", m.Frame.WebhookURL)
	assert.Equal(t, "https://storerunner.xyz/sharing-image.png", m.Frame.ImageURL)
	assert.False(t, testApp.Status(true).MiniApp.ManifestValid)

	withAssoc := testApp
	withAssoc.AccountAssociation = &Association{Header: "h", Payload: "p", Signature: "s"}
	assert.NotNil(t, withAssoc.Manifest().AccountAssociation)
	assert.True(t, withAssoc.Status(true).MiniApp.ManifestValid)

	f := testApp.Frame()
	assert.Equal(t, "vNext", f.Version)
	require.Len(t, f.Buttons, 1)
	assert.Equal(t, FrameButton{Label: "Visit Storerunner", Action: "link", Target: "https://storerunner.xyz"}, f.Buttons[0])
}

func TestLanding(t *testing.T) {
	page, err := testApp.Landing()
	require.NoError(t, err)
	html := string(page)
	assert.Contains(t, html, "<title>Storerunner</title>")
	assert.Contains(t, html, `<meta name="fc:frame" content="vNext">`)
	assert.Contains(t, html, `content="https://storerunner.xyz/api/farcaster/frame"`)
	assert.Contains(t, html, "Order onchain &amp; skip the bridge")
}

func TestParseWebhook(t *testing.T) {
	ev, err := ParseWebhook([]byte(`{"event":"frame_added","fid":3,"notificationDetails":{"url":"https://n.example","token":"t"}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(3), ev.FID)
	assert.Equal(t, "t", ev.NotificationDetails.Token)

	body, err := json.Marshal(map[string]string{
		"header":    segment(t, map[string]any{"fid": 77, "type": "custody", "key": "0x01"}),
		"payload":   segment(t, map[string]any{"event": "notifications_disabled"}),
		"signature": "sig",
	})
	require.NoError(t, err)
	ev, err = ParseWebhook(body)
	require.NoError(t, err)
	assert.Equal(t, int64(77), ev.FID)
	assert.Equal(t, EventNotificationsDisabled, ev.Event)

	for _, bad := range []string{
		`not json`,
		`{}`,
		`{"header":"!!!","payload":"???","signature":"x"}`,
	} {
		_, err := ParseWebhook([]byte(bad))
		assert.True(t, types.IsKind(err, types.KindValidation), bad)
	}
}

func TestWebhooksHandle(t *testing.T) {
	ctx := context.Background()
	tokens := newMemTokens()
	w := NewWebhooks(tokens, nil)

	require.NoError(t, w.Handle(ctx, &WebhookEvent{
		FID:                 5,
		Event:               EventNotificationsEnabled,
		NotificationDetails: &NotificationDetails{URL: "https://api.farcaster.xyz/v1/frame-notifications", Token: "tok"},
	}))
	_, err := tokens.Enabled(ctx, 5)
	require.NoError(t, err)

	require.NoError(t, w.Handle(ctx, &WebhookEvent{FID: 5, Event: EventFrameRemoved}))
	_, err = tokens.Enabled(ctx, 5)
	assert.Error(t, err)

	require.NoError(t, w.Handle(ctx, &WebhookEvent{FID: 5, Event: "something_new"}))
	require.NoError(t, w.Handle(ctx, &WebhookEvent{Event: EventFrameAdded}))
}

func TestWebhooksHandle_RejectsNotificationURL(t *testing.T) {
	ctx := context.Background()
	tokens := newMemTokens()
	w := NewWebhooks(tokens, nil)

	for i, raw := range []string{
		"http://169.254.169.254/latest/meta-data",
		"http://api.warpcast.com/v1/frame-notifications",
		"https://internal.example/hook",
		"https://api.warpcast.com:8443/v1/frame-notifications",
		"https://user:pw@api.warpcast.com/v1/frame-notifications",
		"https://api.warpcast.com.evil.example/v1",
		"not a url",
	} {
		err := w.Handle(ctx, &WebhookEvent{
			FID:                 int64(i + 1),
			Event:               EventFrameAdded,
			NotificationDetails: &NotificationDetails{URL: raw, Token: "tok"},
		})
		assert.True(t, types.IsKind(err, types.KindValidation), raw)
	}
	assert.Empty(t, tokens.rows)

	require.NoError(t, w.Handle(ctx, &WebhookEvent{
		FID:                 9,
		Event:               EventNotificationsEnabled,
		NotificationDetails: &NotificationDetails{URL: "https://API.Warpcast.com/v1/frame-notifications", Token: "tok"},
	}))
	assert.Len(t, tokens.rows, 1)

	custom := NewWebhooks(tokens, nil, "notify.storerunner.xyz")
	assert.True(t, custom.NotificationURLAllowed("https://notify.storerunner.xyz/hook"))
	assert.False(t, custom.NotificationURLAllowed("https://api.warpcast.com/v1/frame-notifications"))
}

func TestNotify(t *testing.T) {
	var got notificationRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{"successfulTokens":["tok"],"invalidTokens":[],"rateLimitedTokens":[]}}`))
	}))
	defer srv.Close()

	tokens := newMemTokens()
	require.NoError(t, tokens.Save(context.Background(), 9, srv.URL, "tok"))

	n := NewNotifier(tokens, testApp, nil, nil)
	require.NoError(t, n.Notify(context.Background(), 9, "", strings.Repeat("x", 200)))
	assert.Equal(t, "Storerunner", got.Title)
	assert.Len(t, got.Body, maxBody)
	assert.Equal(t, []string{"tok"}, got.Tokens)
	assert.Equal(t, "https://storerunner.xyz", got.TargetURL)
	assert.Len(t, got.NotificationID, 36)
}

func TestNotify_InvalidTokenIsDisabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{"invalidTokens":["tok"]}}`))
	}))
	defer srv.Close()

	tokens := newMemTokens()
	require.NoError(t, tokens.Save(context.Background(), 9, srv.URL, "tok"))

	err := NewNotifier(tokens, testApp, nil, nil).Notify(context.Background(), 9, "hi", "there")
	assert.True(t, types.IsKind(err, types.KindNotFound))
	assert.False(t, tokens.rows[9].Enabled)
}

func TestNotify_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tokens := newMemTokens()
	n := NewNotifier(tokens, testApp, nil, nil)

	err := n.Notify(context.Background(), 1, "", "hi")
	assert.True(t, types.IsKind(err, types.KindNotFound))

	require.NoError(t, tokens.Save(context.Background(), 1, srv.URL, "tok"))
	err = n.Notify(context.Background(), 1, "", "hi")
	assert.True(t, types.IsKind(err, types.KindUpstream))
}
