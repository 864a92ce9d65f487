package platform

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMiniApp(t *testing.T) {
	ctx := context.Background()
	hostCtx := func(ok bool, err error) func(context.Context) (bool, error) {
		return func(context.Context) (bool, error) { return ok, err }
	}

	cases := map[string]struct {
		s    Signals
		want bool
	}{
		"not a browser":       {Signals{InjectedSDK: true, URL: "https://warpcast.com/x"}, false},
		"plain browser":       {Signals{Browser: true, URL: "https://storerunner.xyz", UserAgent: "Mozilla/5.0"}, false},
		"injected sdk":        {Signals{Browser: true, InjectedSDK: true}, true},
		"warpcast host":       {Signals{Browser: true, URL: "https://warpcast.com/~/frames"}, true},
		"farcaster host":      {Signals{Browser: true, URL: "https://farcaster.xyz/miniapps"}, true},
		"farcaster query":     {Signals{Browser: true, URL: "https://storerunner.xyz/?via=farcaster"}, true},
		"warpcast user agent": {Signals{Browser: true, UserAgent: "Mozilla/5.0 Warpcast/1.0"}, true},
		"host yes":            {Signals{Browser: true, HostContext: hostCtx(true, nil)}, true},
		"host no":             {Signals{Browser: true, HostContext: hostCtx(false, nil)}, false},
		"host error":          {Signals{Browser: true, HostContext: hostCtx(true, errors.New("timeout"))}, false},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, c.want, IsMiniApp(ctx, c.s))
		})
	}
}

func TestSignalsFromHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("User-Agent", "Mozilla/5.0")
	h.Set("Referer", "https://example.com")
	h.Set(HeaderPageURL, "https://warpcast.com/~/frames")
	h.Set(HeaderMiniAppSDK, "1")
	h.Set(HeaderFrameContext, "false")

	s := SignalsFromHeaders(h.Get)
	assert.True(t, s.Browser)
	assert.True(t, s.InjectedSDK)
	assert.Equal(t, "https://warpcast.com/~/frames", s.URL)
	require.NotNil(t, s.HostContext)
	ok, err := s.HostContext(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	s = SignalsFromHeaders(http.Header{}.Get)
	assert.False(t, s.Browser)
	assert.Nil(t, s.HostContext)
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	miniHeaders := http.Header{}
	miniHeaders.Set("User-Agent", "Warpcast/2.0")

	assert.Equal(t, EnvMiniApp, Resolve(ctx, ModeAuto, miniHeaders).Environment())
	assert.Equal(t, EnvStandalone, Resolve(ctx, ModeAuto, http.Header{}).Environment())
	assert.Equal(t, EnvStandalone, Resolve(ctx, ModeStandalone, miniHeaders).Environment())

	c := Resolve(ctx, ModeMiniApp, http.Header{})
	assert.True(t, c.MiniApp())
	assert.IsType(t, Static{}, c)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeAuto, m)

	m, err = ParseMode(" MiniApp ")
	require.NoError(t, err)
	assert.Equal(t, ModeMiniApp, m)

	_, err = ParseMode("desktop")
	assert.Error(t, err)
}
