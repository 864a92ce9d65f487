// Package platform decides whether a request comes from a plain browser or
// from the storefront embedded as a social-feed mini-app.
package platform

import (
	"context"
	"net/url"
	"strings"

	"github.com/samber/lo"

	"github.com/storerunner/storefront/types"
)

// Environment is where the storefront is running.
type Environment string

const (
	EnvStandalone Environment = "standalone"
	EnvMiniApp    Environment = "miniapp"
)

// Mode is the configured detection policy.
type Mode string

const (
	ModeAuto       Mode = "auto"
	ModeStandalone Mode = "standalone"
	ModeMiniApp    Mode = "miniapp"
)

// Request headers the embedding client may send.
const (
	HeaderMiniAppSDK   = "X-Mini-App-SDK"
	HeaderPageURL      = "X-Page-Url"
	HeaderFrameContext = "X-Frame-Context"
)

var (
	hostMarkers = []string{"warpcast.com", "farcaster.xyz"}
	uaMarkers   = []string{"Farcaster", "Warpcast"}
)

// Signals are the observations detection works from.
type Signals struct {
	Browser     bool
	InjectedSDK bool
	URL         string
	UserAgent   string
	// HostContext asks the host for a mini-app context. Optional.
	HostContext func(ctx context.Context) (bool, error)
}

// IsMiniApp reports whether the signals point at a mini-app host. Outside
// a browser it is always false, and a failed host context query counts as
// a negative answer.
func IsMiniApp(ctx context.Context, s Signals) bool {
	if !s.Browser {
		return false
	}
	if s.InjectedSDK {
		return true
	}
	if lo.SomeBy(hostMarkers, func(m string) bool { return strings.Contains(s.URL, m) }) {
		return true
	}
	if u, err := url.Parse(s.URL); err == nil && strings.Contains(u.RawQuery, "farcaster") {
		return true
	}
	if lo.SomeBy(uaMarkers, func(m string) bool { return strings.Contains(s.UserAgent, m) }) {
		return true
	}
	if s.HostContext != nil {
		ok, err := s.HostContext(ctx)
		return err == nil && ok
	}
	return false
}

// Detect maps the signals to an Environment.
func Detect(ctx context.Context, s Signals) Environment {
	if IsMiniApp(ctx, s) {
		return EnvMiniApp
	}
	return EnvStandalone
}

// ParseMode accepts auto, standalone or miniapp; empty means auto.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeStandalone, ModeMiniApp:
		return m, nil
	default:
		return "", types.NewError(types.KindValidation, "unknown platform mode: "+s, nil)
	}
}
