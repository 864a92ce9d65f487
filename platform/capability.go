package platform

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

// Capability is the resolved environment handed to request handlers.
type Capability interface {
	Environment() Environment
	MiniApp() bool
}

// Static is a fixed environment, used when detection is turned off.
type Static struct {
	Env Environment
}

func (s Static) Environment() Environment { return s.Env }

func (s Static) MiniApp() bool { return s.Env == EnvMiniApp }

// Detected is an environment derived from request signals.
type Detected struct {
	Signals Signals
	env     Environment
}

func NewDetected(ctx context.Context, s Signals) *Detected {
	return &Detected{Signals: s, env: Detect(ctx, s)}
}

func (d *Detected) Environment() Environment { return d.env }

func (d *Detected) MiniApp() bool { return d.env == EnvMiniApp }

// SignalsFromHeaders reads detection signals off an incoming request.
// get returns a header value by name. A request without a User-Agent is not
// treated as a browser.
func SignalsFromHeaders(get func(string) string) Signals {
	ua := get("User-Agent")
	pageURL := get(HeaderPageURL)
	if pageURL == "" {
		pageURL = get("Referer")
	}

	s := Signals{
		Browser:     ua != "",
		InjectedSDK: truthy(get(HeaderMiniAppSDK)),
		URL:         pageURL,
		UserAgent:   ua,
	}
	if frame := get(HeaderFrameContext); frame != "" {
		answer := truthy(frame)
		s.HostContext = func(context.Context) (bool, error) { return answer, nil }
	}
	return s
}

// Resolve picks the Capability for a request under the configured mode.
func Resolve(ctx context.Context, mode Mode, header http.Header) Capability {
	return ResolveFunc(ctx, mode, header.Get)
}

// ResolveFunc is Resolve over an arbitrary header getter.
func ResolveFunc(ctx context.Context, mode Mode, get func(string) string) Capability {
	switch mode {
	case ModeStandalone:
		return Static{Env: EnvStandalone}
	case ModeMiniApp:
		return Static{Env: EnvMiniApp}
	default:
		return NewDetected(ctx, SignalsFromHeaders(get))
	}
}

func truthy(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	// any other non-empty marker counts as present
	return !strings.EqualFold(v, "no")
}
