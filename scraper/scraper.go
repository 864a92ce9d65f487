// Package scraper pulls display metadata from marketplace product pages.
package scraper

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/storerunner/storefront/logger"
	"github.com/storerunner/storefront/metrics"
	"github.com/storerunner/storefront/types"
	"github.com/storerunner/storefront/utils"
)

const (
	DefaultMarker    = "amazon"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultTimeout   = 15 * time.Second

	NoDescription  = "No description available"
	NoPrice        = "Price not available"
	invalidURLMsg  = "Invalid product URL"
	fetchFailedMsg = "Failed to fetch product data"
)

// priceSelectors are tried in order; the first non-empty text wins.
var priceSelectors = []string{
	"#priceblock_ourprice",
	"#priceblock_dealprice",
	"#price_inside_buybox",
	".a-price .a-offscreen",
	".apexPriceToPay span.a-offscreen",
	"#corePrice_feature_div span.a-offscreen",
}

type Config struct {
	Marker    string
	UserAgent string
	Timeout   time.Duration
}

type Scraper struct {
	client  *resty.Client
	marker  string
	logger  logger.Logger
	metrics metrics.Recorder
}

type Option func(*Scraper)

func WithLogger(l logger.Logger) Option {
	return func(s *Scraper) { s.logger = logger.OrNoop(l) }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(s *Scraper) { s.metrics = metrics.OrNoop(r) }
}

// WithClient replaces the HTTP client, mainly to point tests at a local
// server transport.
func WithClient(c *resty.Client) Option {
	return func(s *Scraper) { s.client = c }
}

func New(cfg Config, opts ...Option) *Scraper {
	if cfg.Marker == "" {
		cfg.Marker = DefaultMarker
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	s := &Scraper{
		client: resty.New().
			SetTimeout(cfg.Timeout).
			SetHeader("User-Agent", cfg.UserAgent).
			SetHeader("Accept", "text/html,application/xhtml+xml").
			SetHeader("Accept-Language", "en-US,en;q=0.9"),
		marker:  strings.ToLower(cfg.Marker),
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckURL rejects anything that is not an absolute http(s) URL containing
// the marketplace marker. No request is made.
func (s *Scraper) CheckURL(raw string) error {
	if !strings.Contains(strings.ToLower(raw), s.marker) {
		return types.NewError(types.KindValidation, invalidURLMsg, nil)
	}
	if _, err := utils.ValidateHTTPURL(raw); err != nil {
		return types.NewError(types.KindValidation, invalidURLMsg, err)
	}
	return nil
}

// Scrape fetches the product page and extracts its metadata.
func (s *Scraper) Scrape(ctx context.Context, raw string) (*types.ProductMetadata, error) {
	if err := s.CheckURL(raw); err != nil {
		return nil, err
	}
	raw = strings.TrimSpace(raw)

	start := time.Now()
	res, err := s.client.R().SetContext(ctx).Get(raw)
	if err == nil && res.StatusCode() != http.StatusOK {
		err = types.NewError(types.KindUpstream, fetchFailedMsg, nil)
	}
	metrics.Track(s.metrics, "scraper.fetch", start, err)
	if err != nil {
		fields := map[string]any{"url": raw, "error": err}
		if res != nil {
			fields["status"] = res.StatusCode()
		}
		s.logger.Warn("product fetch failed", fields)
		return nil, types.NewError(types.KindUpstream, fetchFailedMsg, err)
	}

	meta, err := Extract(res.Body(), raw)
	if err != nil {
		return nil, types.NewError(types.KindUpstream, fetchFailedMsg, err)
	}
	return meta, nil
}

// Extract reads product metadata from an HTML page. pageURL is used when
// the page does not declare its own canonical URL.
func Extract(html []byte, pageURL string) (*types.ProductMetadata, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	meta := &types.ProductMetadata{
		Title:       firstNonEmpty(ogContent(doc, "og:title"), strings.TrimSpace(doc.Find("title").First().Text())),
		URL:         firstNonEmpty(ogContent(doc, "og:url"), pageURL),
		Description: firstNonEmpty(ogContent(doc, "og:description"), NoDescription),
		Image:       firstNonEmpty(ogContent(doc, "og:image"), attr(doc, "#imgTagWrapperId img", "src")),
		Price:       firstNonEmpty(price(doc), NoPrice),
	}
	meta.ASIN = utils.ExtractASIN(meta.URL)
	if meta.ASIN == utils.ASINNotFound {
		meta.ASIN = ""
	}
	return meta, nil
}

func ogContent(doc *goquery.Document, property string) string {
	return attr(doc, `meta[property="`+property+`"]`, "content")
}

func attr(doc *goquery.Document, selector, name string) string {
	v, _ := doc.Find(selector).First().Attr(name)
	return strings.TrimSpace(v)
}

func price(doc *goquery.Document) string {
	for _, sel := range priceSelectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
