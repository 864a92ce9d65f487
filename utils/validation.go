package utils

import (
	"fmt"
	"math/big"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ASINNotFound is hashed in place of a product identifier the URL does not carry.
const ASINNotFound = "ASIN not found in the URL"

var (
	asinPattern   = regexp.MustCompile(`(?:dp|gp/product)/([A-Z0-9]{10})`)
	numberPattern = regexp.MustCompile(`[\d.]+`)
)

// ExtractASIN pulls the 10-character product identifier out of a marketplace
// product URL. URLs without a /dp/ or /gp/product/ segment yield ASINNotFound.
func ExtractASIN(link string) string {
	m := asinPattern.FindStringSubmatch(link)
	if len(m) < 2 {
		return ASINNotFound
	}
	return m[1]
}

// ValidateAmount checks if an amount string is a valid non-negative decimal.
func ValidateAmount(amount string) (decimal.Decimal, error) {
	if strings.TrimSpace(amount) == "" {
		return decimal.Zero, fmt.Errorf("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount format: %w", err)
	}

	if dec.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount cannot be negative")
	}

	return dec, nil
}

// FirstNumber returns the first run of digits and dots in s as a decimal.
// "$1,234.50" yields 1, matching how price strings from the proof
// provider have always been read.
func FirstNumber(s string) (decimal.Decimal, error) {
	m := numberPattern.FindString(s)
	if m == "" {
		return decimal.Zero, fmt.Errorf("no numeric value in %q", s)
	}
	return decimal.NewFromString(m)
}

// ValidateBigInt checks if a string is a valid base-10 integer.
func ValidateBigInt(value string) (*big.Int, error) {
	if value == "" {
		return nil, fmt.Errorf("value cannot be empty")
	}

	n, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid big integer format")
	}

	return n, nil
}

// ValidateHTTPURL parses raw as an absolute http(s) URL.
func ValidateHTTPURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host")
	}
	return u, nil
}

// FormatRemaining renders the time left until deadline as "Xd Xh Xm Xs",
// or "Expired" once the deadline has passed.
func FormatRemaining(deadline, now time.Time) string {
	left := deadline.Sub(now)
	if left <= 0 {
		return "Expired"
	}
	secs := int64(left / time.Second)
	days := secs / 86400
	hours := (secs % 86400) / 3600
	mins := (secs % 3600) / 60
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, mins, secs%60)
}
