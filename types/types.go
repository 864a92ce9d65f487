package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Intent is the off-chain mirror of an on-chain escrow intent.
type Intent struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	IntentID            int64      `gorm:"uniqueIndex;not null" json:"intent_id"`
	WalletAddress       string     `gorm:"size:42;index;not null" json:"wallet_address"`
	ShippingAddress     string     `gorm:"type:text" json:"shipping_address"`
	ProductLink         string     `gorm:"type:text" json:"product_link"`
	Quantity            int        `json:"quantity"`
	SolverWalletAddress *string    `gorm:"size:42" json:"solver_wallet_address"`
	SolverDeliveryDate  *string    `json:"solver_delivery_date"`
	Deposit             *string    `gorm:"size:78" json:"deposit"`
	Deadline            *time.Time `json:"deadline"`
	Fulfilled           bool       `json:"fulfilled"`
	Timestamp           time.Time  `gorm:"index;not null" json:"timestamp"`
}

func (Intent) TableName() string {
	return "intents"
}

// BuyerRecord is the buyer half of an intent mirror write.
type BuyerRecord struct {
	IntentID        int64
	WalletAddress   string
	ShippingAddress string
	ProductLink     string
	Quantity        int
	Deposit         *string
	Deadline        *time.Time
}

// SolverRecord is the solver half of an intent mirror write.
type SolverRecord struct {
	IntentID      int64
	WalletAddress string
	DeliveryDate  *string
	Fulfilled     bool
}

// IntentFilter selects a page of mirror records.
type IntentFilter struct {
	WalletAddress string
	IntentID      *int64
	Page          int
	Limit         int
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// NewPagination computes totalPages as ceil(total/limit).
func NewPagination(page, limit int, total int64) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}
}

type IntentPage struct {
	Data       []Intent   `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Tuple is a legacy two-string record.
type Tuple struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Messages  []string  `gorm:"serializer:json;not null" json:"messages"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
}

func (Tuple) TableName() string {
	return "published_strings"
}

// NotificationToken is a mini-app client's push registration.
type NotificationToken struct {
	FID       int64     `gorm:"primaryKey;autoIncrement:false" json:"fid"`
	Token     string    `gorm:"not null" json:"token"`
	URL       string    `gorm:"not null" json:"url"`
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (NotificationToken) TableName() string {
	return "notification_tokens"
}

// ProductMetadata is what the scraper extracts from a product page.
type ProductMetadata struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Price       string `json:"price"`
	ASIN        string `json:"asin"`
}

// ShippingDetails is the buyer's delivery address as entered at checkout.
type ShippingDetails struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Address   string `json:"address" validate:"required"`
	City      string `json:"city" validate:"required"`
	State     string `json:"state" validate:"required"`
	ZipCode   string `json:"zipCode" validate:"required"`
	Country   string `json:"country" validate:"required"`

	// Formatted overrides the computed form when the client already built it.
	Formatted string `json:"formattedAddress,omitempty"`
}

// FormattedAddress returns the canonical string hashed into the intent.
// Segments are concatenated without separators.
func (s ShippingDetails) FormattedAddress() string {
	if s.Formatted != "" {
		return CollapseSpaces(s.Formatted)
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s", s.FirstName, s.LastName))
	b.WriteString(strings.ToUpper(s.Address))
	b.WriteString(strings.ToUpper(fmt.Sprintf("%s, %s %s", s.City, s.State, s.ZipCode)))
	b.WriteString(s.Country)
	return CollapseSpaces(b.String())
}

// CollapseSpaces folds whitespace runs into one space and trims the ends.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Quote is the price breakdown shown at checkout.
type Quote struct {
	Total decimal.Decimal `json:"totalPrice"`
	Fees  decimal.Decimal `json:"fees"`
	Final decimal.Decimal `json:"finalPrice"`

	FormattedTotal string `json:"formattedTotal"`
	FormattedFees  string `json:"formattedFees"`
	FormattedFinal string `json:"formattedFinal"`
}
