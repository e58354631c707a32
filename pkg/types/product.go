// Package domain defines the core business types for the catalog harvester.
package domain

import (
	"strconv"
	"time"
)

// AccessMethod records which read path produced a product record.
type AccessMethod string

// Access method constants.
const (
	AccessAuthenticated AccessMethod = "authenticated"
	AccessPublic        AccessMethod = "public"
)

// Default values used when the marketplace omits a field.
const (
	NoDescription      = "No description available"
	NotSpecified       = "Not specified"
	NoWarranty         = "No warranty specified"
	NoImagePlaceholder = "https://http2.mlstatic.com/frontend-assets/ui-navigation/5.19.1/mercadolibre/logo__large_plus.png"
)

// Credentials are the four values required to talk to the marketplace on
// behalf of one seller account.
type Credentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"-"`
	RefreshToken string `json:"-"`
	AccountID    string `json:"account_id"`
}

// Location is the seller address attached to a listing.
type Location struct {
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
}

// Attribute is a flattened item attribute.
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ProductRecord is the normalized projection of a marketplace item.
type ProductRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`

	// Pricing
	Price         *float64 `json:"price"`
	Currency      string   `json:"currency"`
	OriginalPrice *float64 `json:"original_price"`

	// Availability
	Status            string `json:"status"`
	Condition         string `json:"condition"`
	AvailableQuantity int    `json:"available_quantity"`
	SoldQuantity      int    `json:"sold_quantity"`

	// Links and images
	Permalink string   `json:"permalink"`
	ImageURL  string   `json:"image_url"`
	Gallery   []string `json:"gallery"`

	// Classification
	CategoryID    string `json:"category_id"`
	ListingTypeID string `json:"listing_type_id"`

	// Timestamps as reported by the provider.
	DateCreated string `json:"date_created"`
	LastUpdated string `json:"last_updated"`

	// Shipping
	FreeShipping    bool     `json:"free_shipping"`
	ShippingMethods []string `json:"shipping_methods"`

	Location   Location    `json:"location"`
	Attributes []Attribute `json:"attributes"`

	Warranty           string       `json:"warranty"`
	AcceptsMercadoPago bool         `json:"accepts_mercadopago"`
	AccessMethod       AccessMethod `json:"access_method"`
}

// PriceValue returns the price, treating a missing price as zero.
func (p *ProductRecord) PriceValue() float64 {
	if p.Price == nil {
		return 0
	}
	return *p.Price
}

// PriceRange holds min, max and arithmetic mean over resolved prices.
type PriceRange struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Average float64 `json:"average"`
}

// ExtractionSummary holds aggregate statistics for one extraction run.
type ExtractionSummary struct {
	Timestamp         time.Time      `json:"timestamp"`
	AccountID         string         `json:"account_id"`
	TotalCount        int            `json:"total_count"`
	CountsByStatus    map[string]int `json:"counts_by_status"`
	CountsByCondition map[string]int `json:"counts_by_condition"`
	PriceRange        PriceRange     `json:"price_range"`
}

// ExtractionResult is the immutable snapshot produced by one pipeline run.
type ExtractionResult struct {
	Summary  ExtractionSummary `json:"summary"`
	Products []ProductRecord   `json:"products"`
}

// ProductRowHeader is the column set of the tabular export.
var ProductRowHeader = []string{"ID", "Title", "Price", "Currency", "Status", "Stock", "Sold", "Link"}

// Rows flattens the result into the tabular export, one row per product.
func (r *ExtractionResult) Rows() [][]string {
	rows := make([][]string, 0, len(r.Products))
	for i := range r.Products {
		p := &r.Products[i]
		price := ""
		if p.Price != nil {
			price = strconv.FormatFloat(*p.Price, 'f', -1, 64)
		}
		rows = append(rows, []string{
			p.ID,
			p.Title,
			price,
			p.Currency,
			p.Status,
			strconv.Itoa(p.AvailableQuantity),
			strconv.Itoa(p.SoldQuantity),
			p.Permalink,
		})
	}
	return rows
}
