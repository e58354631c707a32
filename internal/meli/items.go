package meli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"github.com/donaldgifford/meli-harvester/internal/metrics"
	domain "github.com/donaldgifford/meli-harvester/pkg/types"
)

const (
	itemTimeout        = 12 * time.Second
	publicItemTimeout  = 10 * time.Second
	descriptionTimeout = 8 * time.Second

	maxDescriptionRunes = 500
	maxGalleryImages    = 5
	maxAttributes       = 10
)

// ItemClient is the read surface the item fetcher needs.
type ItemClient interface {
	JSONGetter
	GetPublic(ctx context.Context, path string, query url.Values) ([]byte, error)
}

// ItemFetcher resolves item ids into normalized product records.
type ItemFetcher struct {
	client     ItemClient
	fallbackOn []int
	converter  *md.Converter
	log        *slog.Logger
}

// ItemFetcherOption configures the ItemFetcher.
type ItemFetcherOption func(*ItemFetcher)

// WithFallbackStatuses sets which authenticated-path statuses trigger the
// public read path. Defaults to 403 only.
func WithFallbackStatuses(codes ...int) ItemFetcherOption {
	return func(f *ItemFetcher) {
		f.fallbackOn = codes
	}
}

// WithItemLogger sets the logger.
func WithItemLogger(l *slog.Logger) ItemFetcherOption {
	return func(f *ItemFetcher) {
		f.log = l
	}
}

// NewItemFetcher creates an item fetcher.
func NewItemFetcher(client ItemClient, opts ...ItemFetcherOption) *ItemFetcher {
	f := &ItemFetcher{
		client:     client,
		fallbackOn: []int{403},
		converter:  md.NewConverter("", true, nil),
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Resolve returns the record for id, or nil when the item cannot be
// resolved. Per-item failures are logged and swallowed. The only errors
// returned are credential failures, which no later item can recover from.
func (f *ItemFetcher) Resolve(ctx context.Context, id string) (*domain.ProductRecord, error) {
	rec, err := f.Fetch(ctx, id)
	if err == nil {
		return rec, nil
	}
	if IsCredentialFailure(err) {
		return nil, err
	}
	f.log.Warn("item skipped", "item_id", id, "status", StatusCode(err), "err", err)
	return nil, nil
}

// Fetch resolves id, falling back to the public read path when the
// authenticated path answers with a fallback status.
func (f *ItemFetcher) Fetch(ctx context.Context, id string) (*domain.ProductRecord, error) {
	path := "/items/" + url.PathEscape(id)

	item, err := f.fetchAuthenticated(ctx, path)
	access := domain.AccessAuthenticated
	if err != nil {
		if !slices.Contains(f.fallbackOn, StatusCode(err)) {
			return nil, fmt.Errorf("fetching item %s: %w", id, err)
		}
		f.log.Debug("authenticated item read rejected, trying public path",
			"item_id", id,
			"status", StatusCode(err),
		)
		metrics.PublicFallbacksTotal.Inc()

		item, err = f.fetchPublic(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("fetching public item %s: %w", id, err)
		}
		access = domain.AccessPublic
	}

	desc, ok, err := f.description(ctx, path, access)
	if err != nil {
		return nil, fmt.Errorf("fetching description of %s: %w", id, err)
	}
	if !ok {
		desc = domain.NoDescription
	}

	return toProductRecord(item, desc, access), nil
}

func (f *ItemFetcher) fetchAuthenticated(ctx context.Context, path string) (*Item, error) {
	ctx, cancel := context.WithTimeout(ctx, itemTimeout)
	defer cancel()

	var item Item
	if err := f.client.GetJSON(ctx, path, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (f *ItemFetcher) fetchPublic(ctx context.Context, path string) (*Item, error) {
	ctx, cancel := context.WithTimeout(ctx, publicItemTimeout)
	defer cancel()

	body, err := f.client.GetPublic(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	var item Item
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("parsing public item: %w", err)
	}
	return &item, nil
}

// description fetches the item description through the same read path the
// item itself came from. It reports false when no description is available
// and returns an error only for credential failures.
func (f *ItemFetcher) description(
	ctx context.Context,
	itemPath string,
	access domain.AccessMethod,
) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, descriptionTimeout)
	defer cancel()

	path := itemPath + "/description"
	var d Description
	var err error
	if access == domain.AccessAuthenticated {
		err = f.client.GetJSON(ctx, path, nil, &d)
	} else {
		var body []byte
		if body, err = f.client.GetPublic(ctx, path, nil); err == nil {
			err = json.Unmarshal(body, &d)
		}
	}
	if err != nil {
		if IsCredentialFailure(err) {
			return "", false, err
		}
		f.log.Debug("description unavailable", "path", path, "err", err)
		return "", false, nil
	}

	text := strings.TrimSpace(d.PlainText)
	if text == "" && strings.TrimSpace(d.Text) != "" {
		converted, convErr := f.converter.ConvertString(d.Text)
		if convErr != nil {
			converted = d.Text
		}
		text = strings.TrimSpace(converted)
	}
	if text == "" {
		return "", false, nil
	}
	return truncateRunes(text, maxDescriptionRunes), true, nil
}

func toProductRecord(item *Item, desc string, access domain.AccessMethod) *domain.ProductRecord {
	rec := &domain.ProductRecord{
		ID:                 item.ID,
		Title:              item.Title,
		Description:        desc,
		Price:              item.Price,
		Currency:           item.CurrencyID,
		OriginalPrice:      item.OriginalPrice,
		Status:             item.Status,
		Condition:          item.Condition,
		AvailableQuantity:  item.AvailableQuantity,
		SoldQuantity:       item.SoldQuantity,
		Permalink:          item.Permalink,
		ImageURL:           NormalizeImageURL(item.Thumbnail),
		Gallery:            make([]string, 0, maxGalleryImages),
		CategoryID:         item.CategoryID,
		ListingTypeID:      item.ListingTypeID,
		DateCreated:        item.DateCreated,
		LastUpdated:        item.LastUpdated,
		ShippingMethods:    []string{},
		Location:           toLocation(item.SellerAddress),
		Attributes:         make([]domain.Attribute, 0, maxAttributes),
		Warranty:           domain.NoWarranty,
		AcceptsMercadoPago: item.AcceptsMercadoPago,
		AccessMethod:       access,
	}

	for _, p := range item.Pictures[:min(len(item.Pictures), maxGalleryImages)] {
		rec.Gallery = append(rec.Gallery, NormalizeImageURL(p.URL))
	}

	if item.Shipping != nil {
		rec.FreeShipping = item.Shipping.FreeShipping
		for _, m := range item.Shipping.Methods {
			rec.ShippingMethods = append(rec.ShippingMethods, m.Name)
		}
	}

	for _, a := range item.Attributes[:min(len(item.Attributes), maxAttributes)] {
		rec.Attributes = append(rec.Attributes, domain.Attribute{
			Name:  a.Name,
			Value: attributeValue(a),
		})
	}

	if item.Warranty != nil && *item.Warranty != "" {
		rec.Warranty = *item.Warranty
	}

	return rec
}

func toLocation(addr *SellerAddress) domain.Location {
	loc := domain.Location{
		City:    domain.NotSpecified,
		State:   domain.NotSpecified,
		Country: domain.NotSpecified,
	}
	if addr == nil {
		return loc
	}
	if addr.City != nil && addr.City.Name != "" {
		loc.City = addr.City.Name
	}
	if addr.State != nil && addr.State.Name != "" {
		loc.State = addr.State.Name
	}
	if addr.Country != nil && addr.Country.Name != "" {
		loc.Country = addr.Country.Name
	}
	return loc
}

func attributeValue(a ItemAttribute) string {
	if a.ValueName != nil && *a.ValueName != "" {
		return *a.ValueName
	}
	if a.ValueID != nil && *a.ValueID != "" {
		return *a.ValueID
	}
	return domain.NotSpecified
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
