package meli

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultPageSize  = 50
	defaultOffsetCap = 1000
	pageTimeout      = 15 * time.Second
)

// StopReason records why pagination ended.
type StopReason string

// Pagination stop reasons.
const (
	StopEmptyPage StopReason = "empty_page"
	StopShortPage StopReason = "short_page"
	StopNotFound  StopReason = "not_found"
	StopOffsetCap StopReason = "offset_cap"
)

// JSONGetter is the authenticated read surface the collector needs.
type JSONGetter interface {
	GetJSON(ctx context.Context, path string, query url.Values, dst any) error
}

// IDCollector walks the seller listing endpoint and collects item ids.
type IDCollector struct {
	client    JSONGetter
	pageSize  int
	offsetCap int
	pacing    Pacing
	log       *slog.Logger
}

// CollectorOption configures the IDCollector.
type CollectorOption func(*IDCollector)

// WithPageSize overrides the default page size.
func WithPageSize(n int) CollectorOption {
	return func(c *IDCollector) {
		c.pageSize = n
	}
}

// WithOffsetCap overrides the hard offset ceiling.
func WithOffsetCap(n int) CollectorOption {
	return func(c *IDCollector) {
		c.offsetCap = n
	}
}

// WithCollectorPacing sets the delay between pages.
func WithCollectorPacing(p Pacing) CollectorOption {
	return func(c *IDCollector) {
		c.pacing = p
	}
}

// WithCollectorLogger sets the logger.
func WithCollectorLogger(l *slog.Logger) CollectorOption {
	return func(c *IDCollector) {
		c.log = l
	}
}

// NewIDCollector creates a collector with production defaults.
func NewIDCollector(client JSONGetter, opts ...CollectorOption) *IDCollector {
	c := &IDCollector{
		client:    client,
		pageSize:  defaultPageSize,
		offsetCap: defaultOffsetCap,
		pacing:    DefaultPacing(),
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.pageSize < 1 {
		c.pageSize = defaultPageSize
	}
	return c
}

// CollectResult holds the ids discovered by one pagination walk.
type CollectResult struct {
	IDs       []string
	Pages     int
	StoppedAt StopReason
}

// CollectIDs returns every item id listed for accountID in discovery order.
// Errors other than 404 abort the walk.
func (c *IDCollector) CollectIDs(ctx context.Context, accountID string) (*CollectResult, error) {
	path := "/users/" + url.PathEscape(accountID) + "/items/search"
	result := &CollectResult{}
	seen := make(map[string]struct{})

	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("collecting ids at offset %d: %w", offset, err)
		}
		if result.Pages > 0 {
			if err := Sleep(ctx, c.pacing.PageDelay); err != nil {
				return nil, fmt.Errorf("collecting ids at offset %d: %w", offset, err)
			}
		}

		query := url.Values{}
		query.Set("limit", strconv.Itoa(c.pageSize))
		query.Set("offset", strconv.Itoa(offset))

		page, err := c.fetchPage(ctx, path, query)
		if IsNotFound(err) {
			result.StoppedAt = StopNotFound
			break
		}
		if err != nil {
			return nil, fmt.Errorf("fetching listing page at offset %d: %w", offset, err)
		}
		result.Pages++

		for _, id := range page.Results {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			result.IDs = append(result.IDs, id)
		}

		c.log.Debug("listing page fetched",
			"offset", offset,
			"ids", len(page.Results),
			"total", page.Paging.Total,
		)

		next, stop := nextPage(len(page.Results), offset, c.pageSize, c.offsetCap)
		if stop != "" {
			result.StoppedAt = stop
			break
		}
		offset = next
	}

	c.log.Info("listing collected",
		"account_id", accountID,
		"ids", len(result.IDs),
		"pages", result.Pages,
		"stopped_at", result.StoppedAt,
	)
	return result, nil
}

func (c *IDCollector) fetchPage(ctx context.Context, path string, query url.Values) (*SearchResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, pageTimeout)
	defer cancel()

	var page SearchResponse
	if err := c.client.GetJSON(ctx, path, query, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// nextPage decides whether pagination continues after a page of pageLen ids
// fetched at offset. It returns the next offset or a non-empty stop reason.
func nextPage(pageLen, offset, pageSize, offsetCap int) (int, StopReason) {
	switch {
	case pageLen == 0:
		return offset, StopEmptyPage
	case pageLen < pageSize:
		return offset, StopShortPage
	}
	next := offset + pageSize
	if next > offsetCap {
		return offset, StopOffsetCap
	}
	return next, ""
}
