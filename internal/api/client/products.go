package client

import (
	"context"
	"net/url"
	"strconv"

	domain "github.com/donaldgifford/meli-harvester/pkg/types"
)

// ProductsResponse wraps a paginated products response.
type ProductsResponse struct {
	Products []domain.ProductRecord `json:"products"`
	Total    int                    `json:"total"`
}

// ListProductsParams defines query parameters for product queries.
type ListProductsParams struct {
	Status    string
	Condition string
	MinPrice  float64
	MaxPrice  float64
	Search    string
	Limit     int
	Offset    int
	OrderBy   string
}

func (p *ListProductsParams) values() url.Values {
	q := url.Values{}
	if p.Status != "" {
		q.Set("status", p.Status)
	}
	if p.Condition != "" {
		q.Set("condition", p.Condition)
	}
	if p.MinPrice > 0 {
		q.Set("min_price", strconv.FormatFloat(p.MinPrice, 'f', -1, 64))
	}
	if p.MaxPrice > 0 {
		q.Set("max_price", strconv.FormatFloat(p.MaxPrice, 'f', -1, 64))
	}
	if p.Search != "" {
		q.Set("q", p.Search)
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Offset > 0 {
		q.Set("offset", strconv.Itoa(p.Offset))
	}
	if p.OrderBy != "" {
		q.Set("order_by", p.OrderBy)
	}
	return q
}

// ListProducts returns products from the latest result.
func (c *Client) ListProducts(
	ctx context.Context,
	params *ListProductsParams,
) (*ProductsResponse, error) {
	path := "/api/v1/products"
	if params != nil {
		if q := params.values(); len(q) > 0 {
			path += "?" + q.Encode()
		}
	}

	var out ProductsResponse
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetProduct returns one product by marketplace item id.
func (c *Client) GetProduct(ctx context.Context, id string) (*domain.ProductRecord, error) {
	var out domain.ProductRecord
	if err := c.get(ctx, "/api/v1/products/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
