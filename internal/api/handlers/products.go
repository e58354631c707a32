package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/meli-harvester/internal/sink"
	"github.com/donaldgifford/meli-harvester/internal/store"
	domain "github.com/donaldgifford/meli-harvester/pkg/types"
)

// ProductLister answers queries over the latest product snapshot. Both the
// Postgres store and store.SnapshotLister satisfy it.
type ProductLister interface {
	ListProducts(ctx context.Context, q *store.ProductQuery) ([]domain.ProductRecord, int, error)
	GetProduct(ctx context.Context, itemID string) (*domain.ProductRecord, error)
}

// ProductsHandler handles product query endpoints.
type ProductsHandler struct {
	lister ProductLister
}

// NewProductsHandler creates a new ProductsHandler.
func NewProductsHandler(l ProductLister) *ProductsHandler {
	return &ProductsHandler{lister: l}
}

// ListProductsInput is the input for listing products with optional filters.
type ListProductsInput struct {
	Status    string  `query:"status"    doc:"Filter by listing status"          example:"active"`
	Condition string  `query:"condition" doc:"Filter by item condition"          example:"new"`
	MinPrice  float64 `query:"min_price" doc:"Minimum price"                                        minimum:"0"`
	MaxPrice  float64 `query:"max_price" doc:"Maximum price"                                        minimum:"0"`
	Q         string  `query:"q"         doc:"Case-insensitive title search"`
	Limit     int     `query:"limit"     doc:"Number of results (default 50)"                       minimum:"0" maximum:"500"`
	Offset    int     `query:"offset"    doc:"Pagination offset"                                    minimum:"0"`
	OrderBy   string  `query:"order_by"  doc:"Sort field"                        enum:"position,price,title,"`
}

// ListProductsOutput is the response for listing products.
type ListProductsOutput struct {
	Body struct {
		Products []domain.ProductRecord `json:"products"`
		Total    int                    `json:"total"`
		Limit    int                    `json:"limit"`
		Offset   int                    `json:"offset"`
	}
}

// GetProductInput is the input for getting a single product.
type GetProductInput struct {
	ID string `path:"id" doc:"Marketplace item id" example:"MLA123456789"`
}

// GetProductOutput is the response for getting a single product.
type GetProductOutput struct {
	Body domain.ProductRecord
}

// ListProducts returns products from the latest result.
func (h *ProductsHandler) ListProducts(
	ctx context.Context,
	input *ListProductsInput,
) (*ListProductsOutput, error) {
	q := &store.ProductQuery{
		Limit:   input.Limit,
		Offset:  input.Offset,
		OrderBy: input.OrderBy,
	}
	if input.Status != "" {
		q.Status = &input.Status
	}
	if input.Condition != "" {
		q.Condition = &input.Condition
	}
	if input.MinPrice != 0 {
		q.MinPrice = &input.MinPrice
	}
	if input.MaxPrice != 0 {
		q.MaxPrice = &input.MaxPrice
	}
	if input.Q != "" {
		q.Search = &input.Q
	}

	products, total, err := h.lister.ListProducts(ctx, q)
	if err != nil {
		return nil, lookupError(err, "no extraction result available")
	}

	for i := range products {
		withImage(&products[i])
	}

	resp := &ListProductsOutput{}
	resp.Body.Products = products
	if resp.Body.Products == nil {
		resp.Body.Products = []domain.ProductRecord{}
	}
	resp.Body.Total = total
	resp.Body.Limit = input.Limit
	resp.Body.Offset = input.Offset
	return resp, nil
}

// GetProduct returns one product from the latest result.
func (h *ProductsHandler) GetProduct(
	ctx context.Context,
	input *GetProductInput,
) (*GetProductOutput, error) {
	p, err := h.lister.GetProduct(ctx, input.ID)
	if err != nil {
		return nil, lookupError(err, "product not found")
	}
	withImage(p)
	return &GetProductOutput{Body: *p}, nil
}

func withImage(p *domain.ProductRecord) {
	if p.ImageURL == "" {
		p.ImageURL = domain.NoImagePlaceholder
	}
}

func lookupError(err error, notFound string) error {
	if errors.Is(err, sink.ErrNoResult) || errors.Is(err, store.ErrNotFound) {
		return huma.Error404NotFound(notFound)
	}
	return huma.Error500InternalServerError("product query failed", err)
}

// RegisterProductRoutes registers product endpoints with the Huma API.
func RegisterProductRoutes(api huma.API, h *ProductsHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "list-products",
		Method:      http.MethodGet,
		Path:        "/api/v1/products",
		Summary:     "List products",
		Description: "Returns products from the latest extraction result with optional filters and pagination.",
		Tags:        []string{"products"},
		Errors:      []int{http.StatusNotFound, http.StatusInternalServerError},
	}, h.ListProducts)

	huma.Register(api, huma.Operation{
		OperationID: "get-product",
		Method:      http.MethodGet,
		Path:        "/api/v1/products/{id}",
		Summary:     "Get product",
		Tags:        []string{"products"},
		Errors:      []int{http.StatusNotFound, http.StatusInternalServerError},
	}, h.GetProduct)
}
