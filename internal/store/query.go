package store

import (
	"fmt"
	"sort"
	"strings"

	domain "github.com/donaldgifford/meli-harvester/pkg/types"
)

const (
	defaultLimit = 50
	maxLimit     = 500

	orderByPosition = "position"
	orderByPrice    = "price"
	orderByTitle    = "title"
)

// validOrderBy maps allowed OrderBy values to their SQL column expressions.
var validOrderBy = map[string]string{
	orderByPosition: "position ASC",
	orderByPrice:    "price ASC NULLS FIRST",
	orderByTitle:    "title ASC",
}

const defaultOrderBy = "position ASC"

const baseProductsSelect = `SELECT record FROM products`

const countProductsSelect = "SELECT COUNT(*) FROM products"

// ToSQL builds the WHERE clause, ORDER BY, LIMIT, and OFFSET for a product
// query against the latest snapshot. It returns the data query, the count
// query, and the positional parameters shared by both.
func (q *ProductQuery) ToSQL() (dataSQL, countSQL string, args []any) {
	conditions := []string{"result_id = (" + latestResultIDSubquery + ")"}
	paramIdx := 1

	if q.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", paramIdx))
		args = append(args, *q.Status)
		paramIdx++
	}

	if q.Condition != nil {
		conditions = append(conditions, fmt.Sprintf("condition = $%d", paramIdx))
		args = append(args, *q.Condition)
		paramIdx++
	}

	if q.MinPrice != nil {
		conditions = append(conditions, fmt.Sprintf("COALESCE(price, 0) >= $%d", paramIdx))
		args = append(args, *q.MinPrice)
		paramIdx++
	}

	if q.MaxPrice != nil {
		conditions = append(conditions, fmt.Sprintf("COALESCE(price, 0) <= $%d", paramIdx))
		args = append(args, *q.MaxPrice)
		paramIdx++
	}

	if q.Search != nil {
		conditions = append(conditions, fmt.Sprintf("title ILIKE $%d", paramIdx))
		args = append(args, "%"+*q.Search+"%")
	}

	whereClause := " WHERE " + strings.Join(conditions, " AND ")

	dataSQL = fmt.Sprintf(
		"%s%s ORDER BY %s LIMIT %d OFFSET %d",
		baseProductsSelect, whereClause, q.orderClause(), q.limit(), q.offset(),
	)

	countSQL = countProductsSelect + whereClause

	return dataSQL, countSQL, args
}

// Apply runs the same filters in memory over an already loaded snapshot.
// It returns the requested page and the total number of matches.
func (q *ProductQuery) Apply(products []domain.ProductRecord) ([]domain.ProductRecord, int) {
	matched := make([]domain.ProductRecord, 0, len(products))
	for i := range products {
		if q.matches(&products[i]) {
			matched = append(matched, products[i])
		}
	}

	switch q.OrderBy {
	case orderByPrice:
		sort.SliceStable(matched, func(i, j int) bool {
			return matched[i].PriceValue() < matched[j].PriceValue()
		})
	case orderByTitle:
		sort.SliceStable(matched, func(i, j int) bool {
			return matched[i].Title < matched[j].Title
		})
	}

	total := len(matched)
	start := min(q.offset(), total)
	end := min(start+q.limit(), total)
	return matched[start:end], total
}

func (q *ProductQuery) matches(p *domain.ProductRecord) bool {
	if q.Status != nil && p.Status != *q.Status {
		return false
	}
	if q.Condition != nil && p.Condition != *q.Condition {
		return false
	}
	if q.MinPrice != nil && p.PriceValue() < *q.MinPrice {
		return false
	}
	if q.MaxPrice != nil && p.PriceValue() > *q.MaxPrice {
		return false
	}
	if q.Search != nil && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(*q.Search)) {
		return false
	}
	return true
}

func (q *ProductQuery) orderClause() string {
	if col, ok := validOrderBy[q.OrderBy]; ok {
		return col
	}
	return defaultOrderBy
}

func (q *ProductQuery) limit() int {
	switch {
	case q.Limit <= 0:
		return defaultLimit
	case q.Limit > maxLimit:
		return maxLimit
	default:
		return q.Limit
	}
}

func (q *ProductQuery) offset() int {
	return max(q.Offset, 0)
}
