package harvest

import (
	"time"

	domain "github.com/donaldgifford/meli-harvester/pkg/types"
)

// Summarize computes aggregate statistics over the resolved products. A
// missing price counts as zero for the price range; an empty set yields a
// zero range.
func Summarize(products []domain.ProductRecord, accountID string, at time.Time) domain.ExtractionSummary {
	s := domain.ExtractionSummary{
		Timestamp:         at,
		AccountID:         accountID,
		TotalCount:        len(products),
		CountsByStatus:    make(map[string]int),
		CountsByCondition: make(map[string]int),
	}
	if len(products) == 0 {
		return s
	}

	var sum float64
	for i := range products {
		p := &products[i]
		s.CountsByStatus[p.Status]++
		s.CountsByCondition[p.Condition]++

		price := p.PriceValue()
		sum += price
		if i == 0 || price < s.PriceRange.Min {
			s.PriceRange.Min = price
		}
		if i == 0 || price > s.PriceRange.Max {
			s.PriceRange.Max = price
		}
	}
	s.PriceRange.Average = sum / float64(len(products))

	return s
}
