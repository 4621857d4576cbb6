// Package inventory derives stock levels from the append-only movement
// ledger. Stock is never stored; it is always a fold over movements.
package inventory

import "hielitos/backend/internal/domain"

// Delta is the signed effect of one movement on its flavor's stock.
func Delta(m domain.Movement) int {
	sign := m.Kind.Sign()
	if sign == 0 {
		return m.Quantity
	}
	qty := m.Quantity
	if qty < 0 {
		qty = -qty
	}
	return sign * qty
}

// StockOf folds every movement referencing flavorID.
func StockOf(movements []domain.Movement, flavorID string) int {
	stock := 0
	for _, m := range movements {
		if m.FlavorID == flavorID {
			stock += Delta(m)
		}
	}
	return stock
}

// Levels is a per-flavor projection of the ledger.
type Levels map[string]int

func Project(movements []domain.Movement) Levels {
	levels := make(Levels)
	for _, m := range movements {
		levels[m.FlavorID] += Delta(m)
	}
	return levels
}

func (l Levels) Of(flavorID string) int {
	return l[flavorID]
}

// Total sums the stock of the given flavors. Movements of flavors outside
// the list are ignored.
func (l Levels) Total(flavors []domain.Flavor) int {
	total := 0
	for _, f := range flavors {
		total += l[f.ID]
	}
	return total
}

func (l Levels) ByCategory(categories []domain.Category, flavors []domain.Flavor) []domain.CategoryStock {
	byCategory := make(map[string]int, len(categories))
	for _, f := range flavors {
		byCategory[f.CategoryID] += l[f.ID]
	}

	out := make([]domain.CategoryStock, 0, len(categories))
	for _, c := range categories {
		out = append(out, domain.CategoryStock{
			CategoryID: c.ID,
			Name:       c.Name,
			Stock:      byCategory[c.ID],
		})
	}
	return out
}

// Value is Σ stock × price over the given flavors.
func (l Levels) Value(flavors []domain.Flavor) float64 {
	value := 0.0
	for _, f := range flavors {
		value += float64(l[f.ID]) * f.Price
	}
	return value
}
