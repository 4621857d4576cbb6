// Package report computes read-only summaries and trends over the ledger.
// Nothing is persisted; every figure is recomputed from a Snapshot.
package report

import (
	"fmt"
	"time"

	"hielitos/backend/internal/domain"
	"hielitos/backend/internal/inventory"
)

// Snapshot is the full ledger state a report is computed from.
type Snapshot struct {
	Users      []domain.User
	Categories []domain.Category
	Flavors    []domain.Flavor
	Movements  []domain.Movement
	Sales      []domain.Sale
	Lines      []domain.SaleLine
}

func (s Snapshot) linesBySale() map[string][]domain.SaleLine {
	out := make(map[string][]domain.SaleLine, len(s.Sales))
	for _, line := range s.Lines {
		out[line.SaleID] = append(out[line.SaleID], line)
	}
	return out
}

func Summarize(s Snapshot) domain.Summary {
	levels := inventory.Project(s.Movements)
	lines := s.linesBySale()

	summary := domain.Summary{
		GlobalStock:     levels.Total(s.Flavors),
		StockByCategory: levels.ByCategory(s.Categories, s.Flavors),
		StockValue:      levels.Value(s.Flavors),
		Sales:           len(s.Sales),
	}

	for _, sale := range s.Sales {
		if sale.Kind == domain.SaleNormal || sale.Kind == domain.SaleDiscount || sale.Total > 0 {
			summary.Revenue += sale.Total
		}
		switch sale.Kind {
		case domain.SaleDiscount:
			summary.DiscountLoss += DiscountLoss(sale, lines[sale.ID])
		case domain.SaleDonation:
			summary.DonationLoss += lineValue(lines[sale.ID])
		}
	}
	summary.TotalLoss = summary.DiscountLoss + summary.DonationLoss
	return summary
}

// DiscountLoss is the amount given away on a discount sale: the fixed
// discount when one was used, otherwise the original price reconstructed
// from the percentage minus the charged total. A 100% discount cannot be
// reconstructed from the total, so the line subtotals are used instead.
func DiscountLoss(sale domain.Sale, lines []domain.SaleLine) float64 {
	if sale.FixedDiscount > 0 {
		return sale.FixedDiscount
	}
	if sale.DiscountPercent <= 0 {
		return 0
	}
	if sale.DiscountPercent >= 100 {
		return lineValue(lines) - sale.Total
	}
	original := sale.Total / (1 - sale.DiscountPercent/100)
	return original - sale.Total
}

func lineValue(lines []domain.SaleLine) float64 {
	sum := 0.0
	for _, line := range lines {
		sum += line.Subtotal
	}
	return sum
}

const (
	unknownFlavor = "Unknown"
	anonymousUser = "Anonymous"
)

// Trends picks the best flavor, weekday, month, hour and cashier. Calendar
// buckets are evaluated in loc. Ties go to the first maximum: lowest
// bucket index for calendar buckets, first seen for flavors and cashiers.
func Trends(s Snapshot, loc *time.Location) domain.Trends {
	if loc == nil {
		loc = time.Local
	}
	return domain.Trends{
		TopFlavor:  topFlavor(s),
		TopWeekday: topBucket(s.Sales, 7, func(t time.Time) int { return int(t.In(loc).Weekday()) }, weekdayLabel),
		TopMonth:   topBucket(s.Sales, 12, func(t time.Time) int { return int(t.In(loc).Month()) - 1 }, monthLabel),
		TopHour:    topBucket(s.Sales, 24, func(t time.Time) int { return t.In(loc).Hour() }, hourLabel),
		TopCashier: topCashier(s),
	}
}

func topFlavor(s Snapshot) domain.TopFlavor {
	counts := make(map[string]int)
	var order []string
	for _, line := range s.Lines {
		if _, seen := counts[line.FlavorID]; !seen {
			order = append(order, line.FlavorID)
		}
		counts[line.FlavorID] += line.Quantity
	}
	if len(order) == 0 {
		return domain.TopFlavor{Name: "N/A"}
	}

	best := order[0]
	for _, id := range order[1:] {
		if counts[id] > counts[best] {
			best = id
		}
	}

	name := unknownFlavor
	for _, f := range s.Flavors {
		if f.ID == best {
			name = f.Name
			break
		}
	}
	return domain.TopFlavor{Found: true, FlavorID: best, Name: name, Quantity: counts[best]}
}

func topBucket(sales []domain.Sale, size int, key func(time.Time) int, label func(int) string) domain.TopBucket {
	sums := make([]float64, size)
	present := make([]bool, size)
	for _, sale := range sales {
		k := key(sale.CreatedAt)
		sums[k] += sale.Total
		present[k] = true
	}

	best := -1
	for k := 0; k < size; k++ {
		if !present[k] {
			continue
		}
		if best < 0 || sums[k] > sums[best] {
			best = k
		}
	}
	if best < 0 {
		return domain.TopBucket{Label: "N/A"}
	}
	return domain.TopBucket{Found: true, Index: best, Label: label(best), Total: sums[best]}
}

func topCashier(s Snapshot) domain.TopCashier {
	sums := make(map[string]float64)
	var order []string
	for _, sale := range s.Sales {
		if sale.UserID == "" {
			continue
		}
		if _, seen := sums[sale.UserID]; !seen {
			order = append(order, sale.UserID)
		}
		sums[sale.UserID] += sale.Total
	}
	if len(order) == 0 {
		return domain.TopCashier{Name: "N/A"}
	}

	best := order[0]
	for _, id := range order[1:] {
		if sums[id] > sums[best] {
			best = id
		}
	}

	name := anonymousUser
	for _, u := range s.Users {
		if u.ID == best {
			name = u.Name
			break
		}
	}
	return domain.TopCashier{Found: true, UserID: best, Name: name, Total: sums[best]}
}

func weekdayLabel(i int) string { return time.Weekday(i).String() }

func monthLabel(i int) string { return time.Month(i + 1).String() }

func hourLabel(i int) string { return fmt.Sprintf("%02d:00-%02d:00", i, (i+1)%24) }
