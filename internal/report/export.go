package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"hielitos/backend/internal/domain"
)

const sheetName = "Dashboard"

// Rows flattens a dashboard into metric/value pairs with money rendered to
// two decimals.
func Rows(dash domain.Dashboard) [][]string {
	s := dash.Summary
	t := dash.Trends

	rows := [][]string{
		{"metric", "value"},
		{"generated_at", dash.GeneratedAt.Format("2006-01-02 15:04:05")},
		{"global_stock", strconv.Itoa(s.GlobalStock)},
	}
	for _, c := range s.StockByCategory {
		rows = append(rows, []string{"stock:" + c.Name, strconv.Itoa(c.Stock)})
	}
	rows = append(rows,
		[]string{"revenue", money(s.Revenue)},
		[]string{"stock_value", money(s.StockValue)},
		[]string{"discount_loss", money(s.DiscountLoss)},
		[]string{"donation_loss", money(s.DonationLoss)},
		[]string{"total_loss", money(s.TotalLoss)},
		[]string{"sales", strconv.Itoa(s.Sales)},
		[]string{"top_flavor", topFlavorCell(t.TopFlavor)},
		[]string{"top_weekday", bucketCell(t.TopWeekday)},
		[]string{"top_month", bucketCell(t.TopMonth)},
		[]string{"top_hour", bucketCell(t.TopHour)},
		[]string{"top_cashier", cashierCell(t.TopCashier)},
	)
	return rows
}

func WriteCSV(w io.Writer, dash domain.Dashboard) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(Rows(dash)); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func WriteXLSX(w io.Writer, dash domain.Dashboard) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for i, row := range Rows(dash) {
		for j, value := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}
	if err := f.SetColWidth(sheetName, "A", "B", 24); err != nil {
		return err
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func topFlavorCell(t domain.TopFlavor) string {
	if !t.Found {
		return "N/A"
	}
	return fmt.Sprintf("%s (%d)", t.Name, t.Quantity)
}

func bucketCell(b domain.TopBucket) string {
	if !b.Found {
		return "N/A"
	}
	return fmt.Sprintf("%s (%s)", b.Label, money(b.Total))
}

func cashierCell(c domain.TopCashier) string {
	if !c.Found {
		return "N/A"
	}
	return fmt.Sprintf("%s (%s)", c.Name, money(c.Total))
}
