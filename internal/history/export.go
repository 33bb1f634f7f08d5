package history

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Sales"

// WriteXLSX выгружает таблицу истории в книгу Excel.
func WriteXLSX(w io.Writer, v View, currency string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := []any{"Receipt No", "Date", "Items", "Payment Mode", "Grand Total (" + currency + ")"}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, row := range v.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{row.Number, row.Date, row.ItemCount, string(row.PaymentMode), row.GrandTotal}
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	totalRow := len(v.Rows) + 3
	if err := f.SetCellValue(exportSheet, fmt.Sprintf("A%d", totalRow), "Total Bills"); err != nil {
		return err
	}
	if err := f.SetCellValue(exportSheet, fmt.Sprintf("B%d", totalRow), v.TotalBills); err != nil {
		return err
	}
	if err := f.SetCellValue(exportSheet, fmt.Sprintf("A%d", totalRow+1), "Total Revenue"); err != nil {
		return err
	}
	if err := f.SetCellValue(exportSheet, fmt.Sprintf("B%d", totalRow+1), v.TotalRevenue.InexactFloat64()); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
