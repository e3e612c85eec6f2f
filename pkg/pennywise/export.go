package pennywise

import (
	"encoding/csv"
	"io"

	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Transactions"

var exportHeader = []string{"Date", "Description", "Category", "Amount", "Type", "Recurring"}

func exportRow(t Transaction, currency string) []string {
	recurring := "No"
	if t.IsRecurring {
		recurring = "Yes"
	}
	return []string{
		FormatDate(t.Date),
		t.Description,
		t.Category,
		FormatCurrency(t.Amount, currency),
		Capitalize(string(t.Type)),
		recurring,
	}
}

// ExportExcel writes txns as an .xlsx workbook with a single Transactions
// sheet. Amounts are stored as numbers; a signed total closes the sheet.
func ExportExcel(w io.Writer, txns []Transaction) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return pkgerrors.Wrap(err, "failed to name sheet")
	}

	header := make([]interface{}, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return pkgerrors.Wrap(err, "failed to write header")
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return pkgerrors.Wrap(err, "failed to create style")
	}
	if err := f.SetRowStyle(exportSheet, 1, 1, bold); err != nil {
		return pkgerrors.Wrap(err, "failed to style header")
	}

	for i, values := range ExportValues(txns)[1:] {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return pkgerrors.Wrap(err, "failed to address row")
		}
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return pkgerrors.Wrapf(err, "failed to write row %d", i+2)
		}
	}

	totalRow := len(txns) + 3
	total, _ := signedTotal(txns).Float64()
	labelCell, _ := excelize.CoordinatesToCellName(3, totalRow)
	valueCell, _ := excelize.CoordinatesToCellName(4, totalRow)
	if err := f.SetCellValue(exportSheet, labelCell, "Total"); err != nil {
		return pkgerrors.Wrap(err, "failed to write total")
	}
	if err := f.SetCellValue(exportSheet, valueCell, total); err != nil {
		return pkgerrors.Wrap(err, "failed to write total")
	}
	if err := f.SetRowStyle(exportSheet, totalRow, totalRow, bold); err != nil {
		return pkgerrors.Wrap(err, "failed to style total")
	}

	if _, err := f.WriteTo(w); err != nil {
		return pkgerrors.Wrap(err, "failed to write workbook")
	}
	return nil
}

// ExportValues returns the header followed by one row per transaction with
// the amount as a number, for spreadsheet targets
func ExportValues(txns []Transaction) [][]interface{} {
	rows := make([][]interface{}, 0, len(txns)+1)
	header := make([]interface{}, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	rows = append(rows, header)
	for _, t := range txns {
		row := exportRow(t, DefaultCurrency)
		amount, _ := t.Amount.Float64()
		rows = append(rows, []interface{}{row[0], row[1], row[2], amount, row[4], row[5]})
	}
	return rows
}

// ExportCSV writes txns with the same columns as ExportExcel, amounts
// formatted in currency, followed by a total row
func ExportCSV(w io.Writer, txns []Transaction, currency string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return pkgerrors.Wrap(err, "failed to write header")
	}
	for _, t := range txns {
		if err := cw.Write(exportRow(t, currency)); err != nil {
			return pkgerrors.Wrap(err, "failed to write row")
		}
	}
	if err := cw.Write([]string{"", "", "Total", FormatCurrency(signedTotal(txns), currency), "", ""}); err != nil {
		return pkgerrors.Wrap(err, "failed to write total")
	}
	cw.Flush()
	return pkgerrors.Wrap(cw.Error(), "failed to flush csv")
}

// signedTotal is income minus expense
func signedTotal(txns []Transaction) decimal.Decimal {
	return SumByType(txns, KindIncome).Sub(SumByType(txns, KindExpense))
}
