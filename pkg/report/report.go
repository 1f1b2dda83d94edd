// Package report пишет отчет о дампе в XLSX.
//
// Лист "Tables" - строка на таблицу, лист "Summary" - итог прогона.
package report

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/ruslano69/tdtp-mysqldump/pkg/dump"
	"github.com/ruslano69/tdtp-mysqldump/pkg/dumperr"
)

const (
	SheetTables  = "Tables"
	SheetSummary = "Summary"
)

var tableHeaders = []string{"Table", "Kind", "Rows", "Statements", "Locked", "Skipped", "Duration (ms)"}

// Write сохраняет отчет по результату дампа.
// dumpErr попадает в Summary, если дамп завершился ошибкой.
func Write(res *dump.Result, dumpErr error, filePath string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetTables); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	for col, h := range tableHeaders {
		cell := columnName(col+1) + "1"
		f.SetCellValue(SheetTables, cell, h)
		f.SetCellStyle(SheetTables, cell, cell, headerStyle)
	}

	for i, s := range res.Stats {
		kind := "TABLE"
		if s.IsView {
			kind = "VIEW"
		}
		row := []interface{}{s.Name, kind, s.Rows, s.Statements, s.Locked, s.Skipped, s.Duration.Milliseconds()}
		if err := f.SetSheetRow(SheetTables, "A"+strconv.Itoa(i+2), &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	f.SetColWidth(SheetTables, "A", "A", 30)
	f.SetColWidth(SheetTables, "B", columnName(len(tableHeaders)), 14)

	if _, err := f.NewSheet(SheetSummary); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	status := "success"
	errText := ""
	if dumpErr != nil {
		status = "failed"
		errText = dumpErr.Error()
	}

	summary := [][]interface{}{
		{"Dump ID", res.ID},
		{"Database", res.Database},
		{"Status", status},
		{"Error class", dumperr.Class(dumpErr)},
		{"Error", errText},
		{"Started", res.Started},
		{"Finished", res.Finished},
		{"Duration (ms)", res.Duration().Milliseconds()},
		{"Tables", len(res.Stats)},
		{"Rows", res.TotalRows()},
		{"Triggers", res.Triggers},
		{"Procedures", res.Procedures},
		{"Bytes", res.Bytes},
		{"File", res.File},
		{"Codec", res.Codec},
		{"Checksum (xxh3)", res.Checksum},
	}
	for i, kv := range summary {
		row := kv
		if err := f.SetSheetRow(SheetSummary, "A"+strconv.Itoa(i+1), &row); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}
	f.SetColWidth(SheetSummary, "A", "A", 20)
	f.SetColWidth(SheetSummary, "B", "B", 40)

	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// columnName - номер колонки (с 1) в букву Excel
func columnName(col int) string {
	name := ""
	for col > 0 {
		col--
		name = string(rune('A'+col%26)) + name
		col /= 26
	}
	return name
}
