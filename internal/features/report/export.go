package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"time"

	"go-reports/internal/evaluation/model"

	"github.com/xuri/excelize/v2"
)

type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
)

func (f ExportFormat) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

const exportDateFormat = "2006-01-02 15:04:05"

// table is the flattened, format-independent form of an evaluation result.
type table struct {
	columns []string
	rows    [][]any
}

func resultTable(res *AuthorizedResult) table {
	if res.CombinedResult != nil {
		return combinedTable(res.CombinedResult)
	}
	return singleTable(res.Result)
}

func singleTable(r *model.EvaluationResult) table {
	switch r.Type {
	case model.ResultNumber:
		return table{columns: []string{"value"}, rows: [][]any{{numberCell(r.Number)}}}
	case model.ResultMap:
		t := table{columns: []string{"key", "label", "value"}}
		for _, e := range r.Map {
			t.rows = append(t.rows, []any{e.Key, e.Label, numberCell(e.Value)})
		}
		return t
	case model.ResultHyperMap:
		return hyperMapTable(r.HyperMap)
	case model.ResultRaw:
		return rawTable(r.Raw)
	}
	return table{}
}

// hyperMapTable renders one row per outer bucket and one column per distribution key.
func hyperMapTable(entries []model.HyperMapEntry) table {
	t := table{columns: []string{"key", "label"}}
	if len(entries) == 0 {
		return t
	}
	for _, inner := range entries[0].Value {
		t.columns = append(t.columns, inner.Label)
	}
	for _, e := range entries {
		row := []any{e.Key, e.Label}
		for _, inner := range e.Value {
			row = append(row, numberCell(inner.Value))
		}
		t.rows = append(t.rows, row)
	}
	return t
}

func rawTable(rows []model.RawRow) table {
	t := table{columns: []string{
		"instanceId", "definitionKey", "definitionId", "version", "tenantId",
		"businessKey", "state", "startDate", "endDate", "durationMs",
	}}
	variables := map[string]struct{}{}
	for _, r := range rows {
		for name := range r.Variables {
			variables[name] = struct{}{}
		}
	}
	names := slices.Sorted(maps.Keys(variables))
	t.columns = append(t.columns, names...)

	for _, r := range rows {
		row := []any{
			r.InstanceID, r.DefinitionKey, r.DefinitionID, r.Version, r.TenantID,
			r.BusinessKey, string(r.State), r.StartDate.Format(exportDateFormat), "", "",
		}
		if r.EndDate != nil {
			row[8] = r.EndDate.Format(exportDateFormat)
		}
		if r.DurationMs != nil {
			row[9] = *r.DurationMs
		}
		for _, name := range names {
			row = append(row, r.Variables[name])
		}
		t.rows = append(t.rows, row)
	}
	return t
}

func combinedTable(c *model.CombinedResult) table {
	if c.Type == model.ResultNumber {
		t := table{columns: []string{"report", "value"}}
		for _, e := range c.Entries {
			t.rows = append(t.rows, []any{e.Name, numberCell(e.Result.Number)})
		}
		return t
	}
	t := table{columns: []string{"report", "key", "label", "value"}}
	for _, e := range c.Entries {
		for _, m := range e.Result.Map {
			t.rows = append(t.rows, []any{e.Name, m.Key, m.Label, numberCell(m.Value)})
		}
	}
	return t
}

func numberCell(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func cellString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.Format(exportDateFormat)
	}
	return fmt.Sprintf("%v", v)
}

func writeCSV(t table) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(t.columns); err != nil {
		return nil, err
	}
	for _, r := range t.rows {
		row := make([]string, len(r))
		for i, v := range r {
			row[i] = cellString(v)
		}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeExcel(t table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Report"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})

	for i, col := range t.columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, col)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, r := range t.rows {
		for colIdx, v := range r {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheetName, cell, v)
		}
	}

	for i := range t.columns {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, 15)
	}

	buffer, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func exportFilename(name string, format ExportFormat, now time.Time) string {
	return fmt.Sprintf("%s_%s.%s", name, now.Format("20060102_150405"), format)
}
