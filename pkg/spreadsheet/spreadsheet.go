// Package spreadsheet 读取上传的表格文件，按 (列字母, 行号) 访问单元格。
package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// 支持的格式
const (
	FormatXLSX = "xlsx"
	FormatXLS  = "xls"
	FormatCSV  = "csv"
)

// ErrUnsupportedFormat 不支持的文件格式
var ErrUnsupportedFormat = errors.New("spreadsheet: unsupported format")

// Sheet 单个工作表。行号从 1 开始，列用字母表示（A、B … AA）。
type Sheet interface {
	Cell(column string, row int) string
	HighestRow() int
}

// Open 按格式解析整个活动工作表
func Open(data []byte, format string) (Sheet, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), ".")) {
	case FormatXLSX:
		return openXLSX(data)
	case FormatXLS:
		return openXLS(data)
	case FormatCSV:
		return openCSV(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// grid 已载入内存的行列数据
type grid struct {
	rows [][]string
}

func (g *grid) HighestRow() int {
	return len(g.rows)
}

func (g *grid) Cell(column string, row int) string {
	if row < 1 || row > len(g.rows) {
		return ""
	}
	col, err := excelize.ColumnNameToNumber(column)
	if err != nil {
		return ""
	}
	cells := g.rows[row-1]
	if col > len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[col-1])
}

func openXLSX(data []byte) (Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	name := f.GetSheetName(f.GetActiveSheetIndex())
	if name == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("open xlsx: workbook has no sheets")
		}
		name = sheets[0]
	}

	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read xlsx sheet %q: %w", name, err)
	}
	return &grid{rows: rows}, nil
}

func openXLS(data []byte) (Sheet, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}
	if wb == nil || wb.NumSheets() == 0 {
		return nil, errors.New("open xls: workbook has no sheets")
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, errors.New("open xls: cannot read first sheet")
	}

	rows := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := xlsRow(sheet, i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		last := row.LastCol()
		if last < xlsMinColumns {
			last = xlsMinColumns
		}
		cells := make([]string, 0, last+1)
		for j := 0; j <= last; j++ {
			cells = append(cells, row.Col(j))
		}
		rows = append(rows, cells)
	}
	return &grid{rows: trimTrailingEmpty(rows)}, nil
}

// xlsMinColumns 没有 ROW 记录的行 LastCol 为 0，至少读到 Z 列
const xlsMinColumns = 26

// xlsRow 工作表中不存在的行调用 Row 会空指针，这里返回 nil
func xlsRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

func openCSV(data []byte) (Sheet, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, record)
	}
	return &grid{rows: rows}, nil
}

func trimTrailingEmpty(rows [][]string) [][]string {
	for len(rows) > 0 {
		last := rows[len(rows)-1]
		empty := true
		for _, v := range last {
			if strings.TrimSpace(v) != "" {
				empty = false
				break
			}
		}
		if !empty {
			break
		}
		rows = rows[:len(rows)-1]
	}
	return rows
}
