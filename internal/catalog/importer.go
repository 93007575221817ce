package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/example/yachay/pkg/models"
)

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath      string // Path to the Excel or CSV file
	LabelColumn   string // Column with the detector label
	SpanishColumn string // Column with the spanish translation
	QuechuaColumn string // Column with the quechua translation
	SheetName     string // Name of the sheet to import
	StartRow      int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		LabelColumn:   "A",
		SpanishColumn: "B",
		QuechuaColumn: "C",
		SheetName:     "Sheet1",
		StartRow:      2, // skip header
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Created        int
	Updated        int
	Skipped        int
	Errors         []string
}

var errBlankRow = eris.New("blank row")

// Import loads translations from an Excel or CSV file into the catalog
func (c *Catalog) Import(ctx context.Context, cfg ImportConfig) (*ImportResult, error) {
	var (
		rows [][]string
		err  error
	)
	if strings.EqualFold(filepath.Ext(cfg.FilePath), ".csv") {
		rows, err = readCSV(cfg.FilePath)
	} else {
		rows, err = readExcel(cfg.FilePath, cfg.SheetName)
	}
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Errors: make([]string, 0)}
	for i, row := range rows {
		rowNum := i + 1
		if rowNum < cfg.StartRow {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		result.TotalProcessed++
		t, err := rowTranslation(row, cfg)
		if errors.Is(err, errBlankRow) {
			result.Skipped++
			continue
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
			continue
		}

		created, err := c.Save(ctx, t)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}
	return result, nil
}

func readExcel(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: open %s", path)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read sheet %q", sheet)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: open %s", path)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "catalog: read csv")
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func rowTranslation(row []string, cfg ImportConfig) (*models.Translation, error) {
	cell := func(column string) string {
		if idx := columnToIndex(column); idx >= 0 && idx < len(row) {
			return cleanCell(row[idx])
		}
		return ""
	}

	t := &models.Translation{
		Label:   cell(cfg.LabelColumn),
		Spanish: cell(cfg.SpanishColumn),
		Quechua: cell(cfg.QuechuaColumn),
	}
	switch {
	case t.Label == "" && t.Spanish == "" && t.Quechua == "":
		return nil, errBlankRow
	case t.Label == "":
		return nil, eris.New("label cannot be empty")
	case t.Spanish == "":
		return nil, eris.New("spanish translation cannot be empty")
	case t.Quechua == "":
		return nil, eris.New("quechua translation cannot be empty")
	}
	return t, nil
}

// cleanCell drops notes in parentheses, "wasi (casa)" becomes "wasi"
func cleanCell(s string) string {
	if i := strings.Index(s, "("); i > 0 {
		s = s[:i]
	}
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "\""))
}

// columnToIndex converts an Excel column letter to a zero-based index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}
