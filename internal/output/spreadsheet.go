package output

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"

	"github.com/chriskillpack/imgcap"
	"github.com/xuri/excelize/v2"
)

const captionsSheet = "Captions"

// Spreadsheet collects results and writes them to an XLSX workbook, in
// submission order, when the run ends.
type Spreadsheet struct {
	path    string
	results []imgcap.Result
	logger  *slog.Logger
}

var _ imgcap.Sink = &Spreadsheet{}

func NewSpreadsheet(path string, logger *slog.Logger) *Spreadsheet {
	if logger == nil {
		logger = slog.Default()
	}
	return &Spreadsheet{path: path, logger: logger}
}

func (s *Spreadsheet) Begin(total int) error {
	s.results = make([]imgcap.Result, 0, total)
	return nil
}

func (s *Spreadsheet) Emit(res imgcap.Result) error {
	s.results = append(s.results, res)
	return nil
}

func (s *Spreadsheet) End() error {
	slices.SortFunc(s.results, func(a, b imgcap.Result) int { return a.Index - b.Index })

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", captionsSheet); err != nil {
		return err
	}

	headers := []any{"Path", "File", "Caption", "Status"}
	if err := f.SetSheetRow(captionsSheet, "A1", &headers); err != nil {
		return err
	}

	for i, res := range s.results {
		status := "ok"
		if res.Failed() {
			status = "error"
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{res.Path, filepath.Base(res.Path), res.Caption, status}
		if err := f.SetSheetRow(captionsSheet, cell, &row); err != nil {
			return err
		}
	}

	// Widen a few columns
	_ = f.SetColWidth(captionsSheet, "A", "A", 60) // path
	_ = f.SetColWidth(captionsSheet, "B", "B", 28) // file
	_ = f.SetColWidth(captionsSheet, "C", "C", 80) // caption

	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("wrote spreadsheet", "path", s.path, "rows", len(s.results))
	return nil
}
