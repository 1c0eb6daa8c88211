package source

import (
	"io"

	"github.com/xuri/excelize/v2"
)

type xlsxSource struct {
	f      *excelize.File
	rows   *excelize.Rows
	header []string
	row    int
}

// OpenXLSX reads the first worksheet of a workbook; its first row is the header.
func OpenXLSX(path string) (Source, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		_ = f.Close()
		return nil, ErrMissingHeader
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	s := &xlsxSource{f: f, rows: rows}
	if !rows.Next() {
		_ = s.Close()
		return nil, ErrMissingHeader
	}
	h, err := rows.Columns()
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	if s.header, err = normalizeHeader(h); err != nil {
		_ = s.Close()
		return nil, err
	}
	s.row = 1
	return s, nil
}

func (s *xlsxSource) Header() []string {
	return s.header
}

// Next relies on excelize.Rows yielding an empty row for each row number missing from the
// sheet XML, so s.row stays equal to the spreadsheet row number.
func (s *xlsxSource) Next() (Row, error) {
	for s.rows.Next() {
		s.row++
		cells, err := s.rows.Columns()
		if err != nil {
			return Row{}, &RowError{Row: s.row, Err: err}
		}
		if isBlank(cells) {
			continue
		}
		return Row{Number: s.row, Record: toRecord(s.header, cells)}, nil
	}
	if err := s.rows.Error(); err != nil {
		return Row{}, err
	}
	return Row{}, io.EOF
}

func (s *xlsxSource) Close() error {
	rErr := s.rows.Close()
	if err := s.f.Close(); err != nil {
		return err
	}
	return rErr
}
