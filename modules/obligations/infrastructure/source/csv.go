package source

import (
	"bufio"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"unicode/utf8"
)

type csvSource struct {
	f      *os.File
	r      *csv.Reader
	header []string
	row    int
}

// OpenCSV opens a UTF-8 CSV export, skipping a leading byte order mark.
func OpenCSV(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	br := stripUTF8BOM(bufio.NewReader(f))

	r := csv.NewReader(br)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = false

	h, err := r.Read()
	if err != nil {
		_ = f.Close()
		if errors.Is(err, io.EOF) {
			return nil, ErrMissingHeader
		}
		return nil, err
	}
	for i := range h {
		if !utf8.ValidString(h[i]) {
			_ = f.Close()
			return nil, errors.New("invalid header encoding")
		}
	}
	header, err := normalizeHeader(h)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &csvSource{f: f, r: r, header: header, row: 1}, nil
}

func stripUTF8BOM(r *bufio.Reader) *bufio.Reader {
	b, err := r.Peek(3)
	if err == nil && len(b) == 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = r.Discard(3)
	}
	return r
}

func (s *csvSource) Header() []string {
	return s.header
}

func (s *csvSource) Next() (Row, error) {
	for {
		cells, err := s.r.Read()
		if errors.Is(err, io.EOF) {
			return Row{}, io.EOF
		}
		s.row++
		if err != nil {
			return Row{}, &RowError{Row: s.row, Err: err}
		}
		if isBlank(cells) {
			continue
		}
		return Row{Number: s.row, Record: toRecord(s.header, cells)}, nil
	}
}

func (s *csvSource) Close() error {
	return s.f.Close()
}
