package source

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Extensions lists the file types FileSource understands.
var Extensions = []string{".csv", ".tsv", ".txt", ".xlsx"}

func SupportedFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// FileSource reads a delimited text file or the first sheet of an xlsx workbook.
type FileSource struct {
	Path string
	// Name is the original upload name; its extension picks the parser.
	Name string
}

func (s FileSource) Kind() Kind { return KindFile }

func (s FileSource) Load(ctx context.Context) (*Table, error) {
	name := s.Name
	if name == "" {
		name = s.Path
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return s.loadXLSX()
	case ".csv", ".tsv", ".txt":
		return s.loadDelimited()
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(name))
}

func (s FileSource) loadDelimited() (*Table, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()
	return ReadDelimited(f)
}

// ReadDelimited parses CSV-like text, sniffing the delimiter from the header line.
func ReadDelimited(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	peek, _ := br.Peek(4096)

	reader := csv.NewReader(br)
	reader.Comma = sniffDelimiter(string(peek))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse delimited file: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("import file is empty")
	}
	return NewTable(records[0], records[1:]), nil
}

func sniffDelimiter(sample string) rune {
	line := sample
	if i := strings.IndexAny(sample, "\r\n"); i >= 0 {
		line = sample[:i]
	}
	best, bestCount := ',', 0
	for _, d := range []rune{',', '\t', ';', '|'} {
		if n := strings.Count(line, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func (s FileSource) loadXLSX() (*Table, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	book, err := excelize.OpenReader(f)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheets[0])
	}
	return NewTable(rows[0], rows[1:]), nil
}
