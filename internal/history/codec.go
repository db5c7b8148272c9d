package history

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// ErrMalformed is returned when a history file cannot be parsed.
var ErrMalformed = errors.New("malformed history file")

// Codec reads and writes a full record set at a path.
type Codec interface {
	Extension() string
	Read(path string) ([]Record, error)
	Write(path string, records []Record) error
}

// NewCodec returns the codec for format (csv, json, parquet), or nil if the
// format is not supported.
func NewCodec(format string) Codec {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "csv":
		return CSVCodec{}
	case "json":
		return JSONCodec{}
	case "parquet":
		return ParquetCodec{}
	default:
		return nil
	}
}

// csvHeader keeps the original three columns first so older readers still
// find Fund, Date and Price where they expect them.
var csvHeader = []string{"Fund", "Date", "Price", "Source"}

// CSVCodec stores records as CSV with a header row.
type CSVCodec struct{}

func (CSVCodec) Extension() string { return "csv" }

// Read parses a CSV file by header name. The Source column is optional.
func (CSVCodec) Read(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}

	cols := map[string]int{}
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	fundCol, okFund := cols["fund"]
	dateCol, okDate := cols["date"]
	priceCol, okPrice := cols["price"]
	if !okFund || !okDate || !okPrice {
		return nil, fmt.Errorf("%w: %s: header %v lacks Fund, Date or Price", ErrMalformed, path, header)
	}
	sourceCol, okSource := cols["source"]

	var records []Record
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
		}
		rec := Record{
			Fund:  row[fundCol],
			Date:  row[dateCol],
			Price: row[priceCol],
		}
		if okSource {
			rec.Source = row[sourceCol]
		}
		records = append(records, rec)
	}
	return records, nil
}

func (CSVCodec) Write(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, rec := range records {
		if err := w.Write([]string{rec.Fund, rec.Date, rec.Price, rec.Source}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// JSONCodec stores records as an indented JSON array.
type JSONCodec struct{}

func (JSONCodec) Extension() string { return "json" }

func (JSONCodec) Read(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	return records, nil
}

func (JSONCodec) Write(path string, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// ParquetCodec stores records as a Parquet file.
type ParquetCodec struct{}

func (ParquetCodec) Extension() string { return "parquet" }

func (ParquetCodec) Read(path string) ([]Record, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	records, err := parquet.ReadFile[Record](path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	return records, nil
}

func (ParquetCodec) Write(path string, records []Record) error {
	return parquet.WriteFile(path, records)
}
