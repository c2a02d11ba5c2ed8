package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"shopfront/internal/domain"

	"github.com/shopspring/decimal"
)

type ItemWriter interface {
	Upsert(ctx context.Context, item domain.Item) (*domain.Item, error)
}

// CSVImporter reads catalog CSV files (name,price,stock_quantity,image_url) and upserts
// items by name.
type CSVImporter struct {
	reader *csv.Reader
	items  ItemWriter
}

func NewCSVImporter(r io.Reader, items ItemWriter) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // image_url may be omitted
	csvr.TrimLeadingSpace = true
	return &CSVImporter{
		reader: csvr,
		items:  items,
	}
}

var requiredHeaders = []string{"name", "price", "stock_quantity"}

// Run upserts every non-blank row and returns the number of items written. It stops at
// the first malformed row.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, h := range requiredHeaders {
		if _, ok := index[h]; !ok {
			return 0, fmt.Errorf("missing column %q", h)
		}
	}

	imported := 0
	for line := 2; ; line++ {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}

		item, err := parseRow(record, index)
		if err != nil {
			return imported, fmt.Errorf("line %d: %w", line, err)
		}
		if item == nil {
			continue
		}
		if _, err := i.items.Upsert(ctx, *item); err != nil {
			return imported, fmt.Errorf("upsert item %q: %w", item.Name, err)
		}
		imported++
	}

	return imported, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

// parseRow returns nil for blank rows.
func parseRow(record []string, index map[string]int) (*domain.Item, error) {
	name := pick(record, index, "name")
	priceStr := pick(record, index, "price")
	stockStr := pick(record, index, "stock_quantity")
	imageURL := pick(record, index, "image_url")

	if name == "" && priceStr == "" && stockStr == "" {
		return nil, nil
	}
	if name == "" {
		return nil, errors.New("name is required")
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q for %q", priceStr, name)
	}
	stock := 0
	if stockStr != "" {
		stock, err = strconv.Atoi(stockStr)
		if err != nil {
			return nil, fmt.Errorf("invalid stock_quantity %q for %q", stockStr, name)
		}
	}

	return &domain.Item{
		Name:          name,
		Price:         price.Round(2),
		StockQuantity: stock,
		ImageURL:      imageURL,
	}, nil
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
