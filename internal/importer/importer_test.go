package importer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"shopfront/internal/domain"
)

type stubItemWriter struct {
	items []domain.Item
	err   error
}

func (s *stubItemWriter) Upsert(_ context.Context, it domain.Item) (*domain.Item, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.items = append(s.items, it)
	return &it, nil
}

func TestCSVImporter_Run(t *testing.T) {
	csvData := `name,price,stock_quantity,image_url
Coffee Mug,12.5,10,https://example.com/mug.jpg
,,,
Desk Lamp, 30.00 ,0`

	repo := &stubItemWriter{}
	imp := NewCSVImporter(strings.NewReader(csvData), repo)

	count, err := imp.Run(context.Background())
	if err != nil {
		t.Fatalf("import run: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 items imported, got %d", count)
	}
	if len(repo.items) != 2 {
		t.Fatalf("expected 2 items saved, got %d", len(repo.items))
	}

	mug := repo.items[0]
	if mug.Name != "Coffee Mug" || mug.Price.StringFixed(2) != "12.50" || mug.StockQuantity != 10 {
		t.Fatalf("unexpected item data: %+v", mug)
	}
	if mug.ImageURL != "https://example.com/mug.jpg" {
		t.Fatalf("expected image url to be kept, got %q", mug.ImageURL)
	}
	if lamp := repo.items[1]; lamp.ImageURL != "" || lamp.StockQuantity != 0 || lamp.Price.StringFixed(2) != "30.00" {
		t.Fatalf("unexpected item data: %+v", lamp)
	}
}

func TestCSVImporter_MissingColumn(t *testing.T) {
	imp := NewCSVImporter(strings.NewReader("name,price\nMug,1.00\n"), &stubItemWriter{})

	if _, err := imp.Run(context.Background()); err == nil || !strings.Contains(err.Error(), "stock_quantity") {
		t.Fatalf("expected missing column error, got %v", err)
	}
}

func TestCSVImporter_InvalidRowStops(t *testing.T) {
	csvData := `name,price,stock_quantity
Mug,1.00,1
Lamp,abc,1
Chair,5.00,1`

	repo := &stubItemWriter{}
	count, err := NewCSVImporter(strings.NewReader(csvData), repo).Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("expected error on line 3, got %v", err)
	}
	if count != 1 || len(repo.items) != 1 {
		t.Fatalf("expected only the first row imported, got %d", count)
	}
}

func TestCSVImporter_UpsertError(t *testing.T) {
	boom := errors.New("boom")
	imp := NewCSVImporter(strings.NewReader("name,price,stock_quantity\nMug,1.00,1\n"), &stubItemWriter{err: boom})

	if _, err := imp.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected upsert error to propagate, got %v", err)
	}
}
