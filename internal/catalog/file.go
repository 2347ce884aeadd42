package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

type fileTaxRate struct {
	Name    string `json:"name"`
	RateBps int64  `json:"rate_bps"`
}

type fileComponent struct {
	ItemID string `json:"item_id"`
	Name   string `json:"name"`
	Weight int64  `json:"weight"`
}

type fileItem struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	SKU             string            `json:"sku"`
	ItemType        string            `json:"item_type"`
	UnitPriceMinor  int64             `json:"unit_price_minor"`
	TaxMode         string            `json:"tax_mode"`
	TaxRates        []fileTaxRate     `json:"tax_rates"`
	SubDepartmentID string            `json:"sub_department_id"`
	Components      []fileComponent   `json:"components"`
	Metadata        map[string]string `json:"metadata"`
}

// LoadFile читает статический каталог из JSON-файла со списком товаров.
func LoadFile(path string) (*StaticReader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var items []fileItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}

	reader := NewStaticReader()
	for _, it := range items {
		if it.ID == "" {
			return nil, fmt.Errorf("catalog item without id in %s", path)
		}

		item := domain.CatalogItem{
			ID:              it.ID,
			Name:            it.Name,
			SKU:             it.SKU,
			ItemType:        it.ItemType,
			UnitPriceMinor:  it.UnitPriceMinor,
			TaxMode:         domain.TaxMode(it.TaxMode),
			SubDepartmentID: it.SubDepartmentID,
			Metadata:        it.Metadata,
		}
		if item.TaxMode == "" {
			item.TaxMode = domain.TaxModeExclusive
		}
		for _, rate := range it.TaxRates {
			item.TaxRates = append(item.TaxRates, domain.TaxRate{Name: rate.Name, RateBps: rate.RateBps})
		}
		for _, comp := range it.Components {
			item.Components = append(item.Components, domain.PackageComponent{
				ItemID: comp.ItemID,
				Name:   comp.Name,
				Weight: comp.Weight,
			})
		}

		reader.Put(item)
	}

	return reader, nil
}
