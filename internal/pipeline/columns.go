package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ColumnMap lists, per catalog field, the source column names accepted for
// it. Names are matched case-insensitively; the first present alias wins.
type ColumnMap struct {
	ArticleNumber []string `yaml:"article_number"`
	Manufacturer  []string `yaml:"manufacturer"`
	Description   []string `yaml:"description"`
	Remarks       []string `yaml:"remarks"`
	NetCost       []string `yaml:"net_cost"`
	SalePrice     []string `yaml:"sale_price"`
}

func DefaultColumns() ColumnMap {
	return ColumnMap{
		ArticleNumber: []string{"HArtNr", "Artikelnummer", "article_number"},
		Manufacturer:  []string{"Hersteller", "manufacturer"},
		Description:   []string{"Bezeichnung", "description"},
		Remarks:       []string{"Bemerkungen", "Freigaben", "remarks"},
		NetCost:       []string{"nettopreislieferant", "EK", "net_cost"},
		SalePrice:     []string{"vk1", "VK", "sale_price"},
	}
}

// LoadColumnMap reads a YAML alias file. Fields left out of the file keep
// their default aliases.
func LoadColumnMap(path string) (ColumnMap, error) {
	cols := DefaultColumns()
	if path == "" {
		return cols, nil
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return ColumnMap{}, fmt.Errorf("read column map: %w", err)
	}
	var override ColumnMap
	if err := yaml.Unmarshal(blob, &override); err != nil {
		return ColumnMap{}, fmt.Errorf("parse column map %s: %w", path, err)
	}
	merge := func(dst *[]string, src []string) {
		if len(src) > 0 {
			*dst = src
		}
	}
	merge(&cols.ArticleNumber, override.ArticleNumber)
	merge(&cols.Manufacturer, override.Manufacturer)
	merge(&cols.Description, override.Description)
	merge(&cols.Remarks, override.Remarks)
	merge(&cols.NetCost, override.NetCost)
	merge(&cols.SalePrice, override.SalePrice)
	return cols, nil
}
