// Package fetcher reads procurement item sheets from local files.
// Spreadsheets are the format purchasing teams actually hand over, so
// the readers are header-driven and forgiving about column order.
package fetcher

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/procureops/sourcing-cli/internal/model"
)

// columnIndex maps normalized header names to their column positions.
type columnIndex map[string]int

func indexHeader(header []string) columnIndex {
	idx := make(columnIndex, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		key = strings.ReplaceAll(key, " ", "_")
		if key != "" {
			idx[key] = i
		}
	}
	return idx
}

func (c columnIndex) get(row []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// itemFromRow builds an Item from one sheet row. Description is the
// only required column; a missing id gets a generated one and a
// missing quantity defaults to 1.
func itemFromRow(idx columnIndex, row []string, rowNum int) (model.Item, error) {
	item := model.Item{
		ID:          idx.get(row, "id"),
		Description: idx.get(row, "description"),
		Region:      idx.get(row, "region"),
		Quantity:    1,
	}

	if item.Description == "" {
		return model.Item{}, eris.Errorf("fetcher: row %d: description is empty", rowNum)
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	if raw := idx.get(row, "quantity"); raw != "" {
		qty, err := strconv.Atoi(raw)
		if err != nil || qty < 1 {
			return model.Item{}, eris.Errorf("fetcher: row %d: invalid quantity %q", rowNum, raw)
		}
		item.Quantity = qty
	}

	if raw := idx.get(row, "max_price"); raw != "" {
		// Sheets from BR suppliers use a decimal comma.
		raw = strings.ReplaceAll(raw, ",", ".")
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil || price <= 0 {
			return model.Item{}, eris.Errorf("fetcher: row %d: invalid max_price %q", rowNum, raw)
		}
		item.MaxPrice = &price
	}

	return item, nil
}
