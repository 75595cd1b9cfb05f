package fetcher

import (
	"encoding/csv"
	"os"

	"github.com/rotisserie/eris"

	"github.com/procureops/sourcing-cli/internal/model"
)

// ReadItemsCSV reads procurement items from a CSV file with the same
// header contract as ReadItemsXLSX.
func ReadItemsCSV(path string) ([]model.Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: open csv")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // ragged rows are common in hand-edited sheets

	rows, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: read csv")
	}
	if len(rows) == 0 {
		return nil, eris.New("fetcher: csv file is empty")
	}

	idx := indexHeader(rows[0])
	if _, ok := idx["description"]; !ok {
		return nil, eris.New("fetcher: csv header has no description column")
	}

	items := make([]model.Item, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		item, err := itemFromRow(idx, row, i+2)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, nil
}
