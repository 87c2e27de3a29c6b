package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/aliceafriedman/BikeCounters/internal/models"
)

// WriteLocations writes the location table, indexed by row number.
func WriteLocations(path string, locations []models.Location) (int, error) {
	records := make([]models.Record, len(locations))
	index := make([]int, len(locations))
	for i, loc := range locations {
		records[i] = loc.Record
		index[i] = i
	}
	return writeFile(path, records, index)
}

// WriteCounts writes count rows, indexed by their position in the site's
// API response.
func WriteCounts(path string, rows []models.CountRecord) (int, error) {
	records := make([]models.Record, len(rows))
	index := make([]int, len(rows))
	for i, row := range rows {
		records[i] = row.Record
		index[i] = row.Index
	}
	return writeFile(path, records, index)
}

func writeFile(path string, records []models.Record, index []int) (int, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	n, err := writeTable(file, records, index)
	if cerr := file.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close %s: %w", path, cerr)
	}
	return n, err
}

// writeTable emits an unnamed index column followed by the union of the
// record keys. Missing fields are left empty.
func writeTable(w io.Writer, records []models.Record, index []int) (int, error) {
	writer := csv.NewWriter(w)

	columns := models.Columns(records)
	header := append([]string{""}, columns...)
	if err := writer.Write(header); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	row := make([]string, len(header))
	for i, rec := range records {
		row[0] = strconv.Itoa(index[i])
		for j, col := range columns {
			v, _ := rec.Get(col)
			row[j+1] = v
		}
		if err := writer.Write(row); err != nil {
			return i, fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush csv: %w", err)
	}
	return len(records), nil
}
