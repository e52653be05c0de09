// Package opis reads OPIS truck-stop price exports (CSV or XLSX).
package opis

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/samirrijal/fuelroute/internal/core/domain"
)

// Column headers of the OPIS export.
const (
	ColID        = "OPIS Truckstop ID"
	ColName      = "Truckstop Name"
	ColAddress   = "Address"
	ColCity      = "City"
	ColState     = "State"
	ColRackID    = "Rack ID"
	ColPrice     = "Retail Price"
	ColLatitude  = "Latitude"
	ColLongitude = "Longitude"
)

var requiredColumns = []string{ColID, ColName, ColAddress, ColCity, ColState, ColRackID, ColPrice}

// Catalogue is the parsed content of one export.
type Catalogue struct {
	// Stations are unique by ID; the first row of a station wins.
	Stations []domain.FuelStation
	// Prices has one record per accepted row.
	Prices []domain.FuelPrice
	// Skipped counts rows with an unusable ID or price.
	Skipped int
	// Unlocated counts stations stored without coordinates.
	Unlocated int
}

// Open parses the export at path, choosing the reader by file extension.
func Open(path string) (*Catalogue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalogue: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ReadXLSX(f)
	}
	return ReadCSV(f)
}

// ReadCSV parses a comma-separated export with a header row.
func ReadCSV(r io.Reader) (*Catalogue, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: read csv: %v", domain.ErrInvalidInput, err)
	}
	return FromRows(rows)
}

// ReadXLSX parses the first sheet of a workbook export.
func ReadXLSX(r io.Reader) (*Catalogue, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", domain.ErrInvalidInput, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", domain.ErrInvalidInput)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return FromRows(rows)
}

// FromRows builds a Catalogue from a header row followed by data rows.
func FromRows(rows [][]string) (*Catalogue, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: catalogue is empty", domain.ErrInvalidInput)
	}

	idx := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", domain.ErrInvalidInput, col)
		}
	}

	get := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	cat := &Catalogue{}
	seen := make(map[int64]bool)
	now := time.Now().UTC()

	for _, row := range rows[1:] {
		id, err := strconv.ParseInt(get(row, ColID), 10, 64)
		if err != nil {
			cat.Skipped++
			continue
		}
		price, err := domain.ParsePrice(get(row, ColPrice))
		if err != nil {
			cat.Skipped++
			continue
		}

		if !seen[id] {
			seen[id] = true
			rack, _ := strconv.ParseInt(get(row, ColRackID), 10, 64)
			st := domain.FuelStation{
				ID:       id,
				Name:     get(row, ColName),
				Address:  get(row, ColAddress),
				City:     get(row, ColCity),
				State:    strings.ToUpper(get(row, ColState)),
				RackID:   rack,
				Location: parseLocation(get(row, ColLatitude), get(row, ColLongitude)),
			}
			if !st.Location.Valid {
				cat.Unlocated++
			}
			cat.Stations = append(cat.Stations, st)
		}

		cat.Prices = append(cat.Prices, domain.FuelPrice{
			StationID:  id,
			Price:      price,
			RecordedAt: now,
		})
	}

	return cat, nil
}

func parseLocation(latStr, lngStr string) domain.NullGeoPoint {
	if latStr == "" || lngStr == "" {
		return domain.NullGeoPoint{}
	}
	lat, err1 := strconv.ParseFloat(latStr, 64)
	lng, err2 := strconv.ParseFloat(lngStr, 64)
	if err1 != nil || err2 != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return domain.NullGeoPoint{}
	}
	return domain.NewNullGeoPoint(&lat, &lng)
}
