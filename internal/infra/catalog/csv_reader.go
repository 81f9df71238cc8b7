// Package catalog reads the fuel station dataset.
package catalog

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"

	domainerrors "fuelstop/internal/domain/errors"
	"fuelstop/internal/domain/entity"

	"github.com/pkg/errors"
)

type column int

const (
	colID column = iota
	colName
	colAddress
	colCity
	colState
	colPrice
	colLat
	colLon
	numColumns
)

// headerAliases maps normalised header names to columns.
var headerAliases = map[string]column{
	"opis truckstop id": colID,
	"truckstop id":      colID,
	"id":                colID,
	"truckstop name":    colName,
	"name":              colName,
	"address":           colAddress,
	"city":              colCity,
	"state":             colState,
	"retail price":      colPrice,
	"price":             colPrice,
	"latitude":          colLat,
	"lat":               colLat,
	"longitude":         colLon,
	"lon":               colLon,
	"lng":               colLon,
}

var requiredColumns = []struct {
	col  column
	name string
}{
	{colName, "Truckstop Name"},
	{colCity, "City"},
	{colState, "State"},
	{colPrice, "Retail Price"},
	{colLat, "latitude"},
	{colLon, "longitude"},
}

// usStates lists the 50 state codes the catalog accepts.
var usStates = map[string]struct{}{
	"AL": {}, "AK": {}, "AZ": {}, "AR": {}, "CA": {}, "CO": {}, "CT": {}, "DE": {}, "FL": {}, "GA": {},
	"HI": {}, "ID": {}, "IL": {}, "IN": {}, "IA": {}, "KS": {}, "KY": {}, "LA": {}, "ME": {}, "MD": {},
	"MA": {}, "MI": {}, "MN": {}, "MS": {}, "MO": {}, "MT": {}, "NE": {}, "NV": {}, "NH": {}, "NJ": {},
	"NM": {}, "NY": {}, "NC": {}, "ND": {}, "OH": {}, "OK": {}, "OR": {}, "PA": {}, "RI": {}, "SC": {},
	"SD": {}, "TN": {}, "TX": {}, "UT": {}, "VT": {}, "VA": {}, "WA": {}, "WV": {}, "WI": {}, "WY": {},
}

// SkippedRecord describes a row that was left out of the catalog.
type SkippedRecord struct {
	Line   int
	Reason string
}

// Dataset is the outcome of reading a station CSV.
type Dataset struct {
	Stations []entity.Station
	Skipped  []SkippedRecord
}

// ReadStations parses a station CSV. Columns are located by header name, case
// insensitively. Rows with missing or malformed required fields, rows outside the
// 50 US states and repeated street addresses are skipped. An input that yields no
// station at all fails with an empty catalog error.
func ReadStations(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, domainerrors.NewEmptyCatalogError("station file is empty")
	}
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}

	positions, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	dataset := &Dataset{}
	seenAddresses := make(map[string]struct{})
	seenIDs := make(map[string]struct{})
	lineNum := 1 // header

	for {
		record, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		lineNum++
		if readErr != nil {
			// A broken quote only spoils its own row.
			dataset.Skipped = append(dataset.Skipped, SkippedRecord{Line: lineNum, Reason: readErr.Error()})

			continue
		}

		station, reason := parseStation(record, positions, lineNum)
		if reason != "" {
			dataset.Skipped = append(dataset.Skipped, SkippedRecord{Line: lineNum, Reason: reason})

			continue
		}

		if station.Address != "" {
			key := strings.ToLower(station.Address + "|" + station.City + "|" + station.State)
			if _, dup := seenAddresses[key]; dup {
				dataset.Skipped = append(dataset.Skipped, SkippedRecord{Line: lineNum, Reason: "duplicate address"})

				continue
			}
			seenAddresses[key] = struct{}{}
		}

		if _, dup := seenIDs[station.ID]; dup {
			station.ID += "-" + strconv.Itoa(lineNum)
		}
		seenIDs[station.ID] = struct{}{}

		dataset.Stations = append(dataset.Stations, station)
	}

	if len(dataset.Stations) == 0 {
		return nil, domainerrors.NewEmptyCatalogError(
			"no usable station among " + strconv.Itoa(len(dataset.Skipped)) + " records")
	}

	return dataset, nil
}

func mapHeader(header []string) ([numColumns]int, error) {
	positions := locateColumns(header)
	for _, req := range requiredColumns {
		if positions[req.col] < 0 {
			return positions, errors.Errorf("station file is missing the %q column", req.name)
		}
	}

	return positions, nil
}

// locateColumns returns the index of every known column in header, or -1.
func locateColumns(header []string) [numColumns]int {
	var positions [numColumns]int
	for i := range positions {
		positions[i] = -1
	}

	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if col, ok := headerAliases[key]; ok && positions[col] < 0 {
			positions[col] = i
		}
	}

	return positions
}

func parseStation(record []string, positions [numColumns]int, lineNum int) (entity.Station, string) {
	field := func(col column) string {
		idx := positions[col]
		if idx < 0 || idx >= len(record) {
			return ""
		}

		return strings.TrimSpace(record[idx])
	}

	station := entity.Station{
		ID:      field(colID),
		Name:    field(colName),
		Address: field(colAddress),
		City:    field(colCity),
		State:   strings.ToUpper(field(colState)),
	}

	if station.Name == "" {
		return station, "missing name"
	}
	if station.City == "" {
		return station, "missing city"
	}
	if _, ok := usStates[station.State]; !ok {
		return station, "state " + strconv.Quote(station.State) + " is not a US state"
	}

	price, err := parseNumber(field(colPrice))
	if err != nil || price <= 0 {
		return station, "invalid retail price " + strconv.Quote(field(colPrice))
	}
	lat, err := parseNumber(field(colLat))
	if err != nil || lat < -90 || lat > 90 {
		return station, "invalid latitude " + strconv.Quote(field(colLat))
	}
	lon, err := parseNumber(field(colLon))
	if err != nil || lon < -180 || lon > 180 {
		return station, "invalid longitude " + strconv.Quote(field(colLon))
	}

	station.RetailPrice = price
	station.Lat = lat
	station.Lon = lon
	if station.ID == "" {
		station.ID = "row-" + strconv.Itoa(lineNum)
	}

	return station, ""
}

func parseNumber(s string) (float64, error) {
	if s == "" {
		return 0, errors.New("empty value")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Errorf("non-finite value %q", s)
	}

	return v, nil
}
