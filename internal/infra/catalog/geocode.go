package catalog

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	domainerrors "fuelstop/internal/domain/errors"
	"fuelstop/internal/domain/entity"

	"github.com/pkg/errors"
)

// AddressGeocoder resolves free text to a point. *geocoding.Nominatim implements it.
type AddressGeocoder interface {
	Geocode(ctx context.Context, address string) (entity.RoutePoint, error)
}

// GeocodeReport summarises a FillCoordinates run.
type GeocodeReport struct {
	Rows       int
	Located    int // already had both coordinates
	Filled     int
	Unresolved []SkippedRecord
}

// FillCoordinates copies a station CSV from r to w and geocodes every row whose
// latitude or longitude is empty. latitude and longitude columns are appended when
// the input has none. Each row tries progressively coarser queries (street address,
// station name, city, state) and takes the first match.
func FillCoordinates(ctx context.Context, r io.Reader, w io.Writer, geocoder AddressGeocoder) (*GeocodeReport, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}

	positions := locateColumns(header)
	for _, col := range []column{colName, colCity, colState} {
		if positions[col] < 0 {
			return nil, errors.Errorf("station file has no column for %s", columnName(col))
		}
	}
	if positions[colLat] < 0 {
		positions[colLat] = len(header)
		header = append(header, "latitude")
	}
	if positions[colLon] < 0 {
		positions[colLon] = len(header)
		header = append(header, "longitude")
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return nil, errors.Wrap(err, "write header")
	}

	report := &GeocodeReport{}
	lineNum := 1

	for {
		record, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		lineNum++
		if readErr != nil {
			return nil, errors.Wrapf(readErr, "line %d", lineNum)
		}
		report.Rows++

		for len(record) < len(header) {
			record = append(record, "")
		}

		if strings.TrimSpace(record[positions[colLat]]) != "" && strings.TrimSpace(record[positions[colLon]]) != "" {
			report.Located++
		} else {
			point, reason, err := geocodeRow(ctx, geocoder, record, positions)
			if err != nil {
				return nil, err
			}
			if reason != "" {
				report.Unresolved = append(report.Unresolved, SkippedRecord{Line: lineNum, Reason: reason})
			} else {
				record[positions[colLat]] = strconv.FormatFloat(point.Lat, 'f', -1, 64)
				record[positions[colLon]] = strconv.FormatFloat(point.Lon, 'f', -1, 64)
				report.Filled++
			}
		}

		if err := writer.Write(record); err != nil {
			return nil, errors.Wrapf(err, "write line %d", lineNum)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, errors.Wrap(err, "flush output")
	}

	return report, nil
}

// geocodeRow walks the query ladder for one row. A non-empty reason means no query
// matched; err is only set when ctx ended.
func geocodeRow(ctx context.Context, geocoder AddressGeocoder, record []string, positions [numColumns]int) (entity.RoutePoint, string, error) {
	field := func(col column) string {
		if positions[col] < 0 {
			return ""
		}

		return strings.TrimSpace(record[positions[col]])
	}

	var lastErr error
	for _, query := range addressQueries(field(colAddress), field(colName), field(colCity), field(colState)) {
		point, err := geocoder.Geocode(ctx, query)
		if err == nil {
			return point, "", nil
		}
		if ctx.Err() != nil {
			return entity.RoutePoint{}, "", errors.WithStack(ctx.Err())
		}
		lastErr = err
	}

	if lastErr == nil || errors.Is(lastErr, domainerrors.ErrInvalidLocation) {
		return entity.RoutePoint{}, "no geocoding match", nil
	}

	return entity.RoutePoint{}, "geocoding failed: " + lastErr.Error(), nil
}

// addressQueries lists the queries for a station from most to least precise,
// leaving out any that would repeat a coarser one because a part is empty.
func addressQueries(address, name, city, state string) []string {
	join := func(parts ...string) string {
		for _, p := range parts[:len(parts)-1] {
			if p == "" {
				return ""
			}
		}

		return strings.Join(parts, ", ")
	}

	var queries []string
	for _, q := range []string{
		join(address, city, state, "USA"),
		join(name, city, state, "USA"),
		join(city, state, "USA"),
		join(state, "USA"),
	} {
		if q != "" {
			queries = append(queries, q)
		}
	}

	return queries
}

func columnName(col column) string {
	for _, req := range requiredColumns {
		if req.col == col {
			return strconv.Quote(req.name)
		}
	}

	return strconv.Itoa(int(col))
}
