package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"fuelstop/internal/infra/catalog"

	"github.com/pkg/errors"
)

// runGeocode fills missing coordinates in file and writes the result to output.
// output is replaced only once every row has been processed, so it may equal file.
func runGeocode(ctx context.Context, w io.Writer, geocoder catalog.AddressGeocoder, file, output string) error {
	fmt.Fprintf(w, "Geocoding station catalog: %s\n", file)

	in, err := os.Open(file)
	if err != nil {
		return errors.Wrap(err, "open station file")
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(output), "."+filepath.Base(output)+".*")
	if err != nil {
		return errors.Wrap(err, "create output")
	}
	defer os.Remove(tmp.Name())

	report, err := catalog.FillCoordinates(ctx, in, tmp, geocoder)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = errors.Wrap(closeErr, "close output")
	}
	if err != nil {
		return errors.Wrap(err, "geocoding failed")
	}
	if err := os.Rename(tmp.Name(), output); err != nil {
		return errors.Wrap(err, "replace output")
	}

	fmt.Fprintf(w, "  Rows:       %d\n", report.Rows)
	fmt.Fprintf(w, "  Located:    %d\n", report.Located)
	fmt.Fprintf(w, "  Filled:     %d\n", report.Filled)
	fmt.Fprintf(w, "  Unresolved: %d\n", len(report.Unresolved))
	for _, u := range report.Unresolved {
		fmt.Fprintf(w, "    line %d: %s\n", u.Line, u.Reason)
	}
	fmt.Fprintf(w, "Wrote %s\n", output)

	return nil
}
