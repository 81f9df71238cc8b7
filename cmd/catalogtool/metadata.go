package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"fuelstop/internal/infra/catalog"
	"fuelstop/internal/util"

	"github.com/pkg/errors"
)

const metadataVersion = "1.0"

// buildMetadata describes a station CSV. The count covers every data row, kept or skipped.
func buildMetadata(file, sourceName, sourceURL string, now time.Time) (*catalog.Metadata, error) {
	checksum, err := util.CalculateFileChecksum(file)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open station file")
	}
	defer f.Close()

	dataset, err := catalog.ReadStations(f)
	if err != nil {
		return nil, err
	}

	metadata := &catalog.Metadata{
		Version: metadataVersion,
		Source: catalog.SourceInfo{
			Name:     sourceName,
			URL:      sourceURL,
			Filename: filepath.Base(file),
			SHA256:   checksum,
		},
		GeneratedAt:   now.UTC(),
		StationsCount: len(dataset.Stations) + len(dataset.Skipped),
	}
	if err := metadata.Validate(); err != nil {
		return nil, err
	}

	return metadata, nil
}

func runMetadata(_ context.Context, w io.Writer, file, output, sourceName, sourceURL string) error {
	metadata, err := buildMetadata(file, sourceName, sourceURL, time.Now())
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode metadata")
	}

	if err := os.WriteFile(output, data, 0o600); err != nil {
		return errors.Wrap(err, "failed to write metadata")
	}

	fmt.Fprintf(w, "Wrote %s (%d records, sha256 %s)\n", output, metadata.StationsCount, metadata.Source.SHA256)

	return nil
}
