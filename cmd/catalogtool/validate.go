package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"fuelstop/internal/infra/catalog"
	"fuelstop/internal/infra/routing/spatial"
	"fuelstop/internal/util"

	"github.com/pkg/errors"
)

// localSource turns a CSV path, and an optional sidecar next to it, into a file:// bucket source.
func localSource(file, metadata string) (catalog.Source, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return catalog.Source{}, errors.Wrap(err, "resolve station file path")
	}
	dir := filepath.Dir(abs)

	src := catalog.Source{
		BucketURL: "file://" + filepath.ToSlash(dir),
		Object:    filepath.Base(abs),
	}

	if metadata != "" {
		absMeta, err := filepath.Abs(metadata)
		if err != nil {
			return catalog.Source{}, errors.Wrap(err, "resolve metadata path")
		}
		rel, err := filepath.Rel(dir, absMeta)
		if err != nil || !filepath.IsLocal(rel) {
			return catalog.Source{}, errors.Errorf("metadata %s must live next to %s", metadata, file)
		}
		src.MetadataObject = filepath.ToSlash(rel)
	}

	return src, nil
}

func runValidate(ctx context.Context, w io.Writer, file, metadata string, verbose bool) error {
	fmt.Fprintf(w, "Validating station catalog: %s\n", file)

	src, err := localSource(file, metadata)
	if err != nil {
		return err
	}

	loader := catalog.NewLoader(slog.New(slog.NewTextHandler(io.Discard, nil)))
	result, err := loader.LoadURL(ctx, src)
	if err != nil {
		return errors.Wrap(err, "validation failed")
	}

	index := spatial.Build(result.Stations)

	fmt.Fprintf(w, "  Size:      %s\n", util.FormatBytes(result.SizeBytes))
	fmt.Fprintf(w, "  SHA256:    %s\n", result.Checksum)
	fmt.Fprintf(w, "  Stations:  %d\n", len(result.Stations))
	fmt.Fprintf(w, "  Skipped:   %d\n", len(result.Skipped))
	fmt.Fprintf(w, "  Index:     %d stations, depth %d\n", index.Size(), index.Depth())

	if result.Metadata != nil {
		fmt.Fprintf(w, "  Metadata:  %s %s, generated %s ago\n",
			result.Metadata.Source.Name, result.Metadata.Version, util.FormatDuration(result.Metadata.Age()))
	}

	if verbose {
		for _, skipped := range result.Skipped {
			fmt.Fprintf(w, "    line %d: %s\n", skipped.Line, skipped.Reason)
		}
	}

	fmt.Fprintln(w, "Validation passed")

	return nil
}
