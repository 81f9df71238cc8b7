package catalog

import (
	"bytes"
	"context"
	"log/slog"

	"fuelstop/internal/util"

	"github.com/pkg/errors"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// buckets
	_ "gocloud.dev/blob/memblob"  // mem:// buckets
	"gocloud.dev/gcerrors"
)

// Source locates a station file inside a gocloud.dev bucket.
type Source struct {
	BucketURL      string
	Object         string
	MetadataObject string
}

// String renders the source for logs.
func (s Source) String() string {
	return s.BucketURL + "/" + s.Object
}

// Result is a loaded station file with its provenance.
type Result struct {
	Dataset
	Metadata  *Metadata
	Checksum  string
	SizeBytes int64
}

// Loader reads station files from blob storage.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a loader. A nil logger falls back to slog.Default().
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}

	return &Loader{logger: logger}
}

// LoadURL opens the bucket named by src and loads the station file from it.
func (l *Loader) LoadURL(ctx context.Context, src Source) (*Result, error) {
	bucket, err := blob.OpenBucket(ctx, src.BucketURL)
	if err != nil {
		return nil, errors.Wrapf(err, "open bucket %s", src.BucketURL)
	}
	defer bucket.Close()

	return l.Load(ctx, bucket, src)
}

// Load reads src.Object from bucket and, when configured and present, the metadata
// sidecar. A sidecar carrying a checksum must match the station file.
func (l *Loader) Load(ctx context.Context, bucket *blob.Bucket, src Source) (*Result, error) {
	data, err := bucket.ReadAll(ctx, src.Object)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, errors.Wrapf(err, "station file %s not found", src.Object)
		}

		return nil, errors.Wrapf(err, "read station file %s", src.Object)
	}

	checksum, err := util.Checksum(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	metadata, err := l.loadMetadata(ctx, bucket, src.MetadataObject)
	if err != nil {
		return nil, err
	}
	if metadata != nil && metadata.Source.SHA256 != "" && metadata.Source.SHA256 != checksum {
		return nil, errors.Errorf("station file checksum %s does not match metadata %s", checksum, metadata.Source.SHA256)
	}

	dataset, err := ReadStations(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	for _, skipped := range dataset.Skipped {
		l.logger.Debug("Skipped station record",
			slog.Int("line", skipped.Line),
			slog.String("reason", skipped.Reason),
		)
	}

	if metadata != nil && metadata.StationsCount != len(dataset.Stations)+len(dataset.Skipped) {
		l.logger.Warn("Station count differs from metadata",
			slog.Int("expected", metadata.StationsCount),
			slog.Int("records", len(dataset.Stations)+len(dataset.Skipped)),
		)
	}

	l.logger.Info("Station catalog loaded",
		slog.String("source", src.String()),
		slog.Int("stations", len(dataset.Stations)),
		slog.Int("skipped", len(dataset.Skipped)),
		slog.String("size", util.FormatBytes(int64(len(data)))),
	)

	return &Result{
		Dataset:   *dataset,
		Metadata:  metadata,
		Checksum:  checksum,
		SizeBytes: int64(len(data)),
	}, nil
}

func (l *Loader) loadMetadata(ctx context.Context, bucket *blob.Bucket, object string) (*Metadata, error) {
	if object == "" {
		return nil, nil
	}

	data, err := bucket.ReadAll(ctx, object)
	if gcerrors.Code(err) == gcerrors.NotFound {
		l.logger.Info("No catalog metadata found", slog.String("object", object))

		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read catalog metadata %s", object)
	}

	metadata, err := ParseMetadata(data)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Catalog metadata",
		slog.Any("summary", metadata.Summary()),
		slog.String("age", util.FormatDuration(metadata.Age())),
	)

	return metadata, nil
}
