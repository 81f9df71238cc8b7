package catalog

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	domainerrors "fuelstop/internal/domain/errors"
	"fuelstop/internal/util"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob"
	"gocloud.dev/blob/memblob"
)

const sampleCSV = `OPIS Truckstop ID,Truckstop Name,Address,City,State,Rack ID,Retail Price,latitude,longitude
7,WOODSHED OF BIG CABIN,"I-44, EXIT 283 & US-69",Big Cabin,OK,307,3.00733333,36.5381,-95.2217
46,PILOT TRAVEL CENTER #1243,I-40 & Hwy 22,Sayre,OK,314,3.2999,35.2917,-99.6401
46,PILOT TRAVEL CENTER #1243,I-40 & Hwy 22,Sayre,OK,314,3.1999,35.2917,-99.6401
71,KWIK TRIP #796,I-94 & US-53,Eau Claire,WI,2,3.287,,
99,ESSO HIGHWAY,Trans-Canada Hwy,Moncton,NB,11,3.5,46.08,-64.77
100,CHEAP GAS,Main St,Amarillo,TX,3,abc,35.2,-101.8
101,LOVES #244,I-10 Exit 7,Anthony,TX,3,3.19,31.99,-106.59
`

func TestReadStations_SkipsUnusableRows(t *testing.T) {
	dataset, err := ReadStations(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	require.Len(t, dataset.Stations, 3)
	first := dataset.Stations[0]
	assert.Equal(t, "7", first.ID)
	assert.Equal(t, "WOODSHED OF BIG CABIN", first.Name)
	assert.Equal(t, "I-44, EXIT 283 & US-69", first.Address)
	assert.Equal(t, "Big Cabin", first.City)
	assert.Equal(t, "OK", first.State)
	assert.InDelta(t, 3.00733333, first.RetailPrice, 1e-9)
	assert.InDelta(t, 36.5381, first.Lat, 1e-9)
	assert.InDelta(t, -95.2217, first.Lon, 1e-9)

	// The repeated Sayre row keeps the first price.
	assert.InDelta(t, 3.2999, dataset.Stations[1].RetailPrice, 1e-9)
	assert.Equal(t, "101", dataset.Stations[2].ID)

	reasons := map[int]string{}
	for _, s := range dataset.Skipped {
		reasons[s.Line] = s.Reason
	}
	assert.Equal(t, "duplicate address", reasons[4])
	assert.Contains(t, reasons[5], "latitude")
	assert.Contains(t, reasons[6], "not a US state")
	assert.Contains(t, reasons[7], "retail price")
}

func TestReadStations_HeaderAliasesAndGeneratedIDs(t *testing.T) {
	csv := "name,city,state,price,lat,lng\nStop A,Reno,nv,3.9,39.5,-119.8\n"

	dataset, err := ReadStations(strings.NewReader(csv))
	require.NoError(t, err)

	require.Len(t, dataset.Stations, 1)
	assert.Equal(t, "row-2", dataset.Stations[0].ID)
	assert.Equal(t, "NV", dataset.Stations[0].State)
}

func TestReadStations_DuplicateIDsAreDisambiguated(t *testing.T) {
	csv := "id,name,city,state,price,lat,lon\n" +
		"5,A,Reno,NV,3.9,39.5,-119.8\n" +
		"5,B,Elko,NV,3.8,40.8,-115.7\n"

	dataset, err := ReadStations(strings.NewReader(csv))
	require.NoError(t, err)

	require.Len(t, dataset.Stations, 2)
	assert.Equal(t, "5", dataset.Stations[0].ID)
	assert.Equal(t, "5-3", dataset.Stations[1].ID)
}

func TestReadStations_MissingColumn(t *testing.T) {
	_, err := ReadStations(strings.NewReader("name,city,state,price,lat\nA,B,NV,3,40\n"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), `"longitude"`)
}

func TestReadStations_EmptyCatalog(t *testing.T) {
	tests := map[string]string{
		"no content":     "",
		"header only":    "Truckstop Name,City,State,Retail Price,latitude,longitude\n",
		"all rows bad":   "Truckstop Name,City,State,Retail Price,latitude,longitude\nA,B,ZZ,3,40,-100\n",
		"no coordinates": "Truckstop Name,City,State,Retail Price,latitude,longitude\nA,B,TX,3,,\n",
	}

	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			dataset, err := ReadStations(strings.NewReader(input))
			require.Error(t, err)
			assert.Nil(t, dataset)
			assert.True(t, errors.Is(err, domainerrors.ErrEmptyCatalog))
		})
	}
}

func TestParseMetadata(t *testing.T) {
	valid := Metadata{
		Version:       "1",
		Source:        SourceInfo{Name: "OPIS", Filename: "fuel-prices.csv"},
		GeneratedAt:   time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		StationsCount: 8,
	}
	data, err := json.Marshal(valid)
	require.NoError(t, err)

	got, err := ParseMetadata(data)
	require.NoError(t, err)
	assert.Equal(t, "fuel-prices.csv", got.Summary()["filename"])

	invalid := valid
	invalid.StationsCount = 0
	data, err = json.Marshal(invalid)
	require.NoError(t, err)
	_, err = ParseMetadata(data)
	require.Error(t, err)

	_, err = ParseMetadata([]byte("{"))
	require.Error(t, err)
}

func newBucket(t *testing.T, files map[string]string) *blob.Bucket {
	t.Helper()

	bucket := memblob.OpenBucket(nil)
	t.Cleanup(func() { _ = bucket.Close() })
	for key, content := range files {
		require.NoError(t, bucket.WriteAll(context.Background(), key, []byte(content), nil))
	}

	return bucket
}

func TestLoader_LoadFromBucket(t *testing.T) {
	sum, err := util.Checksum(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	metadata, err := json.Marshal(Metadata{
		Version:       "1",
		Source:        SourceInfo{Name: "OPIS", Filename: "prices.csv", SHA256: sum},
		GeneratedAt:   time.Now().Add(-time.Hour),
		StationsCount: 7,
	})
	require.NoError(t, err)

	bucket := newBucket(t, map[string]string{
		"prices.csv":    sampleCSV,
		"metadata.json": string(metadata),
	})

	result, err := NewLoader(nil).Load(context.Background(), bucket, Source{
		BucketURL:      "mem://",
		Object:         "prices.csv",
		MetadataObject: "metadata.json",
	})
	require.NoError(t, err)

	assert.Len(t, result.Stations, 3)
	assert.Len(t, result.Skipped, 4)
	assert.Equal(t, sum, result.Checksum)
	assert.Equal(t, int64(len(sampleCSV)), result.SizeBytes)
	require.NotNil(t, result.Metadata)
	assert.Equal(t, "OPIS", result.Metadata.Source.Name)
}

func TestLoader_MissingMetadataIsOptional(t *testing.T) {
	bucket := newBucket(t, map[string]string{"prices.csv": sampleCSV})

	result, err := NewLoader(nil).Load(context.Background(), bucket, Source{
		Object:         "prices.csv",
		MetadataObject: "metadata.json",
	})
	require.NoError(t, err)
	assert.Nil(t, result.Metadata)
}

func TestLoader_ChecksumMismatch(t *testing.T) {
	metadata, err := json.Marshal(Metadata{
		Version:       "1",
		Source:        SourceInfo{Filename: "prices.csv", SHA256: "deadbeef"},
		GeneratedAt:   time.Now(),
		StationsCount: 7,
	})
	require.NoError(t, err)
	bucket := newBucket(t, map[string]string{"prices.csv": sampleCSV, "metadata.json": string(metadata)})

	_, err = NewLoader(nil).Load(context.Background(), bucket, Source{Object: "prices.csv", MetadataObject: "metadata.json"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match metadata")
}

func TestLoader_MissingStationFile(t *testing.T) {
	bucket := newBucket(t, nil)

	_, err := NewLoader(nil).Load(context.Background(), bucket, Source{Object: "prices.csv"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLoader_LoadURLFromDirectory(t *testing.T) {
	dir := t.TempDir()
	bucket, err := blob.OpenBucket(context.Background(), "file://"+dir)
	require.NoError(t, err)
	require.NoError(t, bucket.WriteAll(context.Background(), "prices.csv", []byte(sampleCSV), nil))
	require.NoError(t, bucket.Close())

	result, err := NewLoader(nil).LoadURL(context.Background(), Source{BucketURL: "file://" + dir, Object: "prices.csv"})
	require.NoError(t, err)
	assert.Len(t, result.Stations, 3)
}
