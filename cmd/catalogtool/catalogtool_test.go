package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fuelstop/config"
	"fuelstop/internal/infra/geocoding"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stationsCSV = `OPIS Truckstop ID,Truckstop Name,Address,City,State,Rack ID,Retail Price,latitude,longitude
7,WOODSHED OF BIG CABIN,"I-44, EXIT 283 & US-69",Big Cabin,OK,307,3.00733333,36.5381,-95.2217
46,PILOT TRAVEL CENTER #1243,I-40 & Hwy 22,Sayre,OK,314,3.2999,35.2917,-99.6401
71,KWIK TRIP #796,I-94 & US-53,Eau Claire,WI,2,3.287,,
`

func writeStations(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fuel-prices.csv")
	require.NoError(t, os.WriteFile(path, []byte(stationsCSV), 0o600))

	return path
}

func TestBuildMetadata(t *testing.T) {
	file := writeStations(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	metadata, err := buildMetadata(file, "OPIS", "", now)
	require.NoError(t, err)

	assert.Equal(t, metadataVersion, metadata.Version)
	assert.Equal(t, "fuel-prices.csv", metadata.Source.Filename)
	assert.Len(t, metadata.Source.SHA256, 64)
	assert.Equal(t, 3, metadata.StationsCount)
	assert.Equal(t, now, metadata.GeneratedAt)
}

func TestRunMetadataThenValidate(t *testing.T) {
	ctx := context.Background()
	file := writeStations(t)
	sidecar := file + ".metadata.json"

	var out bytes.Buffer
	require.NoError(t, runMetadata(ctx, &out, file, sidecar, "OPIS", ""))
	assert.Contains(t, out.String(), "3 records")

	out.Reset()
	require.NoError(t, runValidate(ctx, &out, file, sidecar, true))

	report := out.String()
	assert.Contains(t, report, "Stations:  2")
	assert.Contains(t, report, "Skipped:   1")
	assert.Contains(t, report, "Metadata:  OPIS 1.0")
	assert.Contains(t, report, "line 4:")
	assert.Contains(t, report, "Validation passed")
}

func TestRunValidate_ChecksumMismatch(t *testing.T) {
	ctx := context.Background()
	file := writeStations(t)
	sidecar := file + ".metadata.json"
	require.NoError(t, runMetadata(ctx, &bytes.Buffer{}, file, sidecar, "OPIS", ""))

	require.NoError(t, os.WriteFile(file, []byte(stationsCSV+"101,LOVES #244,I-10 Exit 7,Anthony,TX,3,3.19,31.99,-106.59\n"), 0o600))

	err := runValidate(ctx, &bytes.Buffer{}, file, sidecar, false)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match metadata")
}

func TestLocalSource(t *testing.T) {
	dir := t.TempDir()

	src, err := localSource(filepath.Join(dir, "stations.csv"), filepath.Join(dir, "meta", "stations.json"))
	require.NoError(t, err)
	assert.Equal(t, "file://"+filepath.ToSlash(dir), src.BucketURL)
	assert.Equal(t, "stations.csv", src.Object)
	assert.Equal(t, "meta/stations.json", src.MetadataObject)

	_, err = localSource(filepath.Join(dir, "stations.csv"), filepath.Join(filepath.Dir(dir), "other.json"))
	assert.Error(t, err)
}

func TestRunValidate_MissingFile(t *testing.T) {
	err := runValidate(context.Background(), &bytes.Buffer{}, filepath.Join(t.TempDir(), "missing.csv"), "", false)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRunGeocodeThenValidate(t *testing.T) {
	var (
		mu      sync.Mutex
		queries []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		mu.Lock()
		queries = append(queries, q)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if q == "KWIK TRIP #796, Eau Claire, WI, USA" {
			_, _ = w.Write([]byte(`[{"lat":"44.8113","lon":"-91.4985","display_name":"Kwik Trip"}]`))

			return
		}
		_ = json.NewEncoder(w).Encode([]any{})
	}))
	t.Cleanup(server.Close)

	geocoder := geocoding.NewNominatim(&config.GeocoderConfig{
		BaseURL:     server.URL,
		MinInterval: time.Millisecond,
	}, nil)

	ctx := context.Background()
	file := writeStations(t)
	output := filepath.Join(filepath.Dir(file), "geocoded.csv")

	var out bytes.Buffer
	require.NoError(t, runGeocode(ctx, &out, geocoder, file, output))

	report := out.String()
	assert.Contains(t, report, "Located:    2")
	assert.Contains(t, report, "Filled:     1")
	assert.Contains(t, report, "Unresolved: 0")
	mu.Lock()
	assert.Equal(t, []string{"I-94 & US-53, Eau Claire, WI, USA", "KWIK TRIP #796, Eau Claire, WI, USA"}, queries)
	mu.Unlock()

	out.Reset()
	require.NoError(t, runValidate(ctx, &out, output, "", false))
	assert.Contains(t, out.String(), "Stations:  3")

	// The input is untouched when writing elsewhere.
	original, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, stationsCSV, string(original))
}

func TestRunGeocode_MissingFile(t *testing.T) {
	geocoder := geocoding.NewNominatim(&config.GeocoderConfig{BaseURL: "http://127.0.0.1:0"}, nil)
	dir := t.TempDir()

	err := runGeocode(context.Background(), &bytes.Buffer{}, geocoder, filepath.Join(dir, "absent.csv"), filepath.Join(dir, "out.csv"))

	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "out.csv"))
}
