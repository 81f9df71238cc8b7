package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"fuelstop/config"
	"fuelstop/internal/infra/geocoding"

	"github.com/pkg/errors"
)

// Supported subcommands:
// - validate: Load a station CSV the way the server does and report what survives
// - metadata: Write the provenance sidecar for a station CSV
// - geocode: Fill missing station coordinates through Nominatim

func main() {
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	metadataCmd := flag.NewFlagSet("metadata", flag.ExitOnError)
	geocodeCmd := flag.NewFlagSet("geocode", flag.ExitOnError)

	// validate parameters
	validateFile := validateCmd.String("file", "./data/fuel-prices.csv", "Station CSV to validate")
	validateMetadata := validateCmd.String("metadata", "", "Optional metadata sidecar checked against the CSV")
	validateVerbose := validateCmd.Bool("verbose", false, "List every skipped row")

	// metadata parameters
	metadataFile := metadataCmd.String("file", "./data/fuel-prices.csv", "Station CSV to describe")
	metadataOutput := metadataCmd.String("output", "", "Output path (default: <file>.metadata.json)")
	metadataSource := metadataCmd.String("source", "OPIS", "Name of the price feed")
	metadataURL := metadataCmd.String("url", "", "Where the export was downloaded from")

	// geocode parameters
	geocodeFile := geocodeCmd.String("file", "./data/fuel-prices.csv", "Station CSV with rows to geocode")
	geocodeOutput := geocodeCmd.String("output", "", "Output path (default: overwrite -file)")
	geocodeURL := geocodeCmd.String("url", "https://nominatim.openstreetmap.org", "Nominatim base URL")
	geocodeUserAgent := geocodeCmd.String("user-agent", "fuelplanner-catalogtool/1.0", "User-Agent sent to Nominatim")
	geocodeInterval := geocodeCmd.Duration("interval", time.Second, "Minimum delay between requests")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	flags := catalogFlags{
		Validate: validateFlags{
			cmd:      validateCmd,
			file:     validateFile,
			metadata: validateMetadata,
			verbose:  validateVerbose,
		},
		Metadata: metadataFlags{
			cmd:    metadataCmd,
			file:   metadataFile,
			output: metadataOutput,
			source: metadataSource,
			url:    metadataURL,
		},
		Geocode: geocodeFlags{
			cmd:       geocodeCmd,
			file:      geocodeFile,
			output:    geocodeOutput,
			url:       geocodeURL,
			userAgent: geocodeUserAgent,
			interval:  geocodeInterval,
		},
	}

	if err := runSubcommand(ctx, &flags); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type catalogFlags struct {
	Validate validateFlags
	Metadata metadataFlags
	Geocode  geocodeFlags
}

type validateFlags struct {
	cmd      *flag.FlagSet
	file     *string
	metadata *string
	verbose  *bool
}

type metadataFlags struct {
	cmd    *flag.FlagSet
	file   *string
	output *string
	source *string
	url    *string
}

type geocodeFlags struct {
	cmd       *flag.FlagSet
	file      *string
	output    *string
	url       *string
	userAgent *string
	interval  *time.Duration
}

func runSubcommand(ctx context.Context, flags *catalogFlags) error {
	switch os.Args[1] {
	case "validate":
		return handleValidate(ctx, flags)
	case "metadata":
		return handleMetadata(ctx, flags)
	case "geocode":
		return handleGeocode(ctx, flags)
	default:
		printUsage()

		return errors.New("unknown subcommand")
	}
}

func handleValidate(ctx context.Context, flags *catalogFlags) error {
	if err := flags.Validate.cmd.Parse(os.Args[2:]); err != nil {
		return errors.Wrap(err, "failed to parse validate flags")
	}

	return runValidate(ctx, os.Stdout, *flags.Validate.file, *flags.Validate.metadata, *flags.Validate.verbose)
}

func handleMetadata(ctx context.Context, flags *catalogFlags) error {
	if err := flags.Metadata.cmd.Parse(os.Args[2:]); err != nil {
		return errors.Wrap(err, "failed to parse metadata flags")
	}

	output := *flags.Metadata.output
	if output == "" {
		output = *flags.Metadata.file + ".metadata.json"
	}

	return runMetadata(ctx, os.Stdout, *flags.Metadata.file, output, *flags.Metadata.source, *flags.Metadata.url)
}

func handleGeocode(ctx context.Context, flags *catalogFlags) error {
	if err := flags.Geocode.cmd.Parse(os.Args[2:]); err != nil {
		return errors.Wrap(err, "failed to parse geocode flags")
	}

	output := *flags.Geocode.output
	if output == "" {
		output = *flags.Geocode.file
	}

	geocoder := geocoding.NewNominatim(&config.GeocoderConfig{
		BaseURL:      *flags.Geocode.url,
		UserAgent:    *flags.Geocode.userAgent,
		CountryCodes: "us",
		MinInterval:  *flags.Geocode.interval,
	}, nil)

	return runGeocode(ctx, os.Stdout, geocoder, *flags.Geocode.file, output)
}

func printUsage() {
	fmt.Println("Usage: catalogtool <command> [options]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  validate    Load a station CSV and report kept and skipped rows")
	fmt.Println("  metadata    Write the metadata sidecar for a station CSV")
	fmt.Println("  geocode     Fill missing latitude/longitude through Nominatim")
	fmt.Println("")
	fmt.Println("Use 'catalogtool <command> -h' for more information about a command.")
}
