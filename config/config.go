package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const (
	defaultPath               = "."
	defaultMaxRequestBodySize = "100KB"
)

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP struct {
		Port               int    `json:"port" yaml:"port"`
		MaxRequestBodySize string `json:"maxRequestBodySize" yaml:"maxRequestBodySize"`
		Timeouts           struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
	} `json:"http" yaml:"http"`

	// Planner holds the default knobs of the fuel stop pipeline
	Planner *PlannerConfig `json:"planner" yaml:"planner"`

	// Catalog locates the station dataset
	Catalog *CatalogConfig `json:"catalog" yaml:"catalog"`

	// RouteProvider configures the OpenRouteService directions client
	RouteProvider *RouteProviderConfig `json:"routeProvider" yaml:"routeProvider"`

	// Geocoder configures free-text address resolution
	Geocoder *GeocoderConfig `json:"geocoder" yaml:"geocoder"`

	// MapRender configures where rendered trip maps are written
	MapRender *MapRenderConfig `json:"mapRender" yaml:"mapRender"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// PlannerConfig defines the defaults applied to every route plan request
type PlannerConfig struct {
	// Maximum perpendicular distance in kilometers between a station and the route
	MaxDeviationKm float64 `json:"maxDeviationKm" yaml:"maxDeviationKm"`

	// Distance in miles the truck covers on a full tank
	TankRangeMiles float64 `json:"tankRangeMiles" yaml:"tankRangeMiles"`

	// Fuel efficiency in miles per gallon
	MPG float64 `json:"mpg" yaml:"mpg"`

	// Score weight of the normalized price
	PriceWeight float64 `json:"priceWeight" yaml:"priceWeight"`

	// Score weight of the normalized deviation
	DeviationWeight float64 `json:"deviationWeight" yaml:"deviationWeight"`

	// Douglas-Peucker tolerance in meters applied to provider polylines
	SimplifyToleranceMeters float64 `json:"simplifyToleranceMeters" yaml:"simplifyToleranceMeters"`

	// Tank level at the origin as a fraction of capacity (0, 1]
	InitialFuelFraction float64 `json:"initialFuelFraction" yaml:"initialFuelFraction"`

	// Stations evaluated per projection batch
	ProjectionBatchSize int `json:"projectionBatchSize" yaml:"projectionBatchSize"`

	// Number of concurrent projection workers
	ProjectionWorkers int `json:"projectionWorkers" yaml:"projectionWorkers"`
}

// CatalogConfig defines where the station CSV is read from
type CatalogConfig struct {
	// gocloud.dev bucket URL, e.g. file:///var/data/fuel or mem://
	BucketURL string `json:"bucketUrl" yaml:"bucketUrl"`

	// Object key of the station CSV inside the bucket
	Object string `json:"object" yaml:"object"`

	// Optional provenance sidecar next to the CSV
	MetadataObject string `json:"metadataObject" yaml:"metadataObject"`
}

// RouteProviderConfig defines the OpenRouteService client
type RouteProviderConfig struct {
	BaseURL string        `json:"baseUrl" yaml:"baseUrl"`
	APIKey  string        `json:"apiKey" yaml:"apiKey"`
	Profile string        `json:"profile" yaml:"profile"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Snap radius in meters passed to the provider for each waypoint
	SnapRadiusMeters int `json:"snapRadiusMeters" yaml:"snapRadiusMeters"`
}

// GeocoderConfig defines the Nominatim client
type GeocoderConfig struct {
	BaseURL      string        `json:"baseUrl" yaml:"baseUrl"`
	UserAgent    string        `json:"userAgent" yaml:"userAgent"`
	CountryCodes string        `json:"countryCodes" yaml:"countryCodes"`
	MinInterval  time.Duration `json:"minInterval" yaml:"minInterval"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout"`

	// Bounded LRU cache of resolved addresses
	CacheSize int           `json:"cacheSize" yaml:"cacheSize"`
	CacheTTL  time.Duration `json:"cacheTTL" yaml:"cacheTTL"`
}

// MapRenderConfig defines the trip map artifact sink
type MapRenderConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// gocloud.dev bucket URL receiving GeoJSON artifacts
	BucketURL string `json:"bucketUrl" yaml:"bucketUrl"`

	// Prefix prepended to object keys when building the public URL
	PublicBaseURL string `json:"publicBaseUrl" yaml:"publicBaseUrl"`
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	// Build list of paths to search for config file
	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			abs := filepath.Join(pwd, path)
			searchPaths = append(searchPaths, abs)
		}
	}

	var configFile string
	var found bool
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
			found = true

			break
		}
	}

	if !found {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	// Example: PLANNER_TANKRANGEMILES -> planner.tankRangeMiles
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			key := canonicalizeEnvKey(k, existingConfigMap)

			return key, v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				// Case-insensitive matching for env var overrides
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func New() (*Config, error) {
	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	return cfg, nil
}

// applyDefaults fills sections left out of the YAML so consumers never see nil pointers.
func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.HTTP.MaxRequestBodySize) == "" {
		c.HTTP.MaxRequestBodySize = defaultMaxRequestBodySize
	}
	if c.Planner == nil {
		c.Planner = &PlannerConfig{}
	}
	if c.Catalog == nil {
		c.Catalog = &CatalogConfig{}
	}
	if c.RouteProvider == nil {
		c.RouteProvider = &RouteProviderConfig{}
	}
	if c.Geocoder == nil {
		c.Geocoder = &GeocoderConfig{}
	}
	if c.MapRender == nil {
		c.MapRender = &MapRenderConfig{}
	}
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}
