package app

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/placemap/pkg/constants"
)

// Catalog drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds the application configuration loaded from config files,
// environment variables and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// Catalog
	CatalogDriver string
	DatabaseURL   string
	LayerMapping  string

	// Matching and caching
	LinkRadius  float64
	DedupRadius float64
	SearchTTL   time.Duration
	PlaceTTL    time.Duration

	// Providers
	GoogleMapsAPIKey    string
	GoogleTimeout       time.Duration
	ElasticsearchURL    string
	ElasticsearchIndex  string
	AccessibilityURL    string
	AccessibilityAPIKey string

	// Kafka
	KafkaBrokers           []string
	KafkaObservationsTopic string
	KafkaEventsTopic       string
	KafkaGroupID           string

	// Object storage for imports
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string

	// explicitLevel is set when LogLevel came from --log-level
	explicitLevel bool
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (handled by cobra)
// 2. Environment variables
// 3. .env files
// 4. Config file (~/.placemap.yaml)
// 5. Defaults
func LoadConfig() (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	setDefaults(v)

	if configFile := os.Getenv("PLACEMAP_CONFIG"); configFile != "" {
		v.SetConfigFile(configFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".placemap")
	}

	// A missing config file is fine
	_ = v.ReadInConfig()

	return fromViper(v), nil
}

// LoadConfigFile reads path on top of the environment. It is used when
// --config is given.
func LoadConfigFile(path string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	setDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return fromViper(v), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("catalog_driver", DriverPostgres)
	v.SetDefault("link_radius", constants.LinkRadius)
	v.SetDefault("dedup_radius", constants.DedupRadius)
	v.SetDefault("search_ttl", constants.SearchCacheTTL)
	v.SetDefault("place_ttl", constants.PlaceCacheTTL)
	v.SetDefault("google_timeout", constants.DefaultProviderTimeout)
	v.SetDefault("kafka_observations_topic", "place-observations")
	v.SetDefault("kafka_events_topic", "place-links")
	v.SetDefault("kafka_group_id", "placemap")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Verbose: v.GetBool("verbose"),
		Quiet:   v.GetBool("quiet"),
		NoColor: v.GetBool("no-color"),
		Format:  v.GetString("format"),

		ConfigFile: v.ConfigFileUsed(),

		CatalogDriver: strings.ToLower(v.GetString("catalog_driver")),
		DatabaseURL:   v.GetString("database_url"),
		LayerMapping:  v.GetString("layer_mapping"),

		LinkRadius:  v.GetFloat64("link_radius"),
		DedupRadius: v.GetFloat64("dedup_radius"),
		SearchTTL:   v.GetDuration("search_ttl"),
		PlaceTTL:    v.GetDuration("place_ttl"),

		GoogleMapsAPIKey:    v.GetString("google_maps_api_key"),
		GoogleTimeout:       v.GetDuration("google_timeout"),
		ElasticsearchURL:    v.GetString("elasticsearch_url"),
		ElasticsearchIndex:  v.GetString("elasticsearch_index"),
		AccessibilityURL:    v.GetString("accessibility_url"),
		AccessibilityAPIKey: v.GetString("accessibility_api_key"),

		KafkaBrokers:           splitList(v.GetString("kafka_brokers")),
		KafkaObservationsTopic: v.GetString("kafka_observations_topic"),
		KafkaEventsTopic:       v.GetString("kafka_events_topic"),
		KafkaGroupID:           v.GetString("kafka_group_id"),

		MinioEndpoint:  v.GetString("minio_endpoint"),
		MinioAccessKey: v.GetString("minio_access_key"),
		MinioSecretKey: v.GetString("minio_secret_key"),
		MinioUseSSL:    v.GetBool("minio_use_ssl"),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", ""),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "auto"),
		LogOutput: getEnvOrDefault("LOG_OUTPUT", "stderr"),
	}
}

// UpdateFromFlags updates config values from parsed command flags.
// This should be called after cobra parses flags so flag values take
// precedence over config file and env vars.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
		c.explicitLevel = true
	}
}

// loadEnvFiles loads environment variables from .env files.
// godotenv never overrides variables that are already set, so .env.local is
// loaded first to take precedence over .env.
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}

// splitList splits a comma separated value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
