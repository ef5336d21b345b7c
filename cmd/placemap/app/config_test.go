package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/placemap/pkg/constants"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("PLACEMAP_CONFIG", filepath.Join(t.TempDir(), "none.yaml"))
	t.Setenv("CATALOG_DRIVER", "")
	t.Setenv("LINK_RADIUS", "")
	t.Setenv("SEARCH_TTL", "")

	config, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, config.CatalogDriver)
	assert.Equal(t, constants.LinkRadius, config.LinkRadius)
	assert.Equal(t, constants.SearchCacheTTL, config.SearchTTL)
	assert.Equal(t, constants.PlaceCacheTTL, config.PlaceTTL)
	assert.Equal(t, "place-observations", config.KafkaObservationsTopic)
	assert.NotEmpty(t, config.LogFormat)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("PLACEMAP_CONFIG", filepath.Join(t.TempDir(), "none.yaml"))
	t.Setenv("CATALOG_DRIVER", "Memory")
	t.Setenv("DATABASE_URL", "postgres://localhost/places")
	t.Setenv("LINK_RADIUS", "75")
	t.Setenv("DEDUP_RADIUS", "30.5")
	t.Setenv("SEARCH_TTL", "1m")
	t.Setenv("GOOGLE_TIMEOUT", "4s")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,,")
	t.Setenv("MINIO_USE_SSL", "true")

	config, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, config.CatalogDriver)
	assert.Equal(t, "postgres://localhost/places", config.DatabaseURL)
	assert.Equal(t, 75.0, config.LinkRadius)
	assert.Equal(t, 30.5, config.DedupRadius)
	assert.Equal(t, time.Minute, config.SearchTTL)
	assert.Equal(t, 4*time.Second, config.GoogleTimeout)
	assert.Equal(t, []string{"a:9092", "b:9092"}, config.KafkaBrokers)
	assert.True(t, config.MinioUseSSL)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "placemap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`catalog_driver: memory
layer_mapping: layers.yaml
elasticsearch_url: http://es:9200
kafka_events_topic: links
`), 0o600))
	t.Setenv("CATALOG_DRIVER", "")
	t.Setenv("ELASTICSEARCH_URL", "")

	config, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, config.CatalogDriver)
	assert.Equal(t, "layers.yaml", config.LayerMapping)
	assert.Equal(t, "http://es:9200", config.ElasticsearchURL)
	assert.Equal(t, "links", config.KafkaEventsTopic)
	assert.Equal(t, path, config.ConfigFile)

	_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_UpdateFromFlags(t *testing.T) {
	config := &Config{Format: "yaml", LogLevel: "warn"}

	config.UpdateFromFlags(true, false, true, "", "")
	assert.True(t, config.Verbose)
	assert.True(t, config.NoColor)
	assert.Equal(t, "yaml", config.Format, "empty flag keeps the configured format")
	assert.False(t, config.explicitLevel)

	config.UpdateFromFlags(false, false, false, "json", "trace")
	assert.Equal(t, "json", config.Format)
	assert.Equal(t, "trace", config.LogLevel)
	assert.True(t, config.explicitLevel)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a"}, splitList(" a "))
	assert.Equal(t, []string{"a", "b"}, splitList("a,,b,"))
}
