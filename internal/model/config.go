package model

import (
	"path/filepath"
	"time"
)

// Config is the process-wide configuration, built once in the CLI layer
// and passed by reference to every component. Components never read
// ambient process state themselves.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Data       DataConfig       `yaml:"data"`
	Feed       FeedConfig       `yaml:"feed"`
	Copernicus CopernicusConfig `yaml:"copernicus"`
	Airtable   AirtableConfig   `yaml:"airtable"`
	Rate       RateConfig       `yaml:"rate"`
	Summary    SummaryConfig    `yaml:"summary"`
	Log        LogConfig        `yaml:"log"`
}

// HTTPConfig holds settings shared by all outbound HTTP clients
type HTTPConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	UserAgent  string        `yaml:"user_agent"`
	HTTPProxy  string        `yaml:"http_proxy"`
	HTTPSProxy string        `yaml:"https_proxy"`
}

// DataConfig holds local storage locations
type DataConfig struct {
	Dir string `yaml:"dir"` // base data directory
}

// CacheFile is the path of the cached feed document
func (d DataConfig) CacheFile() string {
	return filepath.Join(d.Dir, "cache", "events.geojson")
}

// SentinelDir is where processed image chips are written
func (d DataConfig) SentinelDir() string {
	return filepath.Join(d.Dir, "sentinel")
}

// LogDir is where per-run log files are written
func (d DataConfig) LogDir() string {
	return filepath.Join(d.Dir, "logs")
}

// FeedConfig describes the upstream GeoJSON feed and the filter applied to it
type FeedConfig struct {
	URL      string `yaml:"url"`
	Category string `yaml:"category"` // matched case-insensitively
	Year     int    `yaml:"year"`
}

// CopernicusConfig holds credentials and tunables for the Dataspace APIs
type CopernicusConfig struct {
	AuthURL          string  `yaml:"auth_url"`
	ProcessURL       string  `yaml:"process_url"`
	ClientID         string  `yaml:"client_id"`
	CollectionID     string  `yaml:"collection_id"`
	Username         string  `yaml:"username"`
	Password         string  `yaml:"password"`
	BufferKM         float64 `yaml:"buffer_km"`
	WindowDays       int     `yaml:"window_days"`
	MaxCloudCoverage int     `yaml:"max_cloud_coverage"`
	OutputWidth      int     `yaml:"output_width"`
	OutputHeight     int     `yaml:"output_height"`
}

// AirtableConfig holds credentials for the tabular store
type AirtableConfig struct {
	APIKey      string `yaml:"api_key"`
	BaseID      string `yaml:"base_id"`
	TableName   string `yaml:"table_name"`
	EndpointURL string `yaml:"endpoint_url"`
}

// RateConfig limits outbound request rates per host
type RateConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// SummaryConfig configures the optional analyst-note generator.
// Disabled unless Enabled is set; generation failures never fail a feature.
type SummaryConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	MaxTokens int    `yaml:"max_tokens"`
}

// LogConfig controls structured logging output
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// DefaultConfig returns the built-in defaults. Credentials are left empty
// and must come from the environment or config file.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:   2 * time.Minute,
			UserAgent: "tileharvest/0.2 (+https://github.com/dkazmin/tileharvest)",
		},
		Data: DataConfig{
			Dir: "data",
		},
		Feed: FeedConfig{
			URL:      "https://eyesonrussia.org/events.geojson",
			Category: "Russian Firing Positions",
			Year:     2023,
		},
		Copernicus: CopernicusConfig{
			AuthURL:          "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token",
			ProcessURL:       "https://sh.dataspace.copernicus.eu/api/v1/process",
			ClientID:         "cdse-public",
			CollectionID:     "byoc-5460de54-082e-473a-b6ea-d5cbe3c17cca",
			BufferKM:         0.3,
			WindowDays:       30,
			MaxCloudCoverage: 30,
			OutputWidth:      512,
			OutputHeight:     512,
		},
		Airtable: AirtableConfig{
			TableName:   "Firing Positions",
			EndpointURL: "https://api.airtable.com",
		},
		Rate: RateConfig{
			RequestsPerSecond: 2,
			Burst:             5,
		},
		Summary: SummaryConfig{
			Enabled:   false,
			Model:     "gpt-4o-mini",
			MaxTokens: 300,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
