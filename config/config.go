package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	IncidentGraph IncidentGraphConfig `yaml:"incidentgraph"`
}

// IncidentGraphConfig is the project configuration.
type IncidentGraphConfig struct {
	Engine     EngineConfig     `yaml:"engine"`
	Input      InputConfig      `yaml:"input"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Output     OutputConfig     `yaml:"output"`
	Timeline   TimelineConfig   `yaml:"timeline"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// EngineConfig controls reconstruction behavior. Boolean toggles are
// pointers so an omitted key keeps its enabled default.
type EngineConfig struct {
	CorrelationTimeWindowMs     int64    `yaml:"correlation_time_window_ms"`
	KillChainMappingVersion     string   `yaml:"kill_chain_mapping_version"`
	MaxTimelineEvents           int      `yaml:"max_timeline_events"`
	MaxGraphNodes               int      `yaml:"max_graph_nodes"`
	ConfidenceThreshold         float64  `yaml:"confidence_threshold"`
	ThreatIntelSources          []string `yaml:"threat_intel_sources"`
	EnableAutomaticCorrelation  *bool    `yaml:"enable_automatic_correlation"`
	EnableThreatIntelEnrichment *bool    `yaml:"enable_threat_intel_enrichment"`
}

// InputConfig controls event ingestion.
type InputConfig struct {
	Redis  RedisConfig     `yaml:"redis"`
	File   FileInputConfig `yaml:"file"`
	Assets FileInputConfig `yaml:"assets"`
}

// RedisConfig controls Redis input.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Key          string        `yaml:"key"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
}

// FileInputConfig config for local JSONL input.
type FileInputConfig struct {
	Path string `yaml:"path"`
}

// EnrichmentConfig controls Sigma-based event enrichment.
type EnrichmentConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// OutputConfig controls incident report delivery.
type OutputConfig struct {
	Mode string           `yaml:"mode"`
	File FileOutputConfig `yaml:"file"`
	HTTP HTTPOutputConfig `yaml:"http"`
}

// TimelineConfig controls optional timeline row export.
type TimelineConfig struct {
	Enabled    bool                   `yaml:"enabled"`
	ClickHouse ClickHouseOutputConfig `yaml:"clickhouse"`
}

// ClickHouseOutputConfig config for ClickHouse HTTP JSONEachRow writes.
type ClickHouseOutputConfig struct {
	URL      string            `yaml:"url"`
	Database string            `yaml:"database"`
	Table    string            `yaml:"table"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	Timeout  time.Duration     `yaml:"timeout"`
	Headers  map[string]string `yaml:"headers"`
}

// FileOutputConfig config for local JSON output.
type FileOutputConfig struct {
	Path string `yaml:"path"`
}

// HTTPOutputConfig config for remote output.
type HTTPOutputConfig struct {
	URL     string            `yaml:"url"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
