// Package config holds the manifest types that describe the networks,
// contracts, storage sinks, stream sinks, and chat bridges an indexing
// engine instance should run.
package config

import (
	"time"

	"github.com/rindexer-go/rindexer/internal/common"
)

// Manifest is the complete configuration for a running instance.
type Manifest struct {
	Name     string            `yaml:"name" json:"name" toml:"name"`
	Networks []NetworkConfig   `yaml:"networks" json:"networks" toml:"networks"`
	Contracts []ContractConfig `yaml:"contracts" json:"contracts" toml:"contracts"`
	Storage  *StorageConfig    `yaml:"storage" json:"storage" toml:"storage"`
	Streams  []StreamConfig    `yaml:"streams" json:"streams" toml:"streams"`
	Chat     []ChatConfig      `yaml:"chat" json:"chat" toml:"chat"`
	Logging  LoggingConfig     `yaml:"logging" json:"logging" toml:"logging"`
	Metrics  *MetricsConfig    `yaml:"metrics" json:"metrics" toml:"metrics"`
	API      *APIConfig        `yaml:"api" json:"api" toml:"api"`
	HotReload HotReloadConfig  `yaml:"hot_reload" json:"hot_reload" toml:"hot_reload"`
}

// NetworkConfig describes one EVM network and how to reach it.
type NetworkConfig struct {
	Name         string `yaml:"name" json:"name" toml:"name"`
	ChainID      uint64 `yaml:"chain_id" json:"chain_id" toml:"chain_id"`
	RPCURL       string `yaml:"rpc_url" json:"rpc_url" toml:"rpc_url"`
	WSURL        string `yaml:"ws_url" json:"ws_url" toml:"ws_url"`
	Finality     string `yaml:"finality" json:"finality" toml:"finality"`
	FinalizedLag uint64 `yaml:"finalized_lag" json:"finalized_lag" toml:"finalized_lag"`
	MaxRequestsPerSecond float64 `yaml:"max_requests_per_second" json:"max_requests_per_second" toml:"max_requests_per_second"`
	SafeDistance uint64 `yaml:"safe_distance" json:"safe_distance" toml:"safe_distance"`
	Retry        RetryConfig `yaml:"retry" json:"retry" toml:"retry"`
}

// ApplyDefaults fills in unset optional fields for a network.
func (n *NetworkConfig) ApplyDefaults() {
	if n.Finality == "" {
		n.Finality = "finalized"
	}
	if n.MaxRequestsPerSecond == 0 {
		n.MaxRequestsPerSecond = 25
	}
	if n.SafeDistance == 0 {
		if n.ChainID == 1 {
			n.SafeDistance = 12
		} else {
			n.SafeDistance = 64
		}
	}
	n.Retry.ApplyDefaults()
}

// RetryConfig configures the exponential-backoff retry wrapper around
// outgoing JSON-RPC calls.
type RetryConfig struct {
	MaxAttempts       int             `yaml:"max_attempts" json:"max_attempts" toml:"max_attempts"`
	InitialBackoff    common.Duration `yaml:"initial_backoff" json:"initial_backoff" toml:"initial_backoff"`
	MaxBackoff        common.Duration `yaml:"max_backoff" json:"max_backoff" toml:"max_backoff"`
	BackoffMultiplier float64         `yaml:"backoff_multiplier" json:"backoff_multiplier" toml:"backoff_multiplier"`
}

// ApplyDefaults fills in unset optional fields for retry.
func (r *RetryConfig) ApplyDefaults() {
	if r.MaxAttempts == 0 {
		r.MaxAttempts = 5
	}
	if r.InitialBackoff.Duration == 0 {
		r.InitialBackoff = common.NewDuration(500 * time.Millisecond)
	}
	if r.MaxBackoff.Duration == 0 {
		r.MaxBackoff = common.NewDuration(30 * time.Second)
	}
	if r.BackoffMultiplier == 0 {
		r.BackoffMultiplier = 2.0
	}
}

// ContractDetails describes a contract's address (or factory source)
// and the chunking/start-block behaviour for its pipelines.
type ContractDetails struct {
	Network    string      `yaml:"network" json:"network" toml:"network"`
	Address    string      `yaml:"address,omitempty" json:"address,omitempty" toml:"address,omitempty"`
	Factory    *FactoryRef `yaml:"factory,omitempty" json:"factory,omitempty" toml:"factory,omitempty"`
	StartBlock uint64      `yaml:"start_block" json:"start_block" toml:"start_block"`
	// EndBlock bounds a historical backfill; nil means live-tail at
	// head indefinitely.
	EndBlock  *uint64 `yaml:"end_block,omitempty" json:"end_block,omitempty" toml:"end_block,omitempty"`
	ChunkSize uint64  `yaml:"chunk_size" json:"chunk_size" toml:"chunk_size"`
}

// FactoryRef points at another pipeline whose decoded output
// populates this contract's address set dynamically.
type FactoryRef struct {
	Pipeline    string `yaml:"pipeline" json:"pipeline" toml:"pipeline"`
	AddressPath string `yaml:"address_path" json:"address_path" toml:"address_path"`
}

// ContractConfig is a contract plus the events to index from it.
type ContractConfig struct {
	Name    string             `yaml:"name" json:"name" toml:"name"`
	ABIPath string             `yaml:"abi_path,omitempty" json:"abi_path,omitempty" toml:"abi_path,omitempty"`
	Details []ContractDetails  `yaml:"details" json:"details" toml:"details"`
	Events  []EventConfig      `yaml:"events" json:"events" toml:"events"`
	NativeTransfer bool        `yaml:"native_transfer" json:"native_transfer" toml:"native_transfer"`
}

// EventConfig names one event to index and how it should be enriched,
// filtered, and fanned out.
type EventConfig struct {
	// Signature is either the full ABI JSON fragment's name, or the
	// legacy "EventName(type1,type2,...)" shorthand.
	Signature   string         `yaml:"signature" json:"signature" toml:"signature"`
	DependsOn   string         `yaml:"depends_on,omitempty" json:"depends_on,omitempty" toml:"depends_on,omitempty"`
	Filter      string         `yaml:"filter,omitempty" json:"filter,omitempty" toml:"filter,omitempty"`
	Timestamp   TimestampConfig `yaml:"timestamp" json:"timestamp" toml:"timestamp"`
	Sinks       []string       `yaml:"sinks,omitempty" json:"sinks,omitempty" toml:"sinks,omitempty"`
	Streams     []string       `yaml:"streams,omitempty" json:"streams,omitempty" toml:"streams,omitempty"`
	Chat        []string       `yaml:"chat,omitempty" json:"chat,omitempty" toml:"chat,omitempty"`
	// Buffer is the pipeline's queue depth: how many decoded batches
	// can sit ahead of sink delivery before Dispatch blocks and
	// backpressures the fetch loop.
	Buffer      int            `yaml:"buffer,omitempty" json:"buffer,omitempty" toml:"buffer,omitempty"`
	// Concurrency is the number of in-flight batches a single sink may
	// be delivering at once. The fan-out's strictly-increasing
	// (from_block, log_index) delivery guarantee holds regardless of
	// this setting, so it is always clamped to 1 (see
	// internal/fanout.New) — the field exists so the manifest schema
	// accepts it and a future relaxed-ordering mode has somewhere to
	// read from.
	Concurrency int            `yaml:"concurrency,omitempty" json:"concurrency,omitempty" toml:"concurrency,omitempty"`
}

// ApplyDefaults fills in unset optional tuning fields for an event.
func (e *EventConfig) ApplyDefaults() {
	if e.Buffer == 0 {
		e.Buffer = 1
	}
	if e.Concurrency == 0 {
		e.Concurrency = 1
	}
}

// TimestampConfig selects the Timestamp Enricher policy for an event.
type TimestampConfig struct {
	Policy     string `yaml:"policy" json:"policy" toml:"policy"` // off | sampled | closed_form
	SampleRate uint64 `yaml:"sample_rate,omitempty" json:"sample_rate,omitempty" toml:"sample_rate,omitempty"`
}

// ApplyDefaults fills in unset optional fields for a timestamp policy.
func (t *TimestampConfig) ApplyDefaults() {
	if t.Policy == "" {
		t.Policy = "sampled"
	}
	if t.Policy == "sampled" && t.SampleRate == 0 {
		t.SampleRate = 1000
	}
}

// StorageConfig names the storage sink backends available to pipelines.
type StorageConfig struct {
	CSV      *CSVSinkConfig      `yaml:"csv,omitempty" json:"csv,omitempty" toml:"csv,omitempty"`
	SQLite   *SQLiteSinkConfig   `yaml:"sqlite,omitempty" json:"sqlite,omitempty" toml:"sqlite,omitempty"`
	Postgres *PostgresSinkConfig `yaml:"postgres,omitempty" json:"postgres,omitempty" toml:"postgres,omitempty"`
}

// CSVSinkConfig configures the flat-file CSV storage sink.
type CSVSinkConfig struct {
	Name string `yaml:"name" json:"name" toml:"name"`
	Dir  string `yaml:"dir" json:"dir" toml:"dir"`
}

// SQLiteSinkConfig configures the embedded SQLite storage sink.
type SQLiteSinkConfig struct {
	Name string `yaml:"name" json:"name" toml:"name"`
	Path string `yaml:"path" json:"path" toml:"path"`
}

// PostgresSinkConfig configures the Postgres storage sink.
type PostgresSinkConfig struct {
	Name string `yaml:"name" json:"name" toml:"name"`
	DSN  string `yaml:"dsn" json:"dsn" toml:"dsn"`
}

// StreamConfig describes one stream sink a pipeline can publish to.
type StreamConfig struct {
	Name string `yaml:"name" json:"name" toml:"name"`
	// Type selects the stream family: nats | webhook | kafka | redis |
	// sns | rabbitmq | cloudflare_queues. Only nats and webhook are
	// built in this image; the rest are accepted by the manifest
	// schema and fail fast at startup with a clear error.
	Type string `yaml:"type" json:"type" toml:"type"`
	URL  string `yaml:"url" json:"url" toml:"url"`
	// Subject/Topic/Channel is the destination name within the bus.
	Subject string `yaml:"subject,omitempty" json:"subject,omitempty" toml:"subject,omitempty"`
}

// ChatConfig describes one chat bridge a pipeline can notify.
type ChatConfig struct {
	Name     string `yaml:"name" json:"name" toml:"name"`
	Type     string `yaml:"type" json:"type" toml:"type"` // discord | slack | telegram
	WebhookURL string `yaml:"webhook_url" json:"webhook_url" toml:"webhook_url"`
	Template string `yaml:"template" json:"template" toml:"template"`
}

// LoggingConfig configures the zap-backed logger.
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level" toml:"level"`
	Development bool   `yaml:"development" json:"development" toml:"development"`
}

// ApplyDefaults fills in unset optional fields for logging.
func (l *LoggingConfig) ApplyDefaults() {
	if l.Level == "" {
		l.Level = "info"
	}
}

// GetComponentLevel satisfies internal/logger.LoggingConfig. The
// manifest schema has no per-component override field yet, so every
// component logs at the same configured Level.
func (l LoggingConfig) GetComponentLevel(component string) string { return l.Level }

// GetDefaultLevel satisfies internal/logger.LoggingConfig.
func (l LoggingConfig) GetDefaultLevel() string { return l.Level }

// IsDevelopment satisfies internal/logger.LoggingConfig.
func (l LoggingConfig) IsDevelopment() bool { return l.Development }

// MetricsConfig configures the prometheus metrics HTTP server.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled" toml:"enabled"`
	ListenAddress string `yaml:"listen_address" json:"listen_address" toml:"listen_address"`
	Path          string `yaml:"path" json:"path" toml:"path"`
}

// ApplyDefaults fills in unset optional fields for metrics.
func (m *MetricsConfig) ApplyDefaults() {
	if m.ListenAddress == "" {
		m.ListenAddress = ":9090"
	}
	if m.Path == "" {
		m.Path = "/metrics"
	}
}

// APIConfig configures the health/status HTTP server.
type APIConfig struct {
	Enabled       bool             `yaml:"enabled" json:"enabled" toml:"enabled"`
	ListenAddress string           `yaml:"listen_address" json:"listen_address" toml:"listen_address"`
	ReadTimeout   common.Duration  `yaml:"read_timeout" json:"read_timeout" toml:"read_timeout"`
	WriteTimeout  common.Duration  `yaml:"write_timeout" json:"write_timeout" toml:"write_timeout"`
	IdleTimeout   common.Duration  `yaml:"idle_timeout" json:"idle_timeout" toml:"idle_timeout"`
	CORS          APICORSConfig    `yaml:"cors" json:"cors" toml:"cors"`
}

// APICORSConfig configures cross-origin access to the health/status API.
type APICORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled" toml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins" toml:"allowed_origins"`
}

// ApplyDefaults fills in unset optional fields for the API server.
func (a *APIConfig) ApplyDefaults() {
	if a.ListenAddress == "" {
		a.ListenAddress = ":8080"
	}
	if a.ReadTimeout.Duration == 0 {
		a.ReadTimeout = common.NewDuration(5 * time.Second)
	}
	if a.WriteTimeout.Duration == 0 {
		a.WriteTimeout = common.NewDuration(10 * time.Second)
	}
	if a.IdleTimeout.Duration == 0 {
		a.IdleTimeout = common.NewDuration(60 * time.Second)
	}
}

// HotReloadConfig configures the manifest file watcher.
type HotReloadConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`
}
