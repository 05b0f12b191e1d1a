package config

import "time"

// Default configuration values.
const (
	defaultServiceName = "viewtrace"
	defaultServicePort = 8127
	defaultVersion     = "0.1.0"
	defaultDataDir     = "data"

	defaultCellSize         = 20.0
	defaultRadius           = 30.0
	defaultMaxIntensity     = 100.0
	defaultDecayFactor      = 0.95
	defaultDecayThreshold   = 0.05
	defaultDecayIntervalS   = 1
	defaultSnapshotDebounce = 100 * time.Millisecond

	defaultThrottleInterval = 50 * time.Millisecond
	defaultSampleRate       = 0.15
	defaultSampleFloor      = 0.01
	defaultMaxEventsPerSec  = 120
	defaultRateWindowS      = 1

	defaultLogCapacity = 10000

	defaultWriteDebounce    = 300 * time.Millisecond
	defaultBatchSize        = 25
	defaultBatchTimeoutS    = 1
	defaultSnapshotInterval = 10 * time.Second
	defaultFlushTimeout     = 2 * time.Second

	defaultMaxDataAgeDays   = 30
	defaultMaxSessions      = 100
	defaultCleanupIntervalM = 1

	defaultMaxEventsPerMinute = 6000
	defaultRateLimitWindowS   = 60

	defaultLoggingLevel = "info"
	defaultLoggingFmt   = "json"

	hoursPerDay = 24
)

// Config holds the application configuration.
type Config struct {
	Service     ServiceConfig     `yaml:"service"`
	Heatmap     HeatmapConfig     `yaml:"heatmap"`
	Conditioner ConditionerConfig `yaml:"conditioner"`
	EventLog    EventLogConfig    `yaml:"event_log"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Retention   RetentionConfig   `yaml:"retention"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Port    int    `env:"VIEWTRACE_PORT"     yaml:"port"`
	Debug   bool   `env:"APP_DEBUG"          yaml:"debug"`
	DataDir string `env:"VIEWTRACE_DATA_DIR" yaml:"data_dir"`
}

// HeatmapConfig holds grid accumulator tunables.
type HeatmapConfig struct {
	CellSize         float64       `yaml:"cell_size"`
	Radius           float64       `yaml:"radius"`
	MaxIntensity     float64       `yaml:"max_intensity"`
	DecayFactor      float64       `yaml:"decay_factor"`
	DecayThreshold   float64       `yaml:"decay_threshold"`
	DecayInterval    time.Duration `yaml:"decay_interval"`
	SnapshotDebounce time.Duration `yaml:"snapshot_debounce"`
}

// ConditionerConfig holds throttle and adaptive sampler tunables.
type ConditionerConfig struct {
	ThrottleInterval   time.Duration `yaml:"throttle_interval"`
	SampleRate         float64       `yaml:"sample_rate"`
	SampleFloor        float64       `yaml:"sample_floor"`
	MaxEventsPerSecond int           `yaml:"max_events_per_second"`
	RateWindow         time.Duration `yaml:"rate_window"`
}

// EventLogConfig holds interaction log tunables.
type EventLogConfig struct {
	Capacity int `yaml:"capacity"`
}

// PersistenceConfig holds write scheduling tunables.
type PersistenceConfig struct {
	WriteDebounce    time.Duration `yaml:"write_debounce"`
	BatchSize        int           `yaml:"batch_size"`
	BatchTimeout     time.Duration `yaml:"batch_timeout"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
	FlushTimeout     time.Duration `yaml:"flush_timeout"`
}

// RetentionConfig holds stored-session retention policy.
type RetentionConfig struct {
	MaxDataAge      time.Duration `yaml:"max_data_age"`
	MaxSessions     int           `yaml:"max_sessions"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// RateLimitConfig holds ingest rate limiting configuration.
type RateLimitConfig struct {
	MaxEventsPerMinute int `yaml:"max_events_per_minute"`
	WindowSeconds      int `yaml:"window_seconds"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"  yaml:"level"`
	Format string `env:"LOG_FORMAT" yaml:"format"`
}

// Load loads configuration from the specified path.
func Load(path string) (*Config, error) {
	return LoadFileWithDefaults[Config](path, SetDefaults)
}

// Default returns a configuration with every value defaulted.
func Default() *Config {
	cfg := &Config{}
	SetDefaults(cfg)
	return cfg
}

// SetDefaults applies default values to the config.
func SetDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setHeatmapDefaults(&cfg.Heatmap)
	setConditionerDefaults(&cfg.Conditioner)
	setEventLogDefaults(&cfg.EventLog)
	setPersistenceDefaults(&cfg.Persistence)
	setRetentionDefaults(&cfg.Retention)
	setRateLimitDefaults(&cfg.RateLimit)
	setLoggingDefaults(&cfg.Logging)
}

// setServiceDefaults applies default values to ServiceConfig.
func setServiceDefaults(svc *ServiceConfig) {
	if svc.Name == "" {
		svc.Name = defaultServiceName
	}
	if svc.Version == "" {
		svc.Version = defaultVersion
	}
	if svc.Port == 0 {
		svc.Port = defaultServicePort
	}
	if svc.DataDir == "" {
		svc.DataDir = defaultDataDir
	}
}

// setHeatmapDefaults applies default values to HeatmapConfig.
func setHeatmapDefaults(h *HeatmapConfig) {
	if h.CellSize == 0 {
		h.CellSize = defaultCellSize
	}
	if h.Radius == 0 {
		h.Radius = defaultRadius
	}
	if h.MaxIntensity == 0 {
		h.MaxIntensity = defaultMaxIntensity
	}
	if h.DecayFactor == 0 {
		h.DecayFactor = defaultDecayFactor
	}
	if h.DecayThreshold == 0 {
		h.DecayThreshold = defaultDecayThreshold
	}
	if h.DecayInterval == 0 {
		h.DecayInterval = defaultDecayIntervalS * time.Second
	}
	if h.SnapshotDebounce == 0 {
		h.SnapshotDebounce = defaultSnapshotDebounce
	}
}

// setConditionerDefaults applies default values to ConditionerConfig.
func setConditionerDefaults(c *ConditionerConfig) {
	if c.ThrottleInterval == 0 {
		c.ThrottleInterval = defaultThrottleInterval
	}
	if c.SampleRate == 0 {
		c.SampleRate = defaultSampleRate
	}
	if c.SampleFloor == 0 {
		c.SampleFloor = defaultSampleFloor
	}
	if c.MaxEventsPerSecond == 0 {
		c.MaxEventsPerSecond = defaultMaxEventsPerSec
	}
	if c.RateWindow == 0 {
		c.RateWindow = defaultRateWindowS * time.Second
	}
}

// setEventLogDefaults applies default values to EventLogConfig.
func setEventLogDefaults(e *EventLogConfig) {
	if e.Capacity == 0 {
		e.Capacity = defaultLogCapacity
	}
}

// setPersistenceDefaults applies default values to PersistenceConfig.
func setPersistenceDefaults(p *PersistenceConfig) {
	if p.WriteDebounce == 0 {
		p.WriteDebounce = defaultWriteDebounce
	}
	if p.BatchSize == 0 {
		p.BatchSize = defaultBatchSize
	}
	if p.BatchTimeout == 0 {
		p.BatchTimeout = defaultBatchTimeoutS * time.Second
	}
	if p.SnapshotInterval == 0 {
		p.SnapshotInterval = defaultSnapshotInterval
	}
	if p.FlushTimeout == 0 {
		p.FlushTimeout = defaultFlushTimeout
	}
}

// setRetentionDefaults applies default values to RetentionConfig.
func setRetentionDefaults(r *RetentionConfig) {
	if r.MaxDataAge == 0 {
		r.MaxDataAge = defaultMaxDataAgeDays * hoursPerDay * time.Hour
	}
	if r.MaxSessions == 0 {
		r.MaxSessions = defaultMaxSessions
	}
	if r.CleanupInterval == 0 {
		r.CleanupInterval = defaultCleanupIntervalM * time.Minute
	}
}

// setRateLimitDefaults applies default values to RateLimitConfig.
func setRateLimitDefaults(rl *RateLimitConfig) {
	if rl.MaxEventsPerMinute == 0 {
		rl.MaxEventsPerMinute = defaultMaxEventsPerMinute
	}
	if rl.WindowSeconds == 0 {
		rl.WindowSeconds = defaultRateLimitWindowS
	}
}

// setLoggingDefaults applies default values to LoggingConfig.
func setLoggingDefaults(log *LoggingConfig) {
	if log.Level == "" {
		log.Level = defaultLoggingLevel
	}
	if log.Format == "" {
		log.Format = defaultLoggingFmt
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := ValidatePort("service.port", c.Service.Port); err != nil {
		return err
	}
	if c.Heatmap.CellSize <= 0 {
		return &ValidationError{Field: "heatmap.cell_size", Message: "must be positive"}
	}
	if c.Heatmap.Radius <= 0 {
		return &ValidationError{Field: "heatmap.radius", Message: "must be positive"}
	}
	if c.Heatmap.DecayFactor <= 0 || c.Heatmap.DecayFactor >= 1 {
		return &ValidationError{Field: "heatmap.decay_factor", Message: "must be in (0, 1)"}
	}
	if err := ValidateFraction("conditioner.sample_rate", c.Conditioner.SampleRate); err != nil {
		return err
	}
	if err := ValidateFraction("conditioner.sample_floor", c.Conditioner.SampleFloor); err != nil {
		return err
	}
	if c.Conditioner.SampleFloor > c.Conditioner.SampleRate {
		return &ValidationError{Field: "conditioner.sample_floor", Message: "must not exceed sample_rate"}
	}
	if err := ValidatePositive("event_log.capacity", c.EventLog.Capacity); err != nil {
		return err
	}
	if err := ValidatePositive("persistence.batch_size", c.Persistence.BatchSize); err != nil {
		return err
	}
	if err := ValidatePositive("retention.max_sessions", c.Retention.MaxSessions); err != nil {
		return err
	}
	if err := ValidateLogLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}
