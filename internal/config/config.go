// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	Browser() BrowserConfig
	Runner() RunnerConfig
	Oracle() OracleConfig
	Run() RunConfig
	SetRunConfig(rc RunConfig)

	// Browser setters
	SetBrowserHeadless(bool)
	SetBrowserDebug(bool)

	// Runner setters
	SetRunnerMaxIterations(int)
	SetRunnerNavigationTimeout(d time.Duration)
	SetRunnerMaxRunDuration(d time.Duration)
	SetRunnerSnapshotBudget(int)

	// Oracle setters
	SetOracleModel(string)
	SetOracleEnabled(bool)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	DatabaseCfg DatabaseConfig `mapstructure:"database" yaml:"database"`
	BrowserCfg  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	RunnerCfg   RunnerConfig   `mapstructure:"runner" yaml:"runner"`
	OracleCfg   OracleConfig   `mapstructure:"oracle" yaml:"oracle"`
	// RunCfg gets its marching orders from CLI flags, not the config file.
	RunCfg RunConfig `mapstructure:"-" yaml:"-"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Database() DatabaseConfig { return c.DatabaseCfg }
func (c *Config) Browser() BrowserConfig   { return c.BrowserCfg }
func (c *Config) Runner() RunnerConfig     { return c.RunnerCfg }
func (c *Config) Oracle() OracleConfig     { return c.OracleCfg }
func (c *Config) Run() RunConfig           { return c.RunCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetRunConfig(rc RunConfig) { c.RunCfg = rc }

func (c *Config) SetBrowserHeadless(b bool) { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserDebug(b bool) { c.BrowserCfg.Debug = b }

func (c *Config) SetRunnerMaxIterations(n int) { c.RunnerCfg.MaxIterations = n }
func (c *Config) SetRunnerNavigationTimeout(d time.Duration) {
	c.RunnerCfg.NavigationTimeout = d
}
func (c *Config) SetRunnerMaxRunDuration(d time.Duration) { c.RunnerCfg.MaxRunDuration = d }
func (c *Config) SetRunnerSnapshotBudget(n int) { c.RunnerCfg.SnapshotBudget = n }

func (c *Config) SetOracleModel(m string) { c.OracleCfg.Model = m }
func (c *Config) SetOracleEnabled(b bool) { c.OracleCfg.Enabled = b }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// DatabaseConfig holds the result-store connection details. Persistence is
// optional; an empty URL disables it.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// BrowserConfig holds settings for the headless browser instance.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	DisableCache    bool     `mapstructure:"disable_cache" yaml:"disable_cache"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Debug           bool     `mapstructure:"debug" yaml:"debug"`
	Args            []string `mapstructure:"args" yaml:"args"`
	ViewportWidth   int      `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight  int      `mapstructure:"viewport_height" yaml:"viewport_height"`
}

// RunnerConfig tunes the test orchestration loop.
type RunnerConfig struct {
	MaxIterations       int           `mapstructure:"max_iterations" yaml:"max_iterations"`
	MaxTotalActions     int           `mapstructure:"max_total_actions" yaml:"max_total_actions"`
	ActionsPerIteration int           `mapstructure:"actions_per_iteration" yaml:"actions_per_iteration"`
	StuckThreshold      int           `mapstructure:"stuck_threshold" yaml:"stuck_threshold"`
	MaxStuckRetries     int           `mapstructure:"max_stuck_retries" yaml:"max_stuck_retries"`
	ReplayCap           int           `mapstructure:"replay_cap" yaml:"replay_cap"`
	RestartCap          int           `mapstructure:"restart_cap" yaml:"restart_cap"`
	SnapshotBudget      int           `mapstructure:"snapshot_budget" yaml:"snapshot_budget"`
	NavigationTimeout   time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	MaxRunDuration      time.Duration `mapstructure:"max_run_duration" yaml:"max_run_duration"`
	InitialWait         time.Duration `mapstructure:"initial_wait" yaml:"initial_wait"`
	SettleWait          time.Duration `mapstructure:"settle_wait" yaml:"settle_wait"`
	BaseActionWait      time.Duration `mapstructure:"base_action_wait" yaml:"base_action_wait"`
	StuckWaitIncrement  time.Duration `mapstructure:"stuck_wait_increment" yaml:"stuck_wait_increment"`
	ExtendedWait        time.Duration `mapstructure:"extended_wait" yaml:"extended_wait"`
	FinalWait           time.Duration `mapstructure:"final_wait" yaml:"final_wait"`
	OpponentPollCount   int           `mapstructure:"opponent_poll_count" yaml:"opponent_poll_count"`
	OpponentPollEvery   time.Duration `mapstructure:"opponent_poll_every" yaml:"opponent_poll_every"`
}

// OracleConfig configures the AI analysis client.
type OracleConfig struct {
	Enabled       bool          `mapstructure:"enabled" yaml:"enabled"`
	Model         string        `mapstructure:"model" yaml:"model"`
	APIKey        string        `mapstructure:"api_key" yaml:"-"`
	APITimeout    time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature   float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens     int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	MaxRetries    int           `mapstructure:"max_retries" yaml:"max_retries"`
	RatePerMinute int           `mapstructure:"rate_per_minute" yaml:"rate_per_minute"`
}

// RunConfig holds settings populated from CLI flags for a specific run.
type RunConfig struct {
	GameURL string
	Output  string
	Format  string
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "playcheck-cli")
	v.SetDefault("logger.log_file", "playcheck.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_cache", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.debug", false)
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 720)

	// -- Runner --
	v.SetDefault("runner.max_iterations", 5)
	v.SetDefault("runner.max_total_actions", 50)
	v.SetDefault("runner.actions_per_iteration", 10)
	v.SetDefault("runner.stuck_threshold", 3)
	v.SetDefault("runner.max_stuck_retries", 2)
	v.SetDefault("runner.replay_cap", 2)
	v.SetDefault("runner.restart_cap", 2)
	v.SetDefault("runner.snapshot_budget", 50)
	v.SetDefault("runner.navigation_timeout", "180s")
	v.SetDefault("runner.max_run_duration", "10m")
	v.SetDefault("runner.initial_wait", "5s")
	v.SetDefault("runner.settle_wait", "3s")
	v.SetDefault("runner.base_action_wait", "3500ms")
	v.SetDefault("runner.stuck_wait_increment", "1s")
	v.SetDefault("runner.extended_wait", "2s")
	v.SetDefault("runner.final_wait", "4s")
	v.SetDefault("runner.opponent_poll_count", 10)
	v.SetDefault("runner.opponent_poll_every", "500ms")

	// -- Oracle --
	v.SetDefault("oracle.enabled", true)
	v.SetDefault("oracle.model", "gemini-2.5-flash")
	v.SetDefault("oracle.api_timeout", "60s")
	v.SetDefault("oracle.temperature", 0.3)
	v.SetDefault("oracle.max_tokens", 2048)
	v.SetDefault("oracle.max_retries", 3)
	v.SetDefault("oracle.rate_per_minute", 30)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	v.BindEnv("oracle.api_key", "GEMINI_API_KEY")
	v.BindEnv("database.url", "PLAYCHECK_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Manually load the key if Unmarshal didn't pick it up
	if cfg.OracleCfg.Enabled && cfg.OracleCfg.APIKey == "" {
		cfg.OracleCfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.RunnerCfg.Validate(); err != nil {
		return fmt.Errorf("runner configuration invalid: %w", err)
	}
	if err := c.OracleCfg.Validate(); err != nil {
		return fmt.Errorf("oracle configuration invalid: %w", err)
	}
	if c.BrowserCfg.ViewportWidth <= 0 || c.BrowserCfg.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport dimensions must be positive")
	}
	return nil
}

// Validate checks the runner loop settings.
func (r *RunnerConfig) Validate() error {
	if r.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be greater than 0")
	}
	if r.MaxTotalActions <= 0 {
		return fmt.Errorf("max_total_actions must be greater than 0")
	}
	if r.StuckThreshold <= 0 {
		return fmt.Errorf("stuck_threshold must be greater than 0")
	}
	if r.SnapshotBudget <= 0 {
		return fmt.Errorf("snapshot_budget must be greater than 0")
	}
	if r.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation_timeout must be a positive duration")
	}
	if r.MaxRunDuration < 0 {
		return fmt.Errorf("max_run_duration must not be negative")
	}
	return nil
}

// Validate checks the oracle client settings.
func (o *OracleConfig) Validate() error {
	if !o.Enabled {
		return nil
	}
	if o.Model == "" {
		return fmt.Errorf("model is required when the oracle is enabled")
	}
	if o.Temperature < 0 || o.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0.0 and 2.0")
	}
	if o.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	return nil
}
