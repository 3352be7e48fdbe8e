package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath       string `long:"db-path" env:"DB_PATH" default:"./data/events.db" description:"SQLite database file"`
	SourcesDir   string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source configuration files"`
	SnapshotPath string `long:"snapshot-path" env:"SNAPSHOT_PATH" default:"./frontend/events.json" description:"Path of the published JSON snapshot"`

	// Pipeline configuration
	SchedulerInterval    int     `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"1800" description:"Pipeline run interval in seconds"`
	SourceConcurrency    int     `long:"source-concurrency" env:"SOURCE_CONCURRENCY" default:"1" description:"Number of sources fetched in parallel"`
	SourceTimeout        int     `long:"source-timeout" env:"SOURCE_TIMEOUT" default:"120" description:"Upper bound for a single source fetch in seconds"`
	DescriptionMaxLength int     `long:"description-max-length" env:"DESCRIPTION_MAX_LENGTH" default:"400" description:"Default description length limit in characters"`
	RetentionDays        int     `long:"retention-days" env:"RETENTION_DAYS" default:"365" description:"Delete events not seen for this many days (0 disables)"`
	RequestsPerSecond    float64 `long:"requests-per-second" env:"REQUESTS_PER_SECOND" default:"0.5" description:"Outbound request rate limit (0 disables)"`
	RunOnce              bool    `long:"once" env:"RUN_ONCE" description:"Run the pipeline once and exit"`

	// Server configuration
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Mozilla/5.0 (compatible; EventComb/1.0)" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, Asia/Kolkata)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return load(nil)
}

func load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if raw.SchedulerInterval <= 0 {
		return nil, fmt.Errorf("scheduler interval must be positive, got %d", raw.SchedulerInterval)
	}
	if raw.SourceConcurrency < 1 {
		return nil, fmt.Errorf("source concurrency must be at least 1, got %d", raw.SourceConcurrency)
	}
	if raw.RetentionDays < 0 {
		return nil, fmt.Errorf("retention days must not be negative, got %d", raw.RetentionDays)
	}

	cfg := &Cfg{
		DBPath:               raw.DBPath,
		SourcesDir:           raw.SourcesDir,
		SnapshotPath:         raw.SnapshotPath,
		SchedulerInterval:    raw.SchedulerInterval,
		SourceConcurrency:    raw.SourceConcurrency,
		SourceTimeout:        raw.SourceTimeout,
		DescriptionMaxLength: raw.DescriptionMaxLength,
		RetentionDays:        raw.RetentionDays,
		RequestsPerSecond:    raw.RequestsPerSecond,
		RunOnce:              raw.RunOnce,
		Port:                 raw.Port,
		APIAccessKey:         raw.APIAccessKey,
		UserAgent:            raw.UserAgent,
		Timezone:             raw.Timezone,
		Debug:                raw.Debug,
		Version:              GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
