package config

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/outreach-engine/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Signals    SignalsConfig    `yaml:"signals" mapstructure:"signals"`
	Allocation AllocationConfig `yaml:"allocation" mapstructure:"allocation"`
	Learner    LearnerConfig    `yaml:"learner" mapstructure:"learner"`
	Enrich     EnrichConfig     `yaml:"enrich" mapstructure:"enrich"`
	Compliance ComplianceConfig `yaml:"compliance" mapstructure:"compliance"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// TierBoundary maps a tier name to the lowest score it claims.
type TierBoundary struct {
	Tier     string `yaml:"tier" mapstructure:"tier"`
	MinScore int    `yaml:"min_score" mapstructure:"min_score"`
}

// ScoringConfig configures the scoring engine.
type ScoringConfig struct {
	// Tiers maps each tier to its minimum score. Together with an
	// implicit floor of 0 for the lowest tier, the boundaries must
	// partition 0-100 with no gaps or overlaps.
	Tiers []TierBoundary `yaml:"tiers" mapstructure:"tiers"`

	// ConfidenceFloor gates weight-set resolution: a candidate below it
	// falls through to the next rung.
	ConfidenceFloor float64 `yaml:"confidence_floor" mapstructure:"confidence_floor"`

	// MinSampleSize gates weight-set resolution by derivation sample.
	MinSampleSize int `yaml:"min_sample_size" mapstructure:"min_sample_size"`

	// TargetCountries are the markets the tenant sells into; country
	// match feeds the fit component.
	TargetCountries []string `yaml:"target_countries" mapstructure:"target_countries"`

	BatchConcurrency int `yaml:"batch_concurrency" mapstructure:"batch_concurrency"`
}

// SignalsConfig configures the enrichment signal cache.
type SignalsConfig struct {
	TTLDays     int   `yaml:"ttl_days" mapstructure:"ttl_days"`
	L1MaxBytes  int64 `yaml:"l1_max_bytes" mapstructure:"l1_max_bytes"`
}

// ChannelSchedule is the fixed fallback send schedule for one channel,
// used when no confident WHEN pattern exists.
type ChannelSchedule struct {
	Days  []int  `yaml:"days" mapstructure:"days"`
	Hour  int    `yaml:"hour" mapstructure:"hour"`
	Tzone string `yaml:"timezone" mapstructure:"timezone"`
}

// AllocationConfig configures the allocation engine.
type AllocationConfig struct {
	// Eligibility maps tier -> permitted channels. Checked before any
	// resource is consulted.
	Eligibility map[string][]string `yaml:"eligibility" mapstructure:"eligibility"`

	// Priority is the default channel attempt order, overridden by a
	// confident HOW pattern.
	Priority []string `yaml:"priority" mapstructure:"priority"`

	// ConfidenceFloor gates pattern-driven timing and sequencing.
	ConfidenceFloor float64 `yaml:"confidence_floor" mapstructure:"confidence_floor"`

	// Schedules holds per-channel default send schedules.
	Schedules map[string]ChannelSchedule `yaml:"schedules" mapstructure:"schedules"`
}

// LearnerConfig configures the pattern learner.
type LearnerConfig struct {
	// MinSamples maps pattern kind -> minimum outcome records required
	// before a detector writes anything.
	MinSamples map[string]int `yaml:"min_samples" mapstructure:"min_samples"`

	// ConfidenceFloor below which a new pattern is written inactive
	// (advisory) instead of promoted.
	ConfidenceFloor float64 `yaml:"confidence_floor" mapstructure:"confidence_floor"`

	// ValidityDays sets valid_until relative to valid_from on promotion.
	ValidityDays int `yaml:"validity_days" mapstructure:"validity_days"`

	// LookbackDays bounds how far back outcome records are read.
	LookbackDays int `yaml:"lookback_days" mapstructure:"lookback_days"`
}

// EnrichConfig configures the domain-authority enrichment provider.
type EnrichConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
}

// ComplianceConfig configures the do-not-contact check service.
type ComplianceConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)

	// Tier boundaries chosen so the documented composite example
	// (quality 20, authority 25, fit 20, timing 0, risk 0 under
	// cap-proportional weights) lands in the top band.
	v.SetDefault("scoring.tiers", []map[string]any{
		{"tier": "hot", "min_score": 75},
		{"tier": "warm", "min_score": 55},
		{"tier": "lukewarm", "min_score": 35},
		{"tier": "cold", "min_score": 20},
		{"tier": "dead", "min_score": 0},
	})
	v.SetDefault("scoring.confidence_floor", 0.7)
	v.SetDefault("scoring.min_sample_size", 50)
	v.SetDefault("scoring.batch_concurrency", 8)
	v.SetDefault("scoring.target_countries", []string{"US", "CA", "GB", "AU"})

	v.SetDefault("signals.ttl_days", 30)
	v.SetDefault("signals.l1_max_bytes", 32<<20)

	v.SetDefault("allocation.eligibility", map[string][]string{
		"hot":      {"email", "linkedin", "sms", "voice"},
		"warm":     {"email", "linkedin", "sms"},
		"lukewarm": {"email", "linkedin"},
		"cold":     {"email"},
		"dead":     {},
	})
	v.SetDefault("allocation.priority", []string{"email", "linkedin", "sms", "voice"})
	v.SetDefault("allocation.confidence_floor", 0.5)
	v.SetDefault("allocation.schedules", map[string]map[string]any{
		"email":    {"days": []int{2, 3, 4}, "hour": 9, "timezone": "America/Chicago"},
		"linkedin": {"days": []int{2, 3}, "hour": 11, "timezone": "America/Chicago"},
		"sms":      {"days": []int{3, 4}, "hour": 14, "timezone": "America/Chicago"},
		"voice":    {"days": []int{2, 4}, "hour": 10, "timezone": "America/Chicago"},
	})

	v.SetDefault("learner.min_samples", map[string]int{
		"who":  50,
		"what": 30,
		"when": 60,
		"how":  40,
	})
	v.SetDefault("learner.confidence_floor", 0.5)
	v.SetDefault("learner.validity_days", 90)
	v.SetDefault("learner.lookback_days", 180)

	v.SetDefault("enrich.base_url", "https://api.domainrank.io/v1")
	v.SetDefault("enrich.rate_per_sec", 5)
	v.SetDefault("enrich.timeout_secs", 10)
	v.SetDefault("enrich.max_retries", 3)

	v.SetDefault("compliance.base_url", "https://api.dncregistry.io/v1")
	v.SetDefault("compliance.timeout_secs", 5)
	v.SetDefault("compliance.max_retries", 2)
}

// Validate checks cross-field invariants, most importantly that the tier
// boundaries partition 0-100 totally and without overlap.
func (c *Config) Validate() error {
	if len(c.Scoring.Tiers) == 0 {
		return eris.New("config: scoring.tiers is empty")
	}

	tiers := make([]TierBoundary, len(c.Scoring.Tiers))
	copy(tiers, c.Scoring.Tiers)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].MinScore < tiers[j].MinScore })

	if tiers[0].MinScore != 0 {
		return eris.Errorf("config: lowest tier %q must start at 0, got %d", tiers[0].Tier, tiers[0].MinScore)
	}
	seen := make(map[string]bool, len(tiers))
	for i, tb := range tiers {
		if tb.MinScore < 0 || tb.MinScore > 100 {
			return eris.Errorf("config: tier %q boundary %d out of range", tb.Tier, tb.MinScore)
		}
		if seen[tb.Tier] {
			return eris.Errorf("config: duplicate tier %q", tb.Tier)
		}
		seen[tb.Tier] = true
		if i > 0 && tb.MinScore == tiers[i-1].MinScore {
			return eris.Errorf("config: tiers %q and %q claim the same boundary %d", tiers[i-1].Tier, tb.Tier, tb.MinScore)
		}
	}

	for tier, channels := range c.Allocation.Eligibility {
		if !seen[tier] {
			return eris.Errorf("config: eligibility references unknown tier %q", tier)
		}
		for _, ch := range channels {
			switch model.Channel(ch) {
			case model.ChannelEmail, model.ChannelLinkedIn, model.ChannelSMS, model.ChannelVoice:
			default:
				return eris.Errorf("config: eligibility for tier %q references unknown channel %q", tier, ch)
			}
		}
	}

	for kind, n := range c.Learner.MinSamples {
		switch model.PatternKind(kind) {
		case model.PatternWho, model.PatternWhat, model.PatternWhen, model.PatternHow:
		default:
			return eris.Errorf("config: learner.min_samples references unknown kind %q", kind)
		}
		if n < 1 {
			return eris.Errorf("config: learner.min_samples[%s] must be >= 1", kind)
		}
	}

	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
