package domain

import "time"

// StrategyConfig holds the strategy parameters for one screening run.
// Loaded from a YAML strategy file; every threshold, weight and penalty is
// configuration, not a constant baked into the engines.
type StrategyConfig struct {
	Premarket PremarketConfig `json:"premarket" yaml:"premarket" mapstructure:"premarket"`
	News      NewsConfig      `json:"news" yaml:"news" mapstructure:"news"`
}

// PremarketConfig holds filter thresholds, scoring weights and selection
// parameters for the premarket screen.
type PremarketConfig struct {
	PriceMin                  float64  `json:"price_min" yaml:"price_min" mapstructure:"price_min"`
	PriceMax                  float64  `json:"price_max" yaml:"price_max" mapstructure:"price_max"`
	AvgVolMin                 int64    `json:"avg_vol_min" yaml:"avg_vol_min" mapstructure:"avg_vol_min"`
	RelVolMin                 float64  `json:"rel_vol_min" yaml:"rel_vol_min" mapstructure:"rel_vol_min"`
	FloatMin                  int64    `json:"float_min" yaml:"float_min" mapstructure:"float_min"`
	EarningsExcludeWindowDays int      `json:"earnings_exclude_window_days" yaml:"earnings_exclude_window_days" mapstructure:"earnings_exclude_window_days"`
	MaxPerSector              float64  `json:"max_per_sector" yaml:"max_per_sector" mapstructure:"max_per_sector"`
	TopN                      int      `json:"top_n" yaml:"top_n" mapstructure:"top_n"`
	ExcludeExchanges          []string `json:"exclude_exchanges" yaml:"exclude_exchanges" mapstructure:"exclude_exchanges"`
	ExcludeCountries          []string `json:"exclude_countries" yaml:"exclude_countries" mapstructure:"exclude_countries"`

	Weights   Weights   `json:"weights" yaml:"weights" mapstructure:"weights"`
	Penalties Penalties `json:"penalties" yaml:"penalties" mapstructure:"penalties"`
	Caps      Caps      `json:"caps" yaml:"caps" mapstructure:"caps"`

	// Tiers maps score thresholds to tier labels. Defaults apply when empty.
	Tiers TierBoundaries `json:"tiers" yaml:"tiers" mapstructure:"tiers"`

	// Selection controls the diversification policy.
	Selection SelectionPolicy `json:"selection" yaml:"selection" mapstructure:"selection"`

	// CustomRules are optional CEL screen expressions evaluated per row
	// in addition to the built-in hard filters.
	CustomRules []CustomRule `json:"custom_rules,omitempty" yaml:"custom_rules,omitempty" mapstructure:"custom_rules"`
}

// EarningsWindowContains reports whether date falls within the earnings
// exclusion window around evalDate, comparing calendar days only. The
// filter stage and the earnings_near penalty share this so the two can
// never disagree on a boundary date.
func (c PremarketConfig) EarningsWindowContains(date, evalDate time.Time) bool {
	if c.EarningsExcludeWindowDays <= 0 {
		return false
	}
	a := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(evalDate.Year(), evalDate.Month(), evalDate.Day(), 0, 0, 0, 0, time.UTC)
	d := int(a.Sub(b).Hours() / 24)
	if d < 0 {
		d = -d
	}
	return d <= c.EarningsExcludeWindowDays
}

// Weights holds the per-feature score weights. A zero weight disables the
// feature without special-casing in the engine.
type Weights struct {
	RelVol      float64 `json:"relvol" yaml:"relvol" mapstructure:"relvol"`
	Gap         float64 `json:"gap" yaml:"gap" mapstructure:"gap"`
	AvgVol      float64 `json:"avgvol" yaml:"avgvol" mapstructure:"avgvol"`
	FloatBand   float64 `json:"float_band" yaml:"float_band" mapstructure:"float_band"`
	ShortFloat  float64 `json:"short_float" yaml:"short_float" mapstructure:"short_float"`
	AfterHours  float64 `json:"after_hours" yaml:"after_hours" mapstructure:"after_hours"`
	Change      float64 `json:"change" yaml:"change" mapstructure:"change"`
	W52Pos      float64 `json:"w52pos" yaml:"w52pos" mapstructure:"w52pos"`
	NewsFresh   float64 `json:"news_fresh" yaml:"news_fresh" mapstructure:"news_fresh"`
	Analyst     float64 `json:"analyst" yaml:"analyst" mapstructure:"analyst"`
	InsiderInst float64 `json:"insider_inst" yaml:"insider_inst" mapstructure:"insider_inst"`
}

// Penalties holds the named penalty amounts subtracted from the score when
// their trigger conditions hold.
type Penalties struct {
	EarningsNear float64 `json:"earnings_near" yaml:"earnings_near" mapstructure:"earnings_near"`
	PEOutlier    float64 `json:"pe_outlier" yaml:"pe_outlier" mapstructure:"pe_outlier"`

	// Sane P/E band for the pe_outlier trigger. Zero values fall back to
	// the defaults (1, 100).
	PEMin float64 `json:"pe_min" yaml:"pe_min" mapstructure:"pe_min"`
	PEMax float64 `json:"pe_max" yaml:"pe_max" mapstructure:"pe_max"`
}

// Caps limits how much damage any single penalty may do.
type Caps struct {
	// MaxSingleNegative is the maximum amount a single penalty may
	// subtract from the score.
	MaxSingleNegative float64 `json:"max_single_negative" yaml:"max_single_negative" mapstructure:"max_single_negative"`
}

// TierBoundaries maps minimum scores to tier labels, best tier first.
// A score lands in a tier only when it strictly exceeds the boundary;
// a tie at a boundary resolves to the lower tier.
type TierBoundaries struct {
	A float64 `json:"a" yaml:"a" mapstructure:"a"`
	B float64 `json:"b" yaml:"b" mapstructure:"b"`
	C float64 `json:"c" yaml:"c" mapstructure:"c"`
}

// Tier labels, ordinal: A > B > C > D.
const (
	TierA = "A"
	TierB = "B"
	TierC = "C"
	TierD = "D"
)

// SelectionFillPolicy controls what happens when the sector cap leaves the
// selection short of top_n.
type SelectionFillPolicy string

const (
	// FillRelaxed runs a second pass that admits remaining highest-scored
	// rows regardless of the sector cap until top_n is reached.
	FillRelaxed SelectionFillPolicy = "relaxed"

	// FillStrict never exceeds the sector cap, even if the selection
	// stays under top_n.
	FillStrict SelectionFillPolicy = "strict"
)

// SelectionPolicy holds diversification selector settings.
type SelectionPolicy struct {
	Fill SelectionFillPolicy `json:"fill" yaml:"fill" mapstructure:"fill"`
}

// CustomRule is a user-supplied CEL screen expression. The expression sees
// the coerced row fields as variables and must return a bool; rows for
// which it returns false (or errors) are rejected with reason "custom:<id>".
type CustomRule struct {
	ID         string `json:"id" yaml:"id" mapstructure:"id"`
	Expression string `json:"expression" yaml:"expression" mapstructure:"expression"`
	Enabled    bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
}

// NewsConfig holds the optional news-freshness signal settings.
type NewsConfig struct {
	Enabled        bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	FreshnessHours int  `json:"freshness_hours" yaml:"freshness_hours" mapstructure:"freshness_hours"`
}

// Config holds the complete infrastructure configuration.
type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server" mapstructure:"server"`
	Loader     LoaderConfig     `json:"loader" yaml:"loader" mapstructure:"loader"`
	Repository RepositoryConfig `json:"repository" yaml:"repository" mapstructure:"repository"`
	Cache      CacheConfig      `json:"cache" yaml:"cache" mapstructure:"cache"`
	EventBus   EventBusConfig   `json:"eventBus" yaml:"event_bus" mapstructure:"event_bus"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging" mapstructure:"logging"`
	Tracing    TracingConfig    `json:"tracing" yaml:"tracing" mapstructure:"tracing"`

	// OutputDir is the base directory for per-date artifact directories.
	OutputDir string `json:"outputDir" yaml:"output_dir" mapstructure:"output_dir"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host" yaml:"host" mapstructure:"host"`
	Port         int    `json:"port" yaml:"port" mapstructure:"port"`
	ReadTimeout  int    `json:"readTimeout" yaml:"read_timeout" mapstructure:"read_timeout"`    // seconds
	WriteTimeout int    `json:"writeTimeout" yaml:"write_timeout" mapstructure:"write_timeout"` // seconds
}

// LoaderConfig holds CSV fetch settings.
type LoaderConfig struct {
	// ExportURL is the screener export URL including the auth token.
	// Never serialized; set it via PREMARKET_EXPORT_URL.
	ExportURL string `json:"-" yaml:"export_url" mapstructure:"export_url"`

	// RawDir is the base directory for cached raw CSVs.
	RawDir string `json:"rawDir" yaml:"raw_dir" mapstructure:"raw_dir"`

	// CacheTTLMinutes is how long a cached CSV stays fresh.
	CacheTTLMinutes int `json:"cacheTtlMinutes" yaml:"cache_ttl_minutes" mapstructure:"cache_ttl_minutes"`

	// TimeoutSeconds is the per-request HTTP timeout.
	TimeoutSeconds int `json:"timeoutSeconds" yaml:"timeout_seconds" mapstructure:"timeout_seconds"`

	// MaxRetries bounds download attempts before the cache fallback.
	MaxRetries int `json:"maxRetries" yaml:"max_retries" mapstructure:"max_retries"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`    // debug, info, warn, error
	Format string `json:"format" yaml:"format" mapstructure:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	ServiceName string `json:"serviceName" yaml:"service_name" mapstructure:"service_name"`
}

// DefaultConfig returns the default single-node configuration:
// SQLite repository, in-memory cache, channel event bus.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Loader: LoaderConfig{
			RawDir:          "data/raw",
			CacheTTLMinutes: 60,
			TimeoutSeconds:  15,
			MaxRetries:      3,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./premarket.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     300,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "premarket",
		},
		OutputDir: "data/watchlists",
	}
}

// DefaultStrategy returns a usable default strategy so the pipeline can run
// without a strategy file.
func DefaultStrategy() *StrategyConfig {
	return &StrategyConfig{
		Premarket: PremarketConfig{
			PriceMin:                  2,
			PriceMax:                  100,
			AvgVolMin:                 500_000,
			RelVolMin:                 1.5,
			FloatMin:                  5_000_000,
			EarningsExcludeWindowDays: 3,
			MaxPerSector:              0.5,
			TopN:                      10,
			ExcludeExchanges:          []string{"OTC"},
			Weights: Weights{
				RelVol:      0.20,
				Gap:         0.15,
				AvgVol:      0.10,
				FloatBand:   0.10,
				ShortFloat:  0.05,
				AfterHours:  0.05,
				Change:      0.10,
				W52Pos:      0.10,
				NewsFresh:   0.05,
				Analyst:     0.05,
				InsiderInst: 0.05,
			},
			Penalties: Penalties{
				EarningsNear: 0.15,
				PEOutlier:    0.10,
			},
			Caps: Caps{MaxSingleNegative: 0.20},
			Tiers: TierBoundaries{
				A: 0.70,
				B: 0.50,
				C: 0.30,
			},
			Selection: SelectionPolicy{Fill: FillRelaxed},
		},
		News: NewsConfig{
			Enabled:        false,
			FreshnessHours: 24,
		},
	}
}
