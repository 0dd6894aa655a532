// Package config loads the infrastructure and strategy configuration.
// Settings come from an optional YAML file merged over built-in defaults,
// with PREMARKET_* environment variables taking precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/opensource-finance/premarket/internal/domain"
)

const envPrefix = "PREMARKET"

// Load reads the infrastructure configuration. path may be empty, in which
// case ./premarket.yaml and ./config/premarket.yaml are tried; a missing
// file is not an error and leaves the defaults in place.
func Load(path string) (*domain.Config, error) {
	cfg := domain.DefaultConfig()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("premarket")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// No explicit path: a missing default file keeps the defaults.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// LoadStrategy reads a strategy file and merges it over the built-in
// default strategy. An empty path returns the defaults unchanged.
func LoadStrategy(path string) (*domain.StrategyConfig, error) {
	strategy := domain.DefaultStrategy()
	if path == "" {
		return strategy, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read strategy file: %w", err)
	}

	if err := v.Unmarshal(strategy); err != nil {
		return nil, fmt.Errorf("parse strategy: %w", err)
	}

	if err := validateStrategy(strategy); err != nil {
		return nil, err
	}

	return strategy, nil
}

// bindEnvKeys registers the environment overrides explicitly so they are
// honored even when the key is absent from the config file.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"server.host",
		"server.port",
		"loader.export_url",
		"loader.raw_dir",
		"loader.cache_ttl_minutes",
		"loader.max_retries",
		"repository.driver",
		"repository.sqlite_path",
		"repository.postgres_host",
		"repository.postgres_port",
		"repository.postgres_user",
		"repository.postgres_password",
		"repository.postgres_db",
		"cache.type",
		"cache.redis_addr",
		"cache.redis_password",
		"event_bus.type",
		"event_bus.nats_url",
		"event_bus.nats_token",
		"logging.level",
		"logging.format",
		"output_dir",
	}
	for _, key := range keys {
		v.BindEnv(key) //nolint:errcheck // only errs on empty input
	}

	// Short alias for the secret most deployments set.
	v.BindEnv("loader.export_url", "PREMARKET_LOADER_EXPORT_URL", "PREMARKET_EXPORT_URL") //nolint:errcheck
}

func validateStrategy(s *domain.StrategyConfig) error {
	pm := s.Premarket

	if pm.PriceMin < 0 || pm.PriceMax < 0 {
		return fmt.Errorf("strategy: price bounds must not be negative")
	}
	if pm.PriceMin > 0 && pm.PriceMax > 0 && pm.PriceMin > pm.PriceMax {
		return fmt.Errorf("strategy: price_min %.2f exceeds price_max %.2f", pm.PriceMin, pm.PriceMax)
	}
	if pm.TopN < 0 {
		return fmt.Errorf("strategy: top_n must not be negative")
	}
	if pm.MaxPerSector < 0 {
		return fmt.Errorf("strategy: max_per_sector must not be negative")
	}

	switch pm.Selection.Fill {
	case "", domain.FillRelaxed, domain.FillStrict:
	default:
		return fmt.Errorf("strategy: unknown selection fill policy %q", pm.Selection.Fill)
	}

	t := pm.Tiers
	if t.A != 0 || t.B != 0 || t.C != 0 {
		if t.A < t.B || t.B < t.C {
			return fmt.Errorf("strategy: tier boundaries must be ordered A >= B >= C")
		}
	}

	for _, r := range pm.CustomRules {
		if r.Enabled && (r.ID == "" || r.Expression == "") {
			return fmt.Errorf("strategy: custom rules need both id and expression")
		}
	}

	return nil
}
