package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BillingConfig carries operator-tunable knobs for matching and late fees.
type BillingConfig struct {
	Matcher MatcherConfig `mapstructure:"matcher"`
	LateFee LateFeeConfig `mapstructure:"lateFee"`
}

type MatcherConfig struct {
	MaxCandidates     int     `mapstructure:"maxCandidates"`
	MinConfidence     float64 `mapstructure:"minConfidence"`
	ExtraPendingLimit int     `mapstructure:"extraPendingLimit"`
}

type LateFeeConfig struct {
	MaxGraceDays int `mapstructure:"maxGraceDays"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		Matcher: MatcherConfig{
			MaxCandidates:     10,
			MinConfidence:     0.3,
			ExtraPendingLimit: 5,
		},
		LateFee: LateFeeConfig{
			MaxGraceDays: 31,
		},
	}
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/cobranza/config")
	v.AddConfigPath("/etc/cobranza")
	v.AddConfigPath(".")

	v.SetEnvPrefix("COBRANZA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.matcher.maxCandidates", defaults.Matcher.MaxCandidates)
	v.SetDefault("billing.matcher.minConfidence", defaults.Matcher.MinConfidence)
	v.SetDefault("billing.matcher.extraPendingLimit", defaults.Matcher.ExtraPendingLimit)
	v.SetDefault("billing.lateFee.maxGraceDays", defaults.LateFee.MaxGraceDays)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-config] reload failed: %v", err)
			return
		}
		if err := validateBillingConfig(updated); err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticBillingConfigHolder returns a holder pinned to cfg, for tests.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func validateBillingConfig(cfg BillingConfig) error {
	if cfg.Matcher.MaxCandidates <= 0 {
		return errors.New("billing.matcher.maxCandidates must be positive")
	}
	if cfg.Matcher.MinConfidence < 0 || cfg.Matcher.MinConfidence >= 1 {
		return errors.New("billing.matcher.minConfidence must be in [0, 1)")
	}
	if cfg.LateFee.MaxGraceDays <= 0 {
		return errors.New("billing.lateFee.maxGraceDays must be positive")
	}
	return nil
}
