package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// BillingConfig holds the tuition billing policy. It is hot-reloaded from billing.yml.
type BillingConfig struct {
	LateFeeRate       string `mapstructure:"lateFeeRate"`
	DueDay            int    `mapstructure:"dueDay"`
	DeadlineDays      int    `mapstructure:"deadlineDays"`
	OrganizationName  string `mapstructure:"organizationName"`
	OrganizationEmail string `mapstructure:"organizationEmail"`
	Currency          string `mapstructure:"currency"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		LateFeeRate:       "0.10",
		DueDay:            10,
		DeadlineDays:      5,
		OrganizationName:  "SchoolRide Transportes",
		OrganizationEmail: "billing@schoolride.local",
		Currency:          "MZN",
	}
}

// DefaultLateFeeRate parses LateFeeRate. The value was validated on load.
func (c BillingConfig) DefaultLateFeeRate() decimal.Decimal {
	rate, err := decimal.NewFromString(strings.TrimSpace(c.LateFeeRate))
	if err != nil {
		return decimal.Zero
	}
	return rate
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

// NewStaticBillingConfigHolder returns a holder that never reloads.
func NewStaticBillingConfigHolder(cfg BillingConfig) (*BillingConfigHolder, error) {
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder, nil
}

func NewBillingConfigHolder(log *zap.Logger) (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/schoolride")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SCHOOLRIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.lateFeeRate", defaults.LateFeeRate)
	v.SetDefault("billing.dueDay", defaults.DueDay)
	v.SetDefault("billing.deadlineDays", defaults.DeadlineDays)
	v.SetDefault("billing.organizationName", defaults.OrganizationName)
	v.SetDefault("billing.organizationEmail", defaults.OrganizationEmail)
	v.SetDefault("billing.currency", defaults.Currency)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	holder, err := NewStaticBillingConfigHolder(cfg)
	if err != nil {
		return nil, err
	}

	if !fileLoaded {
		return holder, nil
	}

	log = log.Named("billing-config")
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := validateBillingConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func validateBillingConfig(cfg BillingConfig) error {
	rate, err := decimal.NewFromString(strings.TrimSpace(cfg.LateFeeRate))
	if err != nil {
		return fmt.Errorf("billing.lateFeeRate: %w", err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return errors.New("billing.lateFeeRate must be in [0, 1)")
	}
	if cfg.DueDay < 1 || cfg.DueDay > 28 {
		return errors.New("billing.dueDay must be between 1 and 28")
	}
	if cfg.DeadlineDays < 0 {
		return errors.New("billing.deadlineDays cannot be negative")
	}
	return nil
}
