package usecase

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig は判断ルールの設定が不正な場合のエラーです。
var ErrInvalidConfig = errors.New("invalid decision config")

// Thresholds はROIからSignalを決めるしきい値です。値は割合（0.3 = +30%）です。
type Thresholds struct {
	Strong   float64 `mapstructure:"strong"`
	Positive float64 `mapstructure:"positive"`
	Watch    float64 `mapstructure:"watch"`
}

// Config は判断ルールの設定です。
type Config struct {
	MinComparables   int                `mapstructure:"min_comparables"`
	ThinDataCount    int                `mapstructure:"thin_data_count"` // これ未満の件数はデータ不足として扱う
	FairValueSample  int                `mapstructure:"fair_value_sample"`
	Normal           Thresholds         `mapstructure:"normal"`
	Thin             Thresholds         `mapstructure:"thin"`
	MaxBidFraction   float64            `mapstructure:"max_bid_fraction"`
	SellingFee       float64            `mapstructure:"selling_fee"`
	StalePenalty     float64            `mapstructure:"stale_penalty"`
	HighBidCount     int                `mapstructure:"high_bid_count"`
	WideSpreadRatio  float64            `mapstructure:"wide_spread_ratio"`
	LowIdentityConf  float64            `mapstructure:"low_identity_confidence"`
	GradeMultipliers map[string]float64 `mapstructure:"-"` // キーは大文字小文字を区別しない
}

// DefaultGradeMultipliers は鑑定グレードごとの価値倍率です。未鑑定は1.0です。
func DefaultGradeMultipliers() map[string]float64 {
	return map[string]float64{
		"PSA 10":  2.5,
		"PSA 9":   1.8,
		"PSA 8":   1.3,
		"PSA 7":   1.0,
		"PSA 6":   0.7,
		"BGS 9.5": 2.2,
		"BGS 9":   1.6,
		"BGS 8.5": 1.2,
		"BGS 8":   1.0,
		"SGC 10":  2.0,
		"SGC 9":   1.5,
		"SGC 8":   1.1,
		"CGC 10":  2.0,
		"CGC 9":   1.4,
	}
}

// DefaultConfig は既定の設定を返します。
func DefaultConfig() Config {
	return Config{
		MinComparables:   3,
		ThinDataCount:    6,
		FairValueSample:  10,
		Normal:           Thresholds{Strong: 0.30, Positive: 0.15, Watch: -0.10},
		Thin:             Thresholds{Strong: 0.35, Positive: 0.20, Watch: -0.15},
		MaxBidFraction:   0.8,
		SellingFee:       0.13,
		StalePenalty:     0.5,
		HighBidCount:     20,
		WideSpreadRatio:  0.5,
		LowIdentityConf:  0.5,
		GradeMultipliers: DefaultGradeMultipliers(),
	}
}

// Validate は設定値の整合性を検証します。
// データ不足時のしきい値は通常時より厳しく（上位は高く、下限は低く）なければなりません。
func (c Config) Validate() error {
	switch {
	case c.MinComparables < 1:
		return fmt.Errorf("%w: min_comparables must be >= 1, got %d", ErrInvalidConfig, c.MinComparables)
	case c.ThinDataCount < c.MinComparables:
		return fmt.Errorf("%w: thin_data_count (%d) must be >= min_comparables (%d)", ErrInvalidConfig, c.ThinDataCount, c.MinComparables)
	case c.FairValueSample < 1:
		return fmt.Errorf("%w: fair_value_sample must be >= 1, got %d", ErrInvalidConfig, c.FairValueSample)
	case c.MaxBidFraction <= 0 || c.MaxBidFraction > 1:
		return fmt.Errorf("%w: max_bid_fraction must be in (0,1], got %v", ErrInvalidConfig, c.MaxBidFraction)
	case c.SellingFee < 0 || c.SellingFee >= 1:
		return fmt.Errorf("%w: selling_fee must be in [0,1), got %v", ErrInvalidConfig, c.SellingFee)
	case c.StalePenalty < 0 || c.StalePenalty > 1:
		return fmt.Errorf("%w: stale_penalty must be in [0,1], got %v", ErrInvalidConfig, c.StalePenalty)
	}
	if err := c.Normal.validate("normal"); err != nil {
		return err
	}
	if err := c.Thin.validate("thin"); err != nil {
		return err
	}
	if c.Thin.Strong < c.Normal.Strong || c.Thin.Positive < c.Normal.Positive || c.Thin.Watch > c.Normal.Watch {
		return fmt.Errorf("%w: thin thresholds must be at least as strict as normal thresholds", ErrInvalidConfig)
	}
	for grade, m := range c.GradeMultipliers {
		if m <= 0 {
			return fmt.Errorf("%w: grade multiplier for %q must be positive, got %v", ErrInvalidConfig, grade, m)
		}
	}
	return nil
}

func (t Thresholds) validate(name string) error {
	if !(t.Strong > t.Positive && t.Positive > t.Watch) {
		return fmt.Errorf("%w: %s thresholds must satisfy strong > positive > watch, got %v/%v/%v",
			ErrInvalidConfig, name, t.Strong, t.Positive, t.Watch)
	}
	return nil
}
