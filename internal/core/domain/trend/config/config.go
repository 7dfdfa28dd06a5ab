// internal/core/domain/trend/config/config.go
package config

import "fmt"

// DetectorConfig - настройки детектора начала тренда. Все пороги
// вынесены в конфигурацию и калибруются по размеченным данным,
// в коде детектора числовых литералов нет.
type DetectorConfig struct {
	// Lookback - окно формирования кандидата: бар становится якорем,
	// если его экстремум строже экстремума последних Lookback баров,
	// а цена за это окно двигалась против будущего тренда.
	Lookback int `json:"lookback"`

	// ToleranceFrac - допуск зоны консолидации как доля диапазона
	// якорного бара (high - low).
	ToleranceFrac float64 `json:"tolerance_frac"`

	// MinInsideBars - минимум подряд идущих баров внутри зоны,
	// после которого пробой зоны считается подтверждением.
	// Отсекает одиночный шум.
	MinInsideBars int `json:"min_inside_bars"`

	// MomentumMinFrac - порог прямого momentum-подтверждения:
	// изменение close к close предыдущего бара как доля цены.
	MomentumMinFrac float64 `json:"momentum_min_frac"`

	// MomentumByTimeframe - переопределение momentum-порога по
	// таймфреймам (ключ - канонический таймфрейм, например "5m").
	MomentumByTimeframe map[string]float64 `json:"momentum_by_timeframe,omitempty"`
}

// DefaultConfig - конфигурация по умолчанию
var DefaultConfig = DetectorConfig{
	Lookback:        4,
	ToleranceFrac:   0.25,
	MinInsideBars:   2,
	MomentumMinFrac: 0.003,
	MomentumByTimeframe: map[string]float64{
		"1m":  0.002,
		"5m":  0.002,
		"15m": 0.003,
		"30m": 0.003,
		"1h":  0.004,
		"4h":  0.004,
		"1d":  0.005,
	},
}

// NewConfig создает копию конфигурации по умолчанию
func NewConfig() DetectorConfig {
	cfg := DefaultConfig
	cfg.MomentumByTimeframe = make(map[string]float64, len(DefaultConfig.MomentumByTimeframe))
	for k, v := range DefaultConfig.MomentumByTimeframe {
		cfg.MomentumByTimeframe[k] = v
	}
	return cfg
}

// MomentumFor возвращает momentum-порог для таймфрейма
func (c DetectorConfig) MomentumFor(tf string) float64 {
	if v, ok := c.MomentumByTimeframe[tf]; ok && v > 0 {
		return v
	}
	return c.MomentumMinFrac
}

// WindowCap возвращает размер окна недавних баров, которое детектор
// таскает в состоянии: lookback плюс текущий бар.
func (c DetectorConfig) WindowCap() int {
	return c.Lookback + 1
}

// Validate проверяет корректность конфигурации
func (c DetectorConfig) Validate() error {
	if c.Lookback < 1 {
		return fmt.Errorf("lookback must be at least 1, got %d", c.Lookback)
	}
	if c.ToleranceFrac < 0 {
		return fmt.Errorf("tolerance_frac must not be negative, got %f", c.ToleranceFrac)
	}
	if c.MinInsideBars < 1 {
		return fmt.Errorf("min_inside_bars must be at least 1, got %d", c.MinInsideBars)
	}
	if c.MomentumMinFrac <= 0 {
		return fmt.Errorf("momentum_min_frac must be positive, got %f", c.MomentumMinFrac)
	}
	for tf, v := range c.MomentumByTimeframe {
		if v <= 0 {
			return fmt.Errorf("momentum override for %s must be positive, got %f", tf, v)
		}
	}
	return nil
}
