// pkg/timeframe/constants.go
package timeframe

import "time"

// Поддерживаемые таймфреймы в минутах
const (
	Minutes1    = 1
	Minutes5    = 5
	Minutes15   = 15
	Minutes30   = 30
	Minutes60   = 60   // 1 час
	Minutes240  = 240  // 4 часа
	Minutes1440 = 1440 // 1 день
)

// Поддерживаемые строковые представления
const (
	TF1m  = "1m"
	TF5m  = "5m"
	TF15m = "15m"
	TF30m = "30m"
	TF1h  = "1h"
	TF4h  = "4h"
	TF1d  = "1d"
)

// Все поддерживаемые таймфреймы
var AllTimeframes = []string{
	TF1m,
	TF5m,
	TF15m,
	TF30m,
	TF1h,
	TF4h,
	TF1d,
}

// Все поддерживаемые таймфреймы в минутах
var AllTimeframesMinutes = []int{
	Minutes1,
	Minutes5,
	Minutes15,
	Minutes30,
	Minutes60,
	Minutes240,
	Minutes1440,
}

// Дефолтные значения
const (
	DefaultTimeframe = TF5m
	DefaultMinutes   = Minutes5
	DefaultDuration  = 5 * time.Minute
)
