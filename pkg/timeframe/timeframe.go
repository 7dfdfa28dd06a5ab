// pkg/timeframe/timeframe.go
package timeframe

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// StringToMinutes конвертирует строковый таймфрейм в минуты
func StringToMinutes(tf string) (int, error) {
	tf = strings.ToLower(strings.TrimSpace(tf))

	switch tf {
	case TF1m:
		return Minutes1, nil
	case TF5m:
		return Minutes5, nil
	case TF15m:
		return Minutes15, nil
	case TF30m:
		return Minutes30, nil
	case TF1h:
		return Minutes60, nil
	case TF4h:
		return Minutes240, nil
	case TF1d:
		return Minutes1440, nil
	default:
		// Пробуем распарсить как число минут
		if strings.HasSuffix(tf, "m") {
			minutesStr := strings.TrimSuffix(tf, "m")
			minutes, err := strconv.Atoi(minutesStr)
			if err == nil && minutes > 0 {
				return minutes, nil
			}
		}
		return 0, fmt.Errorf("неизвестный формат таймфрейма: %s", tf)
	}
}

// MinutesToString конвертирует минуты в строковый таймфрейм
func MinutesToString(minutes int) string {
	switch minutes {
	case Minutes1:
		return TF1m
	case Minutes5:
		return TF5m
	case Minutes15:
		return TF15m
	case Minutes30:
		return TF30m
	case Minutes60:
		return TF1h
	case Minutes240:
		return TF4h
	case Minutes1440:
		return TF1d
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

// StringToDuration конвертирует строковый таймфрейм в time.Duration
func StringToDuration(tf string) (time.Duration, error) {
	minutes, err := StringToMinutes(tf)
	if err != nil {
		return 0, err
	}
	return time.Duration(minutes) * time.Minute, nil
}

// MinutesToDuration конвертирует минуты в time.Duration
func MinutesToDuration(minutes int) time.Duration {
	return time.Duration(minutes) * time.Minute
}

// IsValid проверяет, является ли таймфрейм валидным
func IsValid(tf string) bool {
	_, err := StringToMinutes(tf)
	return err == nil
}

// IsStandard проверяет, является ли таймфрейм стандартным
func IsStandard(tf string) bool {
	for _, std := range AllTimeframes {
		if tf == std {
			return true
		}
	}
	return false
}

// Normalize приводит таймфрейм к каноническому строковому виду
func Normalize(tf string) (string, error) {
	minutes, err := StringToMinutes(tf)
	if err != nil {
		return "", err
	}
	return MinutesToString(minutes), nil
}

// ParseList парсит список таймфреймов из строки вида "5m,1h,1d"
func ParseList(s string) ([]string, error) {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		normalized, err := Normalize(part)
		if err != nil {
			return nil, err
		}
		result = append(result, normalized)
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("нет валидных таймфреймов: %q", s)
	}

	return result, nil
}

// BarDuration возвращает длительность одного бара таймфрейма
func BarDuration(tf string) time.Duration {
	minutes, err := StringToMinutes(tf)
	if err != nil {
		return DefaultDuration
	}
	return MinutesToDuration(minutes)
}
