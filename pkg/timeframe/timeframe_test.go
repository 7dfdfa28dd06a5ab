// pkg/timeframe/timeframe_test.go
package timeframe

import (
	"reflect"
	"testing"
	"time"
)

func TestStringToMinutes(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"1m", 1},
		{"5m", 5},
		{"15m", 15},
		{"30m", 30},
		{"1h", 60},
		{"4h", 240},
		{"1d", 1440},
		{"45m", 45},
		{"  5M  ", 5},
	}
	for _, c := range cases {
		got, err := StringToMinutes(c.in)
		if err != nil {
			t.Fatalf("StringToMinutes(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("StringToMinutes(%q) = %d, want %d", c.in, got, c.want)
		}
	}

	for _, in := range []string{"", "2x", "0m", "-5m", "h", "5"} {
		if _, err := StringToMinutes(in); err == nil {
			t.Fatalf("StringToMinutes(%q) must fail", in)
		}
	}
}

func TestMinutesToString(t *testing.T) {
	cases := map[int]string{
		1:    "1m",
		5:    "5m",
		60:   "1h",
		240:  "4h",
		1440: "1d",
		45:   "45m",
	}
	for minutes, want := range cases {
		if got := MinutesToString(minutes); got != want {
			t.Fatalf("MinutesToString(%d) = %q, want %q", minutes, got, want)
		}
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"60m":  "1h",
		"240m": "4h",
		"5m":   "5m",
		"1D":   "1d",
		"45m":  "45m",
	}
	for in, want := range cases {
		got, err := Normalize(in)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := Normalize("tick"); err == nil {
		t.Fatalf("Normalize must reject unknown timeframe")
	}
}

func TestStringToDuration(t *testing.T) {
	d, err := StringToDuration("5m")
	if err != nil || d != 5*time.Minute {
		t.Fatalf("StringToDuration(5m) = %s, %v", d, err)
	}
	d, err = StringToDuration("1h")
	if err != nil || d != time.Hour {
		t.Fatalf("StringToDuration(1h) = %s, %v", d, err)
	}
	if _, err := StringToDuration("nope"); err == nil {
		t.Fatalf("StringToDuration must reject unknown timeframe")
	}
}

func TestParseList(t *testing.T) {
	got, err := ParseList("5m, 60m,,1d")
	if err != nil {
		t.Fatalf("ParseList: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"5m", "1h", "1d"}) {
		t.Fatalf("ParseList = %v", got)
	}
	if _, err := ParseList("5m,junk"); err == nil {
		t.Fatalf("ParseList must reject bad entry")
	}
	if _, err := ParseList(" , "); err == nil {
		t.Fatalf("ParseList must reject empty list")
	}
}

func TestIsValidIsStandard(t *testing.T) {
	if !IsValid("5m") || !IsValid("45m") || IsValid("tick") {
		t.Fatalf("IsValid misbehaves")
	}
	if !IsStandard("5m") || IsStandard("45m") {
		t.Fatalf("IsStandard misbehaves")
	}
}

func TestBarDuration(t *testing.T) {
	if got := BarDuration("1h"); got != time.Hour {
		t.Fatalf("BarDuration(1h) = %s", got)
	}
	if got := BarDuration("junk"); got != DefaultDuration {
		t.Fatalf("unknown timeframe must fall back to default, got %s", got)
	}
}
