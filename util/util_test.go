package util

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestTemperatureConversion(t *testing.T) {
	if got := TempCToF(100); got != 212 {
		t.Errorf("TempCToF(100) = %f", got)
	}
	if got := TempFToC(32); got != 0 {
		t.Errorf("TempFToC(32) = %f", got)
	}
	if got := ToCelsius(20, Celsius); got != 20 {
		t.Errorf("ToCelsius kept celsius as %f", got)
	}
}

func TestFormatTemp(t *testing.T) {
	if got := FormatTemp(20); got != "20.0°C" {
		t.Errorf("FormatTemp(20) = %q", got)
	}
	if got := FormatTemp(18.46); got != "18.5°C" {
		t.Errorf("FormatTemp(18.46) = %q", got)
	}
}

func TestDurationUnmarshal(t *testing.T) {
	var cfg struct {
		Poll Duration `json:"poll"`
		Raw  Duration `json:"raw"`
	}
	if err := json.Unmarshal([]byte(`{"poll":"30s","raw":1000000000}`), &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Poll.Std() != 30*time.Second {
		t.Errorf("poll = %v", cfg.Poll.Std())
	}
	if cfg.Raw.Std() != time.Second {
		t.Errorf("raw = %v", cfg.Raw.Std())
	}

	if err := json.Unmarshal([]byte(`{"poll":"soon"}`), &cfg); err == nil {
		t.Error("expected error for unparsable duration")
	}
}

func TestClockLabels(t *testing.T) {
	date, clock := ClockLabels(time.Date(2024, time.March, 5, 7, 9, 0, 0, time.UTC))
	if date != "05.03.2024\nTuesday" {
		t.Errorf("date = %q", date)
	}
	if clock != "07:09" {
		t.Errorf("clock = %q", clock)
	}
}

func TestLogRing(t *testing.T) {
	ring := NewLogRing(3, 5)

	ring.Add("one")
	ring.Add("two")
	if got := ring.GetAll(); len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Fatalf("unexpected lines %v", got)
	}

	ring.Add("three")
	ring.Add("four")
	got := ring.GetAll()
	if strings.Join(got, ",") != "two,three,four" {
		t.Errorf("oldest line not dropped: %v", got)
	}

	ring.Reset()
	if len(ring.GetAll()) != 0 {
		t.Error("reset left lines behind")
	}
}

func TestLogRingTruncatesWithoutSplittingRunes(t *testing.T) {
	ring := NewLogRing(2, 4)
	ring.Add("ab°cd")
	if got := ring.String(); got != "ab°" {
		t.Errorf("got %q", got)
	}
}
