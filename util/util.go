package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

type TemperatureUnits string

const (
	Celsius    TemperatureUnits = "Celsius"
	Fahrenheit TemperatureUnits = "Fahrenheit"
)

// TempCToF converts temperature degrees from Celsius to Fahrenheit
func TempCToF(tempC float64) float64 {
	return tempC*9/5 + 32
}

// TempFToC converts temperature degrees from Fahrenheit to Celsius
func TempFToC(tempF float64) float64 {
	return (tempF - 32) * 5 / 9
}

// ToCelsius normalizes a reading taken in the given units.
func ToCelsius(temp float64, units TemperatureUnits) float64 {
	if units == Fahrenheit {
		return TempFToC(temp)
	}
	return temp
}

// FormatTemp renders a temperature the way the panel labels show it.
func FormatTemp(tempC float64) string {
	return fmt.Sprintf("%.1f°C", tempC)
}

// Duration is a time.Duration that reads "30s" style strings from config files.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case float64:
		*d = Duration(time.Duration(v))
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
	default:
		return errors.New("invalid duration")
	}
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

const (
	dateLayout = "02.01.2006\nMonday"
	timeLayout = "15:04"
)

// ClockLabels returns the date and time texts shown on the main screen.
func ClockLabels(t time.Time) (date, clock string) {
	return t.Format(dateLayout), t.Format(timeLayout)
}

// LogRing keeps the last lines written to the loading screen. Lines longer than
// the configured width are truncated.
type LogRing struct {
	mu     sync.Mutex
	buffer []string
	width  int
	index  int
	count  int
}

func NewLogRing(size, width int) *LogRing {
	return &LogRing{buffer: make([]string, size), width: width}
}

func (buf *LogRing) Add(line string) {
	if buf.width > 0 && len(line) > buf.width {
		line = truncate(line, buf.width)
	}

	buf.mu.Lock()
	defer buf.mu.Unlock()

	buf.buffer[buf.index] = line
	buf.index = (buf.index + 1) % len(buf.buffer)
	if buf.count < len(buf.buffer) {
		buf.count++
	}
}

// GetAll returns the stored lines, oldest first.
func (buf *LogRing) GetAll() []string {
	buf.mu.Lock()
	defer buf.mu.Unlock()

	out := make([]string, 0, buf.count)
	start := buf.index - buf.count
	if start < 0 {
		start += len(buf.buffer)
	}
	for i := 0; i < buf.count; i++ {
		out = append(out, buf.buffer[(start+i)%len(buf.buffer)])
	}
	return out
}

func (buf *LogRing) String() string {
	return strings.Join(buf.GetAll(), "\n")
}

func (buf *LogRing) Reset() {
	buf.mu.Lock()
	defer buf.mu.Unlock()

	for i := range buf.buffer {
		buf.buffer[i] = ""
	}
	buf.index, buf.count = 0, 0
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
